package services

import (
	"math/rand"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"leafline/internal/domain"
)

// ShippingSchedule maps each tier to its flat cost.
type ShippingSchedule map[domain.ShippingTier]decimal.Decimal

func DefaultShippingSchedule() ShippingSchedule {
	return ShippingSchedule{
		domain.ShippingStandard:  decimal.Zero,
		domain.ShippingExpress:   decimal.NewFromInt(150),
		domain.ShippingOvernight: decimal.NewFromInt(300),
	}
}

// RandomLucky draws a lucky discount uniformly from ₹0.01..₹0.99.
func RandomLucky() decimal.Decimal {
	return decimal.New(int64(rand.Intn(99)+1), -2)
}

// Pricer turns a subtotal and discounts into a final breakdown. The shipping
// schedule can be swapped while requests are in flight.
type Pricer struct {
	schedule atomic.Pointer[ShippingSchedule]
}

func NewPricer(s ShippingSchedule) *Pricer {
	p := &Pricer{}
	p.SetSchedule(s)
	return p
}

func (p *Pricer) SetSchedule(s ShippingSchedule) {
	cp := make(ShippingSchedule, len(s))
	for k, v := range s {
		cp[k] = v
	}
	p.schedule.Store(&cp)
}

func (p *Pricer) Schedule() ShippingSchedule {
	return *p.schedule.Load()
}

func (p *Pricer) ShippingCost(tier domain.ShippingTier) (decimal.Decimal, error) {
	cost, ok := p.Schedule()[tier]
	if !ok {
		return decimal.Zero, ErrUnknownTier
	}
	return cost, nil
}

// Quote computes subtotal + shipping − lucky − coupon. A negative result is
// clamped to zero and reported as ErrNegativeTotal alongside the breakdown.
func (p *Pricer) Quote(tier domain.ShippingTier, subtotal, lucky, coupon decimal.Decimal) (domain.PriceBreakdown, error) {
	shipping, err := p.ShippingCost(tier)
	if err != nil {
		return domain.PriceBreakdown{}, err
	}
	b := domain.PriceBreakdown{
		Tier:           tier,
		Subtotal:       subtotal,
		Shipping:       shipping,
		LuckyDiscount:  lucky,
		CouponDiscount: coupon,
	}
	b.Total = subtotal.Add(shipping).Sub(lucky).Sub(coupon).Round(2)
	if b.Total.IsNegative() {
		b.Total = decimal.Zero
		b.Clamped = true
		return b, ErrNegativeTotal
	}
	return b, nil
}
