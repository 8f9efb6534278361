package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"leafline/internal/domain"
	applog "leafline/internal/log"
	"leafline/internal/repos"
	"leafline/internal/validate"
)

type CheckoutService struct {
	Carts     *repos.CartRepo
	Orders    *repos.OrderRepo
	Cart      *CartService
	Discounts *DiscountService
	Addresses *AddressService
	Payments  *PaymentService
	Pricer    *Pricer
	Lucky     func() decimal.Decimal
}

type Summary struct {
	Cart       CartView               `json:"cart"`
	Breakdown  domain.PriceBreakdown  `json:"breakdown"`
	Discount   *domain.DiscountResult `json:"discount,omitempty"`
	CouponCode string                 `json:"coupon_code,omitempty"`
	Addresses  []domain.Address       `json:"addresses"`
	Shipping   ShippingSchedule       `json:"shipping_options"`
}

type priced struct {
	cart      CartView
	coupon    string
	discount  *domain.DiscountResult
	breakdown domain.PriceBreakdown
}

// price reads the cart and prices it for tier. The lucky discount is drawn
// the first time a non-empty cart is priced and reused afterwards. A clamped
// total is returned with ErrNegativeTotal.
func (s *CheckoutService) price(ctx context.Context, sessionID string, tier domain.ShippingTier) (priced, error) {
	var p priced
	if _, err := s.Pricer.ShippingCost(tier); err != nil {
		return p, err
	}
	cart, err := s.Cart.View(ctx, sessionID)
	if err != nil {
		return p, err
	}
	p.cart = cart
	st, err := s.Carts.State(ctx, sessionID)
	if err != nil {
		return p, err
	}
	p.coupon = st.CouponCode

	lucky := decimal.Zero
	if len(cart.Items) > 0 {
		lucky = st.LuckyDiscount.Decimal
		if !st.LuckyDiscount.Valid {
			draw := s.Lucky
			if draw == nil {
				draw = RandomLucky
			}
			if lucky, err = s.Carts.SetLuckyDiscount(ctx, sessionID, draw()); err != nil {
				return p, err
			}
		}
	}

	p.discount, err = s.Discounts.Calculate(ctx, cart.CartItems(), st.CouponCode)
	if err != nil {
		return p, err
	}
	coupon := decimal.Zero
	if p.discount != nil && p.discount.IsApplicable {
		coupon = p.discount.DiscountAmount
	}
	p.breakdown, err = s.Pricer.Quote(tier, cart.Subtotal, lucky, coupon)
	return p, err
}

// Summary prices the cart and loads the user's saved addresses in parallel.
// Address failures degrade to an empty list.
func (s *CheckoutService) Summary(ctx context.Context, sessionID, userID string, tier domain.ShippingTier) (Summary, error) {
	var (
		p     priced
		addrs []domain.Address
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		p, err = s.price(gctx, sessionID, tier)
		if errors.Is(err, ErrNegativeTotal) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		addrs = s.Addresses.List(gctx, userID)
		return nil
	})
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}
	return Summary{
		Cart:       p.cart,
		Breakdown:  p.breakdown,
		Discount:   p.discount,
		CouponCode: p.coupon,
		Addresses:  addrs,
		Shipping:   s.Pricer.Schedule(),
	}, nil
}

// ApplyCoupon validates code against the cart and stores it on success.
func (s *CheckoutService) ApplyCoupon(ctx context.Context, sessionID, code string) (domain.CouponCheck, error) {
	cart, err := s.Cart.View(ctx, sessionID)
	if err != nil {
		return domain.CouponCheck{}, err
	}
	check, err := s.Discounts.ValidateCoupon(ctx, cart.CartItems(), code)
	if err != nil || !check.Valid {
		return check, err
	}
	if err := s.Carts.SetCoupon(ctx, sessionID, check.Code); err != nil {
		return domain.CouponCheck{}, err
	}
	return check, nil
}

func (s *CheckoutService) RemoveCoupon(ctx context.Context, sessionID string) error {
	if _, err := s.Carts.EnsureCart(ctx, sessionID); err != nil {
		return err
	}
	return s.Carts.SetCoupon(ctx, sessionID, "")
}

type PlaceRequest struct {
	SessionID   string
	UserID      string
	Email       string
	Tier        domain.ShippingTier
	AddressID   string
	Address     *domain.Address
	SaveAddress bool
}

type Placement struct {
	Order     domain.Order       `json:"order"`
	Items     []domain.OrderItem `json:"items"`
	UPILink   string             `json:"upi_link"`
	DisplayID string             `json:"display_id"`
}

func (s *CheckoutService) resolveAddress(ctx context.Context, req PlaceRequest) (domain.Address, error) {
	if req.AddressID != "" {
		return s.Addresses.Get(ctx, req.UserID, req.AddressID)
	}
	if req.Address == nil {
		return domain.Address{}, invalid("address", "Select or enter a shipping address")
	}
	a := *req.Address
	errs := validate.Address(&a)
	if _, ok := errs["pincode"]; !ok {
		_, found, err := s.Addresses.LookupPincode(ctx, a.Pincode)
		if err != nil {
			return domain.Address{}, err
		}
		if !found {
			errs["pincode"] = validate.MsgNotServiceable
		}
	}
	if len(errs) > 0 {
		return domain.Address{}, &ValidationError{Fields: errs}
	}
	if req.SaveAddress && req.UserID != "" {
		saved, _, err := s.Addresses.Save(ctx, req.UserID, a, false)
		if err != nil {
			applog.Error(nil, "checkout.save_address", err, map[string]any{"user_id": req.UserID})
		} else {
			a = saved
		}
	}
	return a, nil
}

// Place turns the session's cart into an order awaiting UPI payment. The cart
// is kept until the payment is confirmed.
func (s *CheckoutService) Place(ctx context.Context, req PlaceRequest) (Placement, error) {
	email, ok := validate.Email(req.Email)
	if !ok {
		return Placement{}, invalid("email", "Enter a valid email address")
	}
	if req.Tier == "" {
		req.Tier = domain.ShippingStandard
	}
	addr, err := s.resolveAddress(ctx, req)
	if err != nil {
		return Placement{}, err
	}

	p, err := s.price(ctx, req.SessionID, req.Tier)
	if err != nil {
		return Placement{}, err
	}
	if len(p.cart.Items) == 0 {
		return Placement{}, ErrCartEmpty
	}

	b := p.breakdown
	o := domain.Order{
		ID:             uuid.NewString(),
		SessionID:      req.SessionID,
		UserID:         req.UserID,
		CustomerName:   addr.FullName,
		CustomerEmail:  email,
		CustomerPhone:  addr.Phone,
		Address:        addr,
		ShippingTier:   b.Tier,
		Subtotal:       b.Subtotal,
		ShippingCost:   b.Shipping,
		LuckyDiscount:  b.LuckyDiscount,
		CouponDiscount: b.CouponDiscount,
		Total:          b.Total,
		PaymentMethod:  "upi",
		TransactionID:  NewTransactionID(),
		PaymentStatus:  domain.PaymentIdle,
		Status:         domain.OrderPlaced,
	}

	var hooks []repos.TxFunc
	if d := p.discount; d != nil && d.IsApplicable && d.DiscountAmount.IsPositive() {
		o.DiscountID = d.DiscountID
		if strings.EqualFold(d.Code, p.coupon) {
			o.CouponCode = d.Code
		}
		hooks = append(hooks, func(ctx context.Context, tx *sqlx.Tx) error {
			err := s.Discounts.Discounts.RedeemTx(ctx, tx, d.DiscountID)
			if errors.Is(err, repos.ErrUsageLimitReached) {
				return ErrDiscountExhausted
			}
			return err
		})
	}

	items := make([]domain.OrderItem, 0, len(p.cart.Items))
	for _, l := range p.cart.Items {
		items = append(items, domain.OrderItem{
			ProductID: l.ProductID,
			VariantID: l.VariantID,
			ComboID:   l.ComboID,
			Title:     l.Title,
			Qty:       l.Qty,
			UnitPrice: l.UnitPrice,
		})
	}
	if err := s.Orders.Create(ctx, &o, items, hooks...); err != nil {
		return Placement{}, err
	}

	return Placement{
		Order:     o,
		Items:     items,
		UPILink:   s.Payments.Link(o),
		DisplayID: DisplayID(o),
	}, nil
}
