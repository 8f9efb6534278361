package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"leafline/internal/domain"
	"leafline/internal/repos"
	"leafline/internal/validate"
)

const (
	ReasonInvalidCode   = "Invalid coupon code"
	ReasonInactive      = "This coupon is no longer active"
	ReasonExpired       = "Coupon has expired"
	ReasonNotYetActive  = "Coupon is not yet active"
	ReasonNotApplicable = "Coupon is not applicable to items in your cart"
)

var hundred = decimal.NewFromInt(100)

// CartTotal sums effective unit price × quantity over every line.
func CartTotal(items []domain.CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.LineTotal())
	}
	return total
}

// Applicable checks the minimum cart value and the scope of d against the
// cart. The reason is empty when d applies.
func Applicable(d domain.Discount, items []domain.CartItem, total decimal.Decimal) (bool, string) {
	if d.MinCartValue.Valid && total.LessThan(d.MinCartValue.Decimal) {
		return false, fmt.Sprintf("Minimum cart value of ₹%s required", d.MinCartValue.Decimal.StringFixed(2))
	}
	var ids []string
	var pick func(domain.CartItem) string
	switch d.Scope {
	case domain.ScopeProducts:
		ids, pick = d.ProductIDs, func(i domain.CartItem) string { return i.ProductID }
	case domain.ScopeCombos:
		ids, pick = d.ComboIDs, func(i domain.CartItem) string { return i.ComboID }
	case domain.ScopeVariants:
		ids, pick = d.VariantIDs, func(i domain.CartItem) string { return i.VariantID }
	default:
		return true, ""
	}
	for _, it := range items {
		if id := pick(it); id != "" && slices.Contains(ids, id) {
			return true, ""
		}
	}
	return false, ReasonNotApplicable
}

// DiscountAmount is value-based (percentage of total, or flat), capped by the
// discount's maximum and then by total, rounded to paise.
func DiscountAmount(d domain.Discount, total decimal.Decimal) decimal.Decimal {
	var amt decimal.Decimal
	switch d.Type {
	case domain.DiscountPercentage:
		amt = total.Mul(d.Value).Div(hundred)
	default:
		amt = d.Value
	}
	if d.MaxDiscountAmount.Valid && amt.GreaterThan(d.MaxDiscountAmount.Decimal) {
		amt = d.MaxDiscountAmount.Decimal
	}
	if amt.GreaterThan(total) {
		amt = total
	}
	if amt.IsNegative() {
		amt = decimal.Zero
	}
	return amt.Round(2)
}

// Evaluate builds the result for a discount that already passed selection.
// An exhausted discount yields a zero, non-applicable result.
func Evaluate(d domain.Discount, total decimal.Decimal) domain.DiscountResult {
	res := domain.DiscountResult{
		DiscountID: d.ID,
		Code:       d.Code,
		Name:       d.Name,
		Type:       d.Type,
		Value:      d.Value,
		CartTotal:  total,
	}
	if d.Exhausted() {
		res.DiscountAmount = decimal.Zero
		res.Reason = domain.ReasonUsageLimitReached
		return res
	}
	res.DiscountAmount = DiscountAmount(d, total)
	res.IsApplicable = true
	return res
}

// CalculateDiscount picks the first candidate matching code that applies to
// the cart, falling back to the first automatic one that applies. Candidates
// are taken in the order given. When nothing is selected but code named a
// candidate, the result explains why it was rejected. It returns nil only
// when no candidate is relevant at all.
func CalculateDiscount(candidates []domain.Discount, items []domain.CartItem, code string) *domain.DiscountResult {
	total := CartTotal(items)
	var rejected *domain.DiscountResult

	if code != "" {
		for _, d := range candidates {
			if !d.MatchesCode(code) {
				continue
			}
			ok, reason := Applicable(d, items, total)
			if ok {
				res := Evaluate(d, total)
				return &res
			}
			if rejected == nil {
				rejected = &domain.DiscountResult{
					DiscountID: d.ID, Code: d.Code, Name: d.Name, Type: d.Type, Value: d.Value,
					CartTotal: total, DiscountAmount: decimal.Zero, Reason: reason,
				}
			}
		}
	}
	for _, d := range candidates {
		if !d.IsAutomatic() {
			continue
		}
		if ok, _ := Applicable(d, items, total); ok {
			res := Evaluate(d, total)
			return &res
		}
	}
	return rejected
}

type DiscountService struct {
	Discounts *repos.DiscountRepo
	Now       func() time.Time
}

func NewDiscountService(discounts *repos.DiscountRepo) *DiscountService {
	return &DiscountService{Discounts: discounts, Now: time.Now}
}

// Candidates returns active discounts whose validity window contains now.
func (s *DiscountService) Candidates(ctx context.Context) ([]domain.Discount, error) {
	all, err := s.Discounts.Active(ctx)
	if err != nil {
		return nil, err
	}
	now := s.Now()
	out := all[:0]
	for _, d := range all {
		if d.InWindow(now) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *DiscountService) Calculate(ctx context.Context, items []domain.CartItem, code string) (*domain.DiscountResult, error) {
	cands, err := s.Candidates(ctx)
	if err != nil {
		return nil, err
	}
	return CalculateDiscount(cands, items, code), nil
}

// ValidateCoupon explains whether code can be applied to the cart. Business
// rejections come back as a Reason; only store failures are errors.
func (s *DiscountService) ValidateCoupon(ctx context.Context, items []domain.CartItem, code string) (domain.CouponCheck, error) {
	code, ok := validate.CouponCode(code)
	check := domain.CouponCheck{Code: code}
	if !ok {
		check.Reason = ReasonInvalidCode
		return check, nil
	}
	d, err := s.Discounts.ByCode(ctx, code)
	if errors.Is(err, sql.ErrNoRows) {
		check.Reason = ReasonInvalidCode
		return check, nil
	}
	if err != nil {
		return check, err
	}
	check.Code = d.Code

	now := s.Now()
	total := CartTotal(items)
	switch {
	case !d.Active:
		check.Reason = ReasonInactive
	case d.ValidFrom != nil && now.Before(*d.ValidFrom):
		check.Reason = ReasonNotYetActive
	case d.ValidTo != nil && now.After(*d.ValidTo):
		check.Reason = ReasonExpired
	case d.Exhausted():
		check.Reason = domain.ReasonUsageLimitReached
	}
	if check.Reason != "" {
		return check, nil
	}
	if ok, reason := Applicable(d, items, total); !ok {
		check.Reason = reason
		return check, nil
	}
	res := Evaluate(d, total)
	check.Valid = true
	check.Result = &res
	return check, nil
}
