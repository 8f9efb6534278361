package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountPercentage  DiscountType = "percentage"
	DiscountFixedAmount DiscountType = "fixed_amount"
	// DiscountCartValue is a flat amount; tiered cart-value rules are not modelled.
	DiscountCartValue DiscountType = "cart_value"
)

type DiscountScope string

const (
	ScopeAll      DiscountScope = "all"
	ScopeProducts DiscountScope = "products"
	ScopeCombos   DiscountScope = "combos"
	ScopeVariants DiscountScope = "variants"
)

const ReasonUsageLimitReached = "Discount usage limit reached"

type Discount struct {
	ID                string
	Code              string // empty for automatic discounts
	Name              string
	Type              DiscountType
	Value             decimal.Decimal
	MinCartValue      decimal.NullDecimal
	MaxDiscountAmount decimal.NullDecimal
	Scope             DiscountScope
	ProductIDs        []string
	ComboIDs          []string
	VariantIDs        []string
	ValidFrom         *time.Time
	ValidTo           *time.Time
	UsageLimit        *int
	UsageCount        int
	Active            bool
}

func (d Discount) IsAutomatic() bool { return strings.TrimSpace(d.Code) == "" }

func (d Discount) MatchesCode(code string) bool {
	return !d.IsAutomatic() && strings.EqualFold(strings.TrimSpace(d.Code), strings.TrimSpace(code))
}

// InWindow reports whether now falls inside the validity window. Unset bounds are open.
func (d Discount) InWindow(now time.Time) bool {
	if d.ValidFrom != nil && now.Before(*d.ValidFrom) {
		return false
	}
	if d.ValidTo != nil && now.After(*d.ValidTo) {
		return false
	}
	return true
}

func (d Discount) Exhausted() bool {
	return d.UsageLimit != nil && d.UsageCount >= *d.UsageLimit
}

type DiscountResult struct {
	DiscountID     string          `json:"discount_id"`
	Code           string          `json:"code,omitempty"`
	Name           string          `json:"name,omitempty"`
	Type           DiscountType    `json:"discount_type"`
	Value          decimal.Decimal `json:"value"`
	CartTotal      decimal.Decimal `json:"cart_total"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	IsApplicable   bool            `json:"is_applicable"`
	Reason         string          `json:"reason,omitempty"`
}

// CouponCheck is the outcome of applying a code. Failures carry a Reason, not an error.
type CouponCheck struct {
	Code   string          `json:"code"`
	Valid  bool            `json:"valid"`
	Reason string          `json:"reason,omitempty"`
	Result *DiscountResult `json:"result,omitempty"`
}
