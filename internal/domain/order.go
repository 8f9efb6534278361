package domain

import (
	"github.com/shopspring/decimal"
)

type ShippingTier string

const (
	ShippingStandard  ShippingTier = "standard"
	ShippingExpress   ShippingTier = "express"
	ShippingOvernight ShippingTier = "overnight"
)

// PaymentStatus follows idle -> processing -> verifying -> {confirmed | pending}.
type PaymentStatus string

const (
	PaymentIdle       PaymentStatus = "idle"
	PaymentProcessing PaymentStatus = "processing"
	PaymentVerifying  PaymentStatus = "verifying"
	PaymentConfirmed  PaymentStatus = "confirmed"
	PaymentPending    PaymentStatus = "pending"
)

func (s PaymentStatus) Terminal() bool {
	return s == PaymentConfirmed || s == PaymentPending
}

const (
	OrderPlaced   = "PLACED"
	OrderPaid     = "PAID"
	OrderShipped  = "SHIPPED"
	OrderCanceled = "CANCELED"
)

type PriceBreakdown struct {
	Tier           ShippingTier    `json:"shipping_tier"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Shipping       decimal.Decimal `json:"shipping_cost"`
	LuckyDiscount  decimal.Decimal `json:"lucky_discount"`
	CouponDiscount decimal.Decimal `json:"coupon_discount"`
	Total          decimal.Decimal `json:"total"`
	Clamped        bool            `json:"clamped,omitempty"`
}

type Order struct {
	ID             string          `db:"id" json:"id"`
	SessionID      string          `db:"session_id" json:"-"`
	UserID         string          `db:"user_id" json:"-"`
	CustomerName   string          `db:"customer_name" json:"customer_name"`
	CustomerEmail  string          `db:"customer_email" json:"customer_email"`
	CustomerPhone  string          `db:"customer_phone" json:"customer_phone"`
	AddressJSON    string          `db:"address_json" json:"-"`
	Address        Address         `db:"-" json:"shipping_address"`
	ShippingTier   ShippingTier    `db:"shipping_tier" json:"shipping_tier"`
	Subtotal       decimal.Decimal `db:"subtotal" json:"subtotal"`
	ShippingCost   decimal.Decimal `db:"shipping_cost" json:"shipping_cost"`
	LuckyDiscount  decimal.Decimal `db:"lucky_discount" json:"lucky_discount"`
	CouponDiscount decimal.Decimal `db:"coupon_discount" json:"coupon_discount"`
	Total          decimal.Decimal `db:"total" json:"total"`
	DiscountID     string          `db:"discount_id" json:"discount_id,omitempty"`
	CouponCode     string          `db:"coupon_code" json:"coupon_code,omitempty"`
	PaymentMethod  string          `db:"payment_method" json:"payment_method"`
	TransactionID  string          `db:"transaction_id" json:"transaction_id"`
	PaymentStatus  PaymentStatus   `db:"payment_status" json:"payment_status"`
	Status         string          `db:"status" json:"status"`
	CreatedAt      string          `db:"created_at" json:"created_at"`
	UpdatedAt      string          `db:"updated_at" json:"updated_at,omitempty"`
}

type OrderItem struct {
	OrderID   string          `db:"order_id" json:"-"`
	LineNo    int             `db:"line_no" json:"line_no"`
	ProductID string          `db:"product_id" json:"product_id"`
	VariantID string          `db:"variant_id" json:"variant_id,omitempty"`
	ComboID   string          `db:"combo_id" json:"combo_id,omitempty"`
	Title     string          `db:"title" json:"title"`
	Qty       int             `db:"qty" json:"qty"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unit_price"`
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Qty)))
}
