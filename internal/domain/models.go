package domain

import (
	"github.com/shopspring/decimal"
)

type Category struct {
	ID          string `db:"id" json:"id"`
	Slug        string `db:"slug" json:"slug"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description"`
}

type Brand struct {
	ID          string `db:"id" json:"id"`
	Slug        string `db:"slug" json:"slug"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description"`
}

type Product struct {
	ID           string          `db:"id" json:"id"`
	Slug         string          `db:"slug" json:"slug"`
	CategoryID   string          `db:"category_id" json:"category_id"`
	BrandID      string          `db:"brand_id" json:"brand_id"`
	Title        string          `db:"title" json:"title"`
	Description  string          `db:"description" json:"description"`
	Price        decimal.Decimal `db:"price" json:"price"`
	ImageURL     string          `db:"image_url" json:"image_url"`
	Active       bool            `db:"active" json:"active"`
	CreatedAt    string          `db:"created_at" json:"created_at"`
	CategoryName string          `db:"category_name" json:"category_name,omitempty"`
	CategorySlug string          `db:"category_slug" json:"category_slug,omitempty"`
	BrandName    string          `db:"brand_name" json:"brand_name,omitempty"`
	BrandSlug    string          `db:"brand_slug" json:"brand_slug,omitempty"`
}

type Variant struct {
	ID        string          `db:"id" json:"id"`
	ProductID string          `db:"product_id" json:"product_id"`
	Name      string          `db:"name" json:"name"`
	Price     decimal.Decimal `db:"price" json:"price"`
}

type Combo struct {
	ID     string          `db:"id" json:"id"`
	Name   string          `db:"name" json:"name"`
	Price  decimal.Decimal `db:"price" json:"price"`
	Active bool            `db:"active" json:"active"`
}

type BlogPost struct {
	ID          string `db:"id" json:"id"`
	Slug        string `db:"slug" json:"slug"`
	Title       string `db:"title" json:"title"`
	Excerpt     string `db:"excerpt" json:"excerpt"`
	Body        string `db:"body" json:"body"`
	Author      string `db:"author" json:"author"`
	PublishedAt string `db:"published_at" json:"published_at"`
}

// LineKey identifies one cart line. Empty VariantID/ComboID mean "base product".
type LineKey struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
	ComboID   string `json:"combo_id,omitempty"`
}

type CartItem struct {
	ProductID    string              `db:"product_id" json:"product_id"`
	VariantID    string              `db:"variant_id" json:"variant_id,omitempty"`
	ComboID      string              `db:"combo_id" json:"combo_id,omitempty"`
	Title        string              `db:"title" json:"title"`
	BasePrice    decimal.Decimal     `db:"base_price" json:"base_price"`
	VariantPrice decimal.NullDecimal `db:"variant_price" json:"variant_price"`
	ComboPrice   decimal.NullDecimal `db:"combo_price" json:"combo_price"`
	Qty          int                 `db:"qty" json:"qty"`
}

func (i CartItem) Key() LineKey {
	return LineKey{ProductID: i.ProductID, VariantID: i.VariantID, ComboID: i.ComboID}
}

// UnitPrice prefers the variant price, then the combo price, then the base price.
func (i CartItem) UnitPrice() decimal.Decimal {
	switch {
	case i.VariantPrice.Valid:
		return i.VariantPrice.Decimal
	case i.ComboPrice.Valid:
		return i.ComboPrice.Decimal
	default:
		return i.BasePrice
	}
}

func (i CartItem) LineTotal() decimal.Decimal {
	return i.UnitPrice().Mul(decimal.NewFromInt(int64(i.Qty)))
}

type PincodeInfo struct {
	Pincode string `db:"pincode" json:"pincode"`
	City    string `db:"city" json:"city"`
	State   string `db:"state" json:"state"`
	Country string `db:"country" json:"country"`
}

// GeoAddress is a reverse-geocoded location. Every component may be empty.
type GeoAddress struct {
	HouseNumber string  `json:"house_number,omitempty"`
	Road        string  `json:"road,omitempty"`
	Suburb      string  `json:"suburb,omitempty"`
	City        string  `json:"city,omitempty"`
	State       string  `json:"state,omitempty"`
	Postcode    string  `json:"postcode,omitempty"`
	Country     string  `json:"country,omitempty"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
}

type Address struct {
	ID          string `db:"id" json:"id"`
	UserID      string `db:"user_id" json:"-"`
	FullName    string `db:"full_name" json:"full_name"`
	Phone       string `db:"phone" json:"phone"`
	AddressLine string `db:"address_line" json:"address_line"`
	Pincode     string `db:"pincode" json:"pincode"`
	City        string `db:"city" json:"city"`
	State       string `db:"state" json:"state"`
	Country     string `db:"country" json:"country"`
	Label       string `db:"label" json:"label"`
	IsDefault   bool   `db:"is_default" json:"is_default"`
	CreatedAt   string `db:"created_at" json:"created_at,omitempty"`
}
