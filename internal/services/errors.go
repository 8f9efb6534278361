package services

import (
	"database/sql"
	"errors"
	"sort"
	"strings"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrProductNotFound   = errors.New("product not found")
	ErrItemNotFound      = errors.New("cart item not found")
	ErrCartEmpty         = errors.New("cart is empty")
	ErrUnknownTier       = errors.New("unknown shipping tier")
	ErrNegativeTotal     = errors.New("order total cannot be negative")
	ErrDiscountExhausted = errors.New("discount usage limit reached")
	ErrAddressNotFound   = errors.New("address not found")
	ErrOrderNotFound     = errors.New("order not found")
	ErrLoginRequired     = errors.New("login required")
	ErrPaymentSubmitted  = errors.New("payment already submitted")
	ErrBadStatus         = errors.New("unknown order status")
	ErrPaymentsClosed    = errors.New("payments are closed while the server shuts down")
)

// ValidationError carries field-level messages keyed by JSON field name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "invalid " + strings.Join(keys, ", ")
}

func invalid(field, msg string) error {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// notFound maps sql.ErrNoRows to the given sentinel and passes other errors through.
func notFound(err, sentinel error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel
	}
	return err
}
