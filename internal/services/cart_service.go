package services

import (
	"context"

	"github.com/shopspring/decimal"

	"leafline/internal/domain"
	"leafline/internal/repos"
)

type CartService struct {
	Carts *repos.CartRepo
	Prods *repos.ProductRepo
}

func NewCartService(carts *repos.CartRepo, prods *repos.ProductRepo) *CartService {
	return &CartService{Carts: carts, Prods: prods}
}

// CartLine is a cart item with its resolved prices.
type CartLine struct {
	domain.CartItem
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type CartView struct {
	Items    []CartLine      `json:"items"`
	Count    int             `json:"count"`
	Subtotal decimal.Decimal `json:"subtotal"`
	raw      []domain.CartItem
}

// CartItems returns the plain items behind the view.
func (v CartView) CartItems() []domain.CartItem { return v.raw }

// checkLine makes sure the product exists and the variant or combo, when
// given, can be bought with it.
func (s *CartService) checkLine(ctx context.Context, key domain.LineKey) error {
	p, err := s.Prods.Get(ctx, key.ProductID)
	if err != nil {
		return notFound(err, ErrProductNotFound)
	}
	if !p.Active {
		return ErrProductNotFound
	}
	if key.VariantID != "" {
		v, err := s.Prods.Variant(ctx, key.VariantID)
		if err != nil {
			return notFound(err, ErrProductNotFound)
		}
		if v.ProductID != key.ProductID {
			return ErrProductNotFound
		}
	}
	if key.ComboID != "" {
		c, err := s.Prods.Combo(ctx, key.ComboID)
		if err != nil {
			return notFound(err, ErrProductNotFound)
		}
		if !c.Active {
			return ErrProductNotFound
		}
	}
	return nil
}

func (s *CartService) Add(ctx context.Context, sessionID string, key domain.LineKey, qty int) error {
	if qty < 1 {
		qty = 1
	}
	if err := s.checkLine(ctx, key); err != nil {
		return err
	}
	cartID, err := s.Carts.EnsureCart(ctx, sessionID)
	if err != nil {
		return err
	}
	return s.Carts.UpsertItem(ctx, cartID, key, qty)
}

func (s *CartService) View(ctx context.Context, sessionID string) (CartView, error) {
	cartID, err := s.Carts.EnsureCart(ctx, sessionID)
	if err != nil {
		return CartView{}, err
	}
	items, err := s.Carts.Items(ctx, cartID)
	if err != nil {
		return CartView{}, err
	}
	v := CartView{Items: make([]CartLine, 0, len(items)), Subtotal: CartTotal(items), raw: items}
	for _, it := range items {
		v.Items = append(v.Items, CartLine{CartItem: it, UnitPrice: it.UnitPrice(), LineTotal: it.LineTotal()})
		v.Count += it.Qty
	}
	return v, nil
}

// UpdateQty sets a line's quantity; zero or less removes the line.
func (s *CartService) UpdateQty(ctx context.Context, sessionID string, key domain.LineKey, qty int) error {
	if qty <= 0 {
		return s.Remove(ctx, sessionID, key)
	}
	cartID, err := s.Carts.EnsureCart(ctx, sessionID)
	if err != nil {
		return err
	}
	ok, err := s.Carts.SetQty(ctx, cartID, key, qty)
	if err != nil {
		return err
	}
	if !ok {
		return ErrItemNotFound
	}
	return nil
}

func (s *CartService) Remove(ctx context.Context, sessionID string, key domain.LineKey) error {
	cartID, err := s.Carts.EnsureCart(ctx, sessionID)
	if err != nil {
		return err
	}
	ok, err := s.Carts.RemoveItem(ctx, cartID, key)
	if err != nil {
		return err
	}
	if !ok {
		return ErrItemNotFound
	}
	return nil
}

func (s *CartService) Clear(ctx context.Context, sessionID string) error {
	cartID, err := s.Carts.EnsureCart(ctx, sessionID)
	if err != nil {
		return err
	}
	return s.Carts.Clear(ctx, cartID)
}
