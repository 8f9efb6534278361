package repos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"leafline/internal/domain"
)

type CartRepo struct{ db *sqlx.DB }

func NewCartRepo(db *sqlx.DB) *CartRepo { return &CartRepo{db: db} }

// CartState is the per-session checkout state kept on the cart row.
type CartState struct {
	CouponCode    string              `db:"coupon_code"`
	LuckyDiscount decimal.NullDecimal `db:"lucky_discount"`
}

// EnsureCart creates the session's cart if needed. The cart id is the session id.
func (r *CartRepo) EnsureCart(ctx context.Context, sessionID string) (string, error) {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO carts(id,session_id,updated_at) VALUES(?,?,?)
		ON CONFLICT(session_id) DO NOTHING
	`), sessionID, sessionID, now())
	if err != nil {
		return "", err
	}
	return sessionID, nil
}

func (r *CartRepo) UpsertItem(ctx context.Context, cartID string, key domain.LineKey, qty int) error {
	ts := now()
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO cart_items(cart_id,product_id,variant_id,combo_id,qty,created_at,updated_at)
		VALUES(?,?,?,?,?,?,?)
		ON CONFLICT(cart_id,product_id,variant_id,combo_id) DO UPDATE
		SET qty = cart_items.qty + excluded.qty, updated_at = excluded.updated_at
	`), cartID, key.ProductID, key.VariantID, key.ComboID, qty, ts, ts)
	return err
}

// SetQty overwrites a line's quantity and reports whether the line existed.
func (r *CartRepo) SetQty(ctx context.Context, cartID string, key domain.LineKey, qty int) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE cart_items SET qty = ?, updated_at = ?
		WHERE cart_id = ? AND product_id = ? AND variant_id = ? AND combo_id = ?
	`), qty, now(), cartID, key.ProductID, key.VariantID, key.ComboID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *CartRepo) RemoveItem(ctx context.Context, cartID string, key domain.LineKey) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		DELETE FROM cart_items
		WHERE cart_id = ? AND product_id = ? AND variant_id = ? AND combo_id = ?
	`), cartID, key.ProductID, key.VariantID, key.ComboID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Items prices every line from the live catalog.
func (r *CartRepo) Items(ctx context.Context, cartID string) ([]domain.CartItem, error) {
	out := []domain.CartItem{}
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(`
	  SELECT ci.product_id, ci.variant_id, ci.combo_id,
	         CASE
	           WHEN cb.id IS NOT NULL THEN cb.name
	           WHEN v.id IS NOT NULL THEN p.title || ' (' || v.name || ')'
	           ELSE p.title
	         END AS title,
	         p.price AS base_price, v.price AS variant_price, cb.price AS combo_price, ci.qty
	  FROM cart_items ci
	  JOIN products p ON p.id = ci.product_id
	  LEFT JOIN product_variants v ON v.id = ci.variant_id AND v.product_id = ci.product_id
	  LEFT JOIN combos cb ON cb.id = ci.combo_id
	  WHERE ci.cart_id = ?
	  ORDER BY ci.created_at, ci.product_id, ci.variant_id, ci.combo_id
	`), cartID)
	return out, err
}

func (r *CartRepo) State(ctx context.Context, cartID string) (CartState, error) {
	var st CartState
	err := r.db.GetContext(ctx, &st, r.db.Rebind(`SELECT coupon_code, lucky_discount FROM carts WHERE id = ?`), cartID)
	return st, err
}

func (r *CartRepo) SetCoupon(ctx context.Context, cartID, code string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE carts SET coupon_code = ?, updated_at = ? WHERE id = ?`), code, now(), cartID)
	return err
}

// SetLuckyDiscount stores v only when the cart has no lucky discount yet and
// returns whichever value ends up on the row.
func (r *CartRepo) SetLuckyDiscount(ctx context.Context, cartID string, v decimal.Decimal) (decimal.Decimal, error) {
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE carts SET lucky_discount = ? WHERE id = ? AND lucky_discount IS NULL
	`), v, cartID); err != nil {
		return decimal.Zero, err
	}
	st, err := r.State(ctx, cartID)
	if err != nil {
		return decimal.Zero, err
	}
	return st.LuckyDiscount.Decimal, nil
}

// Clear empties the cart and ends its checkout session.
func (r *CartRepo) Clear(ctx context.Context, cartID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM cart_items WHERE cart_id = ?`), cartID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(`
		UPDATE carts SET coupon_code = '', lucky_discount = NULL, updated_at = ? WHERE id = ?
	`), now(), cartID); err != nil {
		return err
	}
	return tx.Commit()
}
