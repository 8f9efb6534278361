package repos

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"leafline/internal/domain"
)

type OrderRepo struct{ db *sqlx.DB }

func NewOrderRepo(db *sqlx.DB) *OrderRepo { return &OrderRepo{db: db} }

// TxFunc runs inside the order-create transaction, before the order rows are written.
type TxFunc func(ctx context.Context, tx *sqlx.Tx) error

const orderCols = `id, session_id, user_id, customer_name, customer_email, customer_phone, address_json,
  shipping_tier, subtotal, shipping_cost, lucky_discount, coupon_discount, total, discount_id,
  coupon_code, payment_method, transaction_id, payment_status, status, created_at, updated_at`

// Create writes the order header and its lines in one transaction. The
// address is snapshotted as JSON.
func (r *OrderRepo) Create(ctx context.Context, o *domain.Order, items []domain.OrderItem, before ...TxFunc) error {
	addr, err := json.Marshal(o.Address)
	if err != nil {
		return fmt.Errorf("encode address: %w", err)
	}
	o.AddressJSON = string(addr)
	if o.CreatedAt == "" {
		o.CreatedAt = now()
	}
	o.UpdatedAt = o.CreatedAt

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, fn := range before {
		if err := fn(ctx, tx); err != nil {
			return err
		}
	}

	if _, err := tx.NamedExecContext(ctx, `
	  INSERT INTO orders(`+orderCols+`)
	  VALUES(:id, :session_id, :user_id, :customer_name, :customer_email, :customer_phone, :address_json,
	    :shipping_tier, :subtotal, :shipping_cost, :lucky_discount, :coupon_discount, :total, :discount_id,
	    :coupon_code, :payment_method, :transaction_id, :payment_status, :status, :created_at, :updated_at)
	`, o); err != nil {
		return err
	}
	for i := range items {
		items[i].OrderID = o.ID
		items[i].LineNo = i + 1
		if _, err := tx.NamedExecContext(ctx, `
		  INSERT INTO order_items(order_id, line_no, product_id, variant_id, combo_id, title, qty, unit_price)
		  VALUES(:order_id, :line_no, :product_id, :variant_id, :combo_id, :title, :qty, :unit_price)
		`, items[i]); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *OrderRepo) Get(ctx context.Context, orderID string) (domain.Order, []domain.OrderItem, error) {
	var o domain.Order
	if err := r.db.GetContext(ctx, &o, r.db.Rebind(`SELECT `+orderCols+` FROM orders WHERE id = ?`), orderID); err != nil {
		return domain.Order{}, nil, err
	}
	if err := decodeAddress(&o); err != nil {
		return domain.Order{}, nil, err
	}

	items := []domain.OrderItem{}
	if err := r.db.SelectContext(ctx, &items, r.db.Rebind(`
		SELECT order_id, line_no, product_id, variant_id, combo_id, title, qty, unit_price
		FROM order_items
		WHERE order_id = ?
		ORDER BY line_no
	`), orderID); err != nil {
		return domain.Order{}, nil, err
	}
	return o, items, nil
}

func decodeAddress(o *domain.Order) error {
	if o.AddressJSON == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(o.AddressJSON), &o.Address); err != nil {
		return fmt.Errorf("order %s: address: %w", o.ID, err)
	}
	return nil
}

func (r *OrderRepo) list(ctx context.Context, where string, limit int, args ...any) ([]domain.Order, error) {
	q := `SELECT ` + orderCols + ` FROM orders ` + where + ` ORDER BY created_at DESC, id`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	out := []domain.Order{}
	if err := r.db.SelectContext(ctx, &out, r.db.Rebind(q), args...); err != nil {
		return nil, err
	}
	for i := range out {
		if err := decodeAddress(&out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ListByUser returns orders placed while userID was signed in.
func (r *OrderRepo) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	return r.list(ctx, `WHERE user_id = ?`, 0, userID)
}

// ListBySession returns orders tied to a given session id (anon or pre-login orders).
func (r *OrderRepo) ListBySession(ctx context.Context, sessionID string) ([]domain.Order, error) {
	return r.list(ctx, `WHERE session_id = ?`, 0, sessionID)
}

// ListByPaymentStatus lists every order when status is empty.
func (r *OrderRepo) ListByPaymentStatus(ctx context.Context, status domain.PaymentStatus, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	if status == "" {
		return r.list(ctx, ``, limit)
	}
	return r.list(ctx, `WHERE payment_status = ?`, limit, string(status))
}

func (r *OrderRepo) UpdateStatus(ctx context.Context, id, status string) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE orders SET status = ?, updated_at = ? WHERE id = ?`), status, now(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// TransitionPayment moves payment_status from one state to another and reports
// whether the row was in the expected state. A non-empty orderStatus is written too.
func (r *OrderRepo) TransitionPayment(ctx context.Context, id string, from, to domain.PaymentStatus, orderStatus string) (bool, error) {
	q := `UPDATE orders SET payment_status = ?, updated_at = ? WHERE id = ? AND payment_status = ?`
	args := []any{string(to), now(), id, string(from)}
	if orderStatus != "" {
		q = `UPDATE orders SET payment_status = ?, status = ?, updated_at = ? WHERE id = ? AND payment_status = ?`
		args = []any{string(to), orderStatus, now(), id, string(from)}
	}
	res, err := r.db.ExecContext(ctx, r.db.Rebind(q), args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
