package repos

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"leafline/internal/domain"
)

// ErrUsageLimitReached is returned when a redemption would exceed usage_limit.
var ErrUsageLimitReached = errors.New("discount usage limit reached")

type DiscountRepo struct{ db *sqlx.DB }

func NewDiscountRepo(db *sqlx.DB) *DiscountRepo { return &DiscountRepo{db: db} }

type discountRow struct {
	ID                string              `db:"id"`
	Code              sql.NullString      `db:"code"`
	Name              string              `db:"name"`
	Type              string              `db:"discount_type"`
	Value             decimal.Decimal     `db:"value"`
	MinCartValue      decimal.NullDecimal `db:"min_cart_value"`
	MaxDiscountAmount decimal.NullDecimal `db:"max_discount_amount"`
	Scope             string              `db:"applicable_to"`
	ProductIDs        string              `db:"product_ids"`
	ComboIDs          string              `db:"combo_ids"`
	VariantIDs        string              `db:"variant_ids"`
	ValidFrom         sql.NullString      `db:"valid_from"`
	ValidTo           sql.NullString      `db:"valid_to"`
	UsageLimit        sql.NullInt64       `db:"usage_limit"`
	UsageCount        int                 `db:"usage_count"`
	Active            bool                `db:"is_active"`
}

const discountCols = `id, code, name, discount_type, value, min_cart_value, max_discount_amount,
  applicable_to, product_ids, combo_ids, variant_ids, valid_from, valid_to,
  usage_limit, usage_count, is_active`

func (row discountRow) toDomain() (domain.Discount, error) {
	d := domain.Discount{
		ID:                row.ID,
		Code:              row.Code.String,
		Name:              row.Name,
		Type:              domain.DiscountType(row.Type),
		Value:             row.Value,
		MinCartValue:      row.MinCartValue,
		MaxDiscountAmount: row.MaxDiscountAmount,
		Scope:             domain.DiscountScope(row.Scope),
		UsageCount:        row.UsageCount,
		Active:            row.Active,
	}
	for _, l := range []struct {
		raw string
		dst *[]string
	}{{row.ProductIDs, &d.ProductIDs}, {row.ComboIDs, &d.ComboIDs}, {row.VariantIDs, &d.VariantIDs}} {
		if l.raw == "" {
			continue
		}
		if err := json.Unmarshal([]byte(l.raw), l.dst); err != nil {
			return domain.Discount{}, fmt.Errorf("discount %s: id list: %w", row.ID, err)
		}
	}
	var err error
	if d.ValidFrom, err = parseTime(row.ValidFrom); err != nil {
		return domain.Discount{}, fmt.Errorf("discount %s: valid_from: %w", row.ID, err)
	}
	if d.ValidTo, err = parseTime(row.ValidTo); err != nil {
		return domain.Discount{}, fmt.Errorf("discount %s: valid_to: %w", row.ID, err)
	}
	if row.UsageLimit.Valid {
		n := int(row.UsageLimit.Int64)
		d.UsageLimit = &n
	}
	return d, nil
}

func parseTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Active returns every active discount in store order (created_at, id).
// Validity windows are checked by the caller.
func (r *DiscountRepo) Active(ctx context.Context) ([]domain.Discount, error) {
	var rows []discountRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+discountCols+`
  FROM discounts WHERE is_active = 1 ORDER BY created_at, id`); err != nil {
		return nil, err
	}
	out := make([]domain.Discount, 0, len(rows))
	for _, row := range rows {
		d, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// ByCode matches case-insensitively, active or not.
func (r *DiscountRepo) ByCode(ctx context.Context, code string) (domain.Discount, error) {
	var row discountRow
	if err := r.db.GetContext(ctx, &row, r.db.Rebind(`SELECT `+discountCols+`
  FROM discounts WHERE LOWER(code) = LOWER(?)`), code); err != nil {
		return domain.Discount{}, err
	}
	return row.toDomain()
}

// RedeemTx increments usage_count inside tx unless the limit is already reached.
func (r *DiscountRepo) RedeemTx(ctx context.Context, tx *sqlx.Tx, id string) error {
	res, err := tx.ExecContext(ctx, tx.Rebind(`
		UPDATE discounts SET usage_count = usage_count + 1
		WHERE id = ? AND (usage_limit IS NULL OR usage_count < usage_limit)
	`), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUsageLimitReached
	}
	return nil
}
