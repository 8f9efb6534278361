package repos

import (
	"context"

	"github.com/jmoiron/sqlx"

	"leafline/internal/domain"
)

type AddressRepo struct{ db *sqlx.DB }

func NewAddressRepo(db *sqlx.DB) *AddressRepo { return &AddressRepo{db: db} }

const addressCols = `id, user_id, full_name, phone, address_line, pincode, city, state, country, label, is_default, created_at`

// ListByUser puts the default address first, then newest first.
func (r *AddressRepo) ListByUser(ctx context.Context, userID string) ([]domain.Address, error) {
	out := []domain.Address{}
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(`SELECT `+addressCols+`
  FROM saved_addresses WHERE user_id = ?
  ORDER BY is_default DESC, created_at DESC, id`), userID)
	return out, err
}

func (r *AddressRepo) Get(ctx context.Context, userID, id string) (domain.Address, error) {
	var a domain.Address
	err := r.db.GetContext(ctx, &a, r.db.Rebind(`SELECT `+addressCols+`
  FROM saved_addresses WHERE id = ? AND user_id = ?`), id, userID)
	return a, err
}

// FindDuplicate matches exactly on (address_line, pincode) for the user.
func (r *AddressRepo) FindDuplicate(ctx context.Context, userID, line, pincode string) (domain.Address, error) {
	var a domain.Address
	err := r.db.GetContext(ctx, &a, r.db.Rebind(`SELECT `+addressCols+`
  FROM saved_addresses WHERE user_id = ? AND address_line = ? AND pincode = ?
  ORDER BY created_at LIMIT 1`), userID, line, pincode)
	return a, err
}

func (r *AddressRepo) Count(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, r.db.Rebind(`SELECT COUNT(*) FROM saved_addresses WHERE user_id = ?`), userID)
	return n, err
}

// Insert always stores is_default = 0; use SetDefault to promote.
func (r *AddressRepo) Insert(ctx context.Context, a domain.Address) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO saved_addresses(id,user_id,full_name,phone,address_line,pincode,city,state,country,label,is_default,created_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,0,?)
	`), a.ID, a.UserID, a.FullName, a.Phone, a.AddressLine, a.Pincode, a.City, a.State, a.Country, a.Label, a.CreatedAt)
	return err
}

func (r *AddressRepo) Update(ctx context.Context, a domain.Address) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE saved_addresses
		SET full_name=?, phone=?, address_line=?, pincode=?, city=?, state=?, country=?, label=?
		WHERE id=? AND user_id=?
	`), a.FullName, a.Phone, a.AddressLine, a.Pincode, a.City, a.State, a.Country, a.Label, a.ID, a.UserID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *AddressRepo) Delete(ctx context.Context, userID, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM saved_addresses WHERE id=? AND user_id=?`), id, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// SetDefault flips is_default for all of the user's addresses in one
// statement, so exactly one row ends up as default. Nothing changes when id
// does not belong to the user.
func (r *AddressRepo) SetDefault(ctx context.Context, userID, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE saved_addresses
		SET is_default = CASE WHEN id = ? THEN 1 ELSE 0 END
		WHERE user_id = ?
		  AND EXISTS (SELECT 1 FROM saved_addresses t WHERE t.id = ? AND t.user_id = ?)
	`), id, userID, id, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// PromoteOldest makes the oldest remaining address the default when the user
// has none.
func (r *AddressRepo) PromoteOldest(ctx context.Context, userID string) error {
	var id string
	err := r.db.GetContext(ctx, &id, r.db.Rebind(`
  SELECT id FROM saved_addresses WHERE user_id = ?
    AND NOT EXISTS (SELECT 1 FROM saved_addresses d WHERE d.user_id = ? AND d.is_default = 1)
  ORDER BY created_at, id LIMIT 1`), userID, userID)
	if err != nil {
		return err
	}
	_, err = r.SetDefault(ctx, userID, id)
	return err
}
