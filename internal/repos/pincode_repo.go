package repos

import (
	"context"

	"github.com/jmoiron/sqlx"

	"leafline/internal/domain"
)

type PincodeRepo struct{ db *sqlx.DB }

func NewPincodeRepo(db *sqlx.DB) *PincodeRepo { return &PincodeRepo{db: db} }

// Lookup returns sql.ErrNoRows for pincodes outside the serviceable table.
func (r *PincodeRepo) Lookup(ctx context.Context, pincode string) (domain.PincodeInfo, error) {
	var p domain.PincodeInfo
	err := r.db.GetContext(ctx, &p, r.db.Rebind(`
  SELECT pincode, city, state, country FROM pincode_lookup WHERE pincode = ?`), pincode)
	return p, err
}
