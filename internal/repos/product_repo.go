package repos

import (
	"context"

	"github.com/jmoiron/sqlx"

	"leafline/internal/domain"
)

type ProductRepo struct{ db *sqlx.DB }

func NewProductRepo(db *sqlx.DB) *ProductRepo { return &ProductRepo{db: db} }

const productCols = `
    p.id, p.slug, p.category_id, p.brand_id, p.title, p.description, p.price, p.image_url,
    p.active, p.created_at,
    c.name AS category_name, c.slug AS category_slug,
    b.name AS brand_name, b.slug AS brand_slug
  FROM products p
  JOIN categories c ON c.id = p.category_id
  JOIN brands b ON b.id = p.brand_id`

func (r *ProductRepo) Get(ctx context.Context, id string) (domain.Product, error) {
	var p domain.Product
	err := r.db.GetContext(ctx, &p, r.db.Rebind(`SELECT`+productCols+` WHERE p.id = ?`), id)
	return p, err
}

func (r *ProductRepo) BySlug(ctx context.Context, slug string) (domain.Product, error) {
	var p domain.Product
	err := r.db.GetContext(ctx, &p, r.db.Rebind(`SELECT`+productCols+` WHERE p.slug = ? AND p.active = 1`), slug)
	return p, err
}

// Latest returns the newest active products.
func (r *ProductRepo) Latest(ctx context.Context, limit int) ([]domain.Product, error) {
	if limit <= 0 {
		limit = 12
	}
	out := []domain.Product{}
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(`SELECT`+productCols+`
  WHERE p.active = 1
  ORDER BY p.created_at DESC, p.id
  LIMIT ?`), limit)
	return out, err
}

func (r *ProductRepo) ListByCategory(ctx context.Context, catID string, limit int) ([]domain.Product, error) {
	out := []domain.Product{}
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(`SELECT`+productCols+`
  WHERE p.category_id = ? AND p.active = 1
  ORDER BY p.created_at DESC, p.id
  LIMIT ?`), catID, limit)
	return out, err
}

func (r *ProductRepo) ListByBrand(ctx context.Context, brandID string, limit int) ([]domain.Product, error) {
	out := []domain.Product{}
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(`SELECT`+productCols+`
  WHERE p.brand_id = ? AND p.active = 1
  ORDER BY p.created_at DESC, p.id
  LIMIT ?`), brandID, limit)
	return out, err
}

func (r *ProductRepo) Variant(ctx context.Context, id string) (domain.Variant, error) {
	var v domain.Variant
	err := r.db.GetContext(ctx, &v, r.db.Rebind(`SELECT id, product_id, name, price FROM product_variants WHERE id = ?`), id)
	return v, err
}

func (r *ProductRepo) Variants(ctx context.Context, productID string) ([]domain.Variant, error) {
	out := []domain.Variant{}
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(`
  SELECT id, product_id, name, price FROM product_variants
  WHERE product_id = ? ORDER BY price, id`), productID)
	return out, err
}

func (r *ProductRepo) Combo(ctx context.Context, id string) (domain.Combo, error) {
	var c domain.Combo
	err := r.db.GetContext(ctx, &c, r.db.Rebind(`SELECT id, name, price, active FROM combos WHERE id = ?`), id)
	return c, err
}
