package repos

import (
	"context"

	"github.com/jmoiron/sqlx"

	"leafline/internal/domain"
)

// CategoryRepo serves both categories and brands; they share a shape.
type CategoryRepo struct{ db *sqlx.DB }

func NewCategoryRepo(db *sqlx.DB) *CategoryRepo { return &CategoryRepo{db: db} }

func (r *CategoryRepo) List(ctx context.Context) ([]domain.Category, error) {
	out := []domain.Category{}
	err := r.db.SelectContext(ctx, &out, `SELECT id, slug, name, description FROM categories ORDER BY name`)
	return out, err
}

func (r *CategoryRepo) BySlug(ctx context.Context, slug string) (domain.Category, error) {
	var c domain.Category
	err := r.db.GetContext(ctx, &c, r.db.Rebind(`SELECT id, slug, name, description FROM categories WHERE slug = ?`), slug)
	return c, err
}

func (r *CategoryRepo) Brands(ctx context.Context) ([]domain.Brand, error) {
	out := []domain.Brand{}
	err := r.db.SelectContext(ctx, &out, `SELECT id, slug, name, description FROM brands ORDER BY name`)
	return out, err
}

func (r *CategoryRepo) BrandBySlug(ctx context.Context, slug string) (domain.Brand, error) {
	var b domain.Brand
	err := r.db.GetContext(ctx, &b, r.db.Rebind(`SELECT id, slug, name, description FROM brands WHERE slug = ?`), slug)
	return b, err
}
