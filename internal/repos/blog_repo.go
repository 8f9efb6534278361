package repos

import (
	"context"

	"github.com/jmoiron/sqlx"

	"leafline/internal/domain"
)

type BlogRepo struct{ db *sqlx.DB }

func NewBlogRepo(db *sqlx.DB) *BlogRepo { return &BlogRepo{db: db} }

func (r *BlogRepo) Recent(ctx context.Context, limit int) ([]domain.BlogPost, error) {
	if limit <= 0 {
		limit = 10
	}
	out := []domain.BlogPost{}
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(`
  SELECT id, slug, title, excerpt, body, author, published_at
  FROM blog_posts
  ORDER BY published_at DESC
  LIMIT ?`), limit)
	return out, err
}

func (r *BlogRepo) BySlug(ctx context.Context, slug string) (domain.BlogPost, error) {
	var p domain.BlogPost
	err := r.db.GetContext(ctx, &p, r.db.Rebind(`
  SELECT id, slug, title, excerpt, body, author, published_at
  FROM blog_posts WHERE slug = ?`), slug)
	return p, err
}
