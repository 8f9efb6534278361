package services

import (
	"context"

	"golang.org/x/sync/errgroup"

	"leafline/internal/domain"
	"leafline/internal/repos"
)

// CatalogService serves the read-only storefront pages rendered for crawlers.
type CatalogService struct {
	Cats  *repos.CategoryRepo
	Prods *repos.ProductRepo
	Blog  *repos.BlogRepo
}

func NewCatalogService(cats *repos.CategoryRepo, prods *repos.ProductRepo, blog *repos.BlogRepo) *CatalogService {
	return &CatalogService{Cats: cats, Prods: prods, Blog: blog}
}

type HomePage struct {
	Products   []domain.Product
	Categories []domain.Category
	Brands     []domain.Brand
	Posts      []domain.BlogPost
}

// Home loads the four home page sections concurrently.
func (s *CatalogService) Home(ctx context.Context) (HomePage, error) {
	var h HomePage
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		h.Products, err = s.Prods.Latest(ctx, 8)
		return err
	})
	g.Go(func() (err error) {
		h.Categories, err = s.Cats.List(ctx)
		return err
	})
	g.Go(func() (err error) {
		h.Brands, err = s.Cats.Brands(ctx)
		return err
	})
	g.Go(func() (err error) {
		h.Posts, err = s.Blog.Recent(ctx, 3)
		return err
	})
	if err := g.Wait(); err != nil {
		return HomePage{}, err
	}
	return h, nil
}

func (s *CatalogService) Product(ctx context.Context, slug string) (domain.Product, []domain.Variant, error) {
	p, err := s.Prods.BySlug(ctx, slug)
	if err != nil {
		return domain.Product{}, nil, notFound(err, ErrNotFound)
	}
	vs, err := s.Prods.Variants(ctx, p.ID)
	if err != nil {
		return domain.Product{}, nil, err
	}
	return p, vs, nil
}

func (s *CatalogService) Category(ctx context.Context, slug string) (domain.Category, []domain.Product, error) {
	c, err := s.Cats.BySlug(ctx, slug)
	if err != nil {
		return domain.Category{}, nil, notFound(err, ErrNotFound)
	}
	ps, err := s.Prods.ListByCategory(ctx, c.ID, 24)
	return c, ps, err
}

func (s *CatalogService) Brand(ctx context.Context, slug string) (domain.Brand, []domain.Product, error) {
	b, err := s.Cats.BrandBySlug(ctx, slug)
	if err != nil {
		return domain.Brand{}, nil, notFound(err, ErrNotFound)
	}
	ps, err := s.Prods.ListByBrand(ctx, b.ID, 24)
	return b, ps, err
}

func (s *CatalogService) Posts(ctx context.Context) ([]domain.BlogPost, error) {
	return s.Blog.Recent(ctx, 20)
}

func (s *CatalogService) Post(ctx context.Context, slug string) (domain.BlogPost, error) {
	p, err := s.Blog.BySlug(ctx, slug)
	return p, notFound(err, ErrNotFound)
}
