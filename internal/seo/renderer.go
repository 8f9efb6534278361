package seo

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	html "github.com/gofiber/template/html/v2"

	"leafline/internal/domain"
	applog "leafline/internal/log"
	"leafline/internal/services"
)

//go:embed templates/*.html
var templateFS embed.FS

// Views returns the template engine for crawler pages.
func Views() *html.Engine {
	sub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		panic(err)
	}
	return html.NewFileSystem(http.FS(sub), ".html")
}

type Link struct {
	Name  string
	URL   string
	Price string
	Note  string
}

// Page is the view model for templates/page.html.
type Page struct {
	SiteName    string
	Title       string
	Description string
	Canonical   string
	Image       string
	OGType      string
	Heading     string
	Body        string
	Sections    []Section
	JSONLD      template.JS
}

type Section struct {
	Title string
	Links []Link
}

type Renderer struct {
	Catalog  *services.CatalogService
	SiteURL  string
	SiteName string
}

func (r *Renderer) url(path string) string {
	return strings.TrimRight(r.SiteURL, "/") + path
}

func (r *Renderer) abs(path string) string {
	if path == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return r.url(path)
}

func jsonLD(v any) template.JS {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return template.JS(b)
}

func (r *Renderer) productLinks(ps []domain.Product) []Link {
	out := make([]Link, 0, len(ps))
	for _, p := range ps {
		out = append(out, Link{Name: p.Title, URL: "/product/" + p.Slug, Price: "₹" + p.Price.StringFixed(2)})
	}
	return out
}

func (r *Renderer) itemList(ps []domain.Product) []map[string]any {
	out := make([]map[string]any, 0, len(ps))
	for i, p := range ps {
		out = append(out, map[string]any{
			"@type":    "ListItem",
			"position": i + 1,
			"url":      r.url("/product/" + p.Slug),
			"name":     p.Title,
		})
	}
	return out
}

// Build loads the data for rt and returns the page to render.
// Unknown slugs yield services.ErrNotFound.
func (r *Renderer) Build(ctx context.Context, rt Route, path string) (Page, error) {
	pg := Page{SiteName: r.SiteName, Canonical: r.url(path), OGType: "website"}
	switch rt.Kind {
	case KindHome:
		h, err := r.Catalog.Home(ctx)
		if err != nil {
			return Page{}, err
		}
		pg.Canonical = r.url("/")
		pg.Title = r.SiteName + " | Cigars, Hookahs and Smoking Accessories"
		pg.Description = "Shop premium cigars, hookahs, rolling papers and accessories online with fast delivery across India."
		pg.Heading = r.SiteName
		pg.Body = pg.Description
		pg.Sections = append(pg.Sections, Section{Title: "New arrivals", Links: r.productLinks(h.Products)})
		var cats, brands, posts []Link
		for _, c := range h.Categories {
			cats = append(cats, Link{Name: c.Name, URL: "/category/" + c.Slug})
		}
		for _, b := range h.Brands {
			brands = append(brands, Link{Name: b.Name, URL: "/brand/" + b.Slug})
		}
		for _, p := range h.Posts {
			posts = append(posts, Link{Name: p.Title, URL: "/blog/" + p.Slug, Note: p.Excerpt})
		}
		pg.Sections = append(pg.Sections,
			Section{Title: "Categories", Links: cats},
			Section{Title: "Brands", Links: brands},
			Section{Title: "From the blog", Links: posts},
		)
		pg.JSONLD = jsonLD(map[string]any{
			"@context": "https://schema.org",
			"@type":    "WebSite",
			"name":     r.SiteName,
			"url":      r.url("/"),
		})

	case KindStatic:
		sp := staticPages[rt.Slug]
		pg.Title = sp.Title + " | " + r.SiteName
		pg.Description = sp.Description
		pg.Heading = sp.Title
		pg.Body = sp.Description
		pg.JSONLD = jsonLD(map[string]any{
			"@context":    "https://schema.org",
			"@type":       "WebPage",
			"name":        sp.Title,
			"description": sp.Description,
			"url":         pg.Canonical,
		})

	case KindProduct:
		p, variants, err := r.Catalog.Product(ctx, rt.Slug)
		if err != nil {
			return Page{}, err
		}
		pg.OGType = "product"
		pg.Title = p.Title + " | " + r.SiteName
		pg.Description = p.Description
		pg.Image = r.abs(p.ImageURL)
		pg.Heading = p.Title
		pg.Body = p.Description
		var links []Link
		for _, v := range variants {
			links = append(links, Link{Name: v.Name, Price: "₹" + v.Price.StringFixed(2)})
		}
		if len(links) > 0 {
			pg.Sections = append(pg.Sections, Section{Title: "Options", Links: links})
		}
		offer := map[string]any{
			"@type":         "Offer",
			"price":         p.Price.StringFixed(2),
			"priceCurrency": "INR",
			"availability":  "https://schema.org/InStock",
			"url":           pg.Canonical,
		}
		if len(variants) > 0 {
			lo, hi := variants[0].Price, variants[0].Price
			for _, v := range variants[1:] {
				if v.Price.LessThan(lo) {
					lo = v.Price
				}
				if v.Price.GreaterThan(hi) {
					hi = v.Price
				}
			}
			offer = map[string]any{
				"@type":         "AggregateOffer",
				"lowPrice":      lo.StringFixed(2),
				"highPrice":     hi.StringFixed(2),
				"offerCount":    len(variants),
				"priceCurrency": "INR",
			}
		}
		pg.JSONLD = jsonLD(map[string]any{
			"@context":    "https://schema.org",
			"@type":       "Product",
			"name":        p.Title,
			"description": p.Description,
			"image":       pg.Image,
			"sku":         p.ID,
			"brand":       map[string]any{"@type": "Brand", "name": p.BrandName},
			"category":    p.CategoryName,
			"offers":      offer,
		})

	case KindCategory, KindBrand:
		var (
			name, desc string
			ps         []domain.Product
			err        error
		)
		if rt.Kind == KindCategory {
			var c domain.Category
			c, ps, err = r.Catalog.Category(ctx, rt.Slug)
			name, desc = c.Name, c.Description
		} else {
			var b domain.Brand
			b, ps, err = r.Catalog.Brand(ctx, rt.Slug)
			name, desc = b.Name, b.Description
		}
		if err != nil {
			return Page{}, err
		}
		pg.Title = name + " | " + r.SiteName
		pg.Description = desc
		pg.Heading = name
		pg.Body = desc
		pg.Sections = []Section{{Title: "Products", Links: r.productLinks(ps)}}
		pg.JSONLD = jsonLD(map[string]any{
			"@context":    "https://schema.org",
			"@type":       "CollectionPage",
			"name":        name,
			"description": desc,
			"url":         pg.Canonical,
			"mainEntity": map[string]any{
				"@type":           "ItemList",
				"itemListElement": r.itemList(ps),
			},
		})

	case KindBlogIndex:
		posts, err := r.Catalog.Posts(ctx)
		if err != nil {
			return Page{}, err
		}
		pg.Title = "Blog | " + r.SiteName
		pg.Description = "Guides and stories about cigars, hookahs and the craft around them."
		pg.Heading = "Blog"
		pg.Body = pg.Description
		var links []Link
		var entries []map[string]any
		for _, p := range posts {
			links = append(links, Link{Name: p.Title, URL: "/blog/" + p.Slug, Note: p.Excerpt})
			entries = append(entries, map[string]any{
				"@type":         "BlogPosting",
				"headline":      p.Title,
				"url":           r.url("/blog/" + p.Slug),
				"datePublished": p.PublishedAt,
			})
		}
		pg.Sections = []Section{{Title: "Latest posts", Links: links}}
		pg.JSONLD = jsonLD(map[string]any{
			"@context": "https://schema.org",
			"@type":    "Blog",
			"name":     r.SiteName + " Blog",
			"url":      pg.Canonical,
			"blogPost": entries,
		})

	case KindBlogPost:
		p, err := r.Catalog.Post(ctx, rt.Slug)
		if err != nil {
			return Page{}, err
		}
		pg.OGType = "article"
		pg.Title = p.Title + " | " + r.SiteName
		pg.Description = p.Excerpt
		pg.Heading = p.Title
		pg.Body = p.Body
		pg.JSONLD = jsonLD(map[string]any{
			"@context":      "https://schema.org",
			"@type":         "BlogPosting",
			"headline":      p.Title,
			"description":   p.Excerpt,
			"author":        map[string]any{"@type": "Person", "name": p.Author},
			"datePublished": p.PublishedAt,
			"url":           pg.Canonical,
		})
	}
	return pg, nil
}

// Middleware serves rendered HTML to crawlers on known page routes and passes
// everything else through.
func Middleware(r *Renderer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodGet && c.Method() != fiber.MethodHead {
			return c.Next()
		}
		ua := c.Get(fiber.HeaderUserAgent)
		if !IsBot(ua) {
			return c.Next()
		}
		rt, ok := Classify(c.Path())
		if !ok {
			return c.Next()
		}
		pg, err := r.Build(c.UserContext(), rt, c.Path())
		if errors.Is(err, services.ErrNotFound) {
			applog.Info(c, "seo.notfound", map[string]any{"ua": ua})
			return c.Status(fiber.StatusNotFound).Render("notfound", fiber.Map{
				"SiteName": r.SiteName,
				"Message":  "This page is no longer available",
			})
		}
		if err != nil {
			return err
		}
		c.Set(fiber.HeaderCacheControl, "public, max-age=300")
		c.Set(fiber.HeaderVary, fiber.HeaderUserAgent)
		applog.Info(c, "seo.render", map[string]any{"ua": ua, "kind": int(rt.Kind)})
		return c.Render("page", pg)
	}
}
