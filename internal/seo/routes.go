package seo

import "strings"

type Kind int

const (
	KindHome Kind = iota + 1
	KindStatic
	KindProduct
	KindCategory
	KindBrand
	KindBlogIndex
	KindBlogPost
)

type Route struct {
	Kind Kind
	Slug string // static page path for KindStatic
}

type staticPage struct {
	Title       string
	Description string
}

var staticPages = map[string]staticPage{
	"about":           {"About Us", "Leafline is a curated marketplace for cigars, hookahs and smoking accessories."},
	"contact":         {"Contact Us", "Reach the Leafline team for order help, wholesale and partnership enquiries."},
	"privacy-policy":  {"Privacy Policy", "How Leafline collects, uses and protects your personal information."},
	"terms":           {"Terms and Conditions", "The terms that govern purchases on Leafline. Buyers must be of legal smoking age."},
	"shipping-policy": {"Shipping Policy", "Standard, express and overnight delivery options and timelines."},
	"refund-policy":   {"Refund Policy", "Returns, replacements and refunds for orders placed on Leafline."},
}

// Classify maps a request path onto a server-rendered page type.
func Classify(path string) (Route, bool) {
	p := strings.Trim(path, "/")
	if p == "" {
		return Route{Kind: KindHome}, true
	}
	if _, ok := staticPages[p]; ok {
		return Route{Kind: KindStatic, Slug: p}, true
	}
	parts := strings.Split(p, "/")
	switch {
	case len(parts) == 1 && parts[0] == "blog":
		return Route{Kind: KindBlogIndex}, true
	case len(parts) != 2 || parts[1] == "":
		return Route{}, false
	}
	slug := parts[1]
	switch parts[0] {
	case "product":
		return Route{Kind: KindProduct, Slug: slug}, true
	case "category":
		return Route{Kind: KindCategory, Slug: slug}, true
	case "brand":
		return Route{Kind: KindBrand, Slug: slug}, true
	case "blog":
		return Route{Kind: KindBlogPost, Slug: slug}, true
	}
	return Route{}, false
}
