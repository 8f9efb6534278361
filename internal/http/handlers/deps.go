package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"leafline/internal/config"
	applog "leafline/internal/log"
	"leafline/internal/repos"
	"leafline/internal/services"
)

// Options carries the optional collaborators that main wires from config.
// Nil fields fall back to in-process behaviour.
type Options struct {
	Cache     services.PincodeCache
	Geocoder  services.ReverseGeocoder
	Verifier  services.Verifier
	Publisher services.PendingPublisher
	Lucky     func() decimal.Decimal
}

type Deps struct {
	Auth    *services.AuthService
	Catalog *services.CatalogService
	Pricer  *services.Pricer
	Payment *services.PaymentService

	AuthHandler     *AuthHandler
	CartHandler     *CartHandler
	CheckoutHandler *CheckoutHandler
	AddressHandler  *AddressHandler
	OrderHandler    *OrderHandler
	AdminHandler    *AdminHandler
}

func NewDeps(db *sqlx.DB, cfg config.Config, opts Options) (*Deps, error) {
	schedule, err := cfg.Shipping()
	if err != nil {
		return nil, err
	}

	catRepo := repos.NewCategoryRepo(db)
	prodRepo := repos.NewProductRepo(db)
	blogRepo := repos.NewBlogRepo(db)
	cartRepo := repos.NewCartRepo(db)
	orderRepo := repos.NewOrderRepo(db)
	userRepo := repos.NewUserRepo(db)
	addrRepo := repos.NewAddressRepo(db)
	pinRepo := repos.NewPincodeRepo(db)
	discRepo := repos.NewDiscountRepo(db)

	authSvc := &services.AuthService{Users: userRepo}
	catalogSvc := services.NewCatalogService(catRepo, prodRepo, blogRepo)
	cartSvc := services.NewCartService(cartRepo, prodRepo)
	discSvc := services.NewDiscountService(discRepo)
	orderSvc := services.NewOrderService(orderRepo)
	pricer := services.NewPricer(schedule)

	addrSvc := services.NewAddressService(addrRepo, pinRepo)
	addrSvc.Cache = opts.Cache
	addrSvc.Geocoder = opts.Geocoder

	paySvc := services.NewPaymentService(orderRepo, cartRepo, cfg.UPIPayeeVPA, cfg.UPIPayeeName, cfg.PaymentDelay)
	paySvc.Verifier = opts.Verifier
	paySvc.Publisher = opts.Publisher

	checkoutSvc := &services.CheckoutService{
		Carts:     cartRepo,
		Orders:    orderRepo,
		Cart:      cartSvc,
		Discounts: discSvc,
		Addresses: addrSvc,
		Payments:  paySvc,
		Pricer:    pricer,
		Lucky:     opts.Lucky,
	}

	return &Deps{
		Auth:    authSvc,
		Catalog: catalogSvc,
		Pricer:  pricer,
		Payment: paySvc,

		AuthHandler:     &AuthHandler{Auth: authSvc},
		CartHandler:     &CartHandler{Cart: cartSvc},
		CheckoutHandler: &CheckoutHandler{Checkout: checkoutSvc},
		AddressHandler:  &AddressHandler{Addresses: addrSvc},
		OrderHandler:    &OrderHandler{Orders: orderSvc, Payments: paySvc},
		AdminHandler:    &AdminHandler{Orders: orderSvc, Payments: paySvc},
	}, nil
}

func rateLimit(name string, max int, window time.Duration) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() + "|" + name
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate."+name+".hit", nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded, retry soon"})
		},
	})
}

// Register mounts the JSON API and the admin routes on app.
func Register(app *fiber.App, d *Deps) {
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })

	api := app.Group("/api/v1", AttachUser(d.Auth))

	api.Post("/auth/login", rateLimit("login", 5, 10*time.Minute), d.AuthHandler.Login)
	api.Post("/auth/logout", d.AuthHandler.Logout)
	api.Get("/auth/me", d.AuthHandler.Me)

	api.Get("/cart", d.CartHandler.View)
	api.Post("/cart/items", d.CartHandler.Add)
	api.Patch("/cart/items", d.CartHandler.Update)
	api.Delete("/cart/items", d.CartHandler.Remove)
	api.Delete("/cart", d.CartHandler.Clear)

	api.Get("/checkout/summary", d.CheckoutHandler.Summary)
	api.Post("/checkout/coupon", rateLimit("coupon", 20, time.Minute), d.CheckoutHandler.ApplyCoupon)
	api.Delete("/checkout/coupon", d.CheckoutHandler.RemoveCoupon)
	api.Post("/checkout", d.CheckoutHandler.Place)

	// Pincode lookups fire as the user types; the client debounces and this caps the rest.
	api.Get("/pincode/:pincode", rateLimit("pincode", 30, 30*time.Second), d.AddressHandler.Pincode)
	api.Post("/geolocate", rateLimit("geolocate", 10, time.Minute), d.AddressHandler.Geolocate)

	addr := api.Group("/addresses", RequireUser(d.Auth))
	addr.Get("/", d.AddressHandler.List)
	addr.Post("/", d.AddressHandler.Create)
	addr.Put("/:id", d.AddressHandler.Update)
	addr.Delete("/:id", d.AddressHandler.Delete)
	addr.Post("/:id/default", d.AddressHandler.SetDefault)

	api.Get("/orders", d.OrderHandler.History)
	api.Get("/orders/:id", d.OrderHandler.View)
	api.Post("/orders/:id/payment/confirm", d.OrderHandler.ConfirmPayment)
	api.Get("/orders/:id/payment", d.OrderHandler.PaymentStatus)

	admin := app.Group("/admin", RequireAdmin(d.Auth))
	admin.Get("/orders", d.AdminHandler.ListOrders)
	admin.Post("/orders/:id/status", d.AdminHandler.UpdateOrderStatus)
	admin.Post("/orders/:id/payment", d.AdminHandler.ResolvePayment)
}
