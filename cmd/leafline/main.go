package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"leafline/internal/cache"
	"leafline/internal/clients"
	"leafline/internal/config"
	"leafline/internal/events"
	"leafline/internal/http/handlers"
	applog "leafline/internal/log"
	"leafline/internal/repos"
	"leafline/internal/seo"
	"leafline/internal/services"
)

func main() {
	loader := config.NewLoader()
	cfg, err := loader.Load()
	if err != nil {
		applog.Error(nil, "config.load", err, nil)
		os.Exit(1)
	}

	// Optional file logging
	var out io.Writer = os.Stdout
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			applog.Error(nil, "log.file", err, map[string]any{"path": cfg.LogFile})
		} else {
			defer f.Close()
			out = io.MultiWriter(os.Stdout, f)
		}
	}
	applog.Setup(out, cfg.LogLevel)

	db, err := repos.OpenDB(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		applog.Error(nil, "db.open", err, map[string]any{"driver": cfg.DBDriver})
		os.Exit(1)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---------- Optional collaborators ----------
	var opts handlers.Options
	if cfg.RedisAddr != "" {
		cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		rdb, err := cache.Connect(cctx, cfg.RedisAddr, cache.WithPassword(cfg.RedisPassword), cache.WithDB(cfg.RedisDB))
		cancel()
		if err != nil {
			applog.Error(nil, "redis.connect", err, map[string]any{"addr": cfg.RedisAddr})
		} else {
			defer rdb.Close()
			opts.Cache = cache.NewPincodeCache(rdb, cfg.PincodeCacheTTL)
			applog.Info(nil, "redis.connect", map[string]any{"addr": cfg.RedisAddr})
		}
	}
	var publisher *events.Publisher
	if cfg.RabbitMQURL != "" {
		publisher, err = events.NewPublisher(cfg.RabbitMQURL, cfg.RabbitMQQueue)
		if err != nil {
			applog.Error(nil, "rabbitmq.connect", err, map[string]any{"queue": cfg.RabbitMQQueue})
		} else {
			opts.Publisher = publisher
		}
	}
	if cfg.GeocodeURL != "" {
		opts.Geocoder = clients.NewGeocodeClient(cfg.GeocodeURL, cfg.SiteName+"/1.0 ("+cfg.SiteURL+")", cfg.GeocodeTimeout)
	}
	if cfg.PaymentWebhookURL != "" {
		opts.Verifier = clients.NewWebhookVerifier(cfg.PaymentWebhookURL, 10*time.Second)
	}

	deps, err := handlers.NewDeps(db, cfg, opts)
	if err != nil {
		applog.Error(nil, "deps.init", err, nil)
		os.Exit(1)
	}

	// Shipping rates follow the config file without a restart.
	loader.Watch(func(next config.Config, err error) {
		if err != nil {
			applog.Error(nil, "config.reload", err, nil)
			return
		}
		schedule, err := next.Shipping()
		if err != nil {
			applog.Error(nil, "config.reload", err, nil)
			return
		}
		deps.Pricer.SetSchedule(services.ShippingSchedule(schedule))
		applog.Audit(nil, "config.reload.shipping", map[string]any{
			"standard":  next.ShippingStandard,
			"express":   next.ShippingExpress,
			"overnight": next.ShippingOvernight,
		})
	})

	app := fiber.New(fiber.Config{
		Views:        seo.Views(),
		ErrorHandler: errorHandler,
	})
	// Global body size guard
	app.Server().MaxRequestBodySize = 1 << 20 // 1 MiB

	// ---------- Middlewares ----------
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{Output: out}))
	app.Use(helmet.New())
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			p := c.Path()
			return strings.HasPrefix(p, "/assets/") || p == "/healthz"
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.global.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded, retry soon"})
		},
	}))
	app.Use(csrf.New(csrf.Config{
		KeyLookup:      "header:X-Csrf-Token",
		CookieName:     "csrf_",
		CookieSameSite: "Lax",
		CookieSecure:   strings.HasPrefix(cfg.SiteURL, "https://"),
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			applog.Security(c, "csrf.fail", map[string]any{"header": c.Get("X-Csrf-Token") != ""})
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Security check failed. Please refresh and try again."})
		},
	}))

	// Crawlers get server-rendered pages; everyone else gets the SPA.
	app.Use(seo.Middleware(&seo.Renderer{Catalog: deps.Catalog, SiteURL: cfg.SiteURL, SiteName: cfg.SiteName}))

	handlers.Register(app, deps)
	mountSPA(app, cfg.SPADir)

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		applog.Info(nil, "server.shutdown", nil)
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		// Stop taking requests first so no confirm races the payment shutdown.
		if err := app.ShutdownWithContext(sctx); err != nil {
			applog.Error(nil, "server.shutdown", err, nil)
		}
		if err := deps.Payment.Shutdown(sctx); err != nil {
			applog.Error(nil, "payment.shutdown", err, nil)
		}
	}()

	applog.Info(nil, "server.start", map[string]any{"port": cfg.Port, "db": cfg.DBDriver})
	if err := app.Listen(":" + cfg.Port); err != nil {
		applog.Error(nil, "server.listen", err, nil)
	}
	stop()
	<-stopped
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			applog.Error(nil, "rabbitmq.close", err, nil)
		}
	}
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "Something went wrong. Please try again."
	var fe *fiber.Error
	if errors.As(err, &fe) && fe.Code < fiber.StatusInternalServerError {
		code, msg = fe.Code, fe.Message
	} else {
		applog.Error(c, "server.error", err, nil)
	}
	if strings.HasPrefix(c.Path(), "/api/") || strings.HasPrefix(c.Path(), "/admin/") {
		return c.Status(code).JSON(fiber.Map{"error": msg})
	}
	if rerr := c.Status(code).Render("notfound", fiber.Map{"Message": msg}); rerr != nil {
		return c.Status(code).SendString(msg)
	}
	return nil
}

// mountSPA serves the built single-page app and falls back to index.html for
// client-side routes.
func mountSPA(app *fiber.App, dir string) {
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	index := filepath.Join(dir, "index.html")
	if _, err := os.Stat(index); err != nil {
		applog.Info(nil, "spa.missing", map[string]any{"dir": dir})
		app.Use(func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusNotFound).Render("notfound", fiber.Map{"Message": "Page not found"})
		})
		return
	}
	app.Static("/", dir, fiber.Static{Compress: true})
	app.Get("/*", func(c *fiber.Ctx) error {
		if strings.HasPrefix(c.Path(), "/api/") {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
		}
		return c.SendFile(index)
	})
}
