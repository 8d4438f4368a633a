package main

import (
	"storefront/internal/handlers"
	"storefront/internal/metrics"
	"storefront/internal/middleware"
	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
)

// appDeps is everything the HTTP layer needs from the wiring in buildStorefront.
type appDeps struct {
	Auth     *services.AuthService
	Catalog  services.Catalog
	Sessions *services.SessionRegistry
	Metrics  *metrics.StoreMetrics
	Gatherer prometheus.Gatherer
	Checks   map[string]handlers.HealthCheck
}

// sessionPrefixes are the API paths that act on a visitor's session.
var sessionPrefixes = []string{"/auth/logout", "/cart", "/checkout", "/orders"}

func newApp(d appDeps) *fiber.App {
	app := fiber.New(fiber.Config{AppName: "storefront"})

	// --- Middleware ---
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(d.Metrics.Middleware())

	handlers.NewHealthHandler(d.Checks).RegisterRoutes(app)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler(d.Gatherer)))

	// --- API Routes ---
	apiV1 := app.Group("/api/v1")

	session := middleware.Session(d.Sessions)
	for _, prefix := range sessionPrefixes {
		apiV1.Use(prefix, session)
	}
	// Cart and checkout work for guests; a token, when sent, binds the session.
	optionalAuth := middleware.AuthOptional(d.Auth)
	apiV1.Use("/cart", optionalAuth)
	apiV1.Use("/checkout", optionalAuth)

	handlers.NewAuthHandler(d.Auth).RegisterRoutes(apiV1)
	handlers.NewProductHandler(d.Catalog).RegisterRoutes(apiV1)
	handlers.NewCartHandler(d.Catalog).RegisterRoutes(apiV1)
	handlers.NewCheckoutHandler().RegisterRoutes(apiV1)
	handlers.NewOrderHandler(d.Auth).RegisterRoutes(apiV1)

	return app
}
