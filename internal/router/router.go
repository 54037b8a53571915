package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/dimasfr/careerlink-api/internal/config"
	"github.com/dimasfr/careerlink-api/internal/handler"
	"github.com/dimasfr/careerlink-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	RelayHandler   *handler.RelayHandler
	InsightHandler *handler.InsightHandler
	JWTMiddleware  fiber.Handler
	RateLimit      fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	app.Get("/metrics", observability.MetricsHandler())

	// Websocket relay; the handler performs its own handshake gatekeeping.
	if deps.RelayHandler != nil {
		relay := app.Group("/relay")
		deps.RelayHandler.Register(relay)
	}

	// Standalone proxy endpoints, credential verified per call.
	if deps.InsightHandler != nil {
		jwtMiddleware := deps.JWTMiddleware
		if jwtMiddleware == nil {
			jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
		}

		insight := api.Group("", jwtMiddleware)
		if deps.RateLimit != nil {
			insight.Use(deps.RateLimit)
		}
		deps.InsightHandler.Register(insight)
	}
}
