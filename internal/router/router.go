package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-code-review/internal/config"
	"github.com/noah-isme/gema-code-review/internal/handler"
	"github.com/noah-isme/gema-code-review/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	SessionHandler    *handler.SessionHandler
	Sessions          handler.SessionCounter
	SessionMiddleware fiber.Handler
	SubmitLimiter     fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.Sessions))
	api.Get("/metrics", observability.MetricsHandler())

	if deps.SessionHandler == nil {
		return
	}

	sessionMiddleware := deps.SessionMiddleware
	if sessionMiddleware == nil {
		sessionMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	api.Post("/sessions", deps.SessionHandler.Create)

	current := api.Group("/sessions/current", sessionMiddleware)
	deps.SessionHandler.Register(current, deps.SubmitLimiter)
}
