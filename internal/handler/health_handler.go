package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-code-review/internal/config"
	"github.com/noah-isme/gema-code-review/internal/utils"
)

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status         string    `json:"status"`
	Timestamp      time.Time `json:"timestamp"`
	Service        string    `json:"service"`
	Environment    string    `json:"environment"`
	ActiveSessions int       `json:"active_sessions"`
}

// SessionCounter reports how many sessions are live.
type SessionCounter interface {
	Active() int
}

// HealthCheck returns a handler that reports application health information.
func HealthCheck(cfg config.Config, sessions SessionCounter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
		}
		if sessions != nil {
			payload.ActiveSessions = sessions.Active()
		}

		return utils.SendSuccess(c, "service healthy", payload)
	}
}
