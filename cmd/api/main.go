package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-code-review/internal/config"
	"github.com/noah-isme/gema-code-review/internal/database"
	"github.com/noah-isme/gema-code-review/internal/handler"
	"github.com/noah-isme/gema-code-review/internal/middleware"
	"github.com/noah-isme/gema-code-review/internal/repository"
	"github.com/noah-isme/gema-code-review/internal/router"
	"github.com/noah-isme/gema-code-review/internal/service"
	"github.com/noah-isme/gema-code-review/pkg/reviewapi"
)

const (
	sessionKeyPrefix = "codereview"
	bodyLimitSlack   = 64 * 1024
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var sessionRepo repository.SessionRepository
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
		sessionRepo = repository.NewSessionRepository(redisClient, sessionKeyPrefix, cfg.SessionTTL)
	} else {
		logger.Warn().Msg("redis url not configured, session snapshots are kept in memory only")
	}

	var events service.EventPublisher
	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName, logger)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Drain()

		events, err = service.NewNATSEventPublisher(natsConn, cfg.EventsChannel)
		if err != nil {
			log.Fatalf("failed to create event publisher: %v", err)
		}
	}

	reviewClient, err := reviewapi.NewClient(reviewapi.Config{
		BaseURL:       cfg.ReviewServiceURL,
		Logger:        logger,
		CorrelationID: middleware.CorrelationIDFromContext,
	})
	if err != nil {
		log.Fatalf("failed to create review service client: %v", err)
	}

	sessions := service.NewSessionManager(reviewClient, sessionRepo, events, service.SessionConfig{
		TTL: cfg.SessionTTL,
		Controller: service.ControllerConfig{
			RequestTimeout: cfg.RequestTimeout,
			MaxFileBytes:   cfg.MaxUploadBytes(),
		},
	}, logger)
	sessions.Start(ctx)

	validate := validator.New(validator.WithRequiredStructEnabled())
	sessionHandler := handler.NewSessionHandler(sessions, validate, cfg.SessionSecret, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    int(cfg.MaxUploadBytes()) + bodyLimitSlack,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		SessionHandler:    sessionHandler,
		Sessions:          sessions,
		SessionMiddleware: middleware.SessionProtected(cfg.SessionSecret),
		SubmitLimiter:     middleware.RateLimit("submit", cfg.SubmitRateLimit, cfg.SubmitRateWindow),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	logger.Info().
		Str("address", cfg.HTTPAddress()).
		Str("review_service", cfg.ReviewServiceURL).
		Dur("request_timeout", cfg.RequestTimeout).
		Msg("review console started")

	waitForShutdown(ctx, app, logger)
}

func waitForShutdown(ctx context.Context, app *fiber.App, logger zerolog.Logger) {
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
