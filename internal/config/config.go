package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the review console.
type Config struct {
	AppName          string
	AppEnv           string
	AppPort          string
	ReviewServiceURL string
	RequestTimeout   time.Duration
	SessionSecret    string
	SessionTTL       time.Duration
	MaxUploadKB      int
	RedisURL         string
	NATSURL          string
	EventsChannel    string
	SubmitRateLimit  int
	SubmitRateWindow time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// MaxUploadBytes converts the configured upload limit into bytes.
func (c Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadKB) * 1024
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("CODEREVIEW")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "GEMA Code Review")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "3000")
	v.SetDefault("review.service_url", "http://localhost:8000")
	v.SetDefault("review.request_timeout", "0s")
	v.SetDefault("session.ttl", "2h")
	v.SetDefault("upload.max_size_kb", 512)
	v.SetDefault("events.channel", "gema:codereview")
	v.SetDefault("submit.rate_limit", 10)
	v.SetDefault("submit.rate_window", "1m")

	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	requestTimeout, err := parseDuration(v, "review.request_timeout")
	if err != nil {
		return Config{}, err
	}

	sessionTTL, err := parseDuration(v, "session.ttl")
	if err != nil {
		return Config{}, err
	}
	if sessionTTL <= 0 {
		sessionTTL = 2 * time.Hour
	}

	rateWindow, err := parseDuration(v, "submit.rate_window")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:          v.GetString("app.name"),
		AppEnv:           v.GetString("app.env"),
		AppPort:          v.GetString("app.port"),
		ReviewServiceURL: strings.TrimRight(strings.TrimSpace(v.GetString("review.service_url")), "/"),
		RequestTimeout:   requestTimeout,
		SessionSecret:    v.GetString("session.secret"),
		SessionTTL:       sessionTTL,
		MaxUploadKB:      v.GetInt("upload.max_size_kb"),
		RedisURL:         v.GetString("redis.url"),
		NATSURL:          v.GetString("nats.url"),
		EventsChannel:    v.GetString("events.channel"),
		SubmitRateLimit:  v.GetInt("submit.rate_limit"),
		SubmitRateWindow: rateWindow,
	}

	if cfg.SessionSecret == "" {
		return Config{}, fmt.Errorf("session secret must be provided")
	}

	if cfg.ReviewServiceURL == "" {
		return Config{}, fmt.Errorf("review service url must be provided")
	}

	if cfg.MaxUploadKB <= 0 {
		cfg.MaxUploadKB = 512
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return 0, nil
	}

	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if value < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}

	return value, nil
}
