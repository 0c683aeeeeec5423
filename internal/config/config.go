package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Rating store backends.
const (
	BackendAuto     = "auto"
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config holds application configuration read from environment variables.
type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`
	// RatingBackend picks the Elo store. auto uses postgres when DATABASE_URL
	// is set and memory otherwise.
	RatingBackend string `env:"RATING_BACKEND" envDefault:"auto"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	DefaultKFactor  int           `env:"DEFAULT_K_FACTOR" envDefault:"32"`
	DrawOfferWindow time.Duration `env:"DRAW_OFFER_WINDOW" envDefault:"0s"`

	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"0"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"20"`

	// CORSOrigins is a comma-separated allow list; empty allows any origin.
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:","`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DefaultKFactor <= 0 {
		return fmt.Errorf("DEFAULT_K_FACTOR must be positive, got %d", c.DefaultKFactor)
	}
	if c.DrawOfferWindow < 0 {
		return fmt.Errorf("DRAW_OFFER_WINDOW must not be negative, got %s", c.DrawOfferWindow)
	}
	switch c.Backend() {
	case BackendMemory:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("RATING_BACKEND=postgres requires DATABASE_URL")
		}
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("RATING_BACKEND=redis requires REDIS_URL")
		}
	default:
		return fmt.Errorf("unknown RATING_BACKEND %q", c.RatingBackend)
	}
	return nil
}

// Backend resolves RatingBackend, replacing auto with a concrete backend.
func (c *Config) Backend() string {
	if c.RatingBackend != BackendAuto && c.RatingBackend != "" {
		return c.RatingBackend
	}
	if c.DatabaseURL != "" {
		return BackendPostgres
	}
	return BackendMemory
}
