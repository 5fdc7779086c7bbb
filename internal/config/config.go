// Package config loads and validates the process configuration from the
// environment, with optional .env support for development.
package config

import (
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

const (
	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type Config struct {
	AppEnv string `env:"APP_ENV" default:"development"`
	Port   string `env:"PORT" default:"8080"`

	// StoreBackend selects poll persistence: file, memory, redis or postgres.
	StoreBackend string `env:"STORE_BACKEND" default:"file"`
	PollFile     string `env:"POLL_FILE" default:"polls.json"`
	RedisURL     string `env:"REDIS_URL"`
	DatabaseURL  string `env:"DATABASE_URL"`

	// ResultsWebhookURL is where rendered views and ballots are delivered.
	// Empty means log-only output (development).
	ResultsWebhookURL string `env:"RESULTS_WEBHOOK_URL"`

	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	VoteRatePerSecond float64 `env:"VOTE_RATE" default:"10"`
	VoteRateBurst     int     `env:"VOTE_BURST" default:"20"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	switch cfg.StoreBackend {
	case BackendFile:
		if cfg.PollFile == "" {
			return fmt.Errorf("POLL_FILE is required for the file backend")
		}
	case BackendMemory:
	case BackendRedis:
		if cfg.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis backend")
		}
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	if cfg.VoteRatePerSecond <= 0 || cfg.VoteRateBurst <= 0 {
		return fmt.Errorf("VOTE_RATE and VOTE_BURST must be positive")
	}

	return nil
}
