// Package config loads the application's environment-backed configuration.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/muaviaUsmani/bananas/internal/logger"
)

// Config holds top-level configuration shared across the worker binary.
type Config struct {
	RedisURL   string        `env:"REDIS_URL" envDefault:"redis://localhost:6379"`
	JobTimeout time.Duration `env:"JOB_TIMEOUT" envDefault:"5m"`

	Worker  WorkerConfig  `envPrefix:"WORKER_"`
	Logging *logger.Config `env:"-"`
}

// LoadConfig reads a local .env file (if present) then binds Config from the
// environment. Grounded on dmitrymomot-gokit's caarlos0/env + godotenv
// combination.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{Logging: &logger.Config{}}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}
	if err := env.Parse(cfg.Logging); err != nil {
		return nil, fmt.Errorf("config: parse logging environment: %w", err)
	}

	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("config: REDIS_URL cannot be empty")
	}
	if err := cfg.Worker.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Logging.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid logging config: %w", err)
	}

	return cfg, nil
}
