// Package config loads the bot's runtime configuration from the environment,
// with a .env file honoured for local development.
package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Parse loads the configuration. A missing .env file is fine; missing
// required variables are not.
func Parse(l *slog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		l.Debug("No .env file loaded", slog.String("reason", err.Error()))
	}

	cfg := new(Config)
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("error parsing environment: %w", err)
	}

	switch cfg.StoreBackend {
	case BackendJSON:
	case BackendMongo:
		if cfg.MongoURI == "" {
			return nil, fmt.Errorf("MONGO_URI is required for the mongo backend")
		}
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	return cfg, nil
}
