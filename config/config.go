package config

import (
	"fmt"
	"log/slog"

	"github.com/Netflix/go-env"
)

// Config holds relay settings read from the environment.
type Config struct {
	Port           string `env:"PORT,default=8080"`
	LogLevel       string `env:"LOG_LEVEL,default=info"`
	AuthCookieName string `env:"AUTH_COOKIE_NAME,default=connect.sid"`
}

func Load() (Config, error) {
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
