// Package config centralises configuration parsing for the sia client and its dev backend.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config captures runtime configuration values.
type Config struct {
	BackendBaseURL   string        `env:"SIA_BACKEND_BASE_URL" envDefault:"http://localhost:8000/api/v1"`
	UserID           string        `env:"SIA_USER_ID"`
	JWTSecret        string        `env:"SIA_JWT_SECRET"`
	JWTIssuer        string        `env:"SIA_JWT_ISSUER" envDefault:"sia.identity"`
	JWTTTL           time.Duration `env:"SIA_JWT_TTL" envDefault:"15m"`
	HTTPTimeout      time.Duration `env:"SIA_HTTP_TIMEOUT" envDefault:"0s"` // Zero leaves requests to the transport.
	LogMode          string        `env:"SIA_LOG_MODE" envDefault:"development"`
	LogLevel         string        `env:"SIA_LOG_LEVEL"`
	MetricsAddress   string        `env:"SIA_METRICS_ADDRESS"`
	KafkaBrokers     []string      `env:"SIA_KAFKA_BROKERS" envSeparator:","`
	EventsTopic      string        `env:"SIA_EVENTS_TOPIC" envDefault:"activity_progress"`
	DevServerAddress string        `env:"SIA_DEVSERVER_ADDRESS" envDefault:":8000"`
	OTelEnabled      bool          `env:"OTEL_ENABLED"`
	OTelEndpoint     string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelInsecure     bool          `env:"OTEL_EXPORTER_OTLP_INSECURE"`
}

// Load reads an optional .env file and then the process environment into Config.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load dotenv: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.BackendBaseURL = strings.TrimRight(strings.TrimSpace(cfg.BackendBaseURL), "/")
	cfg.KafkaBrokers = splitAndTrim(cfg.KafkaBrokers)
	return cfg, nil
}

func splitAndTrim(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
