package config

import (
	"time"

	"github.com/gaborage/syncbridge/observability"
)

// Environment constants
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Config is the root configuration of a syncbridge process.
type Config struct {
	App           AppConfig                 `koanf:"app"`
	Log           LogConfig                 `koanf:"log"`
	Observability observability.Config      `koanf:"observability"`
	Upstreams     map[string]UpstreamConfig `koanf:"upstreams" validate:"dive"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name    string `koanf:"name" validate:"required"`
	Version string `koanf:"version" validate:"required"`
	Env     string `koanf:"env" validate:"oneof=development staging production"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Pretty bool   `koanf:"pretty"`
}

// UpstreamConfig describes one remote service the bridge talks to.
// Zero durations keep the HTTP client defaults; MaxJitter of zero keeps the
// default jitter bound rather than disabling it.
type UpstreamConfig struct {
	BaseURL     string            `koanf:"base_url" validate:"required,http_url"`
	HealthPath  string            `koanf:"health_path" validate:"omitempty,startswith=/"`
	Timeout     time.Duration     `koanf:"timeout" validate:"gte=0"`
	MaxRetries  int               `koanf:"max_retries" validate:"gte=0,lte=10"`
	RetryDelay  time.Duration     `koanf:"retry_delay" validate:"gte=0"`
	MaxJitter   time.Duration     `koanf:"max_jitter" validate:"gte=0"`
	Headers     map[string]string `koanf:"headers"`
	Diagnostics bool              `koanf:"diagnostics"`
	RateLimit   float64           `koanf:"rate_limit" validate:"gte=0"`
	RateBurst   int               `koanf:"rate_burst" validate:"gte=0"`
}

// IsProduction reports whether the app runs in the production environment.
func (c *Config) IsProduction() bool {
	return c.App.Env == EnvProduction
}
