package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/syncbridge/observability"
)

func validConfig() *Config {
	return &Config{
		App: AppConfig{Name: "bridge", Version: "v1", Env: EnvProduction},
		Log: LogConfig{Level: "info"},
		Upstreams: map[string]UpstreamConfig{
			"budget": {BaseURL: "https://budget.example.com", HealthPath: "/health"},
		},
	}
}

func configErrors(t *testing.T, err error) []*ConfigError {
	t.Helper()
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		var single *ConfigError
		require.ErrorAs(t, err, &single)
		return []*ConfigError{single}
	}

	var out []*ConfigError
	for _, e := range joined.Unwrap() {
		var ce *ConfigError
		if errors.As(e, &ce) {
			out = append(out, ce)
		}
	}
	return out
}

func TestValidateValidConfig(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, Validate(cfg))
	assert.True(t, cfg.IsProduction())
}

func TestValidateNilConfig(t *testing.T) {
	var cfgErr *ConfigError
	require.ErrorAs(t, Validate(nil), &cfgErr)
	assert.Equal(t, "config", cfgErr.Field)
}

func TestValidateFieldFailures(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		field    string
		category string
	}{
		{
			name:     "missing app name",
			mutate:   func(c *Config) { c.App.Name = "" },
			field:    "app.name",
			category: "missing",
		},
		{
			name:     "unknown environment",
			mutate:   func(c *Config) { c.App.Env = "qa" },
			field:    "app.env",
			category: "invalid",
		},
		{
			name:     "unknown log level",
			mutate:   func(c *Config) { c.Log.Level = "verbose" },
			field:    "log.level",
			category: "invalid",
		},
		{
			name: "missing base url",
			mutate: func(c *Config) {
				c.Upstreams["budget"] = UpstreamConfig{}
			},
			field:    "upstreams[budget].base_url",
			category: "missing",
		},
		{
			name: "health path without slash",
			mutate: func(c *Config) {
				c.Upstreams["budget"] = UpstreamConfig{BaseURL: "https://b.example.com", HealthPath: "health"}
			},
			field:    "upstreams[budget].health_path",
			category: "invalid",
		},
		{
			name: "negative retries",
			mutate: func(c *Config) {
				c.Upstreams["budget"] = UpstreamConfig{BaseURL: "https://b.example.com", MaxRetries: -1}
			},
			field:    "upstreams[budget].max_retries",
			category: "invalid",
		},
		{
			name: "too many retries",
			mutate: func(c *Config) {
				c.Upstreams["budget"] = UpstreamConfig{BaseURL: "https://b.example.com", MaxRetries: 11}
			},
			field:    "upstreams[budget].max_retries",
			category: "invalid",
		},
		{
			name: "negative rate limit",
			mutate: func(c *Config) {
				c.Upstreams["budget"] = UpstreamConfig{BaseURL: "https://b.example.com", RateLimit: -1}
			},
			field:    "upstreams[budget].rate_limit",
			category: "invalid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			require.Error(t, err)

			errs := configErrors(t, err)
			require.Len(t, errs, 1)
			assert.Equal(t, tt.field, errs[0].Field)
			assert.Equal(t, tt.category, errs[0].Category)
		})
	}
}

func TestValidateMissingFieldSuggestsEnvVar(t *testing.T) {
	cfg := validConfig()
	cfg.Upstreams["budget"] = UpstreamConfig{}

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SYNCBRIDGE_UPSTREAMS__BUDGET__BASE_URL")
}

func TestValidateReportsEveryField(t *testing.T) {
	cfg := validConfig()
	cfg.App.Name = ""
	cfg.Log.Level = "loud"

	errs := configErrors(t, Validate(cfg))
	assert.Len(t, errs, 2)
}

func TestValidateObservability(t *testing.T) {
	cfg := validConfig()
	cfg.Observability = observability.Config{
		Enabled: true,
		Service: observability.ServiceConfig{Name: "bridge"},
		Trace:   observability.TraceConfig{Endpoint: "collector:4317", Protocol: "udp"},
	}

	err := Validate(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, observability.ErrInvalidProtocol)
	assert.Nil(t, cfg.Observability.Trace.Enabled, "validation must not apply defaults to the caller's config")
}
