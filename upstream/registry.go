// Package upstream builds one resilient HTTP client per configured upstream
// service. The mapping and scheduling layers look clients up by name.
package upstream

import (
	"fmt"
	"maps"
	"net/url"
	"slices"

	"github.com/gaborage/syncbridge/config"
	"github.com/gaborage/syncbridge/httpclient"
	"github.com/gaborage/syncbridge/logger"
	"github.com/gaborage/syncbridge/observability"
)

// DefaultHealthPath is probed when an upstream sets no health_path.
const DefaultHealthPath = "/"

// Registry holds the named clients. It is safe for concurrent use after New returns.
type Registry struct {
	clients map[string]httpclient.Client
	configs map[string]config.UpstreamConfig
	log     logger.Logger
}

// New builds a client for every entry of cfg.Upstreams. A nil provider
// leaves the clients on the global otel providers.
func New(cfg *config.Config, log logger.Logger, provider observability.Provider) (*Registry, error) {
	if cfg == nil {
		return nil, config.NewValidationError("config", "is nil")
	}
	if log == nil {
		log = logger.Nop()
	}

	r := &Registry{
		clients: make(map[string]httpclient.Client, len(cfg.Upstreams)),
		configs: make(map[string]config.UpstreamConfig, len(cfg.Upstreams)),
		log:     log,
	}

	for _, name := range slices.Sorted(maps.Keys(cfg.Upstreams)) {
		ucfg := cfg.Upstreams[name]
		if ucfg.BaseURL == "" {
			field := fmt.Sprintf("upstreams.%s.base_url", name)
			return nil, config.NewMissingFieldError(field, config.EnvVarFor(field), field)
		}

		r.clients[name] = NewClient(name, ucfg, log, provider)
		r.configs[name] = ucfg

		log.Debug().
			Str("upstream", name).
			Str("base_url", ucfg.BaseURL).
			Int("max_retries", ucfg.MaxRetries).
			Bool("diagnostics", ucfg.Diagnostics).
			Msg("Upstream client configured")
	}

	return r, nil
}

// NewClient builds the client of a single upstream. Zero-valued settings keep
// the httpclient defaults.
func NewClient(name string, ucfg config.UpstreamConfig, log logger.Logger, provider observability.Provider) httpclient.Client {
	if log == nil {
		log = logger.Nop()
	}

	b := httpclient.NewBuilder(log.WithFields(map[string]any{"upstream": name})).
		WithBaseURL(ucfg.BaseURL)

	if ucfg.Timeout > 0 {
		b.WithTimeout(ucfg.Timeout)
	}

	delay := ucfg.RetryDelay
	if delay <= 0 {
		delay = httpclient.DefaultRetryDelay
	}
	b.WithRetries(ucfg.MaxRetries, delay)

	if ucfg.MaxJitter > 0 {
		b.WithJitter(ucfg.MaxJitter)
	}

	for _, key := range slices.Sorted(maps.Keys(ucfg.Headers)) {
		b.WithDefaultHeader(key, ucfg.Headers[key])
	}

	if ucfg.Diagnostics {
		b.WithDiagnostics(func(*url.URL) bool { return true })
	}

	if ucfg.RateLimit > 0 {
		b.WithRateLimit(ucfg.RateLimit, ucfg.RateBurst)
	}

	if provider != nil {
		b.WithMeterProvider(provider.MeterProvider()).
			WithTracerProvider(provider.TracerProvider())
	}

	return b.Build()
}

// Client returns the named client. Unknown names yield a not_configured *config.ConfigError.
func (r *Registry) Client(name string) (httpclient.Client, error) {
	c, ok := r.clients[name]
	if !ok {
		field := "upstreams." + name
		return nil, config.NewNotConfiguredError(field, config.EnvVarFor(field+".base_url"), field)
	}
	return c, nil
}

// Names returns the configured upstream names in sorted order.
func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(r.clients))
}
