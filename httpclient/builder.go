package httpclient

import (
	"maps"
	nethttp "net/http"
	"slices"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	oteltrace "go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/gaborage/syncbridge/logger"
)

const (
	// DefaultTimeout is the default per-attempt timeout
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is the default maximum number of retries for failed requests
	DefaultMaxRetries = 0

	// DefaultRetryDelay is the default base delay between retries
	DefaultRetryDelay = 1 * time.Second

	// DefaultMaxJitter bounds the random component added to each backoff
	DefaultMaxJitter = 1 * time.Second

	// DefaultMaxPayloadLogBytes caps logged body previews
	DefaultMaxPayloadLogBytes = 1024
)

func defaultConfig() *Config {
	return &Config{
		Timeout:              DefaultTimeout,
		MaxRetries:           DefaultMaxRetries,
		RetryDelay:           DefaultRetryDelay,
		MaxJitter:            DefaultMaxJitter,
		DefaultHeaders:       make(map[string]string),
		RequestInterceptors:  []RequestInterceptor{},
		ResponseInterceptors: []ResponseInterceptor{},
		MaxPayloadLogBytes:   DefaultMaxPayloadLogBytes,
		RequestIDHeader:      HeaderXRequestID,
	}
}

// clone returns a copy that shares no maps or slices with c
func (c *Config) clone() *Config {
	out := *c
	out.DefaultHeaders = maps.Clone(c.DefaultHeaders)
	if out.DefaultHeaders == nil {
		out.DefaultHeaders = make(map[string]string)
	}
	out.RequestInterceptors = slices.Clone(c.RequestInterceptors)
	out.ResponseInterceptors = slices.Clone(c.ResponseInterceptors)
	return &out
}

// NewClient creates a new REST client with default configuration
func NewClient(log logger.Logger) Client {
	return NewBuilder(log).Build()
}

// Builder provides a fluent interface for configuring the REST client
type Builder struct {
	config         *Config
	logger         logger.Logger
	httpClient     *nethttp.Client
	transport      nethttp.RoundTripper
	meterProvider  metric.MeterProvider
	tracerProvider oteltrace.TracerProvider
}

// NewBuilder creates a new client builder
func NewBuilder(log logger.Logger) *Builder {
	return &Builder{
		config: defaultConfig(),
		logger: log,
	}
}

// WithBaseURL sets the URL relative request paths are resolved against
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.config.BaseURL = baseURL
	return b
}

// WithTimeout sets the per-attempt timeout
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.config.Timeout = timeout
	return b
}

// WithRetries sets the retry configuration
func (b *Builder) WithRetries(maxRetries int, retryDelay time.Duration) *Builder {
	b.config.MaxRetries = maxRetries
	b.config.RetryDelay = retryDelay
	return b
}

// WithJitter sets the upper bound of the random backoff component. Zero disables jitter.
func (b *Builder) WithJitter(maxJitter time.Duration) *Builder {
	if maxJitter >= 0 {
		b.config.MaxJitter = maxJitter
	}
	return b
}

// WithDefaultHeader adds a default header that will be sent with all requests
func (b *Builder) WithDefaultHeader(key, value string) *Builder {
	b.config.DefaultHeaders[key] = value
	return b
}

// WithDiagnostics installs the predicate selecting targets whose payloads are logged
func (b *Builder) WithDiagnostics(fn DiagnosticsFunc) *Builder {
	b.config.Diagnostics = fn
	return b
}

// WithLogPayloads enables payload logging for all targets, capped at maxBytes per body
func (b *Builder) WithLogPayloads(enabled bool, maxBytes int) *Builder {
	b.config.LogPayloads = enabled
	if maxBytes > 0 {
		b.config.MaxPayloadLogBytes = maxBytes
	}
	return b
}

// WithRequestIDHeader sets the header carrying the request id. Empty keeps the default.
func (b *Builder) WithRequestIDHeader(header string) *Builder {
	if header != "" {
		b.config.RequestIDHeader = header
	}
	return b
}

// WithRequestInterceptor adds a request interceptor
func (b *Builder) WithRequestInterceptor(interceptor RequestInterceptor) *Builder {
	b.config.RequestInterceptors = append(b.config.RequestInterceptors, interceptor)
	return b
}

// WithResponseInterceptor adds a response interceptor
func (b *Builder) WithResponseInterceptor(interceptor ResponseInterceptor) *Builder {
	b.config.ResponseInterceptors = append(b.config.ResponseInterceptors, interceptor)
	return b
}

// WithRateLimit limits attempts to perSecond with the given burst. Zero disables limiting.
func (b *Builder) WithRateLimit(perSecond float64, burst int) *Builder {
	b.config.RateLimit = rate.Limit(perSecond)
	b.config.RateBurst = burst
	return b
}

// WithHTTPClient uses a copy of hc for transport. Its Transport is kept unless WithTransport is also set.
func (b *Builder) WithHTTPClient(hc *nethttp.Client) *Builder {
	b.httpClient = hc
	return b
}

// WithTransport sets the round tripper attempts are sent through
func (b *Builder) WithTransport(rt nethttp.RoundTripper) *Builder {
	b.transport = rt
	return b
}

// WithMeterProvider records client metrics on mp instead of the global provider
func (b *Builder) WithMeterProvider(mp metric.MeterProvider) *Builder {
	b.meterProvider = mp
	return b
}

// WithTracerProvider records client spans on tp instead of the global provider
func (b *Builder) WithTracerProvider(tp oteltrace.TracerProvider) *Builder {
	b.tracerProvider = tp
	return b
}

// Build creates the REST client with the configured options
func (b *Builder) Build() Client {
	cfg := b.config.clone()

	log := b.logger
	if log == nil {
		log = logger.Nop()
	}

	hc := &nethttp.Client{}
	if b.httpClient != nil {
		copied := *b.httpClient
		hc = &copied
	}
	base := b.transport
	if base == nil {
		base = hc.Transport
	}
	if base == nil {
		base = nethttp.DefaultTransport
	}

	mp := b.meterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	opts := []otelhttp.Option{
		otelhttp.WithMeterProvider(mp),
		otelhttp.WithPropagators(otel.GetTextMapPropagator()),
	}
	if b.tracerProvider != nil {
		opts = append(opts, otelhttp.WithTracerProvider(b.tracerProvider))
	}
	hc.Transport = otelhttp.NewTransport(base, opts...)

	c := &client{
		httpClient: hc,
		logger:     log,
		config:     cfg,
		stats:      &statsCounter{},
		metrics:    newClientMetrics(mp, log),
	}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(cfg.RateLimit, max(cfg.RateBurst, 1))
	}
	return c
}
