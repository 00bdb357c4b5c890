package observability

import (
	"fmt"
	"maps"
	"strings"
	"time"
)

const (
	// EndpointStdout selects the pretty-printing stdout exporters.
	EndpointStdout = "stdout"

	// ProtocolHTTP selects the OTLP/HTTP exporters.
	ProtocolHTTP = "http"

	// ProtocolGRPC selects the OTLP/gRPC exporters.
	ProtocolGRPC = "grpc"

	// EnvironmentDevelopment is the deployment environment used when none is configured.
	EnvironmentDevelopment = "development"
)

const (
	defaultMetricsInterval = 10 * time.Second
	defaultBatchTimeout    = 5 * time.Second
	devBatchTimeout        = 500 * time.Millisecond
)

// BoolPtr returns a pointer to v.
func BoolPtr(v bool) *bool {
	return &v
}

// Float64Ptr returns a pointer to v.
func Float64Ptr(v float64) *float64 {
	return &v
}

func cloneHeaderMap(headers map[string]string) map[string]string {
	if headers == nil {
		return nil
	}
	clone := make(map[string]string, len(headers))
	maps.Copy(clone, headers)
	return clone
}

// Config holds the OpenTelemetry settings of the bridge.
// Trace and metrics are enabled by default once Enabled is set.
type Config struct {
	Enabled     bool          `koanf:"enabled"`
	Service     ServiceConfig `koanf:"service"`
	Environment string        `koanf:"environment"`
	Trace       TraceConfig   `koanf:"trace"`
	Metrics     MetricsConfig `koanf:"metrics"`
}

// ServiceConfig identifies the service in exported resources.
type ServiceConfig struct {
	Name    string `koanf:"name"`
	Version string `koanf:"version"`
}

// TraceConfig configures span export.
type TraceConfig struct {
	Enabled      *bool             `koanf:"enabled"`
	Endpoint     string            `koanf:"endpoint"`
	Protocol     string            `koanf:"protocol"`
	Insecure     bool              `koanf:"insecure"`
	Headers      map[string]string `koanf:"headers"`
	SampleRate   *float64          `koanf:"sample_rate"`
	BatchTimeout time.Duration     `koanf:"batch_timeout"`
}

// MetricsConfig configures metric export. Protocol, Insecure and Headers
// fall back to the trace settings when left empty.
type MetricsConfig struct {
	Enabled  *bool             `koanf:"enabled"`
	Endpoint string            `koanf:"endpoint"`
	Protocol string            `koanf:"protocol"`
	Insecure *bool             `koanf:"insecure"`
	Headers  map[string]string `koanf:"headers"`
	Interval time.Duration     `koanf:"interval"`
}

// ApplyDefaults fills zero values in place.
func (c *Config) ApplyDefaults() {
	if c.Service.Version == "" {
		c.Service.Version = "unknown"
	}
	if c.Environment == "" {
		c.Environment = EnvironmentDevelopment
	}

	c.applyTraceDefaults()
	c.applyMetricsDefaults()
}

func (c *Config) applyTraceDefaults() {
	if c.Trace.Endpoint == "" {
		c.Trace.Endpoint = EndpointStdout
	}
	if c.Enabled && c.Trace.Enabled == nil {
		c.Trace.Enabled = BoolPtr(true)
	}
	if c.Trace.Protocol == "" {
		c.Trace.Protocol = ProtocolHTTP
	}
	if c.Trace.Endpoint == EndpointStdout {
		c.Trace.Insecure = true
	}
	if c.Trace.SampleRate == nil {
		c.Trace.SampleRate = Float64Ptr(1.0)
	}
	if c.Trace.BatchTimeout == 0 {
		if c.Environment == EnvironmentDevelopment || c.Trace.Endpoint == EndpointStdout {
			c.Trace.BatchTimeout = devBatchTimeout
		} else {
			c.Trace.BatchTimeout = defaultBatchTimeout
		}
	}
}

func (c *Config) applyMetricsDefaults() {
	if c.Metrics.Endpoint == "" {
		c.Metrics.Endpoint = EndpointStdout
	}
	if c.Enabled && c.Metrics.Enabled == nil {
		c.Metrics.Enabled = BoolPtr(true)
	}
	if c.Metrics.Protocol == "" {
		c.Metrics.Protocol = c.Trace.Protocol
	}
	if c.Metrics.Insecure == nil {
		c.Metrics.Insecure = BoolPtr(c.Trace.Insecure)
	}
	if c.Metrics.Headers == nil && c.Trace.Headers != nil {
		c.Metrics.Headers = cloneHeaderMap(c.Trace.Headers)
	}
	if c.Metrics.Interval == 0 {
		c.Metrics.Interval = defaultMetricsInterval
	}
}

// Validate checks a defaulted configuration. A disabled configuration is always valid.
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if !c.Enabled {
		return nil
	}
	if c.Service.Name == "" {
		return ErrMissingServiceName
	}

	if rate := c.Trace.SampleRate; rate != nil && (*rate < 0 || *rate > 1) {
		return fmt.Errorf("%w: got %v", ErrInvalidSampleRate, *rate)
	}

	if err := validateExporter("trace", c.Trace.Endpoint, c.Trace.Protocol); err != nil {
		return err
	}
	if err := validateExporter("metrics", c.Metrics.Endpoint, c.Metrics.Protocol); err != nil {
		return err
	}

	if c.Metrics.Interval < 0 {
		return fmt.Errorf("%w: metrics interval %v", ErrInvalidInterval, c.Metrics.Interval)
	}
	return nil
}

func validateExporter(signal, endpoint, protocol string) error {
	if endpoint == EndpointStdout {
		return nil
	}

	switch protocol {
	case ProtocolHTTP, ProtocolGRPC:
	default:
		return fmt.Errorf("%s protocol '%s': %w", signal, protocol, ErrInvalidProtocol)
	}

	return validateEndpointFormat(endpoint, protocol)
}

// validateEndpointFormat rejects gRPC endpoints carrying a URL scheme.
// HTTP endpoints may be either host:port or a full URL.
func validateEndpointFormat(endpoint, protocol string) error {
	if protocol == ProtocolGRPC && hasURLScheme(endpoint) {
		return fmt.Errorf("%w: grpc endpoint %q must use host:port form", ErrInvalidEndpointFormat, endpoint)
	}
	if endpoint == "" {
		return fmt.Errorf("%w: endpoint is empty", ErrInvalidEndpointFormat)
	}
	return nil
}

func hasURLScheme(endpoint string) bool {
	return strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://")
}
