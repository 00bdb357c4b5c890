package observability

import (
	"testing"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testServiceName = "syncbridge-test"

func TestConfigValidateNilConfig(t *testing.T) {
	var cfg *Config
	assert.ErrorIs(t, cfg.Validate(), ErrNilConfig)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{
			name: "disabled is always valid",
			cfg:  Config{Enabled: false, Trace: TraceConfig{Protocol: "bogus"}},
		},
		{
			name:    "missing service name",
			cfg:     Config{Enabled: true},
			wantErr: ErrMissingServiceName,
		},
		{
			name: "sample rate above one",
			cfg: Config{
				Enabled: true,
				Service: ServiceConfig{Name: testServiceName},
				Trace:   TraceConfig{SampleRate: Float64Ptr(1.5)},
			},
			wantErr: ErrInvalidSampleRate,
		},
		{
			name: "unknown trace protocol",
			cfg: Config{
				Enabled: true,
				Service: ServiceConfig{Name: testServiceName},
				Trace:   TraceConfig{Endpoint: "collector:4318", Protocol: "udp"},
			},
			wantErr: ErrInvalidProtocol,
		},
		{
			name: "grpc endpoint with scheme",
			cfg: Config{
				Enabled: true,
				Service: ServiceConfig{Name: testServiceName},
				Trace:   TraceConfig{Endpoint: "http://collector:4317", Protocol: ProtocolGRPC},
			},
			wantErr: ErrInvalidEndpointFormat,
		},
		{
			name: "http endpoint with scheme",
			cfg: Config{
				Enabled: true,
				Service: ServiceConfig{Name: testServiceName},
				Trace:   TraceConfig{Endpoint: "https://collector:4318/v1/traces", Protocol: ProtocolHTTP},
				Metrics: MetricsConfig{Endpoint: EndpointStdout},
			},
		},
		{
			name: "negative metrics interval",
			cfg: Config{
				Enabled: true,
				Service: ServiceConfig{Name: testServiceName},
				Trace:   TraceConfig{Endpoint: EndpointStdout},
				Metrics: MetricsConfig{Endpoint: EndpointStdout, Interval: -time.Second},
			},
			wantErr: ErrInvalidInterval,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestConfigApplyDefaults(t *testing.T) {
	cfg := Config{Enabled: true, Service: ServiceConfig{Name: testServiceName}}
	cfg.ApplyDefaults()

	assert.Equal(t, "unknown", cfg.Service.Version)
	assert.Equal(t, EnvironmentDevelopment, cfg.Environment)
	assert.Equal(t, EndpointStdout, cfg.Trace.Endpoint)
	assert.Equal(t, ProtocolHTTP, cfg.Trace.Protocol)
	assert.True(t, cfg.Trace.Insecure)
	require.NotNil(t, cfg.Trace.Enabled)
	assert.True(t, *cfg.Trace.Enabled)
	require.NotNil(t, cfg.Trace.SampleRate)
	assert.InDelta(t, 1.0, *cfg.Trace.SampleRate, 0)
	assert.Equal(t, devBatchTimeout, cfg.Trace.BatchTimeout)

	assert.Equal(t, EndpointStdout, cfg.Metrics.Endpoint)
	require.NotNil(t, cfg.Metrics.Enabled)
	assert.True(t, *cfg.Metrics.Enabled)
	assert.Equal(t, ProtocolHTTP, cfg.Metrics.Protocol)
	assert.Equal(t, defaultMetricsInterval, cfg.Metrics.Interval)
}

func TestConfigApplyDefaultsDisabledLeavesSignalsOff(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	assert.Nil(t, cfg.Trace.Enabled)
	assert.Nil(t, cfg.Metrics.Enabled)
}

func TestConfigApplyDefaultsProductionBatchTimeout(t *testing.T) {
	cfg := Config{
		Enabled:     true,
		Environment: "production",
		Trace:       TraceConfig{Endpoint: "collector:4317", Protocol: ProtocolGRPC},
	}
	cfg.ApplyDefaults()

	assert.Equal(t, defaultBatchTimeout, cfg.Trace.BatchTimeout)
	assert.False(t, cfg.Trace.Insecure)
}

func TestMetricsInheritTraceTransportSettings(t *testing.T) {
	cfg := Config{
		Enabled: true,
		Trace: TraceConfig{
			Endpoint: "collector:4317",
			Protocol: ProtocolGRPC,
			Insecure: true,
			Headers:  map[string]string{"x-api-key": "secret"},
		},
		Metrics: MetricsConfig{Endpoint: "collector:4317"},
	}
	cfg.ApplyDefaults()

	assert.Equal(t, ProtocolGRPC, cfg.Metrics.Protocol)
	require.NotNil(t, cfg.Metrics.Insecure)
	assert.True(t, *cfg.Metrics.Insecure)
	assert.Equal(t, "secret", cfg.Metrics.Headers["x-api-key"])

	cfg.Metrics.Headers["x-api-key"] = "changed"
	assert.Equal(t, "secret", cfg.Trace.Headers["x-api-key"], "metrics headers must be a copy")
}

func TestCloneHeaderMap(t *testing.T) {
	assert.Nil(t, cloneHeaderMap(nil))

	src := map[string]string{"a": "1"}
	clone := cloneHeaderMap(src)
	clone["a"] = "2"
	assert.Equal(t, "1", src["a"])
}

func TestConfigUnmarshalFromYAML(t *testing.T) {
	yamlContent := `
observability:
  enabled: true
  service:
    name: bridge
    version: 1.2.3
  environment: staging
  trace:
    endpoint: collector:4317
    protocol: grpc
    insecure: true
    sample_rate: 0.25
    batch_timeout: 2s
    headers:
      x-tenant: acme
  metrics:
    endpoint: collector:4317
    interval: 30s
`
	k := koanf.New(".")
	require.NoError(t, k.Load(rawbytes.Provider([]byte(yamlContent)), yaml.Parser()))

	var cfg Config
	require.NoError(t, k.Unmarshal("observability", &cfg))

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "bridge", cfg.Service.Name)
	assert.Equal(t, "1.2.3", cfg.Service.Version)
	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, "collector:4317", cfg.Trace.Endpoint)
	assert.Equal(t, ProtocolGRPC, cfg.Trace.Protocol)
	assert.True(t, cfg.Trace.Insecure)
	require.NotNil(t, cfg.Trace.SampleRate)
	assert.InDelta(t, 0.25, *cfg.Trace.SampleRate, 1e-9)
	assert.Equal(t, 2*time.Second, cfg.Trace.BatchTimeout)
	assert.Equal(t, "acme", cfg.Trace.Headers["x-tenant"])
	assert.Equal(t, 30*time.Second, cfg.Metrics.Interval)

	cfg.ApplyDefaults()
	assert.NoError(t, cfg.Validate())
}
