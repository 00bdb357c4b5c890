// Package testing provides in-memory OpenTelemetry providers and assertion
// helpers for exercising syncbridge instrumentation in unit tests.
//
// Usage:
//
//	mp := NewTestMeterProvider()
//	defer mp.Shutdown(context.Background())
//
//	client := httpclient.NewBuilder(log).WithMeterProvider(mp).Build()
//	// ... issue requests ...
//
//	rm := mp.Collect(t)
//	AssertMetricValue(t, rm, "httpclient.requests.total", 3)
package testing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const metricNotFoundErrMsg = "metric %s not found"

// TestTraceProvider wraps the SDK TracerProvider and in-memory exporter for testing.
type TestTraceProvider struct {
	*sdktrace.TracerProvider
	Exporter *tracetest.InMemoryExporter
}

// NewTestTraceProvider creates a TracerProvider that exports spans synchronously to memory.
func NewTestTraceProvider() *TestTraceProvider {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
	)

	return &TestTraceProvider{
		TracerProvider: provider,
		Exporter:       exporter,
	}
}

// Spans returns the spans captured so far
func (tp *TestTraceProvider) Spans() tracetest.SpanStubs {
	return tp.Exporter.GetSpans()
}

// SpansByKind returns the captured spans of kind k
func (tp *TestTraceProvider) SpansByKind(k oteltrace.SpanKind) tracetest.SpanStubs {
	var out tracetest.SpanStubs
	for _, s := range tp.Exporter.GetSpans() {
		if s.SpanKind == k {
			out = append(out, s)
		}
	}
	return out
}

// TestMeterProvider wraps the SDK MeterProvider and manual reader for testing.
type TestMeterProvider struct {
	*sdkmetric.MeterProvider
	Reader *sdkmetric.ManualReader
}

// NewTestMeterProvider creates a MeterProvider whose metrics are collected on demand.
func NewTestMeterProvider() *TestMeterProvider {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
	)

	return &TestMeterProvider{
		MeterProvider: provider,
		Reader:        reader,
	}
}

// Collect reads all metrics from the provider and returns them as ResourceMetrics.
func (tmp *TestMeterProvider) Collect(t *testing.T) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	err := tmp.Reader.Collect(context.Background(), &rm)
	require.NoError(t, err, "failed to collect metrics")
	return rm
}

// FindMetric finds a metric by name in the ResourceMetrics. Returns nil if not found.
func FindMetric(rm metricdata.ResourceMetrics, metricName string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == metricName {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// SumValue adds up every data point of an int64 Sum metric across attribute sets.
func SumValue(rm metricdata.ResourceMetrics, metricName string) (int64, bool) {
	m := FindMetric(rm, metricName)
	if m == nil {
		return 0, false
	}
	data, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		return 0, false
	}
	var total int64
	for _, dp := range data.DataPoints {
		total += dp.Value
	}
	return total, true
}

// HistogramCount adds up the observation counts of a float64 Histogram metric.
func HistogramCount(rm metricdata.ResourceMetrics, metricName string) (uint64, bool) {
	m := FindMetric(rm, metricName)
	if m == nil {
		return 0, false
	}
	data, ok := m.Data.(metricdata.Histogram[float64])
	if !ok {
		return 0, false
	}
	var total uint64
	for _, dp := range data.DataPoints {
		total += dp.Count
	}
	return total, true
}

// AssertMetricValue asserts the summed value of an int64 counter
func AssertMetricValue(t *testing.T, rm metricdata.ResourceMetrics, metricName string, expected int64) {
	t.Helper()
	got, ok := SumValue(rm, metricName)
	require.True(t, ok, metricNotFoundErrMsg, metricName)
	assert.Equal(t, expected, got, "metric %s value mismatch", metricName)
}

// AssertMetricAbsent asserts that no metric with the given name was recorded
func AssertMetricAbsent(t *testing.T, rm metricdata.ResourceMetrics, metricName string) {
	t.Helper()
	assert.Nil(t, FindMetric(rm, metricName), "metric %s unexpectedly recorded", metricName)
}

// AssertHistogramCount asserts the number of observations of a histogram
func AssertHistogramCount(t *testing.T, rm metricdata.ResourceMetrics, metricName string, expected uint64) {
	t.Helper()
	got, ok := HistogramCount(rm, metricName)
	require.True(t, ok, metricNotFoundErrMsg, metricName)
	assert.Equal(t, expected, got, "metric %s count mismatch", metricName)
}

// HasAttribute reports whether any data point of the named int64 Sum carries key=value
func HasAttribute(rm metricdata.ResourceMetrics, metricName, key, value string) bool {
	m := FindMetric(rm, metricName)
	if m == nil {
		return false
	}
	data, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		return false
	}
	for _, dp := range data.DataPoints {
		if v, found := dp.Attributes.Value(attribute.Key(key)); found && v.AsString() == value {
			return true
		}
	}
	return false
}
