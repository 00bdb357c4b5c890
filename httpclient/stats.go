package httpclient

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/gaborage/syncbridge/logger"
)

const (
	meterName = "github.com/gaborage/syncbridge/httpclient"

	metricRequestsTotal      = "httpclient.requests.total"
	metricRequestsSuccessful = "httpclient.requests.successful"
	metricRequestsFailed     = "httpclient.requests.failed"
	metricRequestsRetried    = "httpclient.requests.retried"
	metricRequestDuration    = "httpclient.request.duration"

	attrHTTPRequestMethod = "http.request.method"
	attrServerAddress     = "server.address"
)

// statsCounter holds the per-instance attempt counters
type statsCounter struct {
	mu   sync.Mutex
	snap Snapshot
}

func (s *statsCounter) record(attempt int, success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snap.TotalRequests++
	if attempt > 1 {
		s.snap.RetriedRequests++
	}
	if success {
		s.snap.SuccessfulRequests++
	} else {
		s.snap.FailedRequests++
	}
}

func (s *statsCounter) snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func (s *statsCounter) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = Snapshot{}
}

// clientMetrics mirrors statsCounter into OpenTelemetry instruments.
// Instruments that failed to initialize are nil and skipped.
type clientMetrics struct {
	total      metric.Int64Counter
	successful metric.Int64Counter
	failed     metric.Int64Counter
	retried    metric.Int64Counter
	duration   metric.Float64Histogram
}

func newClientMetrics(mp metric.MeterProvider, log logger.Logger) *clientMetrics {
	meter := mp.Meter(meterName)
	m := &clientMetrics{}

	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit("{request}"))
		if err != nil {
			log.Warn().Err(err).Str("metric", name).Msg("Failed to initialize HTTP client metric")
			return nil
		}
		return c
	}
	m.total = counter(metricRequestsTotal, "Outbound HTTP attempts, including retries")
	m.successful = counter(metricRequestsSuccessful, "Outbound HTTP attempts that succeeded")
	m.failed = counter(metricRequestsFailed, "Outbound HTTP attempts that failed")
	m.retried = counter(metricRequestsRetried, "Outbound HTTP attempts beyond the first of a call")

	h, err := meter.Float64Histogram(
		metricRequestDuration,
		metric.WithDescription("Duration of outbound HTTP attempts"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		log.Warn().Err(err).Str("metric", metricRequestDuration).Msg("Failed to initialize HTTP client metric")
	}
	m.duration = h
	return m
}

func (m *clientMetrics) record(ctx context.Context, attrs []attribute.KeyValue, attempt int, success bool, elapsed time.Duration) {
	opt := metric.WithAttributes(attrs...)
	add := func(c metric.Int64Counter) {
		if c != nil {
			c.Add(ctx, 1, opt)
		}
	}

	add(m.total)
	if attempt > 1 {
		add(m.retried)
	}
	if success {
		add(m.successful)
	} else {
		add(m.failed)
	}
	if m.duration != nil {
		m.duration.Record(ctx, float64(elapsed)/float64(time.Millisecond), opt)
	}
}

// record updates both the snapshot counters and the otel instruments for one attempt
func (c *client) record(ctx context.Context, d *descriptor, attempt int, success bool, elapsed time.Duration) {
	c.stats.record(attempt, success)
	if c.metrics != nil {
		c.metrics.record(ctx, []attribute.KeyValue{
			attribute.String(attrHTTPRequestMethod, d.method),
			attribute.String(attrServerAddress, d.url.Hostname()),
		}, attempt, success, elapsed)
	}
}
