package observability

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// noopProvider is returned when observability is disabled.
type noopProvider struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

func newNoopProvider() *noopProvider {
	return &noopProvider{
		tracerProvider: noop.NewTracerProvider(),
		meterProvider:  metricnoop.NewMeterProvider(),
	}
}

// NewNoopProvider returns a Provider whose tracer and meter discard everything.
func NewNoopProvider() Provider {
	return newNoopProvider()
}

func (n *noopProvider) TracerProvider() trace.TracerProvider {
	return n.tracerProvider
}

func (n *noopProvider) MeterProvider() metric.MeterProvider {
	return n.meterProvider
}

func (n *noopProvider) Shutdown(_ context.Context) error {
	return nil
}

func (n *noopProvider) ForceFlush(_ context.Context) error {
	return nil
}
