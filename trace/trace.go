// Package trace carries request identifiers through a context so every
// attempt of an outbound call, and the logs around it, share one id.
package trace

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// contextKey is the type for context keys to avoid collisions
type contextKey string

const (
	requestIDKey contextKey = "request_id"

	// HeaderXRequestID is the default header used to propagate request ids
	HeaderXRequestID = "X-Request-ID"
	// HeaderTraceParent is the W3C trace context header name
	HeaderTraceParent = "traceparent"
)

// WithRequestID stores a request id in the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request id stored in ctx, if any
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if id, ok := ctx.Value(requestIDKey).(string); ok && id != "" {
		return id, true
	}
	return "", false
}

// EnsureRequestID returns the id already associated with ctx, or a new one
// together with a context carrying it. An active otel span donates its trace
// id so logs and traces correlate.
func EnsureRequestID(ctx context.Context) (context.Context, string) {
	if id, ok := RequestIDFromContext(ctx); ok {
		return ctx, id
	}
	id := NewRequestID(ctx)
	return WithRequestID(ctx, id), id
}

// NewRequestID derives an id from the span in ctx, falling back to a random UUID.
func NewRequestID(ctx context.Context) string {
	if sc := oteltrace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return uuid.New().String()
}

// InjectRequestID sets header to id unless the header already has a value.
// An empty header name uses HeaderXRequestID. It reports whether the header was written.
func InjectRequestID(h http.Header, header, id string) bool {
	if header == "" {
		header = HeaderXRequestID
	}
	if id == "" || h.Get(header) != "" {
		return false
	}
	h.Set(header, id)
	return true
}
