package logger

import (
	"context"
	"sync/atomic"
)

type contextKey string

const (
	// httpCounterKey tracks the number of outbound HTTP attempts made on behalf of a context
	httpCounterKey contextKey = "http_attempt_counter"
	// httpElapsedKey tracks total outbound HTTP time in nanoseconds for a context
	httpElapsedKey contextKey = "http_elapsed_nanos"
)

// WithHTTPCounter returns a context that accumulates outbound HTTP attempt
// counts and elapsed time. Clients record into it when present.
func WithHTTPCounter(ctx context.Context) context.Context {
	var counter, elapsed int64
	ctx = context.WithValue(ctx, httpCounterKey, &counter)
	return context.WithValue(ctx, httpElapsedKey, &elapsed)
}

// IncrementHTTPCounter increments the outbound HTTP attempt counter in the context
func IncrementHTTPCounter(ctx context.Context) {
	if counter, ok := ctx.Value(httpCounterKey).(*int64); ok && counter != nil {
		atomic.AddInt64(counter, 1)
	}
}

// GetHTTPCounter returns the outbound HTTP attempt count recorded in the context
func GetHTTPCounter(ctx context.Context) int64 {
	if counter, ok := ctx.Value(httpCounterKey).(*int64); ok && counter != nil {
		return atomic.LoadInt64(counter)
	}
	return 0
}

// AddHTTPElapsed adds elapsed nanoseconds to the context's outbound HTTP time
func AddHTTPElapsed(ctx context.Context, nanos int64) {
	if elapsed, ok := ctx.Value(httpElapsedKey).(*int64); ok && elapsed != nil {
		atomic.AddInt64(elapsed, nanos)
	}
}

// GetHTTPElapsed returns the outbound HTTP time in nanoseconds recorded in the context
func GetHTTPElapsed(ctx context.Context) int64 {
	if elapsed, ok := ctx.Value(httpElapsedKey).(*int64); ok && elapsed != nil {
		return atomic.LoadInt64(elapsed)
	}
	return 0
}
