package httpclient

import (
	"context"
	"math/rand/v2"
	nethttp "net/http"
	"time"

	"github.com/gaborage/syncbridge/trace"
)

// MaxBackoff caps every retry delay
const MaxBackoff = 30 * time.Second

// retryableCodes are the transient network codes worth another attempt
var retryableCodes = map[string]struct{}{
	CodeConnReset:      {},
	CodeNotFound:       {},
	CodeConnRefused:    {},
	CodeTimedOut:       {},
	CodeSocketTimedOut: {},
}

// IsRetryable reports whether err is a transient network failure, a 5xx
// response or a 429 response.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := retryableCodes[CodeOf(err)]; ok {
		return true
	}
	status := StatusCodeOf(err)
	return status == nethttp.StatusTooManyRequests || (status >= 500 && status < 600)
}

// Backoff returns the delay before attempt (1-indexed, the first retry is 2):
// base * 2^(attempt-1) + jitter, capped at MaxBackoff.
func Backoff(attempt int, base, jitter time.Duration) time.Duration {
	d := max(base, 0)
	for i := 1; i < attempt && d < MaxBackoff; i++ {
		d *= 2
	}
	d += max(jitter, 0)
	if d > MaxBackoff || d < 0 {
		return MaxBackoff
	}
	return d
}

func (c *client) jitter() time.Duration {
	if c.config.MaxJitter <= 0 {
		return 0
	}
	return rand.N(c.config.MaxJitter)
}

// sleep waits for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// execute runs up to maxRetries+1 attempts of d and wraps the last failure
// in an APIError.
func (c *client) execute(ctx context.Context, d *descriptor, maxRetries int) (*Response, ClientError) {
	ctx, requestID := trace.EnsureRequestID(ctx)
	summary := d.summary()
	start := time.Now()

	var lastErr ClientError
	attempts := 0
	for attempt := 1; attempt <= maxRetries+1; attempt++ {
		if attempt > 1 {
			delay := Backoff(attempt, c.config.RetryDelay, c.jitter())
			c.logRetry(summary, requestID, attempt, delay, lastErr)
			if err := sleep(ctx, delay); err != nil {
				lastErr = NewNetworkError("retry wait canceled by caller", CodeCanceled, summary, err)
				break
			}
		}

		attempts = attempt
		attemptStart := time.Now()
		resp, err := c.attempt(ctx, d, requestID, start, attempt)
		c.record(ctx, d, attempt, err == nil, time.Since(attemptStart))
		if err == nil {
			return resp, nil
		}

		lastErr = err
		if !IsRetryable(err) {
			break
		}
	}

	c.logFailure(summary, requestID, attempts, lastErr)
	return nil, NewAPIError(lastErr, summary, attempts)
}
