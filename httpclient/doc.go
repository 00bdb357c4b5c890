// Package httpclient is the resilient HTTP client shared by every upstream
// integration: request building, a bounded retry loop with exponential
// backoff, error classification and response normalization.
//
// Outcome contract
//   - Every call returns either a *Response or an error of kind APIError.
//   - APIError wraps the last classified error (network, timeout, http,
//     validation or interceptor) and keeps its Code and StatusCode.
//
// Retries
//   - Controlled via Builder.WithRetries(maxRetries, retryDelay) and
//     overridable per call with Request.MaxRetries.
//   - Retried: network codes ECONNRESET, ENOTFOUND, ECONNREFUSED, ETIMEDOUT,
//     ESOCKETTIMEDOUT, attempt timeouts, HTTP 5xx and HTTP 429.
//   - Other 4xx, interceptor failures and caller cancellation end the call.
//
// Backoff Strategy
//   - Attempt n (the first retry is n=2) waits retryDelay * 2^(n-1) plus a
//     uniform jitter in [0, MaxJitter), capped at 30 seconds.
//   - The wait observes the caller's context.
//
// Notes
//   - The request descriptor is built once and replayed for each attempt.
//   - Stats are counted per attempt, never per call.
package httpclient
