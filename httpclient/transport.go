package httpclient

import (
	"context"
	"errors"
	"io"
	"net"
	nethttp "net/http"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gaborage/syncbridge/logger"
	"github.com/gaborage/syncbridge/trace"
)

// attempt performs exactly one round trip for d and normalizes the outcome.
func (c *client) attempt(ctx context.Context, d *descriptor, requestID string, callStart time.Time, attemptNo int) (*Response, ClientError) {
	summary := d.summary()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, NewNetworkError("rate limit wait aborted", CodeCanceled, summary, err)
		}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	httpReq, err := d.newRequest(attemptCtx)
	if err != nil {
		return nil, NewValidationError(err.Error(), "request")
	}
	trace.InjectRequestID(httpReq.Header, c.config.RequestIDHeader, requestID)

	if err := c.runRequestInterceptors(ctx, httpReq); err != nil {
		return nil, NewInterceptorError("request interceptor failed", "request", err)
	}

	c.logRequest(httpReq, d.body, requestID)
	logger.IncrementHTTPCounter(ctx)
	start := time.Now()
	defer func() { logger.AddHTTPElapsed(ctx, time.Since(start).Nanoseconds()) }()

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(ctx, attemptCtx, err, d.timeout, summary)
	}
	defer httpResp.Body.Close()

	if err := c.runResponseInterceptors(ctx, httpReq, httpResp); err != nil {
		return nil, NewInterceptorError("response interceptor failed", "response", err)
	}

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, classifyTransportError(ctx, attemptCtx, err, d.timeout, summary)
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Status:     statusText(httpResp),
		Headers:    httpResp.Header,
		Body:       body,
		Stats: Stats{
			ElapsedTime: time.Since(callStart),
			CallCount:   int64(attemptNo),
		},
	}
	c.logResponse(httpReq, resp, requestID)
	return normalize(resp, summary)
}

// classifyTransportError turns a lower-level failure into a NetworkError or
// TimeoutError. Caller cancellation takes precedence over the attempt timer.
func classifyTransportError(parent, attemptCtx context.Context, err error, timeout time.Duration, req RequestSummary) ClientError {
	if parent.Err() != nil {
		return NewNetworkError("request canceled by caller", CodeCanceled, req, err)
	}
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return NewTimeoutError("request timed out", timeout, req, err)
	}
	return NewNetworkError("request execution failed", networkErrorCode(err), req, err)
}

func networkErrorCode(err error) string {
	switch {
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE),
		errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return CodeConnReset
	case errors.Is(err, syscall.ECONNREFUSED):
		return CodeConnRefused
	case errors.Is(err, syscall.ETIMEDOUT):
		return CodeTimedOut
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return CodeSocketTimedOut
		}
		return CodeNotFound
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CodeSocketTimedOut
	}
	return CodeUnknown
}

// statusText returns the reason phrase of resp, falling back to the standard text
func statusText(resp *nethttp.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = nethttp.StatusText(resp.StatusCode)
	}
	return text
}
