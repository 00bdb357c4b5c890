package httpclient

import (
	"context"
	nethttp "net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/gaborage/syncbridge/logger"
)

// client implements the Client interface
type client struct {
	httpClient *nethttp.Client
	logger     logger.Logger
	config     *Config
	limiter    *rate.Limiter
	stats      *statsCounter
	metrics    *clientMetrics
}

// Get performs a GET request
func (c *client) Get(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodGet, req)
}

// Post performs a POST request
func (c *client) Post(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodPost, req)
}

// Put performs a PUT request
func (c *client) Put(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodPut, req)
}

// Patch performs a PATCH request
func (c *client) Patch(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodPatch, req)
}

// Delete performs a DELETE request
func (c *client) Delete(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodDelete, req)
}

// Do performs an HTTP request with the specified method. Errors are always APIError.
func (c *client) Do(ctx context.Context, method string, req *Request) (*Response, error) {
	d, verr := c.buildDescriptor(method, req)
	if verr != nil {
		summary := RequestSummary{Method: method}
		if req != nil {
			summary.URL = req.Path
		}
		return nil, NewAPIError(verr, summary, 0)
	}

	resp, err := c.execute(ctx, d, c.effectiveRetries(req))
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Stats returns a snapshot of the client's counters
func (c *client) Stats() Snapshot {
	return c.stats.snapshot()
}

// ResetStats zeroes the client's counters
func (c *client) ResetStats() {
	c.stats.reset()
}

func (c *client) effectiveRetries(req *Request) int {
	n := c.config.MaxRetries
	if req.MaxRetries != nil {
		n = *req.MaxRetries
	}
	return max(n, 0)
}

func (c *client) effectiveTimeout(req *Request) time.Duration {
	if req.Timeout > 0 {
		return req.Timeout
	}
	if c.config.Timeout > 0 {
		return c.config.Timeout
	}
	return DefaultTimeout
}

// runRequestInterceptors executes all request interceptors
func (c *client) runRequestInterceptors(ctx context.Context, req *nethttp.Request) error {
	for _, interceptor := range c.config.RequestInterceptors {
		if err := interceptor(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

// runResponseInterceptors executes all response interceptors
func (c *client) runResponseInterceptors(ctx context.Context, req *nethttp.Request, resp *nethttp.Response) error {
	for _, interceptor := range c.config.ResponseInterceptors {
		if err := interceptor(ctx, req, resp); err != nil {
			return err
		}
	}
	return nil
}
