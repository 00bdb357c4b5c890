package httpclient

import (
	"context"
	"encoding/json"
	nethttp "net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/gaborage/syncbridge/trace"
)

// HeaderXRequestID is the default header carrying the per-call request id
const HeaderXRequestID = trace.HeaderXRequestID

// Client defines the REST client interface for making HTTP requests
type Client interface {
	Get(ctx context.Context, req *Request) (*Response, error)
	Post(ctx context.Context, req *Request) (*Response, error)
	Put(ctx context.Context, req *Request) (*Response, error)
	Patch(ctx context.Context, req *Request) (*Response, error)
	Delete(ctx context.Context, req *Request) (*Response, error)
	Do(ctx context.Context, method string, req *Request) (*Response, error)

	// Stats returns a snapshot of the per-attempt counters
	Stats() Snapshot
	// ResetStats zeroes all counters
	ResetStats()
}

// QueryParam is a single query string entry. A nil Value drops the entry.
type QueryParam struct {
	Key   string
	Value any
}

// Request describes one logical call. Path is either an absolute http(s) URL
// or a path resolved against the client's base URL.
type Request struct {
	Path    string
	Query   []QueryParam
	Headers map[string]string
	// Body is sent verbatim when it is []byte, string or json.RawMessage and
	// JSON encoded otherwise.
	Body any
	// Timeout overrides the client timeout for each attempt of this call
	Timeout time.Duration
	// MaxRetries overrides the client retry budget for this call
	MaxRetries *int
}

// Retries is a convenience for setting Request.MaxRetries inline.
func Retries(n int) *int {
	return &n
}

// Response represents a normalized HTTP response with tracking information
type Response struct {
	StatusCode int
	Status     string
	Headers    nethttp.Header
	Body       []byte
	// Data holds the decoded JSON body, or the raw text when the body is not JSON
	Data  any
	Stats Stats
}

// Decode unmarshals the raw body into v.
func (r *Response) Decode(v any) error {
	return json.Unmarshal(r.Body, v)
}

// Stats contains request execution statistics for one call
type Stats struct {
	ElapsedTime time.Duration
	// CallCount is the number of attempts made for the call
	CallCount int64
}

// Snapshot is a read-only copy of a client's counters
type Snapshot struct {
	TotalRequests      int64
	SuccessfulRequests int64
	FailedRequests     int64
	RetriedRequests    int64
}

// RequestInterceptor is called before sending each attempt
type RequestInterceptor func(ctx context.Context, req *nethttp.Request) error

// ResponseInterceptor is called after receiving a response, before it is classified
type ResponseInterceptor func(ctx context.Context, req *nethttp.Request, resp *nethttp.Response) error

// DiagnosticsFunc reports whether requests to u get debug payload records
type DiagnosticsFunc func(u *url.URL) bool

// Config holds the REST client configuration
type Config struct {
	BaseURL              string
	Timeout              time.Duration
	MaxRetries           int
	RetryDelay           time.Duration
	MaxJitter            time.Duration
	DefaultHeaders       map[string]string
	RequestInterceptors  []RequestInterceptor
	ResponseInterceptors []ResponseInterceptor
	// LogPayloads enables debug-level logging of headers and body payloads for every host
	LogPayloads bool
	// Diagnostics enables payload logging for selected targets
	Diagnostics DiagnosticsFunc
	// MaxPayloadLogBytes caps the number of body bytes logged with payloads
	MaxPayloadLogBytes int
	// RequestIDHeader names the header carrying the request id (default: X-Request-ID)
	RequestIDHeader string
	// RateLimit is the sustained attempts per second; zero disables limiting
	RateLimit rate.Limit
	RateBurst int
}
