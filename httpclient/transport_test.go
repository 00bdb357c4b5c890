package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	nethttp "net/http"
	"os"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	oteltrace "go.opentelemetry.io/otel/trace"

	obstest "github.com/gaborage/syncbridge/observability/testing"
)

type timeoutNetError struct{}

func (timeoutNetError) Error() string   { return "i/o timeout" }
func (timeoutNetError) Timeout() bool   { return true }
func (timeoutNetError) Temporary() bool { return true }

func opError(errno syscall.Errno) error {
	return &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", errno)}
}

func TestNetworkErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"connection reset", opError(syscall.ECONNRESET), CodeConnReset},
		{"broken pipe", opError(syscall.EPIPE), CodeConnReset},
		{"eof", fmt.Errorf("read: %w", io.EOF), CodeConnReset},
		{"unexpected eof", io.ErrUnexpectedEOF, CodeConnReset},
		{"connection refused", opError(syscall.ECONNREFUSED), CodeConnRefused},
		{"syscall timeout", opError(syscall.ETIMEDOUT), CodeTimedOut},
		{"dns not found", &net.DNSError{Err: "no such host", Name: "budget.invalid", IsNotFound: true}, CodeNotFound},
		{"dns timeout", &net.DNSError{Err: "timeout", Name: "budget.invalid", IsTimeout: true}, CodeSocketTimedOut},
		{"generic net timeout", &net.OpError{Op: "read", Err: timeoutNetError{}}, CodeSocketTimedOut},
		{"unknown", errors.New("tls: bad certificate"), CodeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, networkErrorCode(tt.err))
		})
	}
}

func TestClassifyTransportError(t *testing.T) {
	cause := errors.New("boom")

	t.Run("caller cancellation wins", func(t *testing.T) {
		parent, cancel := context.WithCancel(context.Background())
		cancel()
		err := classifyTransportError(parent, parent, cause, time.Second, testSummary)
		assert.Equal(t, NetworkError, err.Type())
		assert.Equal(t, CodeCanceled, CodeOf(err))
	})

	t.Run("attempt deadline is a timeout", func(t *testing.T) {
		attemptCtx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
		defer cancel()
		<-attemptCtx.Done()
		err := classifyTransportError(context.Background(), attemptCtx, cause, 5*time.Second, testSummary)
		assert.Equal(t, TimeoutError, err.Type())
		assert.Equal(t, CodeTimedOut, CodeOf(err))
		assert.ErrorIs(t, err, cause)
	})

	t.Run("other failures are network errors", func(t *testing.T) {
		err := classifyTransportError(context.Background(), context.Background(), opError(syscall.ECONNREFUSED), time.Second, testSummary)
		assert.Equal(t, NetworkError, err.Type())
		assert.Equal(t, CodeConnRefused, CodeOf(err))
		assert.Contains(t, err.Error(), testSummary.String())
	})
}

func okResponse(req *nethttp.Request, body string) *nethttp.Response {
	return &nethttp.Response{
		StatusCode: nethttp.StatusOK,
		Status:     "200 OK",
		Header:     nethttp.Header{},
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    req,
	}
}

func TestTransportFailuresAreRetried(t *testing.T) {
	var calls atomic.Int32
	rt := roundTripperFunc(func(req *nethttp.Request) (*nethttp.Response, error) {
		if calls.Add(1) == 1 {
			return nil, &net.OpError{Op: "read", Net: "tcp", Err: os.NewSyscallError("read", syscall.ECONNRESET)}
		}
		return okResponse(req, "OK"), nil
	})

	c := newTestBuilder(&fakeLogger{}, "http://budget.test").
		WithRetries(2, time.Millisecond).
		WithTransport(rt).
		Build()

	resp, err := c.Get(context.Background(), &Request{Path: "/ping"})
	require.NoError(t, err)
	assert.Equal(t, "OK", resp.Data)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, int64(1), c.Stats().RetriedRequests)
}

func TestUnknownTransportFailureIsTerminal(t *testing.T) {
	var calls atomic.Int32
	rt := roundTripperFunc(func(_ *nethttp.Request) (*nethttp.Response, error) {
		calls.Add(1)
		return nil, errors.New("x509: certificate signed by unknown authority")
	})

	c := newTestBuilder(&fakeLogger{}, "https://ledger.test").
		WithRetries(3, time.Millisecond).
		WithTransport(rt).
		Build()

	_, err := c.Get(context.Background(), &Request{Path: "/"})
	require.Error(t, err)
	assert.Equal(t, CodeUnknown, CodeOf(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestConnectionRefused(t *testing.T) {
	lc := net.ListenConfig{}
	listener, err := lc.Listen(context.Background(), "tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping test: unable to bind IPv4 listener: %v", err)
	}
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	c := newTestBuilder(&fakeLogger{}, "http://"+addr).WithRetries(1, time.Millisecond).Build()
	_, err = c.Get(context.Background(), &Request{Path: "/"})

	require.Error(t, err)
	assert.True(t, IsErrorType(err, NetworkError))
	assert.Equal(t, CodeConnRefused, CodeOf(err))

	var api *apiError
	require.ErrorAs(t, err, &api)
	assert.Equal(t, 2, api.Attempts())
}

func TestInterceptors(t *testing.T) {
	t.Run("request interceptor mutates outgoing request", func(t *testing.T) {
		received := make(chan string, 1)
		server := newIPv4TestServer(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
			received <- r.Header.Get("X-Intercepted")
			w.WriteHeader(nethttp.StatusOK)
		}))

		c := newTestBuilder(&fakeLogger{}, server.URL).
			WithRequestInterceptor(func(_ context.Context, req *nethttp.Request) error {
				req.Header.Set("X-Intercepted", "true")
				return nil
			}).
			Build()

		_, err := c.Get(context.Background(), &Request{Path: "/"})
		require.NoError(t, err)
		assert.Equal(t, "true", <-received)
	})

	t.Run("request interceptor failure is terminal", func(t *testing.T) {
		var calls atomic.Int32
		server := newIPv4TestServer(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
			calls.Add(1)
			w.WriteHeader(nethttp.StatusOK)
		}))

		denied := errors.New("signing key unavailable")
		c := newTestBuilder(&fakeLogger{}, server.URL).
			WithRetries(3, time.Millisecond).
			WithRequestInterceptor(func(context.Context, *nethttp.Request) error { return denied }).
			Build()

		_, err := c.Get(context.Background(), &Request{Path: "/"})
		require.Error(t, err)
		assert.True(t, IsErrorType(err, InterceptorError))
		assert.ErrorIs(t, err, denied)
		assert.Equal(t, int32(0), calls.Load())
		assert.Equal(t, Snapshot{TotalRequests: 1, FailedRequests: 1}, c.Stats())
	})

	t.Run("response interceptor sees raw response", func(t *testing.T) {
		server := newIPv4TestServer(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
			w.Header().Set("X-Upstream", "ledger")
			w.WriteHeader(nethttp.StatusOK)
		}))

		var seen string
		c := newTestBuilder(&fakeLogger{}, server.URL).
			WithResponseInterceptor(func(_ context.Context, _ *nethttp.Request, resp *nethttp.Response) error {
				seen = resp.Header.Get("X-Upstream")
				return nil
			}).
			Build()

		_, err := c.Get(context.Background(), &Request{Path: "/"})
		require.NoError(t, err)
		assert.Equal(t, "ledger", seen)
	})

	t.Run("response interceptor failure", func(t *testing.T) {
		server := newIPv4TestServer(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
			w.WriteHeader(nethttp.StatusOK)
		}))

		c := newTestBuilder(&fakeLogger{}, server.URL).
			WithResponseInterceptor(func(context.Context, *nethttp.Request, *nethttp.Response) error {
				return errors.New("unexpected schema version")
			}).
			Build()

		_, err := c.Get(context.Background(), &Request{Path: "/"})
		require.Error(t, err)
		assert.True(t, IsErrorType(err, InterceptorError))
		assert.Contains(t, err.Error(), "stage: response")
	})
}

func TestRateLimiter(t *testing.T) {
	t.Run("spaces attempts", func(t *testing.T) {
		server := newIPv4TestServer(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
			w.WriteHeader(nethttp.StatusOK)
		}))

		c := newTestBuilder(&fakeLogger{}, server.URL).WithRateLimit(20, 1).Build()

		start := time.Now()
		for range 3 {
			_, err := c.Get(context.Background(), &Request{Path: "/"})
			require.NoError(t, err)
		}
		assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
	})

	t.Run("wait observes cancellation", func(t *testing.T) {
		c := newTestBuilder(&fakeLogger{}, "http://budget.test").WithRateLimit(1, 1).Build()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := c.Get(ctx, &Request{Path: "/"})
		require.Error(t, err)
		assert.Equal(t, CodeCanceled, CodeOf(err))
	})
}

func TestClientMetrics(t *testing.T) {
	handler, _ := flakyHandler(1, nethttp.StatusServiceUnavailable, "{}")
	server := newIPv4TestServer(t, handler)

	mp := obstest.NewTestMeterProvider()
	defer mp.Shutdown(context.Background())

	c := newTestBuilder(&fakeLogger{}, server.URL).
		WithRetries(2, time.Millisecond).
		WithMeterProvider(mp).
		Build()

	_, err := c.Post(context.Background(), &Request{Path: "/transactions", Body: map[string]string{"memo": "x"}})
	require.NoError(t, err)

	rm := mp.Collect(t)
	obstest.AssertMetricValue(t, rm, metricRequestsTotal, 2)
	obstest.AssertMetricValue(t, rm, metricRequestsSuccessful, 1)
	obstest.AssertMetricValue(t, rm, metricRequestsFailed, 1)
	obstest.AssertMetricValue(t, rm, metricRequestsRetried, 1)
	obstest.AssertHistogramCount(t, rm, metricRequestDuration, 2)
	assert.True(t, obstest.HasAttribute(rm, metricRequestsTotal, attrHTTPRequestMethod, "POST"))
	assert.True(t, obstest.HasAttribute(rm, metricRequestsTotal, attrServerAddress, "127.0.0.1"))
}

func TestClientSpansAndTraceContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	received := make(chan string, 1)
	server := newIPv4TestServer(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		received <- r.Header.Get("traceparent")
		w.WriteHeader(nethttp.StatusOK)
	}))

	tp := obstest.NewTestTraceProvider()
	defer tp.Shutdown(context.Background())

	c := newTestBuilder(&fakeLogger{}, server.URL).WithTracerProvider(tp).Build()
	_, err := c.Get(context.Background(), &Request{Path: "/"})
	require.NoError(t, err)

	assert.NotEmpty(t, <-received)
	assert.Len(t, tp.SpansByKind(oteltrace.SpanKindClient), 1)
}
