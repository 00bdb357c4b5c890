package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"reflect"
	"strings"
	"time"
)

const (
	headerContentType = "Content-Type"
	contentTypeJSON   = "application/json"
)

// descriptor is the fully resolved form of a Request. It is built once per
// call and replayed unchanged for every attempt.
type descriptor struct {
	method  string
	url     *url.URL
	header  nethttp.Header
	body    []byte
	timeout time.Duration
}

func (d *descriptor) summary() RequestSummary {
	return RequestSummary{Method: d.method, URL: d.url.Redacted()}
}

// newRequest creates the *http.Request for one attempt
func (d *descriptor) newRequest(ctx context.Context) (*nethttp.Request, error) {
	var body io.Reader = nethttp.NoBody
	if d.body != nil {
		body = bytes.NewReader(d.body)
	}
	req, err := nethttp.NewRequestWithContext(ctx, d.method, d.url.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header = d.header.Clone()
	return req, nil
}

// buildDescriptor resolves a Request against the client configuration. It
// performs no I/O.
func (c *client) buildDescriptor(method string, req *Request) (*descriptor, ClientError) {
	if req == nil {
		return nil, NewValidationError("request cannot be nil", "request")
	}
	if method == "" {
		return nil, NewValidationError("method cannot be empty", "method")
	}

	raw, verr := resolveURL(c.config.BaseURL, req.Path)
	if verr != nil {
		return nil, verr
	}
	raw = appendQuery(raw, req.Query)

	u, err := url.Parse(raw)
	if err != nil {
		return nil, NewValidationError(fmt.Sprintf("invalid URL: %v", err), "path")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, NewValidationError(fmt.Sprintf("unsupported scheme %q", u.Scheme), "path")
	}
	if u.Host == "" {
		return nil, NewValidationError("URL has no host", "path")
	}

	body, err := encodeBody(req.Body)
	if err != nil {
		return nil, NewValidationError(fmt.Sprintf("failed to encode body: %v", err), "body")
	}

	return &descriptor{
		method:  method,
		url:     u,
		header:  c.mergeHeaders(req.Headers, body != nil),
		body:    body,
		timeout: c.effectiveTimeout(req),
	}, nil
}

// mergeHeaders applies default headers, then per-call headers over them
func (c *client) mergeHeaders(callHeaders map[string]string, hasBody bool) nethttp.Header {
	h := make(nethttp.Header, len(c.config.DefaultHeaders)+len(callHeaders)+1)
	for key, value := range c.config.DefaultHeaders {
		h.Set(key, value)
	}
	for key, value := range callHeaders {
		h.Set(key, value)
	}
	if hasBody && h.Get(headerContentType) == "" {
		h.Set(headerContentType, contentTypeJSON)
	}
	return h
}

// isAbsoluteURL reports whether path starts with a scheme
func isAbsoluteURL(path string) bool {
	i := strings.Index(path, "://")
	return i > 0 && !strings.ContainsAny(path[:i], "/?#")
}

// resolveURL joins path onto base unless path is already absolute
func resolveURL(base, path string) (string, ClientError) {
	if isAbsoluteURL(path) {
		return path, nil
	}
	if base == "" {
		if path == "" {
			return "", NewValidationError("path cannot be empty", "path")
		}
		return "", NewValidationError("base URL is required for relative path "+path, "base_url")
	}
	if path == "" {
		return base, nil
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/"), nil
}

// EncodeQuery renders params in order, dropping nil values and
// percent-encoding keys and values (space becomes %20).
func EncodeQuery(params []QueryParam) string {
	var sb strings.Builder
	for _, p := range params {
		for _, v := range queryValues(p.Value) {
			if sb.Len() > 0 {
				sb.WriteByte('&')
			}
			sb.WriteString(escapeQuery(p.Key))
			sb.WriteByte('=')
			sb.WriteString(escapeQuery(v))
		}
	}
	return sb.String()
}

func appendQuery(raw string, params []QueryParam) string {
	q := EncodeQuery(params)
	if q == "" {
		return raw
	}
	if strings.Contains(raw, "?") {
		return raw + "&" + q
	}
	return raw + "?" + q
}

func escapeQuery(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// queryValues flattens a query value. Nil values yield nothing and slices
// yield one entry per element.
func queryValues(v any) []string {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map:
		if rv.IsNil() {
			return nil
		}
	}

	switch val := v.(type) {
	case string:
		return []string{val}
	case []byte:
		return []string{string(val)}
	case fmt.Stringer:
		return []string{val.String()}
	}

	switch rv.Kind() {
	case reflect.Pointer:
		return queryValues(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		out := make([]string, 0, rv.Len())
		for i := range rv.Len() {
			out = append(out, queryValues(rv.Index(i).Interface())...)
		}
		return out
	default:
		return []string{fmt.Sprint(v)}
	}
}

// encodeBody returns textual bodies unchanged and JSON encodes everything else
func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	case string:
		return []byte(b), nil
	default:
		return json.Marshal(b)
	}
}
