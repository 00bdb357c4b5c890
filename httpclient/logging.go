package httpclient

import (
	nethttp "net/http"
	"net/url"
	"strings"
	"time"
)

// payloadLoggingEnabled reports whether debug payload records are emitted for u
func (c *client) payloadLoggingEnabled(u *url.URL) bool {
	if c.config.LogPayloads {
		return true
	}
	return c.config.Diagnostics != nil && u != nil && c.config.Diagnostics(u)
}

func (c *client) maxPayloadBytes() int {
	if c.config.MaxPayloadLogBytes > 0 {
		return c.config.MaxPayloadLogBytes
	}
	return DefaultMaxPayloadLogBytes
}

// preview truncates body to the configured limit
func (c *client) preview(body []byte) (preview []byte, truncated string) {
	limit := c.maxPayloadBytes()
	if len(body) > limit {
		return body[:limit], "true"
	}
	return body, "false"
}

// flattenHeaders joins multi-valued headers so the log filter can mask them by name
func flattenHeaders(h nethttp.Header) map[string]string {
	out := make(map[string]string, len(h))
	for key, values := range h {
		out[key] = strings.Join(values, ", ")
	}
	return out
}

// logRequest logs the outgoing request
func (c *client) logRequest(req *nethttp.Request, body []byte, requestID string) {
	target := req.URL.Redacted()
	logEvent := c.logger.Info().
		Str("direction", "outbound").
		Str("method", req.Method).
		Str("url", target).
		Str("request_id", requestID)

	if len(req.Header) > 0 {
		logEvent = logEvent.Int("header_count", len(req.Header))
	}
	if len(body) > 0 {
		logEvent = logEvent.Int("body_size", len(body))
	}
	logEvent.Msg("REST client request")

	if !c.payloadLoggingEnabled(req.URL) {
		return
	}
	preview, truncated := c.preview(body)
	c.logger.Debug().
		Str("direction", "outbound").
		Str("method", req.Method).
		Str("url", target).
		Str("request_id", requestID).
		Interface("headers", flattenHeaders(req.Header)).
		Int("body_size", len(body)).
		Str("body_truncated", truncated).
		Bytes("body_preview", preview).
		Msg("REST client request")
}

// logResponse logs the incoming response
func (c *client) logResponse(req *nethttp.Request, resp *Response, requestID string) {
	logEvent := c.logger.Info().
		Str("direction", "inbound").
		Str("method", req.Method).
		Str("url", req.URL.Redacted()).
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Dur("elapsed", resp.Stats.ElapsedTime).
		Int64("call_count", resp.Stats.CallCount)

	if len(resp.Body) > 0 {
		logEvent = logEvent.Int("body_size", len(resp.Body))
	}
	logEvent.Msg("REST client response")

	if !c.payloadLoggingEnabled(req.URL) {
		return
	}
	preview, truncated := c.preview(resp.Body)
	c.logger.Debug().
		Str("direction", "inbound").
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Interface("headers", flattenHeaders(resp.Headers)).
		Int("body_size", len(resp.Body)).
		Str("body_truncated", truncated).
		Bytes("body_preview", preview).
		Msg("REST client response")
}

// logRetry records a scheduled retry
func (c *client) logRetry(req RequestSummary, requestID string, attempt int, delay time.Duration, cause error) {
	c.logger.Warn().
		Err(cause).
		Str("method", req.Method).
		Str("url", req.URL).
		Str("request_id", requestID).
		Int("attempt", attempt).
		Dur("delay", delay).
		Msg("REST client retrying request")
}

// logFailure records the terminal failure of a call
func (c *client) logFailure(req RequestSummary, requestID string, attempts int, cause error) {
	c.logger.Error().
		Err(cause).
		Str("method", req.Method).
		Str("url", req.URL).
		Str("request_id", requestID).
		Int("attempts", attempts).
		Str("code", CodeOf(cause)).
		Int("status", StatusCodeOf(cause)).
		Msg("REST client request failed")
}
