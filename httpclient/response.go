package httpclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// maxRawDetailChars bounds raw non-JSON bodies appended to HTTP error messages
const maxRawDetailChars = 200

// normalize classifies status >= 400 as an HTTPError and decodes success bodies.
func normalize(resp *Response, req RequestSummary) (*Response, ClientError) {
	if resp.StatusCode >= 400 {
		return nil, NewHTTPError(httpErrorMessage(resp.StatusCode, resp.Status, resp.Body), resp.StatusCode, resp.Body, req)
	}
	resp.Data = parseBody(resp.Body)
	return resp, nil
}

// httpErrorMessage builds "HTTP <status>: <text>" and appends the upstream's
// error or message field, or a short raw body when it is not JSON.
func httpErrorMessage(status int, text string, body []byte) string {
	msg := fmt.Sprintf("HTTP %d: %s", status, text)

	var payload any
	if err := json.Unmarshal(body, &payload); err == nil {
		obj, ok := payload.(map[string]any)
		if !ok {
			return msg
		}
		for _, key := range []string{"error", "message"} {
			if v, ok := obj[key]; ok && v != nil {
				return msg + " - " + detailString(v)
			}
		}
		return msg
	}

	if len(body) > 0 && utf8.RuneCount(body) < maxRawDetailChars {
		return msg + " - " + string(body)
	}
	return msg
}

func detailString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// parseBody returns the decoded JSON value of body, or its raw text
func parseBody(body []byte) any {
	if len(bytes.TrimSpace(body)) == 0 {
		return string(body)
	}
	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return string(body)
	}
	return data
}
