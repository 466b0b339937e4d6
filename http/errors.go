package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	bisonerrors "github.com/randalmurphal/emailbison/errors"
)

// IsRetryableStatus reports whether a response with code should be retried.
func IsRetryableStatus(code int) bool {
	switch {
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return true
	case code >= 500 && code <= 599:
		return true
	default:
		return false
	}
}

// statusError classifies a non-2xx response.
func statusError(resp *http.Response, raw []byte, m bisonerrors.Messenger) *bisonerrors.Error {
	body := decodeBody(raw)
	opt := bisonerrors.WithMessenger(m)

	switch code := resp.StatusCode; {
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return bisonerrors.NewAuthError(code, body, opt)
	case code == http.StatusTooManyRequests:
		return bisonerrors.NewRateLimitError(resp.Header.Get("Retry-After"), body, opt)
	default:
		detail := detailFrom(body)
		if detail == "" {
			detail = http.StatusText(code)
		}
		if code >= 300 && code < 400 {
			if loc := resp.Header.Get("Location"); loc != "" {
				detail = fmt.Sprintf("unexpected redirect to %s", loc)
			}
		}
		return bisonerrors.NewAPIError(code, detail, body, opt)
	}
}

// decodeSuccess normalizes a 2xx body into an object.
func decodeSuccess(raw []byte) (map[string]any, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return map[string]any{}, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	if obj, ok := v.(map[string]any); ok {
		return obj, nil
	}
	return map[string]any{"data": v}, nil
}

// decodeBody decodes an error body, keeping non-JSON text as {"text": ...}.
func decodeBody(raw []byte) any {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return map[string]any{"text": string(raw)}
	}
	return v
}

// detailFrom extracts the server's message from common error shapes.
func detailFrom(body any) string {
	obj, ok := body.(map[string]any)
	if !ok {
		return ""
	}
	for _, key := range []string{"message", "error"} {
		switch v := obj[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case map[string]any:
			if msg, ok := v["message"].(string); ok && msg != "" {
				return msg
			}
		}
	}
	return ""
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
