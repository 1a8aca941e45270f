package rest

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrUnauthorized marks failures that a fresh token may fix.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrDecode marks a response body that could not be decoded as negotiated.
	ErrDecode = errors.New("decode response")
)

// HTTPError is returned for every non-2xx response outside raw response mode.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("%s %s: http response status %d", e.Method, e.URL, e.StatusCode)
	if snippet := bodySnippet(e.Body); snippet != "" {
		msg += ": " + snippet
	}
	return msg
}

// AuthError reports a rejected or failed authentication against a token-guarded
// service. It matches ErrUnauthorized under errors.Is.
type AuthError struct {
	Service    string
	Reason     string
	StatusCode int
	Err        error
}

func (e *AuthError) Error() string {
	var b strings.Builder
	if e.Service != "" {
		b.WriteString(e.Service)
		b.WriteString(": ")
	}
	b.WriteString("unauthorized")
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *AuthError) Is(target error) bool { return target == ErrUnauthorized }

func (e *AuthError) Unwrap() error { return e.Err }

// StatusCode extracts the HTTP status recorded on err, or 0 when err carries none.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	var authErr *AuthError
	if errors.As(err, &authErr) && authErr.StatusCode != 0 {
		return authErr.StatusCode
	}
	return 0
}

// IsUnauthorized reports whether err is an authentication failure or a plain 401.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized) || StatusCode(err) == http.StatusUnauthorized
}

func bodySnippet(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	if len(body) > 512 {
		body = body[:512]
	}
	return strings.TrimSpace(string(body))
}
