package integrations

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const httpTimeout = 10 * time.Second

var (
	// ErrNotFound is returned when a resource doesn't exist on the backend.
	ErrNotFound = errors.New("resource not found")

	// ErrNetwork is returned for HTTP failures (timeouts, connection errors, 5xx responses).
	ErrNetwork = errors.New("network error")

	// ErrUnauthorized is returned when the API token is missing or invalid.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when the token may not perform the request.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict is returned when the request conflicts with the resource's state.
	ErrConflict = errors.New("conflict")

	// ErrRateLimited is returned when the backend throttles the client.
	ErrRateLimited = errors.New("rate limited")

	// ErrUnavailable is returned without contacting the backend while the
	// circuit breaker is open.
	ErrUnavailable = errors.New("backend unavailable")
)

// NewHTTPClient creates an HTTP client with a standard timeout for backend requests.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: httpTimeout}
}

// BearerHeaders returns the default headers for a token, or nil if token is empty.
func BearerHeaders(token string) map[string]string {
	h := map[string]string{"Accept": "application/json"}
	if token = strings.TrimSpace(token); token != "" {
		h["Authorization"] = "Bearer " + token
	}
	return h
}

// JoinURL appends path-escaped segments to base.
func JoinURL(base string, segments ...string) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(base, "/"))
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}

// URLEncode percent-encodes a string for use in URLs.
// This is a convenience wrapper around [url.QueryEscape].
func URLEncode(s string) string { return url.QueryEscape(s) }
