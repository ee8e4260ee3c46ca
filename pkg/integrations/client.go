package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/rootline/rootline/pkg/cache"
	"github.com/rootline/rootline/pkg/observability"
)

// Client provides shared HTTP functionality for backend API clients.
// It handles caching, retry logic, and common request headers.
//
// Requests pass through a circuit breaker that opens after
// [BreakerThreshold] consecutive transport failures or 5xx responses and
// fails fast with [ErrUnavailable] until [BreakerCooldown] has passed.
type Client struct {
	http      *http.Client
	cache     cache.Cache
	keyPrefix string
	ttl       time.Duration
	headers   map[string]string
	breaker   *gobreaker.CircuitBreaker
}

// Circuit breaker settings.
const (
	BreakerThreshold = 5
	BreakerCooldown  = 30 * time.Second
)

// NewClient creates a Client with the given cache and default headers.
// Cache keys are prefixed with keyPrefix and expire after ttl.
// Headers are applied to all requests made through this client.
// Pass nil for headers if no default headers are needed.
func NewClient(c cache.Cache, keyPrefix string, ttl time.Duration, headers map[string]string) *Client {
	if c == nil {
		c = cache.NewNullCache()
	}
	return &Client{
		http:      NewHTTPClient(),
		cache:     c,
		keyPrefix: keyPrefix,
		ttl:       ttl,
		headers:   headers,
		breaker:   newBreaker(keyPrefix),
	}
}

func newBreaker(name string) *gobreaker.CircuitBreaker {
	if name == "" {
		name = "backend"
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= BreakerThreshold
		},
		// Only transport failures and 5xx count. A 404 or a cancelled
		// request is not the backend failing.
		IsSuccessful: func(err error) bool {
			return err == nil || !cache.IsRetryable(err)
		},
	})
}

// BreakerState reports the circuit breaker state: "closed", "half-open" or "open".
func (c *Client) BreakerState() string { return c.breaker.State().String() }

// SetHTTPClient replaces the underlying HTTP client.
func (c *Client) SetHTTPClient(h *http.Client) { c.http = h }

// Cached retrieves a value from cache or executes fetch and caches the result.
// If refresh is true, the cache is bypassed and fetch is always called.
// The fetch function should populate v; on success, v is stored in the cache.
func (c *Client) Cached(ctx context.Context, key string, refresh bool, v any, fetch func() error) error {
	key = c.keyPrefix + key
	if !refresh {
		if data, ok, _ := c.cache.Get(ctx, key); ok && json.Unmarshal(data, v) == nil {
			observability.Cache().OnCacheHit(ctx, c.keyPrefix)
			return nil
		}
		observability.Cache().OnCacheMiss(ctx, c.keyPrefix)
	}
	if err := cache.RetryWithBackoff(ctx, fetch); err != nil {
		return err
	}
	if data, err := json.Marshal(v); err == nil {
		if c.cache.Set(ctx, key, data, c.ttl) == nil {
			observability.Cache().OnCacheSet(ctx, c.keyPrefix, len(data))
		}
	}
	return nil
}

// Get performs an HTTP GET request and JSON-decodes the response into v.
// It uses the client's default headers and handles retries automatically.
func (c *Client) Get(ctx context.Context, url string, v any) error {
	return c.GetWithHeaders(ctx, url, nil, v)
}

// GetWithHeaders performs an HTTP GET with additional headers merged with defaults.
// Request-specific headers override client defaults for the same key.
func (c *Client) GetWithHeaders(ctx context.Context, url string, headers map[string]string, v any) error {
	body, err := c.doRequest(ctx, http.MethodGet, url, nil, headers)
	if err != nil {
		return err
	}
	defer body.Close()
	return decode(body, v)
}

// PostJSON sends in as a JSON body and decodes the response into out.
// out may be nil when the response body is not needed.
func (c *Client) PostJSON(ctx context.Context, url string, in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	body, err := c.doRequest(ctx, http.MethodPost, url, bytes.NewReader(data),
		map[string]string{"Content-Type": "application/json"})
	if err != nil {
		return err
	}
	defer body.Close()
	return decode(body, out)
}

// PostFile uploads r as the multipart form field named field and decodes the
// JSON response into out.
func (c *Client) PostFile(ctx context.Context, url, field, filename string, r io.Reader, out any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return fmt.Errorf("read upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("finish form: %w", err)
	}

	body, err := c.doRequest(ctx, http.MethodPost, url, bytes.NewReader(buf.Bytes()),
		map[string]string{"Content-Type": mw.FormDataContentType()})
	if err != nil {
		return err
	}
	defer body.Close()
	return decode(body, out)
}

func decode(body io.Reader, v any) error {
	if v == nil {
		_, _ = io.Copy(io.Discard, body)
		return nil
	}
	if err := json.NewDecoder(body).Decode(v); err != nil && err != io.EOF {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, method, rawURL string, body io.Reader, headers map[string]string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	host, path := requestTarget(req.URL)
	observability.HTTP().OnRequest(ctx, method, host, path)
	start := time.Now()

	out, err := c.breaker.Execute(func() (any, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			observability.HTTP().OnError(ctx, method, host, path, err)
			// The caller gave up. Not retried, not a breaker failure.
			if cerr := ctx.Err(); cerr != nil {
				return nil, cerr
			}
			return nil, cache.Retryable(fmt.Errorf("%w: %w", ErrNetwork, err))
		}
		observability.HTTP().OnResponse(ctx, method, host, path, resp.StatusCode, time.Since(start))

		if err := checkStatus(resp.StatusCode); err != nil {
			resp.Body.Close()
			return nil, err
		}
		return resp.Body, nil
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, host, err)
	case err != nil:
		return nil, err
	}
	return out.(io.ReadCloser), nil
}

func requestTarget(u *url.URL) (host, path string) {
	if u == nil {
		return "", ""
	}
	return u.Host, u.Path
}

func checkStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	case code == http.StatusForbidden:
		return ErrForbidden
	case code == http.StatusConflict:
		return ErrConflict
	case code == http.StatusTooManyRequests:
		return cache.Retryable(fmt.Errorf("%w: status %d", ErrRateLimited, code))
	case code >= 500:
		return cache.Retryable(fmt.Errorf("%w: status %d", ErrNetwork, code))
	default:
		return fmt.Errorf("%w: status %d", ErrNetwork, code)
	}
}
