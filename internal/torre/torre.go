// Package torre is the HTTP client for the public Torre API, covering the
// two lookups the screening flow needs: candidate genome bios and job
// opportunities. Transient failures are retried and a circuit breaker stops
// hammering the API when it is down for longer.
package torre

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cmcp0/torreai-new-screening-process-approach/internal/resilience"
)

// DefaultBaseURL is the production Torre API endpoint.
const DefaultBaseURL = "https://torre.ai"

// maxResponseBytes caps how much of an upstream response body is read.
const maxResponseBytes = 4 << 20

// ErrNotFound is returned when the requested username or opportunity does not
// exist upstream (HTTP 404).
var ErrNotFound = errors.New("torre: not found")

// StatusError is returned for non-2xx upstream responses other than 404.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("torre: unexpected status %d", e.Code)
}

// Config holds tuning knobs for a [Client]. Zero-value fields are replaced
// with defaults.
type Config struct {
	// BaseURL is the API root. Default: [DefaultBaseURL].
	BaseURL string

	// Timeout bounds a single HTTP request. Default: 5s.
	Timeout time.Duration

	// Retries is how many times a failed request is retried. Default: 1.
	Retries int

	// RetryDelay is the backoff base between attempts. Default: 250ms.
	RetryDelay time.Duration

	// HTTPClient overrides the transport, mainly for tests. When set, its
	// own timeout applies.
	HTTPClient *http.Client
}

// Client talks to the Torre API. Safe for concurrent use.
type Client struct {
	baseURL    string
	retries    int
	retryDelay time.Duration
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
}

// NewClient creates a Client from cfg.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	} else if cfg.Retries == 0 {
		cfg.Retries = 1
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 250 * time.Millisecond
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		retries:    cfg.Retries,
		retryDelay: cfg.RetryDelay,
		httpClient: cfg.HTTPClient,
		breaker:    resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Name: "torre"}),
	}
}

// get fetches url with retry and breaker protection. A 404 resolves to
// [ErrNotFound] without consuming retries or tripping the breaker.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	var (
		body     []byte
		notFound bool
	)
	err := resilience.Retry(ctx, "torre get", c.retries+1, c.retryDelay, func(ctx context.Context) error {
		return c.breaker.Execute(func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return fmt.Errorf("torre: build request: %w", err)
			}
			req.Header.Set("Accept", "application/json")

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("torre: request: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusNotFound {
				notFound = true
				return nil
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return &StatusError{Code: resp.StatusCode}
			}

			b, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
			if err != nil {
				return fmt.Errorf("torre: read response: %w", err)
			}
			body = b
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if notFound {
		return nil, ErrNotFound
	}
	return body, nil
}
