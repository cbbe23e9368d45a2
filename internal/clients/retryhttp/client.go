// Package retryhttp wraps outbound calls to the upstream feeds with rate
// limiting, bounded retry, and a per-upstream circuit breaker.
package retryhttp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/earnboard/earnboard/internal/common"
)

const (
	DefaultTimeout    = 30 * time.Second
	DefaultRateLimit  = 10 // requests per second
	DefaultMaxRetries = 2

	initialBackoff = 500 * time.Millisecond
	maxBackoff     = 10 * time.Second
)

// APIError represents a non-2xx upstream response.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string

	// retryAfter carries a parsed Retry-After header, honored verbatim over
	// the computed backoff.
	retryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("upstream API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// Retryable reports whether the failure class is transient. Network errors,
// 5xx, and 429 are transient; any other 4xx indicates a malformed request and
// fails immediately.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if asAPIError(err, &apiErr) {
		return apiErr.StatusCode >= 500 || apiErr.StatusCode == http.StatusTooManyRequests
	}
	// Anything that never produced a response is a network-class failure.
	return true
}

func asAPIError(err error, target **APIError) bool {
	for err != nil {
		if e, ok := err.(*APIError); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Client is one upstream's HTTP transport.
type Client struct {
	name       string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *Breaker
	logger     *common.Logger
	maxRetries int
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithLogger sets the logger.
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithRateLimit sets the client-side request rate.
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithMaxRetries sets how many times a transient failure is retried.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithBreaker replaces the default circuit breaker.
func WithBreaker(b *Breaker) ClientOption {
	return func(c *Client) {
		if b != nil {
			c.breaker = b
		}
	}
}

// WithTransport replaces the underlying round tripper (used by tests).
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(c *Client) {
		c.httpClient.Transport = rt
	}
}

// NewClient creates a transport for one named upstream.
func NewClient(name string, opts ...ClientOption) *Client {
	c := &Client{
		name:       name,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		breaker:    NewBreaker(5, time.Minute, 30*time.Second, 2),
		logger:     common.NewSilentLogger(),
		maxRetries: DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get performs a rate-limited GET with bounded retry, returning the response
// body. While the breaker is open, calls fail fast without hitting the
// network.
func (c *Client) Get(ctx context.Context, reqURL string) ([]byte, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initialBackoff
	bo.MaxInterval = maxBackoff
	bo.Reset()

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.nextDelay(bo, lastErr)
			c.logger.Debug().
				Str("upstream", c.name).
				Int("attempt", attempt).
				Dur("backoff", delay).
				Msg("Retrying upstream call")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		body, err := c.do(ctx, reqURL)
		if err == nil {
			c.breaker.Success()
			return body, nil
		}
		lastErr = err

		if err == ErrCircuitOpen || ctx.Err() != nil {
			return nil, err
		}

		c.breaker.Failure()
		if !Retryable(err) {
			return nil, err
		}

		c.logger.Warn().
			Str("upstream", c.name).
			Str("circuit", c.breaker.State()).
			Int("attempt", attempt).
			Err(err).
			Msg("Transient upstream failure")
	}

	return nil, fmt.Errorf("retries exhausted for %s: %w", c.name, lastErr)
}

// nextDelay computes the next wait, honoring an upstream Retry-After verbatim
// over the computed backoff.
func (c *Client) nextDelay(bo backoff.BackOff, lastErr error) time.Duration {
	var apiErr *APIError
	if asAPIError(lastErr, &apiErr) && apiErr.retryAfter > 0 {
		return apiErr.retryAfter
	}
	d := bo.NextBackOff()
	if d == backoff.Stop {
		d = maxBackoff
	}
	return d
}

// do performs a single attempt.
func (c *Client) do(ctx context.Context, reqURL string) ([]byte, error) {
	if err := c.breaker.Allow(); err != nil {
		c.logger.Warn().Str("upstream", c.name).Msg("Circuit open, failing fast")
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   req.URL.Path,
		}
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
				apiErr.retryAfter = time.Duration(secs) * time.Second
			}
		}
		return nil, apiErr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}
