// Package chat is a client for the chat REST API (channels, messages, thread
// replies, members) with cursor pagination and adaptive rate limiting.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	// DefaultBaseURL is the public API host.
	DefaultBaseURL = "https://api.clickup.com"
	// defaultMaxRetries is how many times a 429 response is retried.
	defaultMaxRetries = 2
	// defaultRetryAfter applies when a 429 carries no usable Retry-After.
	defaultRetryAfter = 5 * time.Second
	// maxThrottle caps the proactive sleep until the quota window resets.
	maxThrottle = 60 * time.Second
	// maxErrorBody bounds how much of an error response is kept.
	maxErrorBody = 512

	headerRemaining  = "X-RateLimit-Remaining"
	headerReset      = "X-RateLimit-Reset"
	headerRetryAfter = "Retry-After"
)

// Client issues authenticated calls against one API credential. All
// goroutines sharing a Client share its rate-limit state. Close releases the
// connection pool.
type Client struct {
	baseURL    *url.URL
	http       *http.Client
	transport  *http.Transport
	log        *zap.Logger
	maxRetries int
	sleep      func(ctx context.Context, d time.Duration) error
	now        func() time.Time

	mu          sync.Mutex
	pausedUntil time.Time // no request leaves before this instant
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API host (tests, proxies).
func WithBaseURL(raw string) Option {
	return func(c *Client) {
		if u, err := url.Parse(strings.TrimRight(raw, "/")); err == nil {
			c.baseURL = u
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithLogger sets the logger used for throttling and retry events.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithMaxRetries overrides the 429 retry budget.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithSleep replaces the context-aware sleep, letting tests skip real waits.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		if fn != nil {
			c.sleep = fn
		}
	}
}

// WithClock replaces time.Now.
func WithClock(fn func() time.Time) Option {
	return func(c *Client) {
		if fn != nil {
			c.now = fn
		}
	}
}

// New builds a client that authenticates every request with tokens from ts.
func New(ts oauth2.TokenSource, opts ...Option) (*Client, error) {
	if ts == nil {
		return nil, &ConfigurationError{Reason: "api token is required"}
	}
	base, _ := url.Parse(DefaultBaseURL)
	tr := http.DefaultTransport.(*http.Transport).Clone()
	c := &Client{
		baseURL:   base,
		transport: tr,
		http: &http.Client{
			Timeout:   30 * time.Second,
			Transport: &tokenTransport{source: ts, base: tr},
		},
		log:        zap.NewNop(),
		maxRetries: defaultMaxRetries,
		sleep:      sleepContext,
		now:        time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// NewWithToken is New with a static access token.
func NewWithToken(token string, opts ...Option) (*Client, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, &ConfigurationError{Reason: "api token is required"}
	}
	return New(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}), opts...)
}

// tokenTransport sets the Authorization header to the bare access token.
// The API rejects the "Bearer" prefix oauth2.Transport would add.
type tokenTransport struct {
	source oauth2.TokenSource
	base   http.RoundTripper
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	tok, err := t.source.Token()
	if err != nil {
		if req.Body != nil {
			req.Body.Close()
		}
		return nil, fmt.Errorf("chat: token: %w", err)
	}
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", tok.AccessToken)
	return t.base.RoundTrip(r)
}

// Close releases idle connections held by the client.
func (c *Client) Close() error {
	c.transport.CloseIdleConnections()
	return nil
}

// Request performs one API call and returns the raw JSON body. A response
// without a body (204) yields nil. Rate limiting is handled here: near-empty
// quota pauses the client until the window resets, and 429 responses are
// retried up to the retry budget before ErrRateLimitExceeded is returned.
func (c *Client) Request(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("chat: encode %s body: %w", path, err)
		}
		payload = b
	}

	for attempt := 0; ; attempt++ {
		if err := c.waitForQuota(ctx); err != nil {
			return nil, err
		}

		resp, err := c.send(ctx, method, path, query, payload)
		if err != nil {
			return nil, err
		}
		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		c.observeQuota(resp.Header, path)
		if err := c.waitForQuota(ctx); err != nil {
			return nil, err
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			if attempt < c.maxRetries {
				delay := retryAfter(resp.Header, c.now())
				c.log.Warn("rate limited, retrying",
					zap.String("path", path),
					zap.Int("attempt", attempt+1),
					zap.Duration("sleep", delay))
				if err := c.sleep(ctx, delay); err != nil {
					return nil, err
				}
				continue
			}
			return nil, fmt.Errorf("chat: %s %s: %w", method, path, ErrRateLimitExceeded)
		}

		if readErr != nil {
			return nil, fmt.Errorf("chat: read %s response: %w", path, readErr)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &RequestError{
				StatusCode: resp.StatusCode,
				Method:     method,
				Path:       path,
				Body:       strings.TrimSpace(string(truncateBytes(data, maxErrorBody))),
			}
		}
		if len(bytes.TrimSpace(data)) == 0 {
			return nil, nil
		}
		return json.RawMessage(data), nil
	}
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, payload []byte) (*http.Response, error) {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var rdr io.Reader
	if payload != nil {
		rdr = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rdr)
	if err != nil {
		return nil, fmt.Errorf("chat: build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat: %s %s: %w", method, path, err)
	}
	return resp, nil
}

// observeQuota records a pause when the server reports at most one request
// left in the current window. The pause ends at the reset instant, capped.
func (c *Client) observeQuota(h http.Header, path string) {
	remaining, err := strconv.Atoi(strings.TrimSpace(h.Get(headerRemaining)))
	if err != nil || remaining > 1 {
		return
	}
	resetUnix, err := strconv.ParseInt(strings.TrimSpace(h.Get(headerReset)), 10, 64)
	if err != nil {
		return
	}
	now := c.now()
	wait := time.Unix(resetUnix, 0).Sub(now)
	if wait <= 0 {
		return
	}
	if wait > maxThrottle {
		wait = maxThrottle
	}

	c.mu.Lock()
	until := now.Add(wait)
	if until.After(c.pausedUntil) {
		c.pausedUntil = until
	}
	c.mu.Unlock()

	c.log.Warn("rate limit nearly exhausted, pausing",
		zap.String("path", path),
		zap.Int("remaining", remaining),
		zap.Duration("sleep", wait))
}

// waitForQuota blocks until any recorded pause has elapsed.
func (c *Client) waitForQuota(ctx context.Context) error {
	c.mu.Lock()
	until := c.pausedUntil
	c.mu.Unlock()
	if until.IsZero() {
		return nil
	}
	wait := until.Sub(c.now())
	if wait <= 0 {
		return nil
	}
	if err := c.sleep(ctx, wait); err != nil {
		return err
	}
	c.mu.Lock()
	if !c.pausedUntil.After(until) {
		c.pausedUntil = time.Time{}
	}
	c.mu.Unlock()
	return nil
}

func retryAfter(h http.Header, now time.Time) time.Duration {
	v := strings.TrimSpace(h.Get(headerRetryAfter))
	if v == "" {
		return defaultRetryAfter
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
		return 0
	}
	return defaultRetryAfter
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncateBytes(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}

// decode unmarshals a response body into v, naming the path on failure.
func decode(path string, data json.RawMessage, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("chat: decode %s: %w", path, err)
	}
	return nil
}
