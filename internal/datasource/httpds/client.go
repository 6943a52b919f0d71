// Package httpds fetches source archives over HTTP(S). The Client issues
// GETs with retry and exponential backoff; the Fetcher layers bounded
// redirect following and memory or disk buffering on top of it.
//
// The Client never follows redirects itself: 3xx responses are returned to
// the caller so the Fetcher can enforce its redirect budget.
package httpds

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/kzetxa/getmoneyclaude/internal/metrics"
)

// DefaultUserAgent identifies the importer to archive hosts.
const DefaultUserAgent = "getmoneyclaude-importer/1.0"

// Config configures the archive download client.
//
// Zero values are given defaults:
//   - Timeout:        30m
//   - MaxRetries:     3 (negative means none)
//   - InitialBackoff: 200ms
//   - MaxBackoff:     5s
//   - UserAgent:      DefaultUserAgent
type Config struct {
	// Timeout bounds one attempt including the body read, so it caps a
	// whole archive download.
	Timeout time.Duration

	// MaxRetries is the number of attempts after the first one.
	MaxRetries int

	// InitialBackoff is the wait before the first retry; each later retry
	// doubles it up to MaxBackoff. A Retry-After header within MaxBackoff
	// takes precedence.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool

	UserAgent string

	// Transport replaces the default *http.Transport, mainly for tests.
	Transport http.RoundTripper

	Log zerolog.Logger
}

// Client issues GET requests with retry on transient failures.
type Client struct {
	http           *http.Client
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	userAgent      string
	log            zerolog.Logger

	// wait blocks for a backoff; tests replace it to run without delay.
	wait func(ctx context.Context, d time.Duration) error
}

// NewClient constructs a Client from cfg.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Minute
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 200 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	transport := cfg.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // explicitly configurable
			},
		}
	}

	return &Client{
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		maxRetries:     cfg.MaxRetries,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		userAgent:      cfg.UserAgent,
		log:            cfg.Log,
		wait:           waitContext,
	}
}

// Get requests url, retrying transport failures, 429 and 5xx responses.
// Other responses, 3xx included, are returned as is and the caller must
// close the body. When retries run out the error is a *TransportError or a
// *DownloadError; context errors are returned unwrapped.
func (c *Client) Get(ctx context.Context, url string, headers http.Header) (*http.Response, error) {
	if url == "" {
		return nil, fmt.Errorf("httpds: url must not be empty")
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("httpds: build request: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		for k, vs := range headers {
			req.Header[k] = append([]string(nil), vs...)
		}

		retryAfter := time.Duration(0)
		reason := "transport"
		resp, err := c.http.Do(req)
		switch {
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			lastErr = &TransportError{URL: url, Err: err}
		case isRetryableStatus(resp.StatusCode):
			retryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
			reason = strconv.Itoa(resp.StatusCode)
			drain(resp)
			lastErr = &DownloadError{URL: url, StatusCode: resp.StatusCode}
		default:
			return resp, nil
		}

		if attempt >= c.maxRetries {
			return nil, lastErr
		}
		d := backoffDuration(c.initialBackoff, attempt, c.maxBackoff)
		if retryAfter > 0 && retryAfter <= c.maxBackoff {
			d = retryAfter
		}
		metrics.RecordFetchRetry(req.URL.Host, reason)
		c.log.Warn().Err(lastErr).Int("attempt", attempt+1).Dur("backoff", d).Msg("fetch: retrying")
		if err := c.wait(ctx, d); err != nil {
			return nil, err
		}
	}
}

// isRetryableStatus treats 429 and 5xx as transient.
func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || (code >= 500 && code <= 599)
}

// backoffDuration is initial * 2^attempt clamped to max.
func backoffDuration(initial time.Duration, attempt int, max time.Duration) time.Duration {
	if attempt > 30 {
		return max
	}
	d := initial << attempt
	if d > max || d <= 0 {
		return max
	}
	return d
}

// parseRetryAfter reads the delta-seconds form of Retry-After. Dates and
// garbage yield 0.
func parseRetryAfter(v string) time.Duration {
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}

// waitContext sleeps for d or until ctx ends.
func waitContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
