// Package openlibrary is a rate-limited client for the Open Library JSON API.
package openlibrary

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/listenupapp/stagehand/internal/metadata"
	"github.com/listenupapp/stagehand/internal/ratelimit"
)

const (
	// Open Library asks clients to stay well under 100 requests per 5 minutes
	// per IP without an identifying User-Agent.
	defaultRPS   = 5.0
	defaultBurst = 10

	defaultBaseURL = "https://openlibrary.org"
	defaultTimeout = 10 * time.Second

	defaultSearchLimit = 20
	maxSearchLimit     = 100

	// Merged records point at their survivor; one hop is all Open Library
	// ever produces in practice.
	maxRedirects = 1

	maxBodyBytes = 4 << 20

	userAgent = "stagehand/1.0 (+https://github.com/listenupapp/stagehand)"
)

// Options configures a Client. Zero values take defaults.
type Options struct {
	BaseURL string
	Timeout time.Duration
	RPS     float64
	Burst   int
}

// Observer receives one call per upstream request with the operation name
// and a coarse status label.
type Observer func(op, status string)

// Client is a rate-limited Open Library client.
type Client struct {
	http    *http.Client
	limiter *ratelimit.KeyedRateLimiter
	logger  *slog.Logger
	baseURL *url.URL
	observe Observer
}

var _ metadata.Catalog = (*Client)(nil)

// New creates a new Open Library client.
func New(opts Options, logger *slog.Logger) (*Client, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.RPS <= 0 {
		opts.RPS = defaultRPS
	}
	if opts.Burst <= 0 {
		opts.Burst = defaultBurst
	}

	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", opts.BaseURL)
	}

	return &Client{
		http:    &http.Client{Timeout: opts.Timeout},
		limiter: ratelimit.New(opts.RPS, opts.Burst),
		logger:  logger,
		baseURL: base,
	}, nil
}

// SetObserver installs a request observer. Call before first use.
func (c *Client) SetObserver(fn Observer) {
	c.observe = fn
}

// Close releases resources held by the client.
func (c *Client) Close() {
	c.limiter.Stop()
}

// get performs a rate-limited GET and returns the body of a 200 response.
func (c *Client) get(ctx context.Context, op, path string, query url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx, c.baseURL.Host); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	c.logger.Debug("openlibrary request", "op", op, "path", path)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.record(op, "error")
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		c.record(op, "error")
		return nil, fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug("openlibrary response",
		"op", op,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	switch {
	case resp.StatusCode == http.StatusOK:
		c.record(op, "ok")
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		c.record(op, "not_found")
		return nil, ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		c.record(op, "rate_limited")
		return nil, ErrRateLimited
	case resp.StatusCode >= 500:
		c.record(op, "server_error")
		return nil, ErrServer
	default:
		c.record(op, "unexpected")
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
}

func (c *Client) record(op, status string) {
	if c.observe != nil {
		c.observe(op, status)
	}
}

// lastSegment returns "OL1W" from "/works/OL1W".
func lastSegment(key string) string {
	if i := strings.LastIndexByte(key, '/'); i >= 0 {
		return key[i+1:]
	}
	return key
}
