// Reelhub - Media Source Aggregation and Streaming Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelhub

/*
Package upstream is the outbound HTTP client source plugins use for lookups
against media servers.

Every upstream host gets its own circuit breaker (sony/gobreaker) and token
bucket (golang.org/x/time/rate), created lazily on first use. Responses are
classified into the plugin sentinel errors:

  - transport failure, 5xx, open breaker: plugin.ErrUnreachable
  - 401, 403: plugin.ErrUnauthorized
  - 404: plugin.ErrNotFound

Only transport failures and 5xx responses count against a breaker. A request
abandoned because the caller's context ended (a discovery deadline, a client
disconnect) is not held against the host.

The streaming proxy does not use this client: long-lived media streams have
no meaningful timeout and would distort breaker statistics.
*/
package upstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/reelhub/internal/config"
	"github.com/tomtom215/reelhub/internal/metrics"
	"github.com/tomtom215/reelhub/internal/plugin"
)

// maxErrorBody caps how much of an error response is read for diagnostics.
const maxErrorBody = 4 << 10

// Options configures a Client.
type Options struct {
	Timeout             time.Duration
	BreakerMaxRequests  uint32
	BreakerInterval     time.Duration
	BreakerTimeout      time.Duration
	BreakerMinRequests  uint32
	BreakerFailureRatio float64
	RatePerSecond       float64
	Burst               int

	// Transport overrides the HTTP transport. Nil uses http.DefaultTransport.
	Transport http.RoundTripper
}

// OptionsFromConfig maps the sources configuration onto client options.
func OptionsFromConfig(cfg *config.SourcesConfig) Options {
	return Options{
		Timeout:             cfg.RequestTimeout,
		BreakerMaxRequests:  cfg.BreakerMaxRequests,
		BreakerInterval:     cfg.BreakerInterval,
		BreakerTimeout:      cfg.BreakerTimeout,
		BreakerMinRequests:  cfg.BreakerMinRequests,
		BreakerFailureRatio: cfg.BreakerFailureRatio,
		RatePerSecond:       cfg.RateLimitPerSecond,
		Burst:               cfg.RateLimitBurst,
	}
}

// Client is safe for concurrent use.
type Client struct {
	http *http.Client
	opts Options

	mu    sync.Mutex
	hosts map[string]*hostGuard
}

type hostGuard struct {
	breaker *gobreaker.CircuitBreaker[*http.Response]
	limiter *rate.Limiter
}

// New creates a Client.
func New(opts Options) *Client {
	if opts.BreakerMaxRequests == 0 {
		opts.BreakerMaxRequests = 1
	}
	if opts.BreakerFailureRatio <= 0 {
		opts.BreakerFailureRatio = 0.6
	}
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = float64(rate.Inf)
	}
	if opts.Burst < 1 {
		opts.Burst = 1
	}

	return &Client{
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: opts.Transport,
		},
		opts:  opts,
		hosts: make(map[string]*hostGuard),
	}
}

// Request describes one JSON lookup.
type Request struct {
	Method string
	URL    string
	Query  url.Values
	Header http.Header

	// Body is JSON-encoded when non-nil.
	Body any
}

// StatusError is returned for unexpected non-2xx statuses that do not map
// onto a plugin sentinel.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected upstream status %d", e.StatusCode)
}

// DoJSON executes req and decodes a 2xx JSON response into out (which may be nil).
func (c *Client) DoJSON(ctx context.Context, req Request, out any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode upstream response: %w", err)
	}
	return nil
}

// Do executes req and returns the response for a 2xx status. The caller
// must close the body. Other statuses are mapped to errors and their body
// is closed.
func (c *Client) Do(ctx context.Context, req Request) (*http.Response, error) {
	httpReq, err := buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	host := httpReq.URL.Host
	guard := c.guard(host)

	waitStart := time.Now()
	if err := guard.limiter.Wait(ctx); err != nil {
		// Burst is at least 1, so a refusal without a done context means the
		// next token arrives after the deadline.
		cause := ctx.Err()
		if cause == nil {
			cause = context.DeadlineExceeded
		}
		return nil, fmt.Errorf("rate limit wait for %s: %w: %w", host, cause, err)
	}
	metrics.UpstreamRateLimitWait.WithLabelValues(host).Observe(time.Since(waitStart).Seconds())

	resp, err := guard.breaker.Execute(func() (*http.Response, error) {
		resp, err := c.http.Do(httpReq)
		if err != nil {
			metrics.RecordUpstreamRequest(host, 0)
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %w", errCallerGone, ctx.Err())
			}
			return nil, err
		}
		metrics.RecordUpstreamRequest(host, resp.StatusCode)
		if resp.StatusCode >= http.StatusInternalServerError {
			body := readErrorBody(resp)
			return nil, &StatusError{StatusCode: resp.StatusCode, Body: body}
		}
		return resp, nil
	})
	recordBreakerResult(guard.breaker, err)

	if err != nil {
		return nil, classifyError(host, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		_ = readErrorBody(resp)
		return nil, fmt.Errorf("%s responded %d: %w", host, resp.StatusCode, plugin.ErrUnauthorized)
	case resp.StatusCode == http.StatusNotFound:
		_ = readErrorBody(resp)
		return nil, fmt.Errorf("%s responded 404: %w", host, plugin.ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body := readErrorBody(resp)
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: body}
	}
	return resp, nil
}

func classifyError(host string, err error) error {
	var statusErr *StatusError
	switch {
	case errors.Is(err, errCallerGone):
		// Surface the caller's context error (Canceled or DeadlineExceeded).
		return fmt.Errorf("request to %s abandoned: %w", host, err)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return fmt.Errorf("%s circuit %v: %w", host, err, plugin.ErrUnreachable)
	case errors.As(err, &statusErr):
		return fmt.Errorf("%s responded %d: %w", host, statusErr.StatusCode, plugin.ErrUnreachable)
	default:
		return fmt.Errorf("%s: %w: %w", host, plugin.ErrUnreachable, err)
	}
}

func buildRequest(ctx context.Context, req Request) (*http.Request, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	u, err := url.Parse(req.URL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: bad upstream url %q", plugin.ErrInvalidSettings, req.URL)
	}
	if len(req.Query) > 0 {
		q := u.Query()
		for k, vs := range req.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	var body io.Reader = http.NoBody
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode upstream request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	return httpReq, nil
}

func readErrorBody(resp *http.Response) string {
	defer resp.Body.Close()
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return string(data)
}

func (c *Client) guard(host string) *hostGuard {
	c.mu.Lock()
	defer c.mu.Unlock()

	g, ok := c.hosts[host]
	if !ok {
		g = &hostGuard{
			breaker: newBreaker("upstream:"+host, c.opts),
			limiter: rate.NewLimiter(rate.Limit(c.opts.RatePerSecond), c.opts.Burst),
		}
		c.hosts[host] = g
	}
	return g
}

// BreakerState reports the circuit state for host. Hosts never contacted
// report closed.
func (c *Client) BreakerState(host string) gobreaker.State {
	c.mu.Lock()
	g, ok := c.hosts[host]
	c.mu.Unlock()
	if !ok {
		return gobreaker.StateClosed
	}
	return g.breaker.State()
}
