package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/koprjaa/protext-scraper/internal/identity"
	"github.com/koprjaa/protext-scraper/internal/metrics"
)

// Client defaults.
const (
	DefaultJitterMin      = 50 * time.Millisecond
	DefaultJitterMax      = 200 * time.Millisecond
	DefaultTimeoutMin     = 12 * time.Second
	DefaultTimeoutMax     = 20 * time.Second
	DefaultMaxBodySize    = 5 * 1024 * 1024
	maxErrorSnippetLength = 80
)

// Doer sends an HTTP request. *http.Client implements it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Identity supplies request signatures and egress rotation.
// *identity.Rotator implements it.
type Identity interface {
	Next() identity.Signature
	RotateEgress(ctx context.Context, reason string) bool
}

// Response is a fully read, decoded HTTP response.
type Response struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Options overrides the retry budget for a single call.
// Zero fields keep the client's policy.
type Options struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// Client fetches URLs with retries, backoff and identity rotation.
type Client struct {
	http        Doer
	identity    Identity
	policy      Policy
	limiter     *rate.Limiter
	jitterMin   time.Duration
	jitterMax   time.Duration
	timeoutMin  time.Duration
	timeoutMax  time.Duration
	maxBodySize int64
	sleep       func(ctx context.Context, d time.Duration) error
	now         func() time.Time
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the transport, typically one routed through Tor.
func WithHTTPClient(d Doer) Option {
	return func(c *Client) {
		if d != nil {
			c.http = d
		}
	}
}

// WithIdentity sets the signature source and egress rotator.
func WithIdentity(id Identity) Option {
	return func(c *Client) {
		if id != nil {
			c.identity = id
		}
	}
}

// WithPolicy replaces the retry policy.
func WithPolicy(p Policy) Option {
	return func(c *Client) {
		c.policy = p
	}
}

// WithRateLimit caps the request rate across all workers sharing the client.
// A non-positive rps disables the cap.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithJitter sets the bounds of the random pause before every attempt.
func WithJitter(lo, hi time.Duration) Option {
	return func(c *Client) {
		c.jitterMin, c.jitterMax = lo, hi
	}
}

// WithAttemptTimeout sets the bounds of the per-attempt timeout.
func WithAttemptTimeout(lo, hi time.Duration) Option {
	return func(c *Client) {
		if lo > 0 && hi >= lo {
			c.timeoutMin, c.timeoutMax = lo, hi
		}
	}
}

// WithMaxBodySize limits how many decoded body bytes are kept.
func WithMaxBodySize(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBodySize = n
		}
	}
}

// WithSleeper replaces the context-aware sleep, mainly for tests.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// New creates a Client. Without WithHTTPClient it talks directly to the
// network; without WithIdentity it uses a rotator that cannot change egress.
func New(opts ...Option) *Client {
	c := &Client{
		http:        &http.Client{Transport: &http.Transport{DisableCompression: true, Proxy: http.ProxyFromEnvironment}},
		policy:      DefaultPolicy(),
		jitterMin:   DefaultJitterMin,
		jitterMax:   DefaultJitterMax,
		timeoutMin:  DefaultTimeoutMin,
		timeoutMax:  DefaultTimeoutMax,
		maxBodySize: DefaultMaxBodySize,
		sleep:       identity.Sleep,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.identity == nil {
		c.identity = identity.NewRotator()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Fetch retrieves rawURL with the client's retry policy.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	return c.FetchWith(ctx, rawURL, Options{})
}

// FetchWith retrieves rawURL, overriding the retry budget with opts.
//
// It returns ErrExhausted when no attempt succeeded and ctx.Err() as soon as
// the context is done.
func (c *Client) FetchWith(ctx context.Context, rawURL string, opts Options) (*Response, error) {
	policy := c.policy
	if opts.MaxRetries > 0 {
		policy.MaxRetries = opts.MaxRetries
	}
	if opts.BaseDelay > 0 {
		policy.BaseDelay = opts.BaseDelay
	}
	if policy.MaxRetries <= 0 {
		policy.MaxRetries = 1
	}

	var (
		failures int
		lastErr  error
	)

	for attempt := range policy.MaxRetries {
		if err := c.sleep(ctx, UniformDuration(c.jitterMin, c.jitterMax)); err != nil {
			return nil, err
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		started := time.Now()
		resp, err := c.attempt(ctx, rawURL)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		outcome := Classify(status, err)
		c.metrics.ObserveAttempt(outcome.String(), time.Since(started))

		if outcome == OutcomeFailure {
			failures++
		} else {
			failures = 0
		}

		retryAfter := NoRetryAfter
		if outcome == OutcomeRateLimited {
			if d, err := ParseRetryAfter(resp.Header.Get("Retry-After"), c.now()); err == nil {
				retryAfter = d
			}
		}

		tr := policy.Next(attempt, failures, outcome, retryAfter)
		if tr.State == Succeeded {
			return resp, nil
		}

		lastErr = attemptError(status, err)
		c.logger.Debug("fetch attempt failed",
			"url", rawURL,
			"attempt", attempt+1,
			"max_attempts", policy.MaxRetries,
			"state", tr.State.String(),
			"wait", tr.Wait,
			"rotate", tr.Rotate,
			"error", lastErr,
		)

		if tr.Rotate {
			c.identity.RotateEgress(ctx, outcome.String())
		}
		if tr.State == Exhausted {
			break
		}
		if err := c.sleep(ctx, tr.Wait); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w: %s after %d attempts: %w", ErrExhausted, rawURL, policy.MaxRetries, lastErr)
}

// attempt performs one request under a randomized timeout. A non-nil
// response is always fully read; transport, read and decode errors are
// reported as err.
func (c *Client) attempt(ctx context.Context, rawURL string) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, UniformDuration(c.timeoutMin, c.timeoutMax))
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	c.identity.Next().Apply(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	out := &Response{
		URL:        rawURL,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
	}
	if resp.Request != nil && resp.Request.URL != nil {
		out.URL = resp.Request.URL.String()
	}

	// Error pages are not decoded; only their status matters.
	if resp.StatusCode >= 400 {
		return out, nil
	}

	out.Body, err = decodeBody(raw, resp.Header.Get("Content-Encoding"), c.maxBodySize)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// attemptError summarizes a failed attempt for logs and the final error.
func attemptError(status int, err error) error {
	if err != nil {
		msg := err.Error()
		if len(msg) > maxErrorSnippetLength {
			return fmt.Errorf("%s...", msg[:maxErrorSnippetLength])
		}
		return err
	}
	return fmt.Errorf("HTTP %d %s", status, http.StatusText(status))
}
