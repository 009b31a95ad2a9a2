package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	pkgerrs "github.com/jamesprial/go-forum-client/pkg/errors"
)

// TokenSource supplies bearer credentials to the gateway and renews them
// when the server rejects one.
type TokenSource interface {
	// AccessToken returns the current access token or "" when unauthenticated.
	AccessToken() string
	// RenewAfter obtains a fresh access token after rejected was refused.
	RenewAfter(ctx context.Context, rejected string) (string, error)
}

// Client is the request gateway: every logical request to the forum API
// passes through Do.
type Client struct {
	client    *http.Client
	BaseURL   *url.URL
	UserAgent string

	tokens  TokenSource
	logger  *slog.Logger
	metrics *Metrics

	limiter        *rate.Limiter
	mu             sync.Mutex
	forceWaitUntil time.Time
}

// RateLimitConfig controls how requests are throttled before reaching the server.
type RateLimitConfig struct {
	// RequestsPerMinute caps steady-state throughput. Defaults to 600 if zero.
	RequestsPerMinute float64 `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
	// Burst allows short spikes above the steady-state rate. Defaults to 50 if zero.
	Burst int `yaml:"burst" mapstructure:"burst"`
	// Disabled turns the client-side limiter off. Retry-After is still honoured.
	Disabled bool `yaml:"disabled" mapstructure:"disabled"`
}

const (
	DefaultRequestsPerMinute = 600
	DefaultRateLimitBurst    = 50
	SecondsPerMinute         = 60.0
	ParseFloatBitSize        = 64

	// maxResponseBytes bounds how much of a response body is buffered.
	maxResponseBytes = 10 << 20
)

// Request is one logical API request. It keeps its encoded body so the
// gateway can rebuild the HTTP request for the single replay.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   []byte
	// ID is sent as X-Request-Id and is shared by both attempts.
	ID string

	// Anonymous requests never carry the session's bearer token.
	Anonymous bool
	// NoRenew makes a 401 final instead of triggering renewal.
	NoRenew bool
	// Bearer overrides the token source for this request.
	Bearer string
}

func (r *Request) operation() string {
	return r.Method + " /" + r.Path
}

// NewClient returns a new forum API gateway.
// If a nil httpClient is provided, http.DefaultClient will be used.
func NewClient(httpClient *http.Client, baseURL string, userAgent string, rateCfg *RateLimitConfig, logger *slog.Logger, metrics *Metrics) (*Client, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, &pkgerrs.ConfigError{Field: "BaseURL", Message: err.Error()}
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, &pkgerrs.ConfigError{Field: "BaseURL", Message: "base URL must be absolute: " + baseURL}
	}
	if !strings.HasSuffix(parsedURL.Path, "/") {
		parsedURL.Path += "/"
	}

	if rateCfg == nil {
		rateCfg = &RateLimitConfig{}
	}

	var limiter *rate.Limiter
	if !rateCfg.Disabled {
		limiter = buildLimiter(*rateCfg)
	}

	return &Client{
		client:    httpClient,
		BaseURL:   parsedURL,
		UserAgent: userAgent,
		logger:    logger,
		metrics:   metrics,
		limiter:   limiter,
	}, nil
}

// SetTokenSource installs the credential provider. It must be called before
// the first authenticated request.
func (c *Client) SetTokenSource(ts TokenSource) {
	c.tokens = ts
}

// NewRequest builds a logical request. body, when non-nil, is JSON encoded.
func (c *Client) NewRequest(method, path string, query url.Values, body any) (*Request, error) {
	req := &Request{
		Method: method,
		Path:   strings.TrimPrefix(path, "/"),
		Query:  query,
		ID:     uuid.NewString(),
	}

	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, &pkgerrs.RequestError{Operation: req.operation(), Message: "failed to encode request body", Err: err}
		}
		req.Body = raw
	}
	return req, nil
}

// Call is NewRequest followed by Do.
func (c *Client) Call(ctx context.Context, method, path string, query url.Values, body, v any) error {
	req, err := c.NewRequest(method, path, query, body)
	if err != nil {
		return err
	}
	return c.Do(ctx, req, v)
}

// Do sends the request and decodes a 2xx JSON response into v (v may be nil).
//
// A 401 on the first attempt of a renewable request renews the session and
// replays the request exactly once with the new token. If renewal fails the
// original 401 is returned. No other failure is retried.
func (c *Client) Do(ctx context.Context, req *Request, v any) error {
	token := c.credentialFor(req)

	for attempt := 0; ; attempt++ {
		status, body, err := c.send(ctx, req, token, attempt)
		if err != nil {
			return err
		}

		if status >= 200 && status < 300 {
			return decodeInto(req.operation(), body, v)
		}

		apiErr := decodeErrorBody(status, body)
		if status != http.StatusUnauthorized || attempt > 0 || !c.canRenew(req) {
			return apiErr
		}

		fresh, renewErr := c.tokens.RenewAfter(ctx, token)
		if renewErr != nil {
			c.logger.Debug("renewal failed, returning original rejection",
				"id", req.ID, "op", req.operation(), "err", renewErr)
			return apiErr
		}

		c.metrics.Retries.Inc()
		token = fresh
	}
}

func (c *Client) canRenew(req *Request) bool {
	return c.tokens != nil && !req.Anonymous && !req.NoRenew
}

func (c *Client) credentialFor(req *Request) string {
	if req.Bearer != "" {
		return req.Bearer
	}
	if req.Anonymous || c.tokens == nil {
		return ""
	}
	return c.tokens.AccessToken()
}

// send performs a single HTTP attempt and returns the buffered body.
func (c *Client) send(ctx context.Context, req *Request, token string, attempt int) (int, []byte, error) {
	op := req.operation()

	u, err := c.BaseURL.Parse(req.Path)
	if err != nil {
		return 0, nil, &pkgerrs.RequestError{Operation: op, Message: "invalid request path", Err: err}
	}
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return 0, nil, &pkgerrs.RequestError{Operation: op, URL: u.String(), Err: err}
	}

	httpReq.Header.Set("User-Agent", c.UserAgent)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-Id", req.ID)
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	if err := c.waitForRateLimit(ctx); err != nil {
		return 0, nil, &pkgerrs.RequestError{Operation: op, URL: u.String(), Message: "rate limit wait aborted", Err: err}
	}

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		c.metrics.Requests.WithLabelValues(req.Method, statusClass(0)).Inc()
		return 0, nil, &pkgerrs.RequestError{Operation: op, URL: u.String(), Err: err}
	}
	defer resp.Body.Close()

	c.applyRateHeaders(resp)
	c.metrics.Requests.WithLabelValues(req.Method, statusClass(resp.StatusCode)).Inc()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, &pkgerrs.RequestError{Operation: op, URL: u.String(), Message: "failed to read response body", Err: err}
	}

	c.logger.Debug("forum request",
		"id", req.ID,
		"op", op,
		"status", resp.StatusCode,
		"attempt", attempt+1,
		"authenticated", token != "",
		"elapsed", time.Since(start),
	)

	return resp.StatusCode, raw, nil
}

func buildLimiter(cfg RateLimitConfig) *rate.Limiter {
	requestsPerMinute := cfg.RequestsPerMinute
	if requestsPerMinute <= 0 {
		requestsPerMinute = DefaultRequestsPerMinute
	}

	burst := cfg.Burst
	if burst <= 0 {
		burst = DefaultRateLimitBurst
	}

	limitPerSecond := rate.Limit(requestsPerMinute / SecondsPerMinute)
	if limitPerSecond <= 0 {
		limitPerSecond = rate.Limit(1)
	}

	return rate.NewLimiter(limitPerSecond, burst)
}

func (c *Client) waitForRateLimit(ctx context.Context) error {
	if err := c.waitForForcedDelay(ctx); err != nil {
		return err
	}

	if c.limiter == nil {
		return nil
	}

	return c.limiter.Wait(ctx)
}

func (c *Client) waitForForcedDelay(ctx context.Context) error {
	for {
		c.mu.Lock()
		waitUntil := c.forceWaitUntil
		c.mu.Unlock()

		if waitUntil.IsZero() {
			return nil
		}

		now := time.Now()
		if !now.Before(waitUntil) {
			c.clearForcedDelay(waitUntil)
			return nil
		}

		timer := time.NewTimer(waitUntil.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			c.clearForcedDelay(waitUntil)
		}
	}
}

func (c *Client) clearForcedDelay(previous time.Time) {
	c.mu.Lock()
	if previous.Equal(c.forceWaitUntil) {
		c.forceWaitUntil = time.Time{}
	}
	c.mu.Unlock()
}

func (c *Client) applyRateHeaders(resp *http.Response) {
	if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
		if seconds, err := strconv.ParseFloat(retryAfter, ParseFloatBitSize); err == nil && seconds > 0 {
			c.deferRequests(time.Duration(seconds * float64(time.Second)))
		}
	}

	remainingHeader := resp.Header.Get("X-Ratelimit-Remaining")
	resetHeader := resp.Header.Get("X-Ratelimit-Reset")
	if remainingHeader == "" || resetHeader == "" {
		return
	}

	remaining, errRemaining := strconv.ParseFloat(remainingHeader, ParseFloatBitSize)
	resetSeconds, errReset := strconv.ParseFloat(resetHeader, ParseFloatBitSize)
	if errRemaining != nil || errReset != nil || resetSeconds <= 0 {
		return
	}

	if remaining <= 1 {
		c.deferRequests(time.Duration(resetSeconds * float64(time.Second)))
	}
}

func (c *Client) deferRequests(d time.Duration) {
	if d <= 0 {
		return
	}

	until := time.Now().Add(d)

	c.mu.Lock()
	if until.After(c.forceWaitUntil) {
		c.forceWaitUntil = until
	}
	c.mu.Unlock()
}
