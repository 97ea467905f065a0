// Package fetch implements the rate-limited, retrying HTTP client shared by
// every upstream call.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/reelfeed/reelfeed/internal/cache"
	"github.com/reelfeed/reelfeed/internal/domain"
	domainerrors "github.com/reelfeed/reelfeed/internal/errors"
	"github.com/reelfeed/reelfeed/internal/ratelimit"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "reelfeed/1.0"
	defaultAppend    = "credits,alternative_titles"

	// maxErrorBody bounds how much of an error response is kept for messages.
	maxErrorBody = 512
)

// Config describes a fetch client.
type Config struct {
	BaseURL     string
	APIKey      string
	UserAgent   string
	Timeout     time.Duration
	MaxRetries  int
	BackoffBase time.Duration
	BackoffMax  time.Duration

	// DetailAppend is sent as append_to_response on detail reads.
	DetailAppend string

	HTTPClient *http.Client
	Limiter    *ratelimit.Limiter
	Cache      cache.Cache
	CacheTTL   time.Duration
	Logger     *slog.Logger

	// Sleep and Jitter replace the real delay functions in tests.
	Sleep  func(ctx context.Context, d time.Duration) error
	Jitter func() time.Duration
}

// Client is a rate-limited provider client.
type Client struct {
	baseURL    *url.URL
	apiKey     string
	userAgent  string
	append     string
	maxRetries int
	base       time.Duration
	maxDelay   time.Duration
	http       *http.Client
	limiter    *ratelimit.Limiter
	cache      cache.Cache
	cacheTTL   time.Duration
	logger     *slog.Logger
	sleep      func(ctx context.Context, d time.Duration) error
	jitter     func() time.Duration
	now        func() time.Time
}

// New creates a client from cfg.
func New(cfg Config) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		return nil, domainerrors.Config("fetch: base url is required")
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeConfig, "fetch: parse base url")
	}
	if baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, domainerrors.Configf("fetch: base url %q must be absolute", base)
	}

	c := &Client{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		userAgent:  cfg.UserAgent,
		append:     cfg.DetailAppend,
		maxRetries: cfg.MaxRetries,
		base:       cfg.BackoffBase,
		maxDelay:   cfg.BackoffMax,
		http:       cfg.HTTPClient,
		limiter:    cfg.Limiter,
		cache:      cfg.Cache,
		cacheTTL:   cfg.CacheTTL,
		logger:     cfg.Logger,
		sleep:      cfg.Sleep,
		jitter:     cfg.Jitter,
		now:        time.Now,
	}
	if c.userAgent == "" {
		c.userAgent = defaultUserAgent
	}
	if c.append == "" {
		c.append = defaultAppend
	}
	if c.maxRetries < 0 {
		c.maxRetries = 0
	}
	if c.base <= 0 {
		c.base = DefaultBackoffBase
	}
	if c.maxDelay <= 0 {
		c.maxDelay = DefaultBackoffMax
	}
	if c.http == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		c.http = &http.Client{Timeout: timeout}
	}
	if c.limiter == nil {
		c.limiter = ratelimit.New(ratelimit.Settings{})
	}
	if c.cache == nil {
		c.cache = cache.Noop{}
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if c.sleep == nil {
		c.sleep = SleepWithContext
	}
	if c.jitter == nil {
		c.jitter = defaultJitter
	}
	return c, nil
}

// WithLimiter returns a copy of the client that admits requests through l.
// Each worker pool constructs its own limiter and binds it here.
func (c *Client) WithLimiter(l *ratelimit.Limiter) *Client {
	cp := *c
	cp.limiter = l
	return &cp
}

// Limiter returns the admission limiter in use.
func (c *Client) Limiter() *ratelimit.Limiter {
	return c.limiter
}

// Fetch performs GET <base>/<path>?<params> with admission control and retries.
// Failures carry an error kind: NOT_FOUND on 404, EXHAUSTED when retryable
// failures outlive the retry budget, CONFIG or MALFORMED for other statuses.
func (c *Client) Fetch(ctx context.Context, path string, params url.Values) ([]byte, error) {
	return c.fetch(ctx, "fetch", path, params)
}

// Detail returns the raw detail payload for a candidate, consulting the cache
// first. Callers acting on a change signal use Refresh instead.
func (c *Client) Detail(ctx context.Context, et domain.EntityType, sourceID string) ([]byte, error) {
	key := detailCacheKey(et, sourceID)
	if cached, ok, err := c.cache.Get(ctx, key); err != nil {
		c.logger.Warn("cache read failed", "key", key, "error", err)
	} else if ok {
		c.logger.Debug("cache hit", "key", key)
		return cached, nil
	}
	return c.Refresh(ctx, et, sourceID)
}

// Refresh always reads the detail payload from upstream and stores it in the
// cache, replacing any earlier entry.
func (c *Client) Refresh(ctx context.Context, et domain.EntityType, sourceID string) ([]byte, error) {
	params := url.Values{}
	params.Set("append_to_response", c.append)
	body, err := c.fetch(ctx, "detail", detailPath(et, sourceID), params)
	if err != nil {
		return nil, err
	}

	key := detailCacheKey(et, sourceID)
	if err := c.cache.Set(ctx, key, body, c.cacheTTL); err != nil {
		c.logger.Warn("cache write failed", "key", key, "error", err)
	}
	return body, nil
}

func detailPath(et domain.EntityType, sourceID string) string {
	return string(et) + "/" + url.PathEscape(sourceID)
}

func detailCacheKey(et domain.EntityType, sourceID string) string {
	return "detail:" + detailPath(et, sourceID)
}

func (c *Client) fetch(ctx context.Context, op, path string, params url.Values) ([]byte, error) {
	u := c.baseURL.JoinPath(path)
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}
	target := u.String()

	var (
		lastStatus int
		lastErr    error
	)
	for attempt := 0; ; attempt++ {
		body, status, retryAfter, err := c.attempt(ctx, target)
		if err != nil && ctx.Err() != nil {
			return nil, wrapError(op, path, lastStatus, attempt+1, ctx.Err())
		}

		var code domainerrors.Code
		switch {
		case err != nil:
			code = domainerrors.CodeTransient
			lastErr = domainerrors.Wrap(err, code, "request failed")
		default:
			code = domainerrors.FromHTTPStatus(status)
			if code == "" {
				return body, nil
			}
			lastErr = &domainerrors.Error{Code: code, Message: statusMessage(status, body)}
		}
		lastStatus = status

		if !code.Retryable() {
			return nil, wrapError(op, path, lastStatus, attempt+1, lastErr)
		}
		if attempt >= c.maxRetries {
			exhausted := domainerrors.Wrapf(lastErr, domainerrors.CodeExhausted, "gave up after %d retries", c.maxRetries)
			return nil, wrapError(op, path, lastStatus, attempt+1, exhausted)
		}

		delay := retryAfter
		if delay <= 0 {
			delay = backoff(attempt, c.base, c.maxDelay, c.jitter)
		} else if delay > c.maxDelay {
			delay = c.maxDelay
		}
		c.logger.Warn("retrying upstream request",
			"path", path,
			"status", status,
			"attempt", attempt+1,
			"delay", delay,
			"error", lastErr,
		)
		if err := c.sleep(ctx, delay); err != nil {
			return nil, wrapError(op, path, lastStatus, attempt+1, err)
		}
	}
}

// attempt performs one admitted request. The admission slot is held only for
// the duration of the round trip, never across backoff sleeps.
func (c *Client) attempt(ctx context.Context, target string) (body []byte, status int, retryAfter time.Duration, err error) {
	release, err := c.limiter.Acquire(ctx, c.baseURL.Host)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("admission: %w", err)
	}
	defer release()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	c.logger.Debug("upstream request", "url", req.URL.Redacted())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, 0, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
		retryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), c.now())
	}
	return body, resp.StatusCode, retryAfter, nil
}

func statusMessage(status int, body []byte) string {
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody]
	}
	if msg == "" {
		return fmt.Sprintf("unexpected status %d", status)
	}
	return fmt.Sprintf("unexpected status %d: %s", status, msg)
}

// IsNotFound reports whether err signals that the requested entity does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, domainerrors.ErrNotFound)
}
