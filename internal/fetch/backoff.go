package fetch

import (
	"context"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Retry defaults.
const (
	DefaultMaxRetries  = 5
	DefaultBackoffBase = time.Second
	DefaultBackoffMax  = 60 * time.Second

	minJitter = 100 * time.Millisecond
	maxJitter = 500 * time.Millisecond
)

// SleepWithContext blocks for d, returning early if ctx is cancelled.
func SleepWithContext(ctx context.Context, d time.Duration) error {
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

func defaultJitter() time.Duration {
	return minJitter + rand.N(maxJitter-minJitter)
}

// backoff returns base * 2^attempt plus jitter, with the exponential part capped at max.
func backoff(attempt int, base, maxDelay time.Duration, jitter func() time.Duration) time.Duration {
	d := base
	for range attempt {
		d *= 2
		if d >= maxDelay {
			d = maxDelay
			break
		}
	}
	if d > maxDelay {
		d = maxDelay
	}
	return d + jitter()
}

// parseRetryAfter reads a Retry-After header in either delta-seconds or
// HTTP-date form. It returns 0 when the header is absent or unparseable.
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
