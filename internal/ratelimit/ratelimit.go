// Package ratelimit provides per-provider admission control for outbound calls.
//
// A Limiter combines a token bucket (requests per second) with a fixed-size
// in-flight window. Limiters are plain values built by the caller, one per
// worker pool; nothing in this package is global.
package ratelimit

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Settings configures a Limiter.
type Settings struct {
	RPS         float64 // sustained requests per second per key
	Burst       int     // tokens available immediately
	MaxInFlight int     // concurrent requests per key; <= 0 means unbounded
}

// Limiter manages per-key admission. Each key (usually the upstream host)
// gets its own bucket and window.
type Limiter struct {
	mu       sync.RWMutex
	entries  map[string]*entry
	settings Settings
}

type entry struct {
	bucket *rate.Limiter
	window *semaphore.Weighted
}

// New creates a limiter.
func New(settings Settings) *Limiter {
	if settings.Burst <= 0 {
		settings.Burst = 1
	}
	return &Limiter{
		entries:  make(map[string]*entry),
		settings: settings,
	}
}

// Settings returns the configuration the limiter was built with.
func (l *Limiter) Settings() Settings {
	return l.settings
}

// Acquire blocks until a request for key is admitted or ctx ends.
// On success the caller must invoke release exactly once; release is
// idempotent so it is safe to defer it and also call it early.
func (l *Limiter) Acquire(ctx context.Context, key string) (release func(), err error) {
	e := l.get(key)

	if e.window != nil {
		if err := e.window.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("admission window: %w", err)
		}
	}

	if err := e.bucket.Wait(ctx); err != nil {
		if e.window != nil {
			e.window.Release(1)
		}
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if e.window != nil {
				e.window.Release(1)
			}
		})
	}, nil
}

// get returns the entry for a key, creating one if needed.
func (l *Limiter) get(key string) *entry {
	l.mu.RLock()
	e, ok := l.entries[key]
	l.mu.RUnlock()
	if ok {
		return e
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok = l.entries[key]; ok {
		return e
	}

	limit := rate.Inf
	if l.settings.RPS > 0 {
		limit = rate.Limit(l.settings.RPS)
	}
	e = &entry{bucket: rate.NewLimiter(limit, l.settings.Burst)}
	if l.settings.MaxInFlight > 0 {
		e.window = semaphore.NewWeighted(int64(l.settings.MaxInFlight))
	}
	l.entries[key] = e
	return e
}
