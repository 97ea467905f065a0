// Package cache provides the response cache port used by the fetch client
// and the normalizer.
package cache

import (
	"context"
	"strings"
	"time"
)

// Cache stores opaque values with a time-to-live.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RawStore is the subset of the document store used for cache entries.
type RawStore interface {
	GetRaw(ctx context.Context, key string) ([]byte, bool, error)
	SetRaw(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Badger keeps cache entries in the document store under a versioned prefix.
// Changing the schema version makes older entries unreachable; they expire
// through their TTL.
type Badger struct {
	store  RawStore
	prefix string
}

// NewBadger creates a cache scoped to schemaVersion.
func NewBadger(store RawStore, schemaVersion string) *Badger {
	if schemaVersion == "" {
		schemaVersion = "v1"
	}
	return &Badger{store: store, prefix: Prefix(schemaVersion)}
}

const rootPrefix = "cache:"

// Prefix returns the key prefix for a schema version.
func Prefix(schemaVersion string) string {
	return rootPrefix + schemaVersion + ":"
}

// Dropper deletes every key under a prefix.
type Dropper interface {
	DropPrefix(prefix string) error
}

// Clear removes cache entries of every schema version. Documents and run
// records are untouched.
func Clear(s Dropper) error {
	return s.DropPrefix(rootPrefix)
}

func (c *Badger) key(k string) string {
	return c.prefix + strings.TrimSpace(k)
}

// Get returns the cached value for key, if present and unexpired.
func (c *Badger) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return c.store.GetRaw(ctx, c.key(key))
}

// Set stores value under key. A non-positive ttl stores the entry without expiry.
func (c *Badger) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.store.SetRaw(ctx, c.key(key), value, ttl)
}

// Noop never stores anything.
type Noop struct{}

func (Noop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (Noop) Set(context.Context, string, []byte, time.Duration) error { return nil }

var (
	_ Cache = (*Badger)(nil)
	_ Cache = Noop{}
)
