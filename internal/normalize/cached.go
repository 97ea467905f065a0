package normalize

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/reelfeed/reelfeed/internal/cache"
	"github.com/reelfeed/reelfeed/internal/domain"
)

// Cached memoizes Normalize results keyed by provider, key namespace, entity
// type and payload hash. Cached documents carry their canonical key, so a
// namespace change must miss. The cache schema version in the cache's prefix
// guards against reading documents serialized under an older shape.
type Cached struct {
	n      *Normalizer
	cache  cache.Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewCached wraps n with c. A nil cache disables memoization.
func NewCached(n *Normalizer, c cache.Cache, ttl time.Duration) *Cached {
	if c == nil {
		c = cache.Noop{}
	}
	return &Cached{n: n, cache: c, ttl: ttl, logger: n.logger}
}

func (c *Cached) cacheKey(et domain.EntityType, raw []byte) string {
	return "normalize:" + c.n.provider + ":" + c.n.scheme.Namespace() + ":" + string(et) + ":" +
		strconv.FormatUint(xxhash.Sum64(raw), 16)
}

// Normalize returns the cached document for raw when present and maps it otherwise.
// Cache failures are logged and never change the result.
func (c *Cached) Normalize(ctx context.Context, raw []byte, et domain.EntityType) (*domain.Document, bool) {
	key := c.cacheKey(et, raw)

	if val, ok, err := c.cache.Get(ctx, key); err != nil {
		c.logger.Warn("normalize cache read failed", "key", key, "error", err)
	} else if ok {
		var doc *domain.Document
		if err := json.Unmarshal(val, &doc); err == nil {
			return doc, doc != nil
		}
		c.logger.Warn("normalize cache entry unreadable", "key", key)
	}

	doc, ok := c.n.Normalize(raw, et)

	// Unusable payloads are cached as null so they are not re-parsed.
	val, err := json.Marshal(doc)
	if err == nil {
		err = c.cache.Set(ctx, key, val, c.ttl)
	}
	if err != nil {
		c.logger.Warn("normalize cache write failed", "key", key, "error", err)
	}
	return doc, ok
}
