package httpclient

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// negativeCacheTTL is how long a resource stays marked unavailable.
	negativeCacheTTL = 5 * time.Minute

	// negativeCacheKeyPrefix namespaces cache keys in the shared Redis
	// instance.
	negativeCacheKeyPrefix = "httpclient:unavailable:"
)

// NegativeCache remembers, for a short TTL, that a resource was recently
// classified ErrResourceUnavailable. The code-host and explorer scrapers,
// running as separate workers, check it before spending an HTTP round trip on
// something another worker already found gone, the way alert.Deduplicator
// short-circuits a repeat webhook with a Redis hot path.
type NegativeCache struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// NewNegativeCache creates a NegativeCache. rdb may be nil, in which case
// every check reports a miss and every mark is a no-op — callers don't need
// to special-case a harvester run without Redis configured.
func NewNegativeCache(rdb *redis.Client, logger *slog.Logger) *NegativeCache {
	return &NegativeCache{rdb: rdb, logger: logger}
}

// Recent reports whether key was marked unavailable within the TTL window.
// A nil *NegativeCache always reports a miss, so callers can leave the
// field unset in tests that don't exercise it.
func (c *NegativeCache) Recent(ctx context.Context, key string) bool {
	if c == nil || c.rdb == nil {
		return false
	}

	n, err := c.rdb.Exists(ctx, negativeCacheKeyPrefix+key).Result()
	if err != nil {
		c.logger.Warn("negative cache lookup failed, treating as miss", "key", key, "error", err)
		return false
	}
	return n > 0
}

// MarkUnavailable records that key was classified unavailable. A nil
// *NegativeCache is a no-op.
func (c *NegativeCache) MarkUnavailable(ctx context.Context, key string) {
	if c == nil || c.rdb == nil {
		return
	}

	if err := c.rdb.Set(ctx, negativeCacheKeyPrefix+key, 1, negativeCacheTTL).Err(); err != nil {
		c.logger.Warn("failed to set negative cache", "key", key, "error", err)
	}
}
