package databases

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/creatorpulse/creatorpulse/internal/config"
)

// HotRowCache is the Redis-backed fast path in front of the LLM rate-limit
// counters and the per-user crawl lease. Postgres remains the durable
// source of truth; a cache miss or disabled Redis always falls back to it.
type HotRowCache struct {
	client redis.UniversalClient
}

// NewHotRowCache builds a Redis-backed cache when cfg.Enabled, or returns
// nil when disabled — callers check for nil and go straight to Postgres.
func NewHotRowCache(ctx context.Context, cfg config.RedisConfig) (*HotRowCache, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &HotRowCache{client: client}, nil
}

func rateLimitCacheKey(userID, limitType string) string {
	return "ratelimit:" + userID + ":" + limitType
}

func crawlLeaseKey(userID string) string {
	return "crawl:lease:" + userID
}

// IncrementRateLimit atomically bumps the counter with INCR+EXPIREAT,
// returning the post-increment count and whether it is still within
// limitValue. A fresh key is initialized with the given TTL.
func (c *HotRowCache) IncrementRateLimit(ctx context.Context, userID, limitType string, limitValue int64, resetAt time.Time) (int64, bool, error) {
	key := rateLimitCacheKey(userID, limitType)
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireAt(ctx, key, resetAt)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, false, err
	}
	count := incr.Val()
	return count, count <= limitValue, nil
}

// AcquireCrawlLease takes a short-lived SETNX lease so the Postgres
// is_crawling CAS is only attempted by one goroutine at a time; it is an
// optimization, not a correctness requirement — Postgres's own
// UPDATE ... WHERE is_crawling=false remains authoritative.
func (c *HotRowCache) AcquireCrawlLease(ctx context.Context, userID string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, crawlLeaseKey(userID), "1", ttl).Result()
}

func (c *HotRowCache) ReleaseCrawlLease(ctx context.Context, userID string) error {
	return c.client.Del(ctx, crawlLeaseKey(userID)).Err()
}

func (c *HotRowCache) Close() error {
	return c.client.Close()
}
