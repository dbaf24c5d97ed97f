package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/WutIsHummus/FreshRoles/pkg/logging"
)

const notifiedKeyPrefix = "freshroles:notified:"

// NewRedisClient parses redisURL and verifies connectivity.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL(%q): %w", redisURL, err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

// SeenCache fronts a Ledger with a Redis set of already-notified posting
// ids. Only the Notified fast path is cached; every write still lands in
// the durable ledger first, which remains the sole source of truth. Any
// Redis error degrades to the ledger and is logged, never surfaced.
type SeenCache struct {
	Ledger

	rdb *redis.Client
	ttl time.Duration
	log *logging.Logger
}

// WithSeenCache wraps next with the Redis notified-id cache. The TTL
// should equal the lookback window so cache entries expire alongside
// their pruned ledger rows.
func WithSeenCache(next Ledger, rdb *redis.Client, ttl time.Duration, log *logging.Logger) *SeenCache {
	return &SeenCache{Ledger: next, rdb: rdb, ttl: ttl, log: log.Component("seencache")}
}

func (c *SeenCache) Notified(ctx context.Context, id string) (bool, error) {
	n, err := c.rdb.Exists(ctx, notifiedKeyPrefix+id).Result()
	if err == nil && n > 0 {
		return true, nil
	}
	if err != nil {
		c.log.Warn("redis lookup failed, falling back to ledger", "err", err)
	}
	return c.Ledger.Notified(ctx, id)
}

func (c *SeenCache) RecordNotified(ctx context.Context, id string, notifiedAt time.Time, score float64) error {
	if err := c.Ledger.RecordNotified(ctx, id, notifiedAt, score); err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, notifiedKeyPrefix+id, 1, c.ttl).Err(); err != nil {
		c.log.Warn("redis cache write failed", "posting_id", id, "err", err)
	}
	return nil
}

var (
	_ Ledger = (*SeenCache)(nil)
	_ Ledger = (*Memory)(nil)
	_ Ledger = (*SQLite)(nil)
	_ Ledger = (*Postgres)(nil)
)
