package redisx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// Ping verifies the server is reachable.
func Ping(ctx context.Context, rdb *redis.Client) error {
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// ViewCache stores rendered JSON documents.
type ViewCache struct {
	RDB *redis.Client
}

// Get reports a miss as ("", false, nil).
func (c *ViewCache) Get(ctx context.Context, key string) (string, bool, error) {
	s, err := c.RDB.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return s, true, nil
}

func (c *ViewCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.RDB.Set(ctx, key, value, ttl).Err()
}

// Dedup remembers processed event ids per service.
type Dedup struct {
	RDB     *redis.Client
	Service string
}

// FirstSeen marks id as processed and reports whether this call was the
// first to do so.
func (d *Dedup) FirstSeen(ctx context.Context, id string) (bool, error) {
	ok, err := d.RDB.SetNX(ctx, fmt.Sprintf(KeyDedup, d.Service, id), "1", TTLDedup).Result()
	if err != nil {
		return false, fmt.Errorf("dedup %s: %w", id, err)
	}
	return ok, nil
}

// Forget drops a dedup marker so the event can be retried.
func (d *Dedup) Forget(ctx context.Context, id string) error {
	return d.RDB.Del(ctx, fmt.Sprintf(KeyDedup, d.Service, id)).Err()
}
