package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TTL tiers for cached authorization data. Permission resolutions use the
// medium tier, which bounds how long a revoked permission can still be
// honored when no explicit invalidation lands.
const (
	TTLShort  = time.Minute
	TTLMedium = 5 * time.Minute
	TTLLong   = 30 * time.Minute
)

// ErrMiss is returned by Get when the key is absent. Any other error means
// the backend itself is unavailable and callers should degrade to their
// fallback path.
var ErrMiss = errors.New("cache: miss")

// Cache is a thin redis wrapper with per-key TTLs, conditional writes and
// pattern-based invalidation. It is shared, externally durable state: every
// service instance observes the same revocations and evictions.
type Cache struct {
	client *redis.Client
	prefix string
}

// New wraps an existing redis client. The prefix namespaces all keys so
// several subsystems can share one database.
func New(client *redis.Client, prefix string) *Cache {
	if prefix == "" {
		prefix = "teamboard"
	}
	return &Cache{client: client, prefix: prefix}
}

func (c *Cache) key(k string) string {
	return c.prefix + ":" + k
}

// Get returns the raw value for key, ErrMiss when absent.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache get %s: %w", key, err)
	}
	return data, nil
}

// Set stores value under key with the given TTL atomically.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// SetNX stores value only when the key does not exist yet and reports whether
// this call won the write. It is the single-writer primitive behind refresh
// token rotation.
func (c *Cache) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, c.key(key), value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("cache setnx %s: %w", key, err)
	}
	return ok, nil
}

// Delete removes the given keys.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	if err := c.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

// DeletePattern evicts every key matching the glob pattern using SCAN, so it
// never blocks the backend the way KEYS would.
func (c *Cache) DeletePattern(ctx context.Context, pattern string) error {
	iter := c.client.Scan(ctx, 0, c.key(pattern), 100).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= 100 {
			if err := c.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("cache delete pattern %s: %w", pattern, err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache scan %s: %w", pattern, err)
	}
	if len(batch) > 0 {
		if err := c.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("cache delete pattern %s: %w", pattern, err)
		}
	}
	return nil
}

// GetJSON decodes the cached value into dst.
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) error {
	data, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("cache decode %s: %w", key, err)
	}
	return nil
}

// SetJSON stores the JSON encoding of v under key.
func (c *Cache) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	return c.Set(ctx, key, data, ttl)
}

// Ping checks backend reachability for readiness probes.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
