package profile

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/classhub/classhub/pkg/observability"
)

const cacheKeyPrefix = "classhub:profile:"

// RedisCache is a read-through cache decorator over a Store. Fetches are
// served from redis when possible; writes invalidate before delegating so a
// failed invalidation never leaves a stale entry in front of a newer record.
type RedisCache struct {
	inner   Store
	client  *redis.Client
	ttl     time.Duration
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewRedisCache wraps a store with a redis cache. metrics may be nil.
func NewRedisCache(inner Store, client *redis.Client, ttl time.Duration, logger *observability.Logger, metrics *observability.Metrics) *RedisCache {
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &RedisCache{
		inner:   inner,
		client:  client,
		ttl:     ttl,
		logger:  logger,
		metrics: metrics,
	}
}

func cacheKey(email string) string {
	return cacheKeyPrefix + NormalizeEmail(email)
}

// Fetch returns a cached profile when present, delegating to the inner
// store on miss. Cache failures are logged and treated as misses; the cache
// never turns a healthy store into an unavailable one.
func (c *RedisCache) Fetch(ctx context.Context, email string) (*Profile, error) {
	key := cacheKey(email)

	data, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var p Profile
		if jsonErr := json.Unmarshal(data, &p); jsonErr == nil {
			if c.metrics != nil {
				c.metrics.CacheHitsTotal.Inc()
			}
			return &p, nil
		}
		// Corrupt entry, drop it and fall through to the inner store.
		c.client.Del(ctx, key)
	} else if err != redis.Nil {
		c.logger.WithError(err).Debug("profile cache read failed")
	}

	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}

	p, err := c.inner.Fetch(ctx, email)
	if err != nil {
		return nil, err
	}

	if data, jsonErr := json.Marshal(p); jsonErr == nil {
		if setErr := c.client.Set(ctx, key, data, c.ttl).Err(); setErr != nil {
			c.logger.WithError(setErr).Debug("profile cache write failed")
		}
	}
	return p, nil
}

// Create delegates to the inner store and primes the cache on success
func (c *RedisCache) Create(ctx context.Context, p *Profile) (*Profile, error) {
	created, err := c.inner.Create(ctx, p)
	if err != nil {
		return nil, err
	}
	if data, jsonErr := json.Marshal(created); jsonErr == nil {
		c.client.Set(ctx, cacheKey(created.Email), data, c.ttl)
	}
	return created, nil
}

// Update invalidates the cached entry, delegates, and re-primes
func (c *RedisCache) Update(ctx context.Context, email string, patch Patch) (*Profile, error) {
	if err := c.client.Del(ctx, cacheKey(email)).Err(); err != nil {
		c.logger.WithError(err).Debug("profile cache invalidation failed")
	}

	updated, err := c.inner.Update(ctx, email, patch)
	if err != nil {
		return nil, err
	}
	if data, jsonErr := json.Marshal(updated); jsonErr == nil {
		c.client.Set(ctx, cacheKey(email), data, c.ttl)
	}
	return updated, nil
}

// Delete invalidates the cached entry and delegates
func (c *RedisCache) Delete(ctx context.Context, email string) error {
	if err := c.client.Del(ctx, cacheKey(email)).Err(); err != nil {
		c.logger.WithError(err).Debug("profile cache invalidation failed")
	}
	return c.inner.Delete(ctx, email)
}

// Ping probes redis and the inner store when it supports probing
func (c *RedisCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return err
	}
	if pinger, ok := c.inner.(Pinger); ok {
		return pinger.Ping(ctx)
	}
	return nil
}
