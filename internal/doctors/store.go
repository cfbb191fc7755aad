package doctors

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedRepository decorates a Repository with a redis read-through cache.
// Doctor profiles are read on every booking but change rarely, so a short TTL
// keeps the hot path off Postgres. Availability writes invalidate the entry.
type CachedRepository struct {
	inner Repository
	redis *redis.Client
	ttl   time.Duration
}

// NewCachedRepository wraps inner with a redis cache. A zero ttl disables
// expiry.
func NewCachedRepository(inner Repository, redisClient *redis.Client, ttl time.Duration) *CachedRepository {
	return &CachedRepository{inner: inner, redis: redisClient, ttl: ttl}
}

func (c *CachedRepository) key(id string) string {
	return "doctor:" + id
}

// GetByID serves from redis when possible and falls through to the inner
// repository. Cache failures degrade to the inner lookup, never to an error.
func (c *CachedRepository) GetByID(ctx context.Context, id string) (*Doctor, error) {
	data, err := c.redis.Get(ctx, c.key(id)).Bytes()
	if err == nil {
		var d Doctor
		if jsonErr := json.Unmarshal(data, &d); jsonErr == nil {
			return &d, nil
		}
		// Corrupt entry; drop it and reload.
		c.redis.Del(ctx, c.key(id))
	} else if err != redis.Nil {
		// Redis being down must not take bookings down with it.
		return c.inner.GetByID(ctx, id)
	}

	d, err := c.inner.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if data, jsonErr := json.Marshal(d); jsonErr == nil {
		c.redis.Set(ctx, c.key(id), data, c.ttl)
	}
	return d, nil
}

const listKey = "doctors:all"

// List caches the full directory under a single key. The same degrade rules
// apply as for GetByID.
func (c *CachedRepository) List(ctx context.Context) ([]*Doctor, error) {
	data, err := c.redis.Get(ctx, listKey).Bytes()
	if err == nil {
		var out []*Doctor
		if jsonErr := json.Unmarshal(data, &out); jsonErr == nil {
			return out, nil
		}
		c.redis.Del(ctx, listKey)
	} else if err != redis.Nil {
		return c.inner.List(ctx)
	}

	out, err := c.inner.List(ctx)
	if err != nil {
		return nil, err
	}
	if data, jsonErr := json.Marshal(out); jsonErr == nil {
		c.redis.Set(ctx, listKey, data, c.ttl)
	}
	return out, nil
}

// SetAvailability writes through and invalidates the cached profile.
func (c *CachedRepository) SetAvailability(ctx context.Context, id string, available bool) error {
	if err := c.inner.SetAvailability(ctx, id, available); err != nil {
		return err
	}
	if err := c.redis.Del(ctx, c.key(id), listKey).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("doctors: cache invalidate: %w", err)
	}
	return nil
}
