package account

import (
	"context"
	"errors"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"catalog/internal/account/metrics"
	platformredis "catalog/internal/platform/redis"
	"catalog/pkg/domain"
)

// CachedStore decorates a Store with a redis read-through cache on the
// resolve path, which every authorization check hits. Entries expire after
// ttl and are invalidated explicitly on account transfer; all other
// operations pass through.
type CachedStore struct {
	Store
	redis   *platformredis.Client
	ttl     time.Duration
	metrics *metrics.Metrics
}

func NewCachedStore(store Store, redis *platformredis.Client, ttl time.Duration, m *metrics.Metrics) *CachedStore {
	return &CachedStore{Store: store, redis: redis, ttl: ttl, metrics: m}
}

func cacheKey(addr domain.Address) string {
	return "account:resolve:" + string(addr)
}

func (c *CachedStore) Resolve(ctx context.Context, addr domain.Address) (domain.AccountID, error) {
	val, err := c.redis.Get(ctx, cacheKey(addr)).Result()
	if err == nil {
		if id, perr := strconv.ParseUint(val, 10, 64); perr == nil {
			if c.metrics != nil {
				c.metrics.IncCacheHit()
			}
			return domain.AccountID(id), nil
		}
	} else if !errors.Is(err, goredis.Nil) {
		// Cache unavailable: fall through to the store, do not fail resolves.
		return c.Store.Resolve(ctx, addr)
	}

	if c.metrics != nil {
		c.metrics.IncCacheMiss()
	}
	id, err := c.Store.Resolve(ctx, addr)
	if err != nil {
		return 0, err
	}
	// A missing account is not cached: the next lookup may follow a register.
	c.redis.Set(ctx, cacheKey(addr), id.String(), c.ttl)
	return id, nil
}

func (c *CachedStore) Transfer(ctx context.Context, from, to domain.Address) (domain.AccountID, error) {
	id, err := c.Store.Transfer(ctx, from, to)
	if err != nil {
		return 0, err
	}
	c.redis.Del(ctx, cacheKey(from), cacheKey(to))
	return id, nil
}
