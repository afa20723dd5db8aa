package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/rolodex/pkg/auth"
	"github.com/platinummonkey/rolodex/pkg/observability"
)

// RedisCache stores identity snapshots in Redis
type RedisCache struct {
	client  redis.Cmdable
	metrics *observability.Metrics
	logger  logrus.FieldLogger
}

var _ IdentityCache = (*RedisCache)(nil)

// NewRedisCache creates a Redis backed identity cache
func NewRedisCache(client redis.Cmdable, metrics *observability.Metrics, logger logrus.FieldLogger) *RedisCache {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &RedisCache{
		client:  client,
		metrics: metrics,
		logger:  logger,
	}
}

// Get returns the cached identity or ErrCacheMiss
func (c *RedisCache) Get(ctx context.Context, email string) (*auth.User, error) {
	if email == "" {
		return nil, ErrInvalidCacheKey
	}

	key := Key(email)
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.metrics.RecordCache("redis", "miss")
		return nil, ErrCacheMiss
	}
	if err != nil {
		c.metrics.RecordCache("redis", "error")
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}

	user, err := DecodeSnapshot(data)
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Discarding unreadable identity snapshot")
		if delErr := c.client.Del(ctx, key).Err(); delErr != nil {
			c.logger.WithError(delErr).WithField("key", key).Warn("Failed to delete identity snapshot")
		}
		c.metrics.RecordCache("redis", "miss")
		return nil, ErrCacheMiss
	}

	c.metrics.RecordCache("redis", "hit")
	return user, nil
}

// Put overwrites the snapshot for user. A non-positive ttl uses DefaultTTL.
func (c *RedisCache) Put(ctx context.Context, user *auth.User, ttl time.Duration) error {
	if user == nil || user.Email == "" {
		return ErrInvalidCacheKey
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	data, err := EncodeSnapshot(user)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	if err := c.client.Set(ctx, Key(user.Email), data, ttl).Err(); err != nil {
		c.metrics.RecordCache("redis", "error")
		return fmt.Errorf("redis set %s: %w", Key(user.Email), err)
	}
	return nil
}
