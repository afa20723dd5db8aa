package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultKeyPrefix namespaces rate-limit counters in Redis
const DefaultKeyPrefix = "ratelimit"

// fixedWindowScript increments the counter and starts the window on the first hit only.
// Returns {count, ttl_seconds}.
var fixedWindowScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('EXPIRE', KEYS[1], ARGV[1])
end
return {count, redis.call('TTL', KEYS[1])}
`)

// FixedWindowLimiter implements Limiter on Redis so every node shares one counter
type FixedWindowLimiter struct {
	redis     redis.Cmdable
	keyPrefix string
}

// NewFixedWindowLimiter creates a Redis-backed limiter
func NewFixedWindowLimiter(client redis.Cmdable, keyPrefix string) *FixedWindowLimiter {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &FixedWindowLimiter{
		redis:     client,
		keyPrefix: keyPrefix,
	}
}

// Allow atomically counts one request for key within the quota window
func (l *FixedWindowLimiter) Allow(ctx context.Context, key string, quota Quota) (Decision, error) {
	seconds := int64(quota.Window / time.Second)
	if seconds < 1 {
		seconds = 1
	}

	res, err := fixedWindowScript.Run(ctx, l.redis, []string{l.key(key)}, seconds).Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("unexpected rate limit script reply: %v", res)
	}
	count, ok := res[0].(int64)
	if !ok {
		return Decision{}, fmt.Errorf("unexpected rate limit count: %v", res[0])
	}
	ttl, _ := res[1].(int64)

	return newDecision(count, time.Duration(ttl)*time.Second, quota), nil
}

// HealthCheck verifies Redis connectivity for rate limiting
func (l *FixedWindowLimiter) HealthCheck(ctx context.Context) error {
	return l.redis.Ping(ctx).Err()
}

func (l *FixedWindowLimiter) key(key string) string {
	return l.keyPrefix + ":" + key
}
