package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/rolodex/pkg/auth"
	"github.com/platinummonkey/rolodex/pkg/observability"
)

// DefaultMaxEntries bounds the in-process cache
const DefaultMaxEntries = 10000

type memoryEntry struct {
	snapshot  Snapshot
	expiresAt time.Time
}

// MemoryCache implements IdentityCache with an in-process LRU.
// Per-entry TTLs are honored up to the cache wide maxTTL.
type MemoryCache struct {
	cache   *lru.LRU[string, memoryEntry]
	maxTTL  time.Duration
	metrics *observability.Metrics
	now     func() time.Time
}

var _ IdentityCache = (*MemoryCache)(nil)

// NewMemoryCache creates an in-process identity cache
func NewMemoryCache(maxEntries int, maxTTL time.Duration, metrics *observability.Metrics) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if maxTTL <= 0 {
		maxTTL = DefaultTTL
	}

	return &MemoryCache{
		cache:   lru.NewLRU[string, memoryEntry](maxEntries, nil, maxTTL),
		maxTTL:  maxTTL,
		metrics: metrics,
		now:     time.Now,
	}
}

// Get returns the cached identity or ErrCacheMiss
func (c *MemoryCache) Get(ctx context.Context, email string) (*auth.User, error) {
	if email == "" {
		return nil, ErrInvalidCacheKey
	}

	key := Key(email)
	entry, ok := c.cache.Get(key)
	if ok && !c.now().Before(entry.expiresAt) {
		c.cache.Remove(key)
		ok = false
	}
	if !ok {
		c.metrics.RecordCache("memory", "miss")
		return nil, ErrCacheMiss
	}

	c.metrics.RecordCache("memory", "hit")
	return entry.snapshot.User(), nil
}

// Put overwrites the snapshot for user. A non-positive ttl uses DefaultTTL.
func (c *MemoryCache) Put(ctx context.Context, user *auth.User, ttl time.Duration) error {
	if user == nil || user.Email == "" {
		return ErrInvalidCacheKey
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if ttl > c.maxTTL {
		ttl = c.maxTTL
	}

	c.cache.Add(Key(user.Email), memoryEntry{
		snapshot:  NewSnapshot(user),
		expiresAt: c.now().Add(ttl),
	})
	return nil
}
