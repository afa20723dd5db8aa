package cache

import (
	"context"
	"errors"
	"time"

	"github.com/platinummonkey/rolodex/pkg/auth"
)

// DefaultTTL is how long an identity snapshot stays valid
const DefaultTTL = 120 * time.Second

// KeyPrefix namespaces identity entries
const KeyPrefix = "identity:"

var (
	// ErrCacheMiss is returned when a cache key is not found
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidCacheKey is returned when a cache key is invalid
	ErrInvalidCacheKey = errors.New("invalid cache key")
)

// IdentityCache stores identity snapshots keyed by email.
// Entries are never invalidated on write; a snapshot may lag the user row
// until its TTL runs out.
type IdentityCache interface {
	// Get returns the cached user or ErrCacheMiss
	Get(ctx context.Context, email string) (*auth.User, error)

	// Put overwrites the entry for user.Email
	Put(ctx context.Context, user *auth.User, ttl time.Duration) error
}

// Key returns the storage key for an email
func Key(email string) string {
	return KeyPrefix + email
}
