// Package cache provides the identity cache that sits in front of the user store.
//
// Entries are versioned snapshots of an auth.User keyed by email. Secrets
// (password hash, refresh token) are never cached. A payload with an unknown
// version or that fails to decode is deleted and reported as ErrCacheMiss.
//
// Two implementations exist:
//
//   - RedisCache: shared across processes, backed by go-redis
//   - MemoryCache: in-process LRU with per-entry expiry, for single node deployments and tests
//
// Read-through logic lives with the caller (see pkg/session).
package cache
