// Package storage defines the persistence contracts used by the rolodex API.
//
// # Overview
//
// Two narrow interfaces cover everything the service stores:
//
//   - UserStore: accounts, confirmation flag, password hash, refresh token, avatar
//   - ContactStore: per-user address book entries
//
// Lookups return (nil, nil) when a record does not exist so callers can tell
// "absent" apart from a failing backend. Writes that violate a uniqueness
// constraint return ErrConflict. RotateRefreshToken is a compare-and-set, so
// only one of several concurrent refreshes can replace a given token.
//
// # Backend Implementations
//
// PostgreSQL (pkg/storage/postgres) is the only backend. It also provides the
// Redis client shared by the identity cache and the rate limiter, and the S3
// client used for avatar uploads.
//
//	db, err := postgres.Open(ctx, cfg)
//	if err := postgres.Migrate(ctx, db); err != nil {
//		return err
//	}
//	store := postgres.NewStore(db)
//
// # Configuration
//
// Config is populated from ROLODEX_POSTGRES_*, ROLODEX_REDIS_* and ROLODEX_S3_*
// environment variables by pkg/config.
package storage
