// Package auth provides password hashing and signed session tokens for the rolodex API.
//
// # Overview
//
// The package holds the two leaf components of the authentication subsystem:
// a bcrypt Hasher for credentials and a JWT TokenCodec that issues and verifies
// scoped, expiring tokens. Both are built once from an explicit Config and
// injected wherever they are needed; there is no package level state.
//
// # Credentials
//
//	hasher := auth.NewHasher(cfg.HashCost, 0)
//	hash, err := hasher.Hash(ctx, "s3cret")
//	ok := hasher.Verify(ctx, "s3cret", hash)
//
// Concurrent hash and verify calls are bounded by a semaphore so a burst of
// logins cannot occupy every CPU.
//
// # Tokens
//
// Every token carries a subject (the user's email) and exactly one Scope:
//
//	ScopeAccess       - presented on protected routes, 15 minutes by default
//	ScopeRefresh      - exchanged for a new token pair, 7 days by default
//	ScopeEmailConfirm - embedded in confirmation and reset emails, 7 days
//
// Issue and verify:
//
//	codec, err := auth.NewTokenCodec(cfg)
//	token, err := codec.Issue("alice@example.com", auth.ScopeAccess, 0)
//	subject, err := codec.Verify(token, auth.ScopeAccess)
//
// Verification failures are ErrInvalidSignature, ErrExpired or ErrScopeMismatch.
// All of them wrap ErrInvalidToken so HTTP handlers can collapse them into a
// single unauthorized response.
//
// # Related Packages
//
//   - pkg/session: login, refresh and email flows built on this package
//   - pkg/cache: identity cache holding User snapshots
//   - pkg/middleware: bearer token middleware
package auth
