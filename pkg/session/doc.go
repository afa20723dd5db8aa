// Package session implements the account flows of the API on top of the
// token codec, the password hasher and the identity cache.
//
// # Flows
//
//	Signup               create an unconfirmed user and mail a confirmation link
//	Login                check credentials and hand out an access/refresh pair
//	ConfirmEmail         mark the address in an email token as confirmed
//	RequestConfirmation  mail a fresh confirmation link
//	RequestPasswordReset mail a reset link
//	ResetPassword        replace the password named by an email token
//	Refresh              rotate the token pair, locking out a replayed refresh token
//	Logout               forget the stored refresh token
//	CurrentUser          resolve an access token into a user
//
// # Identity cache
//
// CurrentUser reads through the IdentityCache. Hits are served for up to
// Options.CacheTTL after they were written, even if the row changed since.
// Cache failures are logged and counted and the store is used instead.
// Users that do not exist are never cached.
//
// # Errors
//
// Every failure a client should see is an *Error whose Kind is one of the
// sentinel errors below, so callers can use errors.Is:
//
//	if errors.Is(err, session.ErrUnauthorized) { ... }
package session
