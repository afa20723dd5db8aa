// Package middleware provides HTTP middleware for bearer authentication and rate limiting.
//
// # Overview
//
// AuthMiddleware resolves the bearer access token of a request into an
// *auth.User and stores it on the request context. RateLimitMiddleware counts
// requests per route and client IP in fixed windows.
//
// # Middleware Components
//
// AuthMiddleware: Bearer token authentication
//
//	authMW := middleware.NewAuthMiddleware(sessionManager, logger)
//	router.Use(authMW.Handler)
//	// handlers read the user with middleware.UserFromContext(r.Context())
//
// RateLimitMiddleware: Per-route fixed window
//
//	limiter := middleware.NewFixedWindowLimiter(redisClient, "ratelimit")
//	quota := middleware.Quota{Name: "contacts.list", Limit: 5, Window: time.Minute}
//	route.Handler(middleware.RateLimitMiddleware(limiter, quota, cfg.RateLimit.TrustedProxies, logger, metrics)(handler))
//
// # Rate Limiting
//
// FixedWindowLimiter runs one Lua script per request: INCR the counter and,
// only on the first increment, EXPIRE it. The window therefore starts on the
// first request and is never extended. MemoryLimiter has the same semantics
// in-process. Over quota the middleware answers 429 with
// {"error":"Too Many Requests","retry_after":N} and a Retry-After header.
// Limiter errors fail open.
//
// The client IP is the peer address unless the peer is listed in
// TrustedProxies (ROLODEX_TRUSTED_PROXIES), in which case X-Forwarded-For
// and X-Real-IP are honored.
//
// # Related Packages
//
//   - pkg/session: IdentityResolver implementation
//   - pkg/config: quota configuration
package middleware
