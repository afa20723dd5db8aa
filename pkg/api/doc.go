// Package api exposes the HTTP interface of the contacts service.
//
// All routes live under /api and are grouped into handler sets that
// register themselves on a gorilla/mux subrouter:
//
//   - AuthHandlers: signup, login, email confirmation, password reset,
//     refresh token rotation and logout
//   - UserHandlers: the current user and avatar uploads
//   - ContactHandlers: contact CRUD, search and upcoming birthdays
//
// Contact routes are guarded by a per-route rate limit followed by bearer
// authentication. Errors are rendered as {"detail": "..."}.
//
// # Usage
//
//	server := api.NewServer(api.Dependencies{
//		Sessions: sessions,
//		Contacts: store,
//		Limiter:  middleware.NewFixedWindowLimiter(redisClient, ""),
//		RateLimits: cfg.RateLimit,
//		Logger:   logger,
//	})
//	http.ListenAndServe(":8000", server.Handler())
package api
