// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Overview
//
// Helpers for JSON encoding/decoding, {"detail": ...} error responses,
// parameter parsing and the middleware every request passes through.
//
// # Response Helpers
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteCreated(w, resource)
//	httputil.WriteMessage(w, "Email confirmed")       // {"message": ...}
//	httputil.WriteNotFoundError(w, "Contact not found") // {"detail": ...}
//	httputil.WriteUnauthorized(w, "Invalid password")  // adds WWW-Authenticate
//	httputil.WriteInternalError(w)                    // never leaks the cause
//
// # Request Parsing
//
//	var req ContactRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // 422 already written
//	}
//
//	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
//	skip, err := httputil.ParseQueryInt(r, "skip", 0)
//	form, ok := httputil.RequireFormValues(w, r, "username", "password")
//
// Handlers pass httputil.Detach(r) to stores so writes complete after a
// client disconnects.
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware(logger),
//		httputil.CORSMiddleware(origins),
//		httputil.MaxBytesMiddleware(10*1024*1024),
//	)
//
// # Related Packages
//
//   - pkg/middleware: Authentication and rate limiting middleware
package httputil
