// Package middleware provides HTTP middleware for request identity,
// session injection, capability checks, and rate limiting.
//
// # Middleware Components
//
// RequestID: attaches a UUID request ID and request-scoped logger
//
//	router.Use(middleware.RequestID(logger))
//
// SessionMiddleware: injects the current reconciled session
//
//	sm := middleware.NewSessionMiddleware(reconciler)
//	router.Use(sm.Handler)
//
// RequireCapability / RequireRole: gate handlers on the session
//
//	router.Handle("/api/users", middleware.RequireCapability(gate, authz.CapManageUsers, h))
//
// A missing session yields 401; a session lacking the capability yields
// 403. Degraded sessions pass only for the degraded allowlist.
//
// RateLimitMiddleware: token-bucket limiting keyed by session email or
// client IP, with an optional Redis-backed variant shared across
// instances. Sign-in and sign-up routes use the stricter credential tier.
//
// # Related Packages
//
//   - pkg/session: session reconciliation
//   - pkg/authz: capability policy
//   - pkg/contextkeys: context key definitions
package middleware
