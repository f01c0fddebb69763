package middleware

import (
	"net/http"

	"github.com/classhub/classhub/pkg/authz"
	"github.com/classhub/classhub/pkg/contextkeys"
	"github.com/classhub/classhub/pkg/httputil"
	"github.com/classhub/classhub/pkg/observability"
	"github.com/classhub/classhub/pkg/profile"
	"github.com/classhub/classhub/pkg/session"
)

// SessionSource yields the current reconciled session. *session.Reconciler
// satisfies it.
type SessionSource interface {
	Current() session.Session
}

// SessionMiddleware injects the current session into each request context
type SessionMiddleware struct {
	source SessionSource
}

// NewSessionMiddleware creates a session-injecting middleware
func NewSessionMiddleware(source SessionSource) *SessionMiddleware {
	return &SessionMiddleware{source: source}
}

// Handler wraps an HTTP handler with session injection
func (m *SessionMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := m.source.Current()
		ctx := contextkeys.WithSession(r.Context(), s)
		if s.SignedIn() {
			ctx = observability.WithSessionEmail(ctx, s.Email())
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetSession retrieves the injected session from a request. Returns the
// signed-out session when no middleware ran.
func GetSession(r *http.Request) session.Session {
	if s, ok := r.Context().Value(contextkeys.SessionKey).(session.Session); ok {
		return s
	}
	return session.None()
}

// RequireCapability gates a handler on a capability. A signed-out session
// gets 401; a signed-in session without the capability gets 403.
func RequireCapability(gate *authz.Gate, capability authz.Capability, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := GetSession(r)
		if gate.Authorize(s, capability) {
			next.ServeHTTP(w, r)
			return
		}
		if !s.SignedIn() {
			httputil.WriteErrorMessage(w, http.StatusUnauthorized, "sign in required")
			return
		}
		httputil.WriteErrorMessage(w, http.StatusForbidden, "not permitted")
	})
}

// RequireRole gates a handler on a full session holding one of the roles
func RequireRole(gate *authz.Gate, next http.Handler, roles ...profile.Role) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := GetSession(r)
		if gate.RequireRole(s, roles...) {
			next.ServeHTTP(w, r)
			return
		}
		if !s.SignedIn() {
			httputil.WriteErrorMessage(w, http.StatusUnauthorized, "sign in required")
			return
		}
		httputil.WriteErrorMessage(w, http.StatusForbidden, "not permitted")
	})
}
