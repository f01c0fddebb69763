package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/classhub/classhub/pkg/authz"
	"github.com/classhub/classhub/pkg/observability"
	"github.com/classhub/classhub/pkg/profile"
	"github.com/classhub/classhub/pkg/session"
)

type staticSource struct {
	s session.Session
}

func (s staticSource) Current() session.Session { return s.s }

func newTestGate() *authz.Gate {
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	return authz.NewGate(authz.DefaultPolicy(), logger, observability.NewMetrics())
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func serveWithSession(t *testing.T, s session.Session, h http.Handler) *httptest.ResponseRecorder {
	t.Helper()
	sm := NewSessionMiddleware(staticSource{s})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	sm.Handler(h).ServeHTTP(rec, req)
	return rec
}

func TestSessionMiddlewareInjection(t *testing.T) {
	want := session.Session{Status: session.StatusFull, Role: profile.RoleTeacher}

	var got session.Session
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetSession(r)
	})
	serveWithSession(t, want, h)

	if got.Status != session.StatusFull || got.Role != profile.RoleTeacher {
		t.Errorf("injected session = %s/%s", got.Status, got.Role)
	}
}

func TestGetSessionWithoutMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if s := GetSession(req); s.Status != session.StatusNone {
		t.Errorf("status = %s, want none", s.Status)
	}
}

func TestRequireCapability(t *testing.T) {
	gate := newTestGate()

	tests := []struct {
		name       string
		session    session.Session
		capability authz.Capability
		wantStatus int
	}{
		{"signed out gets 401", session.None(), authz.CapViewOwnProfile, http.StatusUnauthorized},
		{"missing capability gets 403", session.Session{Status: session.StatusFull, Role: profile.RoleUser}, authz.CapManageUsers, http.StatusForbidden},
		{"degraded beyond allowlist gets 403", session.Session{Status: session.StatusDegraded, Role: profile.RoleAdmin}, authz.CapManageUsers, http.StatusForbidden},
		{"degraded allowlist passes", session.Session{Status: session.StatusDegraded, Role: profile.RoleAdmin}, authz.CapViewOwnProfile, http.StatusOK},
		{"capability present passes", session.Session{Status: session.StatusFull, Role: profile.RoleAdmin}, authz.CapManageUsers, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serveWithSession(t, tt.session, RequireCapability(gate, tt.capability, okHandler()))
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	gate := newTestGate()

	t.Run("matching role passes", func(t *testing.T) {
		s := session.Session{Status: session.StatusFull, Role: profile.RoleAdmin}
		rec := serveWithSession(t, s, RequireRole(gate, okHandler(), profile.RoleAdmin))
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d", rec.Code)
		}
	})

	t.Run("degraded session gets 403 even with the role", func(t *testing.T) {
		s := session.Session{Status: session.StatusDegraded, Role: profile.RoleAdmin}
		rec := serveWithSession(t, s, RequireRole(gate, okHandler(), profile.RoleAdmin))
		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d", rec.Code)
		}
	})

	t.Run("signed out gets 401", func(t *testing.T) {
		rec := serveWithSession(t, session.None(), RequireRole(gate, okHandler(), profile.RoleAdmin))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d", rec.Code)
		}
	})
}
