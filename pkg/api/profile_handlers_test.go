package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/classhub/classhub/pkg/authz"
	"github.com/classhub/classhub/pkg/identity"
	"github.com/classhub/classhub/pkg/middleware"
	"github.com/classhub/classhub/pkg/observability"
	"github.com/classhub/classhub/pkg/profile"
	"github.com/classhub/classhub/pkg/session"
)

type fixedSource struct {
	s session.Session
}

func (f *fixedSource) Current() session.Session { return f.s }

type recordingInvalidator struct {
	deleted []string
}

func (ri *recordingInvalidator) OnProfileDeleted(email string) {
	ri.deleted = append(ri.deleted, email)
}

type profileEnv struct {
	store    *profile.MemoryStore
	source   *fixedSource
	sessions *recordingInvalidator
	router   *mux.Router
}

func newProfileEnv(t *testing.T) *profileEnv {
	t.Helper()
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	metrics := observability.NewMetrics()

	store := profile.NewMemoryStore()
	gate := authz.NewGate(authz.DefaultPolicy(), logger, metrics)
	sessions := &recordingInvalidator{}
	handlers := NewProfileHandlers(store, gate, sessions, logger)

	source := &fixedSource{s: session.None()}
	router := mux.NewRouter()
	router.Use(middleware.NewSessionMiddleware(source).Handler)
	handlers.RegisterRoutes(router.PathPrefix("/api").Subrouter(), gate)

	return &profileEnv{store: store, source: source, sessions: sessions, router: router}
}

func (e *profileEnv) as(s session.Session) *profileEnv {
	e.source.s = s
	return e
}

func (e *profileEnv) do(method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *profileEnv) seed(t *testing.T, email string, role profile.Role) {
	t.Helper()
	_, err := e.store.Create(context.Background(), &profile.Profile{
		Email:     email,
		Name:      "Seeded",
		Role:      role,
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}
}

func adminSession(email string) session.Session {
	return sessionFor(email, profile.RoleAdmin)
}

func sessionFor(email string, role profile.Role) session.Session {
	return session.Session{
		Identity: &identity.Identity{SubjectID: "sub-" + email, Email: email},
		Profile:  &profile.Profile{Email: email, Role: role},
		Role:     role,
		Status:   session.StatusFull,
	}
}

func TestCreateProfile(t *testing.T) {
	env := newProfileEnv(t)

	t.Run("admin creates a profile", func(t *testing.T) {
		env.as(adminSession("admin@example.com"))
		rec := env.do("POST", "/api/users", `{"email":"New@Example.com","name":"New User","role":"teacher"}`)
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}

		var created profile.Profile
		if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
			t.Fatal(err)
		}
		if created.Email != "new@example.com" {
			t.Errorf("email not normalized: %q", created.Email)
		}
		if created.Role != profile.RoleTeacher {
			t.Errorf("role = %s", created.Role)
		}
	})

	t.Run("duplicate yields 409", func(t *testing.T) {
		env.as(adminSession("admin@example.com"))
		rec := env.do("POST", "/api/users", `{"email":"new@example.com"}`)
		if rec.Code != http.StatusConflict {
			t.Errorf("status = %d", rec.Code)
		}
	})

	t.Run("unknown role rejected", func(t *testing.T) {
		env.as(adminSession("admin@example.com"))
		rec := env.do("POST", "/api/users", `{"email":"x@example.com","role":"superuser"}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d", rec.Code)
		}
	})

	t.Run("non-admin gets 403", func(t *testing.T) {
		env.as(sessionFor("user@example.com", profile.RoleUser))
		rec := env.do("POST", "/api/users", `{"email":"y@example.com"}`)
		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d", rec.Code)
		}
	})

	t.Run("signed out gets 401", func(t *testing.T) {
		env.as(session.None())
		rec := env.do("POST", "/api/users", `{"email":"z@example.com"}`)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d", rec.Code)
		}
	})
}

func TestGetProfile(t *testing.T) {
	env := newProfileEnv(t)
	env.seed(t, "alice@example.com", profile.RoleUser)
	env.seed(t, "bob@example.com", profile.RoleUser)

	t.Run("own profile", func(t *testing.T) {
		env.as(sessionFor("alice@example.com", profile.RoleUser))
		rec := env.do("GET", "/api/users/alice@example.com", "")
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d", rec.Code)
		}
	})

	t.Run("someone else's profile denied", func(t *testing.T) {
		env.as(sessionFor("alice@example.com", profile.RoleUser))
		rec := env.do("GET", "/api/users/bob@example.com", "")
		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d", rec.Code)
		}
	})

	t.Run("admin reads anyone", func(t *testing.T) {
		env.as(adminSession("admin@example.com"))
		rec := env.do("GET", "/api/users/bob@example.com", "")
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d", rec.Code)
		}
	})

	t.Run("degraded session can read own profile", func(t *testing.T) {
		s := sessionFor("alice@example.com", profile.RoleUser)
		s.Status = session.StatusDegraded
		s.Profile = nil
		env.as(s)
		rec := env.do("GET", "/api/users/alice@example.com", "")
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d", rec.Code)
		}
	})

	t.Run("missing profile", func(t *testing.T) {
		env.as(adminSession("admin@example.com"))
		rec := env.do("GET", "/api/users/nobody@example.com", "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d", rec.Code)
		}
	})
}

func TestUpdateProfile(t *testing.T) {
	env := newProfileEnv(t)
	env.seed(t, "carol@example.com", profile.RoleUser)

	t.Run("self edits own fields", func(t *testing.T) {
		env.as(sessionFor("carol@example.com", profile.RoleUser))
		rec := env.do("PATCH", "/api/users/carol@example.com", `{"name":"Carol","phone":"555-0100"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}
		var updated profile.Profile
		if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
			t.Fatal(err)
		}
		if updated.Name != "Carol" || updated.Phone != "555-0100" {
			t.Errorf("updated = %+v", updated)
		}
	})

	t.Run("self cannot change role", func(t *testing.T) {
		env.as(sessionFor("carol@example.com", profile.RoleUser))
		rec := env.do("PATCH", "/api/users/carol@example.com", `{"role":"admin"}`)
		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d", rec.Code)
		}
	})

	t.Run("admin changes role and classes", func(t *testing.T) {
		env.as(adminSession("admin@example.com"))
		body := `{"role":"teacher","classes":[{"classId":"c1","className":"Algebra","subjects":["math"]}]}`
		rec := env.do("PATCH", "/api/users/carol@example.com", body)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}
		var updated profile.Profile
		if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
			t.Fatal(err)
		}
		if updated.Role != profile.RoleTeacher || len(updated.Classes) != 1 {
			t.Errorf("updated = %+v", updated)
		}
	})

	t.Run("degraded session cannot edit", func(t *testing.T) {
		s := sessionFor("carol@example.com", profile.RoleUser)
		s.Status = session.StatusDegraded
		env.as(s)
		rec := env.do("PATCH", "/api/users/carol@example.com", `{"name":"X"}`)
		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d", rec.Code)
		}
	})
}

func TestDeleteProfile(t *testing.T) {
	env := newProfileEnv(t)
	env.seed(t, "dave@example.com", profile.RoleUser)

	t.Run("self cannot delete", func(t *testing.T) {
		env.as(sessionFor("dave@example.com", profile.RoleUser))
		rec := env.do("DELETE", "/api/users/dave@example.com", "")
		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d", rec.Code)
		}
	})

	t.Run("admin deletes and session is invalidated", func(t *testing.T) {
		env.as(adminSession("admin@example.com"))
		rec := env.do("DELETE", "/api/users/Dave@Example.com", "")
		if rec.Code != http.StatusNoContent {
			t.Errorf("status = %d", rec.Code)
		}
		if len(env.sessions.deleted) != 1 || env.sessions.deleted[0] != "dave@example.com" {
			t.Errorf("invalidated = %v, want [dave@example.com]", env.sessions.deleted)
		}
	})

	t.Run("delete again yields 404 without invalidation", func(t *testing.T) {
		env.as(adminSession("admin@example.com"))
		rec := env.do("DELETE", "/api/users/dave@example.com", "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d", rec.Code)
		}
		if len(env.sessions.deleted) != 1 {
			t.Errorf("failed delete should not invalidate, got %v", env.sessions.deleted)
		}
	})
}
