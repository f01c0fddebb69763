package authz

import (
	"io"
	"reflect"
	"testing"

	"github.com/classhub/classhub/pkg/observability"
	"github.com/classhub/classhub/pkg/profile"
	"github.com/classhub/classhub/pkg/session"
)

func newTestGate(t *testing.T) *Gate {
	t.Helper()
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	return NewGate(DefaultPolicy(), logger, observability.NewMetrics())
}

func fullSession(role profile.Role) session.Session {
	return session.Session{Status: session.StatusFull, Role: role}
}

func TestAuthorize(t *testing.T) {
	gate := newTestGate(t)

	tests := []struct {
		name       string
		session    session.Session
		capability Capability
		want       bool
	}{
		{"signed-out public", session.None(), CapViewPublic, true},
		{"signed-out own profile", session.None(), CapViewOwnProfile, false},
		{"signed-out manage users", session.None(), CapManageUsers, false},

		{"degraded public", session.Session{Status: session.StatusDegraded, Role: profile.RoleAdmin}, CapViewPublic, true},
		{"degraded own profile", session.Session{Status: session.StatusDegraded, Role: profile.RoleAdmin}, CapViewOwnProfile, true},
		{"degraded admin cannot manage users", session.Session{Status: session.StatusDegraded, Role: profile.RoleAdmin}, CapManageUsers, false},
		{"degraded cannot edit profile", session.Session{Status: session.StatusDegraded, Role: profile.RoleTeacher}, CapEditOwnProfile, false},

		{"full admin manage users", fullSession(profile.RoleAdmin), CapManageUsers, true},
		{"full admin manage faculty", fullSession(profile.RoleAdmin), CapManageFaculty, true},
		{"full teacher own classes", fullSession(profile.RoleTeacher), CapViewOwnClasses, true},
		{"full teacher cannot manage users", fullSession(profile.RoleTeacher), CapManageUsers, false},
		{"full user own profile", fullSession(profile.RoleUser), CapViewOwnProfile, true},
		{"full user cannot view classes", fullSession(profile.RoleUser), CapViewOwnClasses, false},
		{"full guest public only", fullSession(profile.RoleGuest), CapViewOwnProfile, false},

		{"unknown role gets user set", fullSession(profile.Role("superuser")), CapViewOwnProfile, true},
		{"unknown role cannot manage users", fullSession(profile.Role("superuser")), CapManageUsers, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := gate.Authorize(tt.session, tt.capability); got != tt.want {
				t.Errorf("Authorize(%s, %s) = %v, want %v", tt.session.Status, tt.capability, got, tt.want)
			}
		})
	}
}

func TestAuthorizeAll(t *testing.T) {
	gate := newTestGate(t)

	admin := fullSession(profile.RoleAdmin)
	if !gate.AuthorizeAll(admin, CapManageUsers, CapManageNotices) {
		t.Error("admin should hold both capabilities")
	}

	teacher := fullSession(profile.RoleTeacher)
	if gate.AuthorizeAll(teacher, CapViewOwnClasses, CapManageUsers) {
		t.Error("teacher should fail the combined check")
	}
}

func TestRequireRole(t *testing.T) {
	gate := newTestGate(t)

	t.Run("matching role on full session", func(t *testing.T) {
		if !gate.RequireRole(fullSession(profile.RoleAdmin), profile.RoleAdmin) {
			t.Error("expected allow")
		}
	})

	t.Run("any of several roles", func(t *testing.T) {
		if !gate.RequireRole(fullSession(profile.RoleTeacher), profile.RoleAdmin, profile.RoleTeacher) {
			t.Error("expected allow")
		}
	})

	t.Run("wrong role", func(t *testing.T) {
		if gate.RequireRole(fullSession(profile.RoleUser), profile.RoleAdmin) {
			t.Error("expected deny")
		}
	})

	t.Run("degraded session never passes role checks", func(t *testing.T) {
		s := session.Session{Status: session.StatusDegraded, Role: profile.RoleAdmin}
		if gate.RequireRole(s, profile.RoleAdmin) {
			t.Error("expected deny on degraded session")
		}
	})

	t.Run("signed-out session", func(t *testing.T) {
		if gate.RequireRole(session.None(), profile.RoleGuest) {
			t.Error("expected deny")
		}
	})
}

func TestVisibleSurfaces(t *testing.T) {
	gate := newTestGate(t)

	tests := []struct {
		role profile.Role
		want []string
	}{
		{profile.RoleGuest, []string{"home"}},
		{profile.RoleUser, []string{"home", "profile"}},
		{profile.RoleStudent, []string{"home", "profile", "my-classes"}},
		{profile.RoleTeacher, []string{"home", "profile", "my-classes"}},
		{profile.RoleAdmin, []string{"home", "profile", "my-classes", "students", "faculty", "users", "notices", "admissions"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			got := gate.VisibleSurfaces(tt.role)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("VisibleSurfaces(%s) = %v, want %v", tt.role, got, tt.want)
			}
		})
	}

	t.Run("unknown role equals user, not admin", func(t *testing.T) {
		got := gate.VisibleSurfaces(profile.Role("unknown-role"))
		want := gate.VisibleSurfaces(profile.RoleUser)
		if !reflect.DeepEqual(got, want) {
			t.Errorf("unknown role surfaces = %v, want user surfaces %v", got, want)
		}
	})
}

func TestSurfacesFor(t *testing.T) {
	gate := newTestGate(t)

	t.Run("signed out sees public surfaces only", func(t *testing.T) {
		got := gate.SurfacesFor(session.None())
		if !reflect.DeepEqual(got, []string{"home"}) {
			t.Errorf("got %v", got)
		}
	})

	t.Run("degraded admin limited to allowlist", func(t *testing.T) {
		s := session.Session{Status: session.StatusDegraded, Role: profile.RoleAdmin}
		got := gate.SurfacesFor(s)
		if !reflect.DeepEqual(got, []string{"home", "profile"}) {
			t.Errorf("got %v", got)
		}
	})

	t.Run("full session follows role", func(t *testing.T) {
		got := gate.SurfacesFor(fullSession(profile.RoleStudent))
		if !reflect.DeepEqual(got, []string{"home", "profile", "my-classes"}) {
			t.Errorf("got %v", got)
		}
	})
}

func TestSetPolicy(t *testing.T) {
	gate := newTestGate(t)

	custom := DefaultPolicy()
	custom.Roles[profile.RoleUser] = append(custom.Roles[profile.RoleUser], CapViewOwnClasses)
	gate.SetPolicy(custom)

	if !gate.Authorize(fullSession(profile.RoleUser), CapViewOwnClasses) {
		t.Error("expected replacement policy to take effect")
	}
}
