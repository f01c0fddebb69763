package session

import (
	"errors"
	"testing"

	"github.com/classhub/classhub/pkg/identity"
	"github.com/classhub/classhub/pkg/profile"
)

func TestNewMergePrecedence(t *testing.T) {
	id := &identity.Identity{
		SubjectID:   "sub-1",
		Email:       "alice@example.com",
		DisplayName: "Alice (provider)",
		AvatarURL:   "https://idp.example.com/alice.png",
	}

	tests := []struct {
		name       string
		profile    *profile.Profile
		wantName   string
		wantAvatar string
		wantRole   profile.Role
	}{
		{
			name: "profile fields win when non-empty",
			profile: &profile.Profile{
				Email:     "alice@example.com",
				Name:      "Alice Smith",
				AvatarURL: "https://cdn.example.com/alice.png",
				Role:      profile.RoleTeacher,
			},
			wantName:   "Alice Smith",
			wantAvatar: "https://cdn.example.com/alice.png",
			wantRole:   profile.RoleTeacher,
		},
		{
			name:       "identity fills empty profile fields",
			profile:    &profile.Profile{Email: "alice@example.com", Role: profile.RoleUser},
			wantName:   "Alice (provider)",
			wantAvatar: "https://idp.example.com/alice.png",
			wantRole:   profile.RoleUser,
		},
		{
			name:     "empty role defaults to guest",
			profile:  &profile.Profile{Email: "alice@example.com", Name: "Alice"},
			wantName: "Alice",
			wantRole: profile.RoleGuest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(id, tt.profile)
			if s.Status != StatusFull {
				t.Errorf("status = %s, want full", s.Status)
			}
			if s.Name != tt.wantName {
				t.Errorf("name = %q, want %q", s.Name, tt.wantName)
			}
			if tt.wantAvatar != "" && s.AvatarURL != tt.wantAvatar {
				t.Errorf("avatar = %q, want %q", s.AvatarURL, tt.wantAvatar)
			}
			if s.Role != tt.wantRole {
				t.Errorf("role = %s, want %s", s.Role, tt.wantRole)
			}
			if s.Email() != "alice@example.com" {
				t.Errorf("email = %q", s.Email())
			}
		})
	}
}

func TestNone(t *testing.T) {
	s := None()
	if s.Status != StatusNone {
		t.Errorf("status = %s", s.Status)
	}
	if s.Role != profile.RoleGuest {
		t.Errorf("role = %s", s.Role)
	}
	if s.SignedIn() {
		t.Error("None should not be signed in")
	}
	if s.Email() != "" {
		t.Errorf("email = %q", s.Email())
	}
}

func TestDegraded(t *testing.T) {
	id := &identity.Identity{Email: "bob@example.com", DisplayName: "Bob"}
	cause := errors.New("store down")

	t.Run("defaults to guest without a cached role", func(t *testing.T) {
		s := Degraded(id, "", cause)
		if s.Status != StatusDegraded {
			t.Errorf("status = %s", s.Status)
		}
		if s.Role != profile.RoleGuest {
			t.Errorf("role = %s", s.Role)
		}
		if s.Profile != nil {
			t.Error("degraded session must not carry a profile")
		}
		if !errors.Is(s.Err, cause) {
			t.Errorf("err = %v", s.Err)
		}
	})

	t.Run("keeps the last known role", func(t *testing.T) {
		s := Degraded(id, profile.RoleTeacher, cause)
		if s.Role != profile.RoleTeacher {
			t.Errorf("role = %s", s.Role)
		}
		if s.Name != "Bob" {
			t.Errorf("name = %q", s.Name)
		}
	})
}
