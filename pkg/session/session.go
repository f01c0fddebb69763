package session

import (
	"time"

	"github.com/classhub/classhub/pkg/identity"
	"github.com/classhub/classhub/pkg/profile"
)

// Status describes how much of the session could be reconciled
type Status string

const (
	// StatusNone means no identity is signed in
	StatusNone Status = "none"

	// StatusDegraded means an identity is signed in but the profile could
	// not be fetched; the session is usable for read-only, non-privileged
	// operations only.
	StatusDegraded Status = "degraded"

	// StatusFull means identity and profile were merged successfully
	StatusFull Status = "full"
)

// Session is the merged view of the provider identity and the stored
// profile. It is derived, never stored, and rebuilt from scratch on every
// identity-changed event; consumers treat it as an immutable value.
type Session struct {
	Identity *identity.Identity `json:"identity,omitempty"`
	Profile  *profile.Profile   `json:"profile,omitempty"`

	Role   profile.Role `json:"role"`
	Status Status       `json:"status"`

	// Merged display fields: the profile's values win when non-empty
	// because the profile is the user-editable record.
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"photoURL,omitempty"`

	ReconciledAt time.Time `json:"reconciledAt"`

	// Err carries the store failure behind a degraded session, for
	// logging and telemetry. Never populated on full or none sessions.
	Err error `json:"-"`
}

// Email returns the identity email, or empty for a signed-out session
func (s Session) Email() string {
	if s.Identity == nil {
		return ""
	}
	return s.Identity.Email
}

// SignedIn reports whether an identity is present
func (s Session) SignedIn() bool {
	return s.Status != StatusNone
}

// None returns the signed-out session
func None() Session {
	return Session{Role: profile.RoleGuest, Status: StatusNone, ReconciledAt: time.Now()}
}

// New builds a full session by merging the identity with its profile.
// Email always comes from the identity; role always comes from the profile.
func New(id *identity.Identity, p *profile.Profile) Session {
	s := Session{
		Identity:     id,
		Profile:      p,
		Role:         p.Role,
		Status:       StatusFull,
		Name:         p.Name,
		AvatarURL:    p.AvatarURL,
		ReconciledAt: time.Now(),
	}
	if s.Role == "" {
		s.Role = profile.RoleGuest
	}
	if s.Name == "" {
		s.Name = id.DisplayName
	}
	if s.AvatarURL == "" {
		s.AvatarURL = id.AvatarURL
	}
	return s
}

// Degraded builds a profile-less session after a store failure. The role is
// the caller's last known role for the identity, or guest.
func Degraded(id *identity.Identity, lastKnownRole profile.Role, err error) Session {
	if lastKnownRole == "" {
		lastKnownRole = profile.RoleGuest
	}
	return Session{
		Identity:     id,
		Role:         lastKnownRole,
		Status:       StatusDegraded,
		Name:         id.DisplayName,
		AvatarURL:    id.AvatarURL,
		ReconciledAt: time.Now(),
		Err:          err,
	}
}
