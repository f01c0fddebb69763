package profile

import (
	"strings"
	"time"
)

// Role represents a profile's role in the portal
type Role string

const (
	RoleGuest   Role = "guest"
	RoleUser    Role = "user"
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// KnownRoles returns all recognized roles
func KnownRoles() []Role {
	return []Role{RoleGuest, RoleUser, RoleStudent, RoleTeacher, RoleAdmin}
}

// ParseRole normalizes a role string. The boolean reports whether the role
// is recognized; unrecognized roles are returned as-is so the authorization
// layer can apply its fail-closed fallback.
func ParseRole(s string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range KnownRoles() {
		if role == known {
			return role, true
		}
	}
	return role, false
}

// Valid reports whether the role is one of the known roles
func (r Role) Valid() bool {
	_, ok := ParseRole(string(r))
	return ok
}

// ClassAssignment represents a class assigned to a teacher
type ClassAssignment struct {
	ClassID    string   `json:"classId"`
	ClassName  string   `json:"className"`
	Subjects   []string `json:"subjects,omitempty"`
	RoomNumber string   `json:"roomNumber,omitempty"`
	ClassTime  string   `json:"classTime,omitempty"`
}

// Profile is the application-owned user record, keyed by email
type Profile struct {
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	AvatarURL string    `json:"photoURL,omitempty"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`

	// Role-specific attachments
	Classes         []ClassAssignment `json:"classes,omitempty"`         // teacher assignments
	EnrolledClassID string            `json:"enrolledClassId,omitempty"` // student enrollment
}

// Clone returns a deep copy of the profile
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	out := *p
	if p.Classes != nil {
		out.Classes = make([]ClassAssignment, len(p.Classes))
		for i, c := range p.Classes {
			out.Classes[i] = c
			if c.Subjects != nil {
				out.Classes[i].Subjects = append([]string(nil), c.Subjects...)
			}
		}
	}
	return &out
}

// Patch is a partial profile update. Nil fields are left unchanged.
// Role and Classes changes are admin-gated by the API layer; the store
// applies whatever it is given.
type Patch struct {
	Name            *string            `json:"name,omitempty"`
	Phone           *string            `json:"phone,omitempty"`
	AvatarURL       *string            `json:"photoURL,omitempty"`
	Role            *Role              `json:"role,omitempty"`
	Classes         *[]ClassAssignment `json:"classes,omitempty"`
	EnrolledClassID *string            `json:"enrolledClassId,omitempty"`
}

// Apply copies the patch's set fields onto the profile
func (p Patch) Apply(target *Profile) {
	if p.Name != nil {
		target.Name = *p.Name
	}
	if p.Phone != nil {
		target.Phone = *p.Phone
	}
	if p.AvatarURL != nil {
		target.AvatarURL = *p.AvatarURL
	}
	if p.Role != nil {
		target.Role = *p.Role
	}
	if p.Classes != nil {
		target.Classes = *p.Classes
	}
	if p.EnrolledClassID != nil {
		target.EnrolledClassID = *p.EnrolledClassID
	}
}

// NormalizeEmail canonicalizes an email for use as a store key
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
