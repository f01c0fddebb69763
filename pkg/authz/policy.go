package authz

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/classhub/classhub/pkg/profile"
)

// Surface is a UI surface gated by a single capability
type Surface struct {
	ID       string     `yaml:"id"`
	Requires Capability `yaml:"requires"`
}

// Policy is the single source of truth for authorization: which
// capabilities each role holds, which capability each surface requires,
// what a degraded session may still do, and which role unknown role
// strings resolve to.
type Policy struct {
	Roles map[profile.Role][]Capability `yaml:"roles"`

	// Surfaces is ordered; VisibleSurfaces preserves this order
	Surfaces []Surface `yaml:"surfaces"`

	// DegradedAllowlist is the fixed read-only capability set a degraded
	// session keeps regardless of role.
	DegradedAllowlist []Capability `yaml:"degradedAllowlist"`

	// FallbackRole is the least-privileged signed-in role; unknown role
	// strings resolve to its capability set rather than failing open.
	FallbackRole profile.Role `yaml:"fallbackRole"`
}

// DefaultPolicy returns the built-in policy table
func DefaultPolicy() *Policy {
	return &Policy{
		Roles: map[profile.Role][]Capability{
			profile.RoleGuest: {CapViewPublic},
			profile.RoleUser: {
				CapViewPublic, CapViewOwnProfile, CapEditOwnProfile,
			},
			profile.RoleStudent: {
				CapViewPublic, CapViewOwnProfile, CapEditOwnProfile, CapViewOwnClasses,
			},
			profile.RoleTeacher: {
				CapViewPublic, CapViewOwnProfile, CapEditOwnProfile, CapViewOwnClasses,
			},
			profile.RoleAdmin: {
				CapViewPublic, CapViewOwnProfile, CapEditOwnProfile, CapViewOwnClasses,
				CapViewStudents, CapViewFaculty,
				CapManageUsers, CapManageFaculty, CapManageNotices, CapManageAdmissions,
			},
		},
		Surfaces: []Surface{
			{ID: "home", Requires: CapViewPublic},
			{ID: "profile", Requires: CapViewOwnProfile},
			{ID: "my-classes", Requires: CapViewOwnClasses},
			{ID: "students", Requires: CapViewStudents},
			{ID: "faculty", Requires: CapViewFaculty},
			{ID: "users", Requires: CapManageUsers},
			{ID: "notices", Requires: CapManageNotices},
			{ID: "admissions", Requires: CapManageAdmissions},
		},
		DegradedAllowlist: []Capability{CapViewPublic, CapViewOwnProfile},
		FallbackRole:      profile.RoleUser,
	}
}

// LoadPolicy loads a policy file, validates it, and returns it
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var policy Policy
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}

	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy file %s: %w", path, err)
	}
	return &policy, nil
}

// Validate checks the policy's internal consistency
func (p *Policy) Validate() error {
	if len(p.Roles) == 0 {
		return fmt.Errorf("no roles defined")
	}
	if p.FallbackRole == "" {
		return fmt.Errorf("fallbackRole is required")
	}
	if _, ok := p.Roles[p.FallbackRole]; !ok {
		return fmt.Errorf("fallbackRole %q has no capability set", p.FallbackRole)
	}
	seen := make(map[string]bool, len(p.Surfaces))
	for _, s := range p.Surfaces {
		if s.ID == "" {
			return fmt.Errorf("surface with empty id")
		}
		if s.Requires == "" {
			return fmt.Errorf("surface %q has no required capability", s.ID)
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate surface %q", s.ID)
		}
		seen[s.ID] = true
	}
	return nil
}

// capabilities returns the capability set for a role; unknown roles
// resolve to the fallback role's set.
func (p *Policy) capabilities(role profile.Role) map[Capability]bool {
	caps, ok := p.Roles[role]
	if !ok {
		caps = p.Roles[p.FallbackRole]
	}
	set := make(map[Capability]bool, len(caps))
	for _, c := range caps {
		set[c] = true
	}
	return set
}
