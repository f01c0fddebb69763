package authz

import (
	"sync"

	"github.com/classhub/classhub/pkg/observability"
	"github.com/classhub/classhub/pkg/profile"
	"github.com/classhub/classhub/pkg/session"
)

// Gate evaluates sessions against the policy table. It is safe for
// concurrent use; the policy may be swapped at runtime by the watcher.
type Gate struct {
	mu     sync.RWMutex
	policy *Policy

	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewGate creates a gate over a validated policy
func NewGate(policy *Policy, logger *observability.Logger, metrics *observability.Metrics) *Gate {
	return &Gate{policy: policy, logger: logger, metrics: metrics}
}

// SetPolicy atomically replaces the policy table
func (g *Gate) SetPolicy(policy *Policy) {
	g.mu.Lock()
	g.policy = policy
	g.mu.Unlock()

	g.logger.WithFields(map[string]interface{}{
		"roles":    len(policy.Roles),
		"surfaces": len(policy.Surfaces),
	}).Info("authorization policy replaced")
}

func (g *Gate) snapshot() *Policy {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.policy
}

// Authorize reports whether the session may exercise the capability.
// A signed-out session holds only the public capability; a degraded
// session holds only the degraded allowlist; a full session holds its
// role's capability set.
func (g *Gate) Authorize(s session.Session, capability Capability) bool {
	allowed := g.decide(s, capability)
	g.metrics.ObserveAuthzDecision(string(capability), allowed)
	return allowed
}

// AuthorizeAll reports whether the session holds every capability
func (g *Gate) AuthorizeAll(s session.Session, capabilities ...Capability) bool {
	for _, c := range capabilities {
		if !g.Authorize(s, c) {
			return false
		}
	}
	return true
}

func (g *Gate) decide(s session.Session, capability Capability) bool {
	policy := g.snapshot()

	switch s.Status {
	case session.StatusNone:
		return capability == CapViewPublic
	case session.StatusDegraded:
		for _, c := range policy.DegradedAllowlist {
			if c == capability {
				return true
			}
		}
		return false
	case session.StatusFull:
		return policy.capabilities(s.Role)[capability]
	default:
		return false
	}
}

// RequireRole reports whether the session is full and holds one of the
// roles. Role checks never pass on degraded sessions; the profile that
// proves the role could not be fetched.
func (g *Gate) RequireRole(s session.Session, roles ...profile.Role) bool {
	if s.Status != session.StatusFull {
		return false
	}
	for _, role := range roles {
		if s.Role == role {
			return true
		}
	}
	return false
}

// VisibleSurfaces returns the surfaces the role's capability set covers,
// in policy order. Unknown roles see the fallback role's surfaces.
func (g *Gate) VisibleSurfaces(role profile.Role) []string {
	policy := g.snapshot()
	caps := policy.capabilities(role)

	out := make([]string, 0, len(policy.Surfaces))
	for _, s := range policy.Surfaces {
		if caps[s.Requires] {
			out = append(out, s.ID)
		}
	}
	return out
}

// SurfacesFor returns the surfaces visible to a session, honoring its
// status: none and degraded sessions see only what their restricted
// capability sets cover.
func (g *Gate) SurfacesFor(s session.Session) []string {
	policy := g.snapshot()

	out := make([]string, 0, len(policy.Surfaces))
	for _, surface := range policy.Surfaces {
		if g.decide(s, surface.Requires) {
			out = append(out, surface.ID)
		}
	}
	return out
}
