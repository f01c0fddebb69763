package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/classhub/classhub/pkg/authz"
	"github.com/classhub/classhub/pkg/httputil"
	"github.com/classhub/classhub/pkg/middleware"
	"github.com/classhub/classhub/pkg/observability"
	"github.com/classhub/classhub/pkg/profile"
)

// SessionInvalidator is notified when a profile record is removed so the
// live session for that email does not outlast it.
type SessionInvalidator interface {
	OnProfileDeleted(email string)
}

// ProfileHandlers handles profile CRUD HTTP requests
type ProfileHandlers struct {
	store    profile.Store
	gate     *authz.Gate
	sessions SessionInvalidator
	logger   *observability.Logger
}

// NewProfileHandlers creates a new profile handlers instance
func NewProfileHandlers(store profile.Store, gate *authz.Gate, sessions SessionInvalidator, logger *observability.Logger) *ProfileHandlers {
	return &ProfileHandlers{store: store, gate: gate, sessions: sessions, logger: logger}
}

// RegisterRoutes registers profile routes
func (h *ProfileHandlers) RegisterRoutes(router *mux.Router, gate *authz.Gate) {
	router.Handle("/users", middleware.RequireCapability(gate, authz.CapManageUsers,
		http.HandlerFunc(h.createProfile))).Methods("POST")
	router.HandleFunc("/users/{email}", h.getProfile).Methods("GET")
	router.HandleFunc("/users/{email}", h.updateProfile).Methods("PATCH")
	router.Handle("/users/{email}", middleware.RequireCapability(gate, authz.CapManageUsers,
		http.HandlerFunc(h.deleteProfile))).Methods("DELETE")
}

// isSelf reports whether the request's session belongs to the email
func isSelf(r *http.Request, email string) bool {
	s := middleware.GetSession(r)
	return s.SignedIn() && s.Email() == profile.NormalizeEmail(email)
}

func (h *ProfileHandlers) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, profile.ErrNotFound):
		httputil.WriteNotFound(w, "profile not found")
	case errors.Is(err, profile.ErrConflict):
		httputil.WriteErrorMessage(w, http.StatusConflict, "profile already exists")
	default:
		h.logger.WithError(err).Error("profile store request failed")
		httputil.WriteErrorMessage(w, http.StatusServiceUnavailable, "profile store unavailable")
	}
}

// createProfile handles POST /api/users
func (h *ProfileHandlers) createProfile(w http.ResponseWriter, r *http.Request) {
	var p profile.Profile
	if !httputil.ParseJSONOrError(w, r, &p) {
		return
	}
	if p.Email == "" {
		httputil.WriteBadRequest(w, "email is required")
		return
	}
	if p.Role != "" && !p.Role.Valid() {
		httputil.WriteBadRequest(w, "unknown role")
		return
	}
	if p.Role == "" {
		p.Role = profile.RoleUser
	}
	p.Email = profile.NormalizeEmail(p.Email)
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	created, err := h.store.Create(r.Context(), &p)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	httputil.WriteCreated(w, created)
}

// getProfile handles GET /api/users/{email}: own profile with
// view-own-profile, anyone's with manage-users.
func (h *ProfileHandlers) getProfile(w http.ResponseWriter, r *http.Request) {
	email, ok := httputil.ParsePathStringOrError(w, r, "email")
	if !ok {
		return
	}

	s := middleware.GetSession(r)
	allowed := (isSelf(r, email) && h.gate.Authorize(s, authz.CapViewOwnProfile)) ||
		h.gate.Authorize(s, authz.CapManageUsers)
	if !allowed {
		if !s.SignedIn() {
			httputil.WriteErrorMessage(w, http.StatusUnauthorized, "sign in required")
			return
		}
		httputil.WriteErrorMessage(w, http.StatusForbidden, "not permitted")
		return
	}

	p, err := h.store.Fetch(r.Context(), profile.NormalizeEmail(email))
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	httputil.WriteSuccess(w, p)
}

// updateProfile handles PATCH /api/users/{email}. Self-service updates
// cover the editable fields only; role, class assignments, and enrollment
// changes require manage-users.
func (h *ProfileHandlers) updateProfile(w http.ResponseWriter, r *http.Request) {
	email, ok := httputil.ParsePathStringOrError(w, r, "email")
	if !ok {
		return
	}

	var patch profile.Patch
	if !httputil.ParseJSONOrError(w, r, &patch) {
		return
	}
	if patch.Role != nil && !patch.Role.Valid() {
		httputil.WriteBadRequest(w, "unknown role")
		return
	}

	s := middleware.GetSession(r)
	manager := h.gate.Authorize(s, authz.CapManageUsers)
	self := isSelf(r, email) && h.gate.Authorize(s, authz.CapEditOwnProfile)

	if !manager && !self {
		if !s.SignedIn() {
			httputil.WriteErrorMessage(w, http.StatusUnauthorized, "sign in required")
			return
		}
		httputil.WriteErrorMessage(w, http.StatusForbidden, "not permitted")
		return
	}

	privileged := patch.Role != nil || patch.Classes != nil || patch.EnrolledClassID != nil
	if privileged && !manager {
		httputil.WriteErrorMessage(w, http.StatusForbidden, "role and class changes require manage-users")
		return
	}

	updated, err := h.store.Update(r.Context(), profile.NormalizeEmail(email), patch)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	httputil.WriteSuccess(w, updated)
}

// deleteProfile handles DELETE /api/users/{email}
func (h *ProfileHandlers) deleteProfile(w http.ResponseWriter, r *http.Request) {
	email, ok := httputil.ParsePathStringOrError(w, r, "email")
	if !ok {
		return
	}

	normalized := profile.NormalizeEmail(email)
	if err := h.store.Delete(r.Context(), normalized); err != nil {
		h.writeStoreError(w, err)
		return
	}
	if h.sessions != nil {
		h.sessions.OnProfileDeleted(normalized)
	}
	httputil.WriteNoContent(w)
}
