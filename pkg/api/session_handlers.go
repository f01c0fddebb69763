package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/classhub/classhub/pkg/authz"
	"github.com/classhub/classhub/pkg/httputil"
	"github.com/classhub/classhub/pkg/identity"
	"github.com/classhub/classhub/pkg/middleware"
	"github.com/classhub/classhub/pkg/observability"
	"github.com/classhub/classhub/pkg/profile"
	"github.com/classhub/classhub/pkg/session"
)

// SessionHandlers handles authentication and session HTTP requests
type SessionHandlers struct {
	provider   identity.Provider
	reconciler *session.Reconciler
	gate       *authz.Gate
	logger     *observability.Logger
}

// NewSessionHandlers creates a new session handlers instance
func NewSessionHandlers(provider identity.Provider, reconciler *session.Reconciler, gate *authz.Gate, logger *observability.Logger) *SessionHandlers {
	return &SessionHandlers{
		provider:   provider,
		reconciler: reconciler,
		gate:       gate,
		logger:     logger,
	}
}

// RegisterAuthRoutes registers the credential routes
func (h *SessionHandlers) RegisterAuthRoutes(router *mux.Router) {
	router.HandleFunc("/signup", h.signUp).Methods("POST")
	router.HandleFunc("/signin", h.signIn).Methods("POST")
	router.HandleFunc("/signout", h.signOut).Methods("POST")
}

// RegisterRoutes registers the session route
func (h *SessionHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/session", h.getSession).Methods("GET")
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// signUp handles POST /api/auth/signup
func (h *SessionHandlers) signUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		httputil.WriteBadRequest(w, "email and password are required")
		return
	}

	id, err := h.provider.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrEmailTaken):
			httputil.WriteErrorMessage(w, http.StatusConflict, "email already registered")
		case errors.Is(err, identity.ErrUnsupported):
			httputil.WriteErrorMessage(w, http.StatusNotImplemented, "registration is handled by the identity provider")
		default:
			httputil.WriteInternalError(w, err)
		}
		return
	}

	httputil.WriteCreated(w, id)
}

// signIn handles POST /api/auth/signin
func (h *SessionHandlers) signIn(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		httputil.WriteBadRequest(w, "email and password are required")
		return
	}

	id, err := h.provider.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			httputil.WriteErrorMessage(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, id)
}

// signOut handles POST /api/auth/signout
func (h *SessionHandlers) signOut(w http.ResponseWriter, r *http.Request) {
	if err := h.provider.SignOut(r.Context()); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

type sessionResponse struct {
	Status   session.Status `json:"status"`
	Role     profile.Role   `json:"role"`
	Email    string         `json:"email,omitempty"`
	Name     string         `json:"name,omitempty"`
	PhotoURL string         `json:"photoURL,omitempty"`

	// Limited signals degraded sessions so clients can show a
	// limited-functionality indication.
	Limited bool `json:"limited"`

	Surfaces []string `json:"surfaces"`

	Profile      *profile.Profile `json:"profile,omitempty"`
	ReconciledAt time.Time        `json:"reconciledAt"`
}

// getSession handles GET /api/session. The session is read, never
// triggered here; reconciliation is driven by identity-changed events.
func (h *SessionHandlers) getSession(w http.ResponseWriter, r *http.Request) {
	s := middleware.GetSession(r)

	resp := sessionResponse{
		Status:       s.Status,
		Role:         s.Role,
		Email:        s.Email(),
		Name:         s.Name,
		PhotoURL:     s.AvatarURL,
		Limited:      s.Status == session.StatusDegraded,
		Surfaces:     h.gate.SurfacesFor(s),
		Profile:      s.Profile,
		ReconciledAt: s.ReconciledAt,
	}
	httputil.WriteSuccess(w, resp)
}
