package api

import (
	"context"
	"net/http"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/classhub/classhub/pkg/authz"
	"github.com/classhub/classhub/pkg/identity"
	"github.com/classhub/classhub/pkg/middleware"
	"github.com/classhub/classhub/pkg/observability"
	"github.com/classhub/classhub/pkg/profile"
	"github.com/classhub/classhub/pkg/session"
)

// Server wires the API routes with their middleware
type Server struct {
	router *mux.Router

	baseCtx context.Context
	stop    context.CancelFunc

	provider   identity.Provider
	reconciler *session.Reconciler
	store      profile.Store
	gate       *authz.Gate

	logger  *observability.Logger
	metrics *observability.Metrics

	sessionHandlers *SessionHandlers
	profileHandlers *ProfileHandlers
}

// Options configures optional server behavior
type Options struct {
	// AuthRateLimit throttles sign-in/sign-up attempts. Nil disables it.
	AuthRateLimit *middleware.RateLimitConfig

	// AuthRateLimitRedis shares the auth rate limit across instances.
	// Nil falls back to per-process buckets.
	AuthRateLimitRedis *redis.Client

	// Tracing wraps the router with OpenTelemetry instrumentation
	Tracing bool
}

// NewServer assembles the API server
func NewServer(provider identity.Provider, reconciler *session.Reconciler, store profile.Store, gate *authz.Gate, logger *observability.Logger, metrics *observability.Metrics, opts Options) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		router:     mux.NewRouter(),
		baseCtx:    ctx,
		stop:       cancel,
		provider:   provider,
		reconciler: reconciler,
		store:      store,
		gate:       gate,
		logger:     logger,
		metrics:    metrics,
	}

	s.sessionHandlers = NewSessionHandlers(provider, reconciler, gate, logger)
	s.profileHandlers = NewProfileHandlers(store, gate, reconciler, logger)

	s.setupRoutes(opts)
	return s
}

// setupRoutes configures routes and the middleware chain
func (s *Server) setupRoutes(opts Options) {
	s.router.Use(middleware.RequestID(s.logger))
	s.router.Use(s.metrics.HTTPMiddleware)
	s.router.Use(middleware.NewSessionMiddleware(s.reconciler).Handler)

	api := s.router.PathPrefix("/api").Subrouter()

	auth := api.PathPrefix("/auth").Subrouter()
	if opts.AuthRateLimit != nil {
		if opts.AuthRateLimitRedis != nil {
			auth.Use(middleware.NewDistributedRateLimitMiddleware(opts.AuthRateLimitRedis, opts.AuthRateLimit, s.logger).Handler)
		} else {
			rl := middleware.NewRateLimitMiddleware(opts.AuthRateLimit)
			rl.StartCleanup(s.baseCtx)
			auth.Use(rl.Handler)
		}
	}
	s.sessionHandlers.RegisterAuthRoutes(auth)

	s.sessionHandlers.RegisterRoutes(api)
	s.profileHandlers.RegisterRoutes(api, s.gate)
}

// Handler returns the root handler, optionally traced
func (s *Server) Handler(opts Options) http.Handler {
	if opts.Tracing {
		return otelhttp.NewHandler(s.router, "classhub-api")
	}
	return s.router
}

// Router exposes the router for tests
func (s *Server) Router() *mux.Router {
	return s.router
}

// Close stops background work owned by the server
func (s *Server) Close() {
	s.stop()
}
