package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"github.com/classhub/classhub/pkg/api"
	"github.com/classhub/classhub/pkg/authz"
	"github.com/classhub/classhub/pkg/config"
	"github.com/classhub/classhub/pkg/identity"
	"github.com/classhub/classhub/pkg/middleware"
	"github.com/classhub/classhub/pkg/observability"
	"github.com/classhub/classhub/pkg/profile"
	"github.com/classhub/classhub/pkg/session"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "classhubd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	metrics := observability.NewMetrics()
	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing
	if cfg.Observability.OTelEnabled {
		providers, err := observability.InitOTel(ctx, observability.OTelConfig{
			Enabled:        true,
			Endpoint:       cfg.Observability.OTelEndpoint,
			ServiceName:    cfg.Observability.OTelServiceName,
			ServiceVersion: cfg.Observability.OTelServiceVersion,
			Insecure:       cfg.Observability.OTelInsecure,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		shutdown.RegisterShutdownFunc(providers.Shutdown)
	}

	// Shared Redis client for the profile cache and distributed rate limits
	var redisClient *redis.Client
	if cfg.Store.CacheEnabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr: cfg.Store.RedisURL,
			DB:   cfg.Store.RedisDB,
		})
		shutdown.RegisterShutdownFunc(func(context.Context) error {
			return redisClient.Close()
		})
	}

	// Profile store
	store, storeCleanup, err := buildStore(ctx, cfg, redisClient, logger, metrics)
	if err != nil {
		return err
	}
	if storeCleanup != nil {
		shutdown.RegisterShutdownFunc(storeCleanup)
	}

	// Identity provider
	provider, err := buildProvider(ctx, cfg)
	if err != nil {
		return err
	}

	// Session reconciliation
	reconciler, err := session.NewReconciler(store, session.Config{
		FetchAttempts: cfg.Reconcile.FetchAttempts,
		RetryInterval: cfg.Reconcile.RetryInterval,
		CallTimeout:   cfg.Reconcile.CallTimeout,
		Deadline:      cfg.Reconcile.Deadline,
	}, logger, metrics)
	if err != nil {
		return err
	}
	unsubscribe := provider.Subscribe(reconciler.OnIdentityChanged)
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		unsubscribe()
		reconciler.Close()
		return nil
	})

	// Authorization policy
	policy := authz.DefaultPolicy()
	if cfg.Authz.PolicyFile != "" {
		policy, err = authz.LoadPolicy(cfg.Authz.PolicyFile)
		if err != nil {
			return fmt.Errorf("failed to load authorization policy: %w", err)
		}
	}
	gate := authz.NewGate(policy, logger, metrics)

	// API server
	opts := api.Options{Tracing: cfg.Observability.OTelEnabled}
	if cfg.Server.AuthRateLimitEnabled {
		opts.AuthRateLimit = middleware.CredentialRateLimitConfig()
		opts.AuthRateLimitRedis = redisClient
	}
	server := api.NewServer(provider, reconciler, store, gate, logger, metrics, opts)
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		server.Close()
		return nil
	})

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server.Handler(opts),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	shutdown.RegisterServer(apiServer)

	// Health and metrics server, on its own port for probes
	health := observability.NewHealthChecker(cfg.Reconcile.CallTimeout)
	if pinger, ok := store.(profile.Pinger); ok {
		health.Register("profile-store", pinger.Ping)
	}

	healthMux := http.NewServeMux()
	healthMux.Handle("/healthz", health.LivenessHandler())
	healthMux.Handle("/readyz", health.ReadinessHandler())
	if cfg.Observability.MetricsEnabled {
		healthMux.Handle("/metrics", metrics.Handler())
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}
	shutdown.RegisterServer(healthServer)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.WithField("addr", apiServer.Addr).Info("starting API server")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("starting health server")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	if cfg.Authz.PolicyFile != "" && cfg.Authz.WatchPolicy {
		g.Go(func() error {
			return authz.WatchPolicy(gctx, gate, cfg.Authz.PolicyFile, logger)
		})
	}

	g.Go(func() error {
		err := shutdown.WaitForShutdown()
		cancel()
		return err
	})

	return g.Wait()
}

// buildStore assembles the configured profile store, optionally wrapped in
// the Redis read-through cache.
func buildStore(ctx context.Context, cfg *config.Config, redisClient *redis.Client, logger *observability.Logger, metrics *observability.Metrics) (profile.Store, observability.ShutdownFunc, error) {
	var store profile.Store
	var cleanup observability.ShutdownFunc

	switch cfg.Store.Type {
	case "memory":
		store = profile.NewMemoryStore()
	case "http":
		store = profile.NewHTTPStore(cfg.Store.BaseURL, cfg.Store.HTTPTimeout)
	case "postgres":
		db, err := sql.Open("postgres", cfg.Store.PostgresURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open postgres: %w", err)
		}
		sqlStore := profile.NewSQLStore(db)
		if err := sqlStore.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to migrate profiles table: %w", err)
		}
		store = sqlStore
		cleanup = func(context.Context) error { return db.Close() }
	default:
		return nil, nil, fmt.Errorf("unknown store type %q", cfg.Store.Type)
	}

	if redisClient != nil {
		store = profile.NewRedisCache(store, redisClient, cfg.Store.CacheTTL, logger, metrics)
	}

	return profile.NewInstrumentedStore(store, metrics), cleanup, nil
}

// buildProvider assembles the configured identity provider
func buildProvider(ctx context.Context, cfg *config.Config) (identity.Provider, error) {
	switch cfg.Identity.Provider {
	case "dev":
		return identity.NewDevProvider(), nil
	case "oidc":
		return identity.NewOIDCProvider(ctx, &identity.OIDCConfig{
			IssuerURL:    cfg.Identity.OIDCIssuerURL,
			ClientID:     cfg.Identity.OIDCClientID,
			ClientSecret: cfg.Identity.OIDCClientSecret,
		})
	default:
		return nil, fmt.Errorf("unknown identity provider %q", cfg.Identity.Provider)
	}
}
