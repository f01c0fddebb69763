// Package observability provides structured logging, Prometheus metrics,
// health checks, and OpenTelemetry tracing for the classhub service.
//
// # Logging
//
// The Logger wraps stdlib slog with a JSON handler and chainable field
// helpers:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("email", email).Info("session reconciled")
//
// Loggers travel through context so request-scoped fields (request ID,
// session email) are attached once by middleware and inherited by handlers.
//
// # Metrics
//
// NewMetrics registers counters and histograms for session reconciliation
// outcomes, profile store calls, cache effectiveness, and authorization
// decisions. Handler() exposes them for Prometheus scraping.
//
// # Health
//
// HealthChecker aggregates named dependency probes (profile store, redis)
// behind /healthz and /readyz endpoints for orchestrator probes.
package observability
