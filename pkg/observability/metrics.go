package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Reconciliation metrics
	ReconciliationsTotal     *prometheus.CounterVec
	ReconciliationDuration   *prometheus.HistogramVec
	ReconcileRetriesTotal    prometheus.Counter
	ProvisionedProfilesTotal prometheus.Counter

	// Profile store metrics
	StoreRequestsTotal   *prometheus.CounterVec
	StoreRequestDuration *prometheus.HistogramVec

	// Cache metrics
	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter

	// Authorization metrics
	AuthzDecisionsTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates and registers all metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "classhub_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "classhub_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		ReconciliationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "classhub_session_reconciliations_total",
				Help: "Total number of session reconciliations by outcome",
			},
			[]string{"outcome"},
		),
		ReconciliationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "classhub_session_reconciliation_duration_seconds",
				Help:    "Session reconciliation duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"outcome"},
		),
		ReconcileRetriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "classhub_session_reconcile_retries_total",
				Help: "Total number of profile fetch retries during reconciliation",
			},
		),
		ProvisionedProfilesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "classhub_provisioned_profiles_total",
				Help: "Total number of profiles created by first-sign-in provisioning",
			},
		),

		StoreRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "classhub_profile_store_requests_total",
				Help: "Total number of profile store requests by operation and result",
			},
			[]string{"op", "result"},
		),
		StoreRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "classhub_profile_store_request_duration_seconds",
				Help:    "Profile store request duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"op"},
		),

		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "classhub_profile_cache_hits_total",
				Help: "Total number of profile cache hits",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "classhub_profile_cache_misses_total",
				Help: "Total number of profile cache misses",
			},
		),

		AuthzDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "classhub_authz_decisions_total",
				Help: "Total number of authorization decisions by capability and outcome",
			},
			[]string{"capability", "decision"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ReconciliationsTotal,
		m.ReconciliationDuration,
		m.ReconcileRetriesTotal,
		m.ProvisionedProfilesTotal,
		m.StoreRequestsTotal,
		m.StoreRequestDuration,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.AuthzDecisionsTotal,
	)

	return m
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveReconciliation records a reconciliation outcome and its duration
func (m *Metrics) ObserveReconciliation(outcome string, duration time.Duration) {
	m.ReconciliationsTotal.WithLabelValues(outcome).Inc()
	m.ReconciliationDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// ObserveStoreRequest records a profile store call
func (m *Metrics) ObserveStoreRequest(op, result string, duration time.Duration) {
	m.StoreRequestsTotal.WithLabelValues(op, result).Inc()
	m.StoreRequestDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// ObserveAuthzDecision records an authorization decision
func (m *Metrics) ObserveAuthzDecision(capability string, allowed bool) {
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	m.AuthzDecisionsTotal.WithLabelValues(capability, decision).Inc()
}

// statusRecorder captures the response status code for metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// HTTPMiddleware instruments HTTP handlers with request metrics
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		duration := time.Since(start)
		m.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(recorder.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration.Seconds())
	})
}
