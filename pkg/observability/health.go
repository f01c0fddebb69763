package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// CheckFunc probes a single dependency
type CheckFunc func(ctx context.Context) error

// HealthChecker aggregates dependency probes for liveness and readiness
type HealthChecker struct {
	mu      sync.RWMutex
	checks  map[string]CheckFunc
	timeout time.Duration
}

// NewHealthChecker creates a health checker with a per-probe timeout
func NewHealthChecker(timeout time.Duration) *HealthChecker {
	if timeout == 0 {
		timeout = 2 * time.Second
	}
	return &HealthChecker{
		checks:  make(map[string]CheckFunc),
		timeout: timeout,
	}
}

// Register adds a named dependency probe
func (h *HealthChecker) Register(name string, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// checkResult holds the outcome of a single probe
type checkResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// healthResponse is the JSON body of a health endpoint
type healthResponse struct {
	Status string                 `json:"status"`
	Checks map[string]checkResult `json:"checks,omitempty"`
}

// LivenessHandler always reports healthy while the process is up
func (h *HealthChecker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(healthResponse{Status: "ok"})
	})
}

// ReadinessHandler runs all registered probes and reports 503 if any fails
func (h *HealthChecker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.mu.RLock()
		checks := make(map[string]CheckFunc, len(h.checks))
		for name, check := range h.checks {
			checks[name] = check
		}
		h.mu.RUnlock()

		resp := healthResponse{
			Status: "ok",
			Checks: make(map[string]checkResult, len(checks)),
		}

		status := http.StatusOK
		for name, check := range checks {
			ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
			err := check(ctx)
			cancel()

			if err != nil {
				resp.Status = "degraded"
				resp.Checks[name] = checkResult{Status: "fail", Error: err.Error()}
				status = http.StatusServiceUnavailable
			} else {
				resp.Checks[name] = checkResult{Status: "ok"}
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(resp)
	})
}
