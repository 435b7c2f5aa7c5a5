package handlers

import (
	"context"
	"net/http"
	"time"
)

// Check reports whether a dependency is usable
type Check func(ctx context.Context) error

type namedCheck struct {
	name     string
	critical bool
	check    Check
}

// HealthHandlers serves /api/health and the Kubernetes probes
type HealthHandlers struct {
	checks  []namedCheck
	timeout time.Duration
}

// NewHealthHandlers creates health handlers with no checks
func NewHealthHandlers() *HealthHandlers {
	return &HealthHandlers{timeout: 2 * time.Second}
}

// Add registers a dependency check. Critical checks also gate readiness.
func (h *HealthHandlers) Add(name string, critical bool, check Check) *HealthHandlers {
	h.checks = append(h.checks, namedCheck{name: name, critical: critical, check: check})
	return h
}

// Health runs every check and reports each dependency
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	status := "ok"
	httpStatus := http.StatusOK
	checks := make(map[string]interface{})

	for _, c := range h.checks {
		if err := c.check(ctx); err != nil {
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
			checks[c.name] = map[string]interface{}{
				"status": "unhealthy",
				"error":  err.Error(),
			}
			continue
		}
		checks[c.name] = map[string]interface{}{"status": "healthy"}
	}

	writeJSON(w, httpStatus, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Unix(),
		"checks":    checks,
	})
}

// Liveness handles Kubernetes liveness probes; it never checks dependencies
func (h *HealthHandlers) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "alive",
		"timestamp": time.Now().Unix(),
	})
}

// Readiness handles Kubernetes readiness probes using the critical checks
func (h *HealthHandlers) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	for _, c := range h.checks {
		if !c.critical {
			continue
		}
		if err := c.check(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
				"status":    "not_ready",
				"reason":    c.name + "_unavailable",
				"timestamp": time.Now().Unix(),
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ready",
		"timestamp": time.Now().Unix(),
	})
}
