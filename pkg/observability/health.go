package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
)

// Health states
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// readinessTimeout bounds all dependency checks of one request
const readinessTimeout = 3 * time.Second

type dependency struct {
	name string
	// critical dependencies make the service unhealthy, the rest only degrade it
	critical bool
	ping     func(ctx context.Context) error
}

// HealthChecker answers liveness and readiness checks. The user directory (Postgres) is
// critical; the login throttle store (Redis) is not, since throttling fails open.
type HealthChecker struct {
	version string
	deps    []dependency
}

// NewHealthChecker creates a checker. A nil db or redis client is skipped.
func NewHealthChecker(db *sql.DB, redisClient *redis.Client, version string) *HealthChecker {
	h := &HealthChecker{version: version}
	if db != nil {
		h.deps = append(h.deps, dependency{name: "directory", critical: true, ping: db.PingContext})
	}
	if redisClient != nil {
		h.deps = append(h.deps, dependency{name: "throttle", ping: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}})
	}
	return h
}

// HealthStatus is the readiness report
type HealthStatus struct {
	Status  string                 `json:"status"`
	Version string                 `json:"version,omitempty"`
	Checks  map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult is the outcome of probing one dependency
type CheckResult struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// Check pings every dependency and folds the results into one status
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	report := HealthStatus{Status: StatusHealthy, Version: h.version}
	if len(h.deps) == 0 {
		return report
	}

	report.Checks = make(map[string]CheckResult, len(h.deps))
	for _, dep := range h.deps {
		start := time.Now()
		err := dep.ping(ctx)
		result := CheckResult{Status: StatusHealthy, LatencyMS: time.Since(start).Milliseconds()}

		if err != nil {
			result.Status = StatusUnhealthy
			result.Error = err.Error()
			switch {
			case dep.critical:
				report.Status = StatusUnhealthy
			case report.Status == StatusHealthy:
				report.Status = StatusDegraded
			}
		}
		report.Checks[dep.name] = result
	}
	return report
}

// Liveness reports that the process is serving
func (h *HealthChecker) Liveness(w http.ResponseWriter, r *http.Request) {
	writeHealth(w, http.StatusOK, HealthStatus{Status: StatusHealthy, Version: h.version})
}

// Readiness answers 503 only when a critical dependency is down
func (h *HealthChecker) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	report := h.Check(ctx)
	code := http.StatusOK
	if report.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	writeHealth(w, code, report)
}

func writeHealth(w http.ResponseWriter, code int, report HealthStatus) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(report)
}

// RegisterHealthRoutes mounts the health endpoints on the health server
func RegisterHealthRoutes(mux *http.ServeMux, checker *HealthChecker) {
	mux.HandleFunc("/health", checker.Readiness)
	mux.HandleFunc("/health/live", checker.Liveness)
	mux.HandleFunc("/health/ready", checker.Readiness)
}
