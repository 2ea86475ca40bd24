package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Auth metrics
	InitDataVerificationsTotal *prometheus.CounterVec
	AuthRequestsTotal          *prometheus.CounterVec
	SessionsIssuedTotal        *prometheus.CounterVec
	GateDecisionsTotal         *prometheus.CounterVec
	RateLimitedTotal           *prometheus.CounterVec

	// Directory metrics
	DirectoryLookupsTotal   *prometheus.CounterVec
	DirectoryLookupDuration prometheus.Histogram
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trainhub_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trainhub_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trainhub_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "route"},
		),

		InitDataVerificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trainhub_initdata_verifications_total",
				Help: "Init data verification attempts by result",
			},
			[]string{"result"},
		),
		AuthRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trainhub_auth_requests_total",
				Help: "Auth endpoint requests by endpoint and outcome",
			},
			[]string{"endpoint", "outcome"},
		),
		SessionsIssuedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trainhub_sessions_issued_total",
				Help: "Session tokens issued by role",
			},
			[]string{"role"},
		),
		GateDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trainhub_gate_decisions_total",
				Help: "Authorization gate decisions by path class and decision",
			},
			[]string{"class", "decision"},
		),
		RateLimitedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trainhub_rate_limited_total",
				Help: "Requests rejected by the login rate limiter",
			},
			[]string{"endpoint"},
		),

		DirectoryLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trainhub_directory_lookups_total",
				Help: "Directory lookups by result",
			},
			[]string{"result"},
		),
		DirectoryLookupDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "trainhub_directory_lookup_duration_seconds",
				Help:    "Directory lookup duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.InitDataVerificationsTotal,
		m.AuthRequestsTotal,
		m.SessionsIssuedTotal,
		m.GateDecisionsTotal,
		m.RateLimitedTotal,
		m.DirectoryLookupsTotal,
		m.DirectoryLookupDuration,
	)

	return m
}

// RegisterDBStats exports connection pool stats for db
func RegisterDBStats(registry *prometheus.Registry, db *sql.DB) error {
	return registry.Register(collectors.NewDBStatsCollector(db, "trainhub"))
}

// RecordVerification counts an init data verification result. Safe on a nil receiver.
func (m *Metrics) RecordVerification(result string) {
	if m == nil {
		return
	}
	m.InitDataVerificationsTotal.WithLabelValues(result).Inc()
}

// RecordAuthRequest counts an auth endpoint outcome
func (m *Metrics) RecordAuthRequest(endpoint, outcome string) {
	if m == nil {
		return
	}
	m.AuthRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
}

// RecordSessionIssued counts an issued session
func (m *Metrics) RecordSessionIssued(role string) {
	if m == nil {
		return
	}
	m.SessionsIssuedTotal.WithLabelValues(role).Inc()
}

// RecordGateDecision counts a gate decision
func (m *Metrics) RecordGateDecision(class, decision string) {
	if m == nil {
		return
	}
	m.GateDecisionsTotal.WithLabelValues(class, decision).Inc()
}

// RecordRateLimited counts a throttled request
func (m *Metrics) RecordRateLimited(endpoint string) {
	if m == nil {
		return
	}
	m.RateLimitedTotal.WithLabelValues(endpoint).Inc()
}

// ObserveDirectoryLookup records a directory lookup result and its latency
func (m *Metrics) ObserveDirectoryLookup(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.DirectoryLookupsTotal.WithLabelValues(result).Inc()
	m.DirectoryLookupDuration.Observe(d.Seconds())
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// UnmatchedRoute labels requests that no route template claims
const UnmatchedRoute = "unmatched"

// RouteLabeler maps a request to a bounded route label, such as its router path template
type RouteLabeler func(r *http.Request) string

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// Raw paths are never used as labels; a nil labeler records every request as UnmatchedRoute.
func HTTPMetricsMiddleware(metrics *Metrics, label RouteLabeler) func(http.Handler) http.Handler {
	if label == nil {
		label = func(*http.Request) string { return UnmatchedRoute }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)
			route := label(r)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(duration)
			metrics.HTTPResponseSize.WithLabelValues(r.Method, route).Observe(float64(rw.bytesWritten))
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
