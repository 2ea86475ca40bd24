package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	if metrics == nil {
		t.Fatal("NewMetrics returned nil")
	}

	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic on duplicate registration")
		}
	}()
	NewMetrics(registry)
}

func TestMetrics_Recorders(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.RecordVerification("ok")
	metrics.RecordVerification("expired")
	metrics.RecordVerification("ok")
	metrics.RecordAuthRequest("login", "success")
	metrics.RecordSessionIssued("mentor")
	metrics.RecordGateDecision("protected", "redirect")
	metrics.RecordRateLimited("login")
	metrics.ObserveDirectoryLookup("found", 5*time.Millisecond)

	if got := testutil.ToFloat64(metrics.InitDataVerificationsTotal.WithLabelValues("ok")); got != 2 {
		t.Errorf("Expected 2 ok verifications, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.InitDataVerificationsTotal.WithLabelValues("expired")); got != 1 {
		t.Errorf("Expected 1 expired verification, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.AuthRequestsTotal.WithLabelValues("login", "success")); got != 1 {
		t.Errorf("Expected 1 login success, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.SessionsIssuedTotal.WithLabelValues("mentor")); got != 1 {
		t.Errorf("Expected 1 mentor session, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.GateDecisionsTotal.WithLabelValues("protected", "redirect")); got != 1 {
		t.Errorf("Expected 1 redirect, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.RateLimitedTotal.WithLabelValues("login")); got != 1 {
		t.Errorf("Expected 1 rate limited request, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.DirectoryLookupsTotal.WithLabelValues("found")); got != 1 {
		t.Errorf("Expected 1 directory lookup, got %v", got)
	}
}

func TestMetrics_NilReceiver(t *testing.T) {
	var metrics *Metrics
	metrics.RecordVerification("ok")
	metrics.RecordAuthRequest("login", "success")
	metrics.RecordSessionIssued("student")
	metrics.RecordGateDecision("public", "allow")
	metrics.RecordRateLimited("other")
	metrics.ObserveDirectoryLookup("found", time.Millisecond)
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	label := func(r *http.Request) string {
		if r.URL.Path == "/api/auth/login" {
			return "/api/auth/login"
		}
		return UnmatchedRoute
	}
	handler := HTTPMetricsMiddleware(metrics, label)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("created"))
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/auth/login", nil))

	if rr.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d", rr.Code)
	}
	if got := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("POST", "/api/auth/login", "201")); got != 1 {
		t.Errorf("Expected 1 request recorded, got %v", got)
	}

	for i := 0; i < 5; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/random/"+strconv.Itoa(i), nil))
	}
	if got := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", UnmatchedRoute, "201")); got != 5 {
		t.Errorf("Expected 5 unmatched requests, got %v", got)
	}
	if got := testutil.CollectAndCount(metrics.HTTPRequestsTotal); got != 2 {
		t.Errorf("Expected 2 label series, got %d", got)
	}
}

func TestHTTPMetricsMiddleware_NilLabeler(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	handler := HTTPMetricsMiddleware(metrics, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/a", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/b", nil))

	if got := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", UnmatchedRoute, "200")); got != 2 {
		t.Errorf("Expected 2 requests under one label, got %v", got)
	}
}

func TestRegisterMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	metrics.RecordSessionIssued("teacher")

	mux := http.NewServeMux()
	RegisterMetricsEndpoint(mux, registry)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, _ := io.ReadAll(rr.Body)
	if !strings.Contains(string(body), `trainhub_sessions_issued_total{role="teacher"} 1`) {
		t.Errorf("Expected sessions metric in output, got:\n%s", body)
	}
}

func TestRegisterDBStats(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock db: %v", err)
	}
	defer db.Close()

	registry := prometheus.NewRegistry()
	if err := RegisterDBStats(registry, db); err != nil {
		t.Fatalf("RegisterDBStats failed: %v", err)
	}
	if err := RegisterDBStats(registry, db); err == nil {
		t.Error("Expected error on duplicate registration")
	}
}
