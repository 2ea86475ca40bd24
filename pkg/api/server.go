package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/trainhub/trainhub/pkg/auth"
	"github.com/trainhub/trainhub/pkg/directory"
	"github.com/trainhub/trainhub/pkg/httputil"
	"github.com/trainhub/trainhub/pkg/initdata"
	"github.com/trainhub/trainhub/pkg/middleware"
	"github.com/trainhub/trainhub/pkg/observability"
	"github.com/trainhub/trainhub/pkg/session"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// PayloadVerifier checks signed init data
type PayloadVerifier interface {
	Verify(raw string) (initdata.Identity, error)
}

// SessionIssuer signs a session for a verified identity
type SessionIssuer interface {
	Issue(ctx context.Context, identity initdata.Identity, dir directory.Directory) (*session.Token, error)
}

// Dependencies wires the server to the authentication core
type Dependencies struct {
	Verifier  PayloadVerifier
	Issuer    SessionIssuer
	Directory directory.Store
	Gate      *middleware.Gate

	// Optional
	RateLimit    *middleware.LoginRateLimit
	Health       *observability.HealthChecker
	Metrics      *observability.Metrics
	Logger       *observability.Logger
	Audit        *auth.AuditLogger
	Cookie       session.CookieOptions
	MaxBodyBytes int64
}

// Server represents our API server
type Server struct {
	router       *mux.Router
	handler      http.Handler
	authHandlers *AuthHandlers
	health       *observability.HealthChecker
}

// NewServer creates the API server with its middleware chain
func NewServer(deps Dependencies) (*Server, error) {
	if deps.Verifier == nil {
		return nil, fmt.Errorf("verifier is required")
	}
	if deps.Issuer == nil {
		return nil, fmt.Errorf("issuer is required")
	}
	if deps.Directory == nil {
		return nil, fmt.Errorf("directory is required")
	}
	if deps.Gate == nil {
		return nil, fmt.Errorf("gate is required")
	}
	if deps.Logger == nil {
		deps.Logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	if deps.Audit == nil {
		deps.Audit = auth.NewAuditLogger(deps.Logger.Logrus())
	}

	s := &Server{
		router: mux.NewRouter(),
		health: deps.Health,
		authHandlers: NewAuthHandlers(
			deps.Verifier,
			deps.Issuer,
			newInstrumentedStore(deps.Directory, deps.Metrics),
			deps.Metrics,
			deps.Audit,
			deps.Cookie,
		),
	}
	s.setupRoutes()

	middlewares := []func(http.Handler) http.Handler{
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(deps.Logger),
		httputil.RecoveryMiddleware(deps.Logger),
	}
	if deps.MaxBodyBytes > 0 {
		middlewares = append(middlewares, httputil.MaxBytesMiddleware(deps.MaxBodyBytes))
	}
	if deps.Metrics != nil {
		middlewares = append(middlewares, observability.HTTPMetricsMiddleware(deps.Metrics, s.routeLabel))
	}
	if deps.RateLimit != nil {
		middlewares = append(middlewares, deps.RateLimit.Handler)
	}
	middlewares = append(middlewares, deps.Gate.Handler)

	s.handler = otelhttp.NewHandler(httputil.Chain(middlewares...)(s.router), "trainhub.api")
	return s, nil
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	s.authHandlers.RegisterRoutes(s.router)

	if s.health != nil {
		s.router.HandleFunc("/health", s.health.Readiness).Methods("GET")
		s.router.HandleFunc("/health/live", s.health.Liveness).Methods("GET")
		s.router.HandleFunc("/health/ready", s.health.Readiness).Methods("GET")
	}
}

// routeLabel returns the path template of the route r matches, so metrics stay bounded
// however many distinct paths clients send
func (s *Server) routeLabel(r *http.Request) string {
	var match mux.RouteMatch
	if !s.router.Match(r, &match) || match.Route == nil {
		return observability.UnmatchedRoute
	}
	tmpl, err := match.Route.GetPathTemplate()
	if err != nil {
		return observability.UnmatchedRoute
	}
	return tmpl
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Router exposes the underlying router so protected application routes can be mounted behind the gate
func (s *Server) Router() *mux.Router {
	return s.router
}
