package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/trainhub/trainhub/pkg/auth"
	"github.com/trainhub/trainhub/pkg/contextkeys"
	"github.com/trainhub/trainhub/pkg/observability"
	"github.com/trainhub/trainhub/pkg/session"
)

// UserHeader carries the JSON identity forwarded to protected handlers
const UserHeader = "X-User"

// Unclassified path policies
const (
	UnclassifiedPermit = "permit"
	UnclassifiedDeny   = "deny"
)

// PathClass is the gate classification of a request path
type PathClass int

const (
	ClassOther PathClass = iota
	ClassPublic
	ClassProtected
)

func (c PathClass) String() string {
	switch c {
	case ClassPublic:
		return "public"
	case ClassProtected:
		return "protected"
	default:
		return "other"
	}
}

// Policy holds the prefix tables and the handling of unclassified paths
type Policy struct {
	Public       []string
	Protected    []string
	Unclassified string
	LoginPath    string
}

// DefaultPolicy returns the built-in prefix tables
func DefaultPolicy() Policy {
	return Policy{
		Public: []string{
			"/login",
			"/api/auth/login",
			"/api/auth/register",
			"/api/auth/validate",
			"/_next",
			"/favicon.ico",
			"/health",
		},
		Protected: []string{
			"/api/slots",
			"/api/feedback",
			"/api/me",
			"/app",
		},
		Unclassified: UnclassifiedPermit,
		LoginPath:    "/login",
	}
}

// Validate checks prefixes and the unclassified policy
func (p Policy) Validate() error {
	switch p.Unclassified {
	case UnclassifiedPermit, UnclassifiedDeny:
	default:
		return fmt.Errorf("unclassified policy must be %q or %q, got %q", UnclassifiedPermit, UnclassifiedDeny, p.Unclassified)
	}
	for _, prefix := range p.Public {
		if !strings.HasPrefix(prefix, "/") {
			return fmt.Errorf("public prefix %q must start with /", prefix)
		}
	}
	for _, prefix := range p.Protected {
		if !strings.HasPrefix(prefix, "/") {
			return fmt.Errorf("protected prefix %q must start with /", prefix)
		}
	}
	if !strings.HasPrefix(p.LoginPath, "/") {
		return fmt.Errorf("login path %q must start with /", p.LoginPath)
	}
	return nil
}

// IdentityDecoder turns a session token into the identity it carries
type IdentityDecoder interface {
	Identity(token string) (auth.Identity, error)
}

// Option configures the gate and the login rate limiter
type Option func(*options)

type options struct {
	logger  *observability.Logger
	metrics *observability.Metrics
	audit   *auth.AuditLogger
	proxies auth.TrustedProxies
}

// WithLogger sets the logger used when no request-scoped logger is present
func WithLogger(logger *observability.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics records decisions in the given metrics
func WithMetrics(metrics *observability.Metrics) Option {
	return func(o *options) { o.metrics = metrics }
}

// WithAudit emits audit lines for denied requests
func WithAudit(audit *auth.AuditLogger) Option {
	return func(o *options) { o.audit = audit }
}

// WithTrustedProxies lets the login rate limiter key on forwarded client addresses
// when the request arrives from one of proxies
func WithTrustedProxies(proxies auth.TrustedProxies) Option {
	return func(o *options) { o.proxies = proxies }
}

// requestLogger prefers the request-scoped logger over the configured one
func (o options) requestLogger(r *http.Request) *observability.Logger {
	if _, ok := r.Context().Value(contextkeys.LoggerKey).(*observability.Logger); ok || o.logger == nil {
		return observability.FromContext(r.Context())
	}
	return o.logger
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Gate classifies request paths and guards protected ones with the session cookie
type Gate struct {
	decoder   IdentityDecoder
	public    []string
	protected []string
	denyOther bool
	loginPath string
	options
}

// NewGate creates an authorization gate. The prefix tables are copied and never change afterwards.
func NewGate(decoder IdentityDecoder, policy Policy, opts ...Option) (*Gate, error) {
	if decoder == nil {
		return nil, fmt.Errorf("identity decoder is required")
	}
	if policy.Unclassified == "" {
		policy.Unclassified = UnclassifiedPermit
	}
	if policy.LoginPath == "" {
		policy.LoginPath = "/login"
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	g := &Gate{
		decoder:   decoder,
		public:    append([]string(nil), policy.Public...),
		protected: append([]string(nil), policy.Protected...),
		denyOther: policy.Unclassified == UnclassifiedDeny,
		loginPath: policy.LoginPath,
		options:   buildOptions(opts),
	}

	// A login page behind the gate would redirect to itself
	if g.Classify(g.loginPath) != ClassPublic {
		return nil, fmt.Errorf("login path %q must be covered by a public prefix", g.loginPath)
	}
	return g, nil
}

// Classify returns the class of a path. Public prefixes are checked first.
func (g *Gate) Classify(path string) PathClass {
	for _, prefix := range g.public {
		if strings.HasPrefix(path, prefix) {
			return ClassPublic
		}
	}
	for _, prefix := range g.protected {
		if strings.HasPrefix(path, prefix) {
			return ClassProtected
		}
	}
	return ClassOther
}

// Handler wraps next with the gate
func (g *Gate) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Forwarded identity is only ever set by the gate itself
		if _, ok := r.Header[UserHeader]; ok {
			r = r.Clone(r.Context())
			r.Header.Del(UserHeader)
		}

		class := g.Classify(r.URL.Path)
		switch {
		case class == ClassPublic:
			g.options.metrics.RecordGateDecision(class.String(), "allow")
			next.ServeHTTP(w, r)
		case class == ClassOther && !g.denyOther:
			g.options.metrics.RecordGateDecision(class.String(), "allow")
			next.ServeHTTP(w, r)
		default:
			g.authorize(w, r, next, class)
		}
	})
}

func (g *Gate) authorize(w http.ResponseWriter, r *http.Request, next http.Handler, class PathClass) {
	token, ok := session.FromRequest(r)
	if !ok {
		g.redirect(w, r, class, fmt.Errorf("missing session cookie"))
		return
	}

	identity, err := g.decoder.Identity(token)
	if err != nil {
		g.redirect(w, r, class, err)
		return
	}

	forwarded, err := json.Marshal(identity)
	if err != nil {
		g.requestLogger(r).WithError(err).Error("failed to encode forwarded identity")
		g.redirect(w, r, class, err)
		return
	}

	ctx := contextkeys.WithAuth(r.Context(), &auth.AuthContext{Identity: identity})
	ctx = contextkeys.WithUserID(ctx, identity.UserID)
	r = r.Clone(ctx)
	r.Header.Set(UserHeader, string(forwarded))

	g.options.metrics.RecordGateDecision(class.String(), "allow")
	next.ServeHTTP(w, r)
}

func (g *Gate) redirect(w http.ResponseWriter, r *http.Request, class PathClass, reason error) {
	g.options.metrics.RecordGateDecision(class.String(), "redirect")
	g.requestLogger(r).WithFields(map[string]interface{}{
		"path":   r.URL.Path,
		"class":  class.String(),
		"reason": reason.Error(),
	}).Debug("gate redirect")
	if g.options.audit != nil {
		_ = g.options.audit.LogFromRequest(r, auth.ActionGateDenied, "", 0, auth.StatusDenied, reason)
	}

	target := g.loginPath + "?" + url.Values{"from": {r.URL.Path}}.Encode()
	http.Redirect(w, r, target, http.StatusFound)
}

// GetAuthContext extracts the auth context placed by the gate
func GetAuthContext(r *http.Request) *auth.AuthContext {
	ctx := r.Context().Value(contextkeys.AuthKey)
	if ctx == nil {
		return nil
	}
	authCtx, ok := ctx.(*auth.AuthContext)
	if !ok {
		return nil
	}
	return authCtx
}
