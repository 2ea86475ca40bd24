// Package middleware provides the authorization gate and login throttling.
//
// # Overview
//
// Gate classifies every request path against two prefix tables. Public prefixes are checked
// first, then protected ones; anything else is unclassified and handled by policy.
//
//	gate, err := middleware.NewGate(issuer, middleware.DefaultPolicy(),
//		middleware.WithMetrics(metrics),
//		middleware.WithAudit(auditLogger),
//	)
//	router.Use(gate.Handler)
//
// Protected requests must carry the session cookie. A missing or undecodable token
// redirects to the login page:
//
//	302 Location: /login?from=%2Fapi%2Fme
//
// On success the decoded identity is attached to the request context (GetAuthContext)
// and forwarded as JSON in the X-User header:
//
//	X-User: {"userId":7,"role":"mentor","telegramId":"424242","groupId":3}
//
// Inbound X-User headers are always removed before classification.
//
// # Policy File
//
// The default tables can be replaced at start-up with a YAML document:
//
//	public:
//	  - /login
//	  - /api/auth/login
//	protected:
//	  - /api/me
//	unclassified: deny
//
// # Login Throttling
//
// LoginRateLimit counts POST requests under /api/auth/ per client IP in Redis using a fixed
// window. Redis errors let the request through.
//
//	limiter := middleware.NewRateLimiter(redisClient, &middleware.RateLimitConfig{
//		RequestsPerWindow: 20,
//		WindowDuration:    time.Minute,
//	}, "ratelimit:login")
//	router.Use(middleware.NewLoginRateLimit(limiter).Handler)
//
// # Related Packages
//
//   - pkg/session: Token decoding and the session cookie
//   - pkg/auth: Identity and audit logging
package middleware
