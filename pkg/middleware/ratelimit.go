package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/trainhub/trainhub/pkg/auth"
	"github.com/trainhub/trainhub/pkg/httputil"
)

// RateLimitConfig defines a fixed-window request budget
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// DefaultLoginRateLimitConfig returns the budget for authentication endpoints
func DefaultLoginRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 20,
		WindowDuration:    time.Minute,
	}
}

// RateLimiter counts requests per key in Redis so limits are shared across instances
type RateLimiter struct {
	redis  *redis.Client
	config *RateLimitConfig
	prefix string
}

// NewRateLimiter creates a new Redis-backed rate limiter
func NewRateLimiter(redisClient *redis.Client, config *RateLimitConfig, prefix string) *RateLimiter {
	if config == nil {
		config = DefaultLoginRateLimitConfig()
	}
	if prefix == "" {
		prefix = "ratelimit"
	}

	return &RateLimiter{
		redis:  redisClient,
		config: config,
		prefix: prefix,
	}
}

func (rl *RateLimiter) key(key string) string {
	return fmt.Sprintf("%s:%s", rl.prefix, key)
}

// allowScript increments the window counter and starts the window in the same step.
// A key left without a TTL gets one on its next hit, so a counter can never outlive its window.
var allowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if redis.call("PTTL", KEYS[1]) < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// Allow counts a request against key and reports whether it is within the window budget.
// On Redis errors the request is allowed and the error returned.
func (rl *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	count, err := allowScript.Run(ctx, rl.redis, []string{rl.key(key)}, rl.config.WindowDuration.Milliseconds()).Int64()
	if err != nil {
		return true, fmt.Errorf("redis error: %w", err)
	}

	return count <= int64(rl.config.RequestsPerWindow), nil
}

// Remaining returns the number of remaining requests in the window
func (rl *RateLimiter) Remaining(ctx context.Context, key string) (int, error) {
	count, err := rl.redis.Get(ctx, rl.key(key)).Int()
	if err == redis.Nil {
		return rl.config.RequestsPerWindow, nil
	} else if err != nil {
		return 0, err
	}

	remaining := rl.config.RequestsPerWindow - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// TTL returns the time until the rate limit window resets
func (rl *RateLimiter) TTL(ctx context.Context, key string) (time.Duration, error) {
	return rl.redis.TTL(ctx, rl.key(key)).Result()
}

// Reset clears the rate limit for a key
func (rl *RateLimiter) Reset(ctx context.Context, key string) error {
	return rl.redis.Del(ctx, rl.key(key)).Err()
}

// LoginRateLimitPrefix is the path prefix whose POST requests are throttled
const LoginRateLimitPrefix = "/api/auth/"

var throttledEndpoints = map[string]bool{
	"login":    true,
	"register": true,
	"validate": true,
	"logout":   true,
}

// throttledEndpoint names the auth endpoint of path for metrics, "other" for anything unknown
func throttledEndpoint(path string) string {
	name := strings.TrimPrefix(path, LoginRateLimitPrefix)
	if throttledEndpoints[name] {
		return name
	}
	return "other"
}

// LoginRateLimit throttles authentication attempts per client IP.
// Forwarding headers only count when the peer is a trusted proxy, see WithTrustedProxies.
type LoginRateLimit struct {
	limiter *RateLimiter
	options
}

// NewLoginRateLimit creates the middleware. A nil limiter disables throttling.
func NewLoginRateLimit(limiter *RateLimiter, opts ...Option) *LoginRateLimit {
	return &LoginRateLimit{
		limiter: limiter,
		options: buildOptions(opts),
	}
}

// Handler wraps next with login throttling
func (m *LoginRateLimit) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.limiter == nil || r.Method != http.MethodPost || !strings.HasPrefix(r.URL.Path, LoginRateLimitPrefix) {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		key := "ip:" + m.options.proxies.ClientIP(r)

		allowed, err := m.limiter.Allow(ctx, key)
		if err != nil {
			// Fail open
			m.requestLogger(r).WithError(err).Warn("login rate limiter unavailable")
			next.ServeHTTP(w, r)
			return
		}

		if !allowed {
			m.exceeded(w, r, key)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(m.limiter.config.RequestsPerWindow))
		if remaining, err := m.limiter.Remaining(ctx, key); err == nil {
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		}

		next.ServeHTTP(w, r)
	})
}

func (m *LoginRateLimit) exceeded(w http.ResponseWriter, r *http.Request, key string) {
	retryAfter := m.limiter.config.WindowDuration
	if ttl, err := m.limiter.TTL(r.Context(), key); err == nil && ttl > 0 {
		retryAfter = ttl
	}
	seconds := int(retryAfter.Round(time.Second).Seconds())
	if seconds < 1 {
		seconds = 1
	}

	m.options.metrics.RecordRateLimited(throttledEndpoint(r.URL.Path))
	if m.options.audit != nil {
		_ = m.options.audit.LogFromRequest(r, auth.ActionRateLimitExceeded, "", 0, auth.StatusDenied, nil)
	}

	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(m.limiter.config.RequestsPerWindow))
	w.Header().Set("X-RateLimit-Remaining", "0")
	httputil.WriteTooManyRequests(w, "rate limit exceeded")
}
