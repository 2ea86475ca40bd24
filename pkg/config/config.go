package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/trainhub/trainhub/pkg/auth"
	"github.com/trainhub/trainhub/pkg/observability"
	"github.com/trainhub/trainhub/pkg/session"
)

// EnvProduction is the TRAINHUB_ENV value that forces secure cookies
const EnvProduction = "production"

// Unclassified path policies
const (
	PolicyPermit = "permit"
	PolicyDeny   = "deny"
)

// Config holds all application configuration. Built once at start-up and never mutated.
type Config struct {
	Environment string `env:"TRAINHUB_ENV" envDefault:"development"`

	Server        ServerConfig
	Auth          AuthConfig
	Storage       StorageConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `env:"TRAINHUB_HOST" envDefault:"0.0.0.0"`
	Port            string        `env:"TRAINHUB_PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `env:"TRAINHUB_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"TRAINHUB_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout     time.Duration `env:"TRAINHUB_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"TRAINHUB_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	MaxBodyBytes    int64         `env:"TRAINHUB_MAX_BODY_BYTES" envDefault:"65536"`

	// Health/metrics server (separate port for k8s liveness and readiness checks)
	HealthPort string `env:"TRAINHUB_HEALTH_PORT" envDefault:"9090"`
}

// AuthConfig holds the secrets and policies of the auth core
type AuthConfig struct {
	BotToken       string        `env:"TRAINHUB_BOT_TOKEN"`
	SessionSecret  string        `env:"TRAINHUB_SESSION_SECRET"`
	InitDataMaxAge time.Duration `env:"TRAINHUB_INITDATA_MAX_AGE" envDefault:"24h"`
	SecureCookie   bool          `env:"TRAINHUB_SECURE_COOKIE" envDefault:"false"`

	// Gate
	UnclassifiedPolicy string `env:"TRAINHUB_GATE_UNCLASSIFIED" envDefault:"permit"`
	GatePolicyFile     string `env:"TRAINHUB_GATE_POLICY_FILE"`
	LoginPath          string `env:"TRAINHUB_LOGIN_PATH" envDefault:"/login"`

	// Login throttling, only active when Redis is configured
	LoginRateLimit  int           `env:"TRAINHUB_LOGIN_RATE_LIMIT" envDefault:"20"`
	LoginRateWindow time.Duration `env:"TRAINHUB_LOGIN_RATE_WINDOW" envDefault:"1m"`

	// CIDRs or addresses of reverse proxies whose X-Forwarded-For is believed. Empty trusts none.
	TrustedProxies []string `env:"TRAINHUB_TRUSTED_PROXIES" envSeparator:","`
}

// StorageConfig holds Postgres, Redis and directory cache settings
type StorageConfig struct {
	PostgresURL             string        `env:"TRAINHUB_POSTGRES_URL"`
	PostgresMaxConns        int           `env:"TRAINHUB_POSTGRES_MAX_CONNS" envDefault:"10"`
	PostgresMaxIdleConns    int           `env:"TRAINHUB_POSTGRES_MAX_IDLE_CONNS" envDefault:"5"`
	PostgresConnMaxLifetime time.Duration `env:"TRAINHUB_POSTGRES_CONN_MAX_LIFETIME" envDefault:"30m"`

	RedisURL string `env:"TRAINHUB_REDIS_URL"`

	DirectoryCacheEnabled bool          `env:"TRAINHUB_DIRECTORY_CACHE_ENABLED" envDefault:"true"`
	DirectoryCacheSize    int           `env:"TRAINHUB_DIRECTORY_CACHE_SIZE" envDefault:"1024"`
	DirectoryCacheTTL     time.Duration `env:"TRAINHUB_DIRECTORY_CACHE_TTL" envDefault:"1m"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       string `env:"TRAINHUB_LOG_LEVEL" envDefault:"info"`
	MetricsEnabled bool   `env:"TRAINHUB_METRICS_ENABLED" envDefault:"true"`

	OTelEnabled        bool    `env:"TRAINHUB_OTEL_ENABLED" envDefault:"false"`
	OTelEndpoint       string  `env:"TRAINHUB_OTEL_ENDPOINT" envDefault:"localhost:4317"`
	OTelServiceName    string  `env:"TRAINHUB_OTEL_SERVICE_NAME" envDefault:"trainhub"`
	OTelServiceVersion string  `env:"TRAINHUB_OTEL_SERVICE_VERSION" envDefault:"dev"`
	OTelInsecure       bool    `env:"TRAINHUB_OTEL_INSECURE" envDefault:"true"`
	OTelSampleRatio    float64 `env:"TRAINHUB_OTEL_SAMPLE_RATIO" envDefault:"1"`
}

// LoadConfig loads configuration from environment variables and validates it
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.Auth.UnclassifiedPolicy = strings.ToLower(strings.TrimSpace(cfg.Auth.UnclassifiedPolicy))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Auth.BotToken == "" {
		return fmt.Errorf("TRAINHUB_BOT_TOKEN is required")
	}
	if len(c.Auth.SessionSecret) < session.MinSecretLength {
		return fmt.Errorf("TRAINHUB_SESSION_SECRET must be at least %d bytes", session.MinSecretLength)
	}
	if c.Auth.InitDataMaxAge <= 0 {
		return fmt.Errorf("init data max age must be positive")
	}
	switch c.Auth.UnclassifiedPolicy {
	case PolicyPermit, PolicyDeny:
	default:
		return fmt.Errorf("invalid unclassified path policy: %s (must be permit or deny)", c.Auth.UnclassifiedPolicy)
	}
	if !strings.HasPrefix(c.Auth.LoginPath, "/") {
		return fmt.Errorf("login path must start with /")
	}
	if c.Auth.LoginRateLimit <= 0 || c.Auth.LoginRateWindow <= 0 {
		return fmt.Errorf("login rate limit and window must be positive")
	}
	if _, err := auth.ParseTrustedProxies(c.Auth.TrustedProxies); err != nil {
		return fmt.Errorf("TRAINHUB_TRUSTED_PROXIES: %w", err)
	}

	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Storage.PostgresURL == "" {
		return fmt.Errorf("TRAINHUB_POSTGRES_URL is required")
	}
	if c.Storage.DirectoryCacheEnabled && c.Storage.DirectoryCacheSize <= 0 {
		return fmt.Errorf("directory cache size must be positive when the cache is enabled")
	}

	if _, err := observability.ParseLogLevel(c.Observability.LogLevel); err != nil {
		return err
	}
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
		if c.Observability.OTelSampleRatio < 0 || c.Observability.OTelSampleRatio > 1 {
			return fmt.Errorf("TRAINHUB_OTEL_SAMPLE_RATIO must be between 0 and 1")
		}
	}

	return nil
}

// IsProduction reports whether TRAINHUB_ENV is production
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, EnvProduction)
}

// CookieSecure reports whether session cookies carry the Secure attribute
func (c *Config) CookieSecure() bool {
	return c.Auth.SecureCookie || c.IsProduction()
}

// TrustedProxies returns the parsed proxy networks
func (c *Config) TrustedProxies() auth.TrustedProxies {
	proxies, _ := auth.ParseTrustedProxies(c.Auth.TrustedProxies)
	return proxies
}

// LogLevel returns the parsed log level
func (c *Config) LogLevel() observability.LogLevel {
	level, _ := observability.ParseLogLevel(c.Observability.LogLevel)
	return level
}

// OTel returns the OpenTelemetry settings in the form observability expects
func (c *Config) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        c.Observability.OTelEnabled,
		Endpoint:       c.Observability.OTelEndpoint,
		ServiceName:    c.Observability.OTelServiceName,
		ServiceVersion: c.Observability.OTelServiceVersion,
		Insecure:       c.Observability.OTelInsecure,
		SampleRatio:    c.Observability.OTelSampleRatio,
	}
}
