package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/trainhub/trainhub/pkg/api"
	"github.com/trainhub/trainhub/pkg/auth"
	"github.com/trainhub/trainhub/pkg/config"
	"github.com/trainhub/trainhub/pkg/directory"
	"github.com/trainhub/trainhub/pkg/initdata"
	"github.com/trainhub/trainhub/pkg/middleware"
	"github.com/trainhub/trainhub/pkg/observability"
	"github.com/trainhub/trainhub/pkg/session"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "trainhub: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.LogLevel(), os.Stdout).WithField("service", "trainhub")
	logger.WithField("environment", cfg.Environment).Info("Starting trainhub")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.InitOTel(ctx, cfg.OTel(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(shutdownCtx); err != nil {
			logger.WithError(err).Warn("OpenTelemetry shutdown incomplete")
		}
	}()

	db, err := connectDatabase(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := directory.Migrate(ctx, db, logger.Entry()); err != nil {
		return fmt.Errorf("failed to migrate directory schema: %w", err)
	}

	pg, err := directory.NewPostgresDirectory(db)
	if err != nil {
		return err
	}
	var store directory.Store = pg
	if cfg.Storage.DirectoryCacheEnabled {
		cached := directory.NewCachedDirectory(pg, directory.CacheConfig{
			MaxEntries: cfg.Storage.DirectoryCacheSize,
			TTL:        cfg.Storage.DirectoryCacheTTL,
		})
		defer func() {
			stats := cached.Stats()
			logger.WithFields(map[string]interface{}{
				"hits":   stats.Hits,
				"misses": stats.Misses,
				"size":   stats.Size,
			}).Info("Directory cache stats")
		}()
		store = cached
	}

	redisClient, err := connectRedis(ctx, cfg.Storage.RedisURL, logger)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	registry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics = observability.NewMetrics(registry)
		if err := observability.RegisterDBStats(registry, db); err != nil {
			return fmt.Errorf("failed to register database metrics: %w", err)
		}
	}

	verifier, err := initdata.NewVerifier(cfg.Auth.BotToken, cfg.Auth.InitDataMaxAge)
	if err != nil {
		return err
	}
	issuer, err := session.NewIssuer([]byte(cfg.Auth.SessionSecret))
	if err != nil {
		return err
	}

	policy := middleware.DefaultPolicy()
	policy.Unclassified = cfg.Auth.UnclassifiedPolicy
	policy.LoginPath = cfg.Auth.LoginPath
	if cfg.Auth.GatePolicyFile != "" {
		policy, err = middleware.LoadPolicyFile(cfg.Auth.GatePolicyFile, policy)
		if err != nil {
			return err
		}
		logger.WithField("file", cfg.Auth.GatePolicyFile).Info("Loaded gate policy file")
	}

	proxies := cfg.TrustedProxies()
	auditLogger := auth.NewAuditLogger(logger.Logrus()).WithTrustedProxies(proxies)
	opts := []middleware.Option{
		middleware.WithLogger(logger),
		middleware.WithMetrics(metrics),
		middleware.WithAudit(auditLogger),
		middleware.WithTrustedProxies(proxies),
	}

	gate, err := middleware.NewGate(issuer, policy, opts...)
	if err != nil {
		return fmt.Errorf("invalid gate policy: %w", err)
	}

	var rateLimit *middleware.LoginRateLimit
	if redisClient != nil {
		limiter := middleware.NewRateLimiter(redisClient, &middleware.RateLimitConfig{
			RequestsPerWindow: cfg.Auth.LoginRateLimit,
			WindowDuration:    cfg.Auth.LoginRateWindow,
		}, "trainhub:ratelimit:login")
		rateLimit = middleware.NewLoginRateLimit(limiter, opts...)
	} else {
		logger.Info("Redis not configured, login throttling disabled")
	}

	health := observability.NewHealthChecker(db, redisClient, cfg.Observability.OTelServiceVersion)

	server, err := api.NewServer(api.Dependencies{
		Verifier:     verifier,
		Issuer:       issuer,
		Directory:    store,
		Gate:         gate,
		RateLimit:    rateLimit,
		Health:       health,
		Metrics:      metrics,
		Logger:       logger,
		Audit:        auditLogger,
		Cookie:       session.CookieOptions{Secure: cfg.CookieSecure()},
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	})
	if err != nil {
		return err
	}

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, health)
	if metrics != nil {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:           healthMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return serve(logger, "api server", apiServer) })
	g.Go(func() error { return serve(logger, "health server", healthServer) })

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		return errors.Join(
			apiServer.Shutdown(shutdownCtx),
			healthServer.Shutdown(shutdownCtx),
		)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("trainhub stopped")
	return nil
}

// serve runs srv until it is shut down. A panic escaping the server loop is logged and
// returned as an error so the errgroup stops the other servers.
func serve(logger *observability.Logger, name string, srv *http.Server) (err error) {
	defer func() {
		if r := recover(); r != nil {
			observability.LogPanic(logger, name, r)
			err = observability.MustRecover(r)
		}
	}()

	logger.WithField("addr", srv.Addr).Infof("%s listening", name)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func connectDatabase(ctx context.Context, cfg config.StorageConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.PostgresMaxConns)
	db.SetMaxIdleConns(cfg.PostgresMaxIdleConns)
	db.SetConnMaxLifetime(cfg.PostgresConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// connectRedis returns nil when no URL is configured. An unreachable server is logged, not fatal.
func connectRedis(ctx context.Context, url string, logger *observability.Logger) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.WithError(err).Warn("Redis unreachable, login throttling fails open until it recovers")
	}
	return client, nil
}
