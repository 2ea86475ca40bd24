// Package observability provides structured logging, Prometheus metrics, health checks,
// and OpenTelemetry tracing.
//
// # Overview
//
// This package centralizes observability infrastructure for the trainhub service: JSON
// logging on logrus, auth-flow metrics, readiness checks over Postgres and Redis, and
// OTLP export of traces and metrics.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("telegram_id", id).Info("login succeeded")
//
// Request-scoped logging (request id and user id come from the context):
//
//	observability.FromContext(r.Context()).WithError(err).Error("directory lookup failed")
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.RecordVerification("signature_mismatch")
//	metrics.RecordGateDecision("protected", "redirect")
//
// All Record methods are safe on a nil *Metrics.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient, version)
//	observability.RegisterHealthRoutes(mux, checker)
//
// # OpenTelemetry
//
//	shutdown, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "trainhub",
//		SampleRatio: 0.1,
//	}, logger)
//	defer shutdown(ctx)
//
// # Related Packages
//
//   - pkg/httputil: Request logging and recovery middleware
//   - pkg/api: Server wiring
package observability
