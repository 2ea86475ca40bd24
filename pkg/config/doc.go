// Package config provides application configuration management from environment variables.
//
// # Overview
//
// Configuration is parsed once at start-up with caarlos0/env struct tags, validated,
// and then passed down by pointer. Missing secrets fail start-up.
//
// # Configuration Structure
//
// Auth settings:
//
//	TRAINHUB_BOT_TOKEN="123456:ABC..."          # required
//	TRAINHUB_SESSION_SECRET="...32+ bytes..."   # required
//	TRAINHUB_INITDATA_MAX_AGE="24h"
//	TRAINHUB_SECURE_COOKIE="false"              # forced on when TRAINHUB_ENV=production
//	TRAINHUB_GATE_UNCLASSIFIED="permit"         # permit or deny
//	TRAINHUB_GATE_POLICY_FILE="/etc/trainhub/gate.yaml"
//	TRAINHUB_LOGIN_RATE_LIMIT="20"
//	TRAINHUB_LOGIN_RATE_WINDOW="1m"
//
// Server settings:
//
//	TRAINHUB_HOST="0.0.0.0"
//	TRAINHUB_PORT="8080"
//	TRAINHUB_HEALTH_PORT="9090"
//
// Storage settings:
//
//	TRAINHUB_POSTGRES_URL="postgres://localhost/trainhub?sslmode=disable"   # required
//	TRAINHUB_REDIS_URL="redis://localhost:6379/0"                           # optional
//	TRAINHUB_DIRECTORY_CACHE_TTL="1m"
//
// Observability settings:
//
//	TRAINHUB_LOG_LEVEL="info"  # debug, info, warn, error
//	TRAINHUB_OTEL_ENABLED="true"
//	TRAINHUB_OTEL_ENDPOINT="otel-collector:4317"
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
// # Related Packages
//
//   - pkg/observability: Uses observability configuration
//   - pkg/api: Uses auth and server configuration
package config
