// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from ROLODEX_* environment
// variables with sensible defaults for everything but the signing secret.
//
// # Configuration Structure
//
// Server settings:
//
//	ROLODEX_HOST="0.0.0.0"
//	ROLODEX_PORT="8000"
//	ROLODEX_HEALTH_PORT="9090"
//	ROLODEX_BASE_URL="https://rolodex.example.com"  # used in email links
//	ROLODEX_CORS_ORIGINS="https://app.example.com,https://admin.example.com"
//
// Auth settings:
//
//	ROLODEX_SECRET_KEY="..."      # required
//	ROLODEX_ALGORITHM="HS256"     # HS256, HS384, HS512
//	ROLODEX_HASH_COST="10"
//	ROLODEX_ACCESS_TOKEN_TTL="15m"
//
// Storage settings:
//
//	ROLODEX_POSTGRES_URL="postgres://localhost/rolodex"
//	ROLODEX_REDIS_URL="redis://localhost:6379/0"  # empty uses in-process cache and limiter
//	ROLODEX_S3_BUCKET="rolodex-avatars"           # empty disables avatar upload
//
// Mail settings:
//
//	ROLODEX_SMTP_ADDR="smtp.example.com:465"  # empty logs emails instead of sending
//	ROLODEX_SMTP_TLS="true"
//
// Rate limits:
//
//	ROLODEX_RATE_LIMIT_ENABLED="true"
//	ROLODEX_RATE_LIMITS_FILE="/etc/rolodex/limits.yaml"
//	ROLODEX_TRUSTED_PROXIES="10.0.0.0/8,192.0.2.10"
//
// Observability settings:
//
//	ROLODEX_LOG_LEVEL="info"    # debug, info, warn, error
//	ROLODEX_LOG_FORMAT="json"   # json, text
//	ROLODEX_OTEL_ENABLED="true"
//	ROLODEX_OTEL_ENDPOINT="otel-collector:4317"
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
//   - pkg/storage: Uses storage configuration
//   - pkg/middleware: Uses rate limit quotas
//   - pkg/observability: Uses observability configuration
package config
