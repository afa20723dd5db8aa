package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/rolodex/pkg/auth"
	"github.com/platinummonkey/rolodex/pkg/cache"
	"github.com/platinummonkey/rolodex/pkg/mail"
	"github.com/platinummonkey/rolodex/pkg/middleware"
	"github.com/platinummonkey/rolodex/pkg/observability"
	"github.com/platinummonkey/rolodex/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Token signing and password hashing
	Auth AuthConfig

	// Storage configuration
	Storage storage.Config

	// Identity cache configuration
	Cache CacheConfig

	// Outgoing email
	Mail MailConfig

	// Per-route request quotas
	RateLimit RateLimitConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64

	// BaseURL prefixes links in outgoing emails
	BaseURL string

	// Origins allowed by CORS, "*" allows any
	AllowedOrigins []string

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// AuthConfig extends auth.Config with hasher sizing
type AuthConfig struct {
	auth.Config

	// HashConcurrency bounds concurrent bcrypt operations, 0 means GOMAXPROCS
	HashConcurrency int
}

// CacheConfig holds identity cache settings
type CacheConfig struct {
	TTL time.Duration

	// MemoryMaxEntries sizes the in-process cache used when Redis is not configured
	MemoryMaxEntries int
}

// MailConfig holds SMTP and delivery pool settings
type MailConfig struct {
	SMTP       mail.SMTPConfig
	Dispatcher mail.DispatcherConfig
}

// RateLimitConfig holds per-route quotas
type RateLimitConfig struct {
	Enabled   bool
	KeyPrefix string
	// File is an optional YAML file overriding Routes
	File   string
	Routes map[string]middleware.Quota
	// TrustedProxies may set X-Forwarded-For and X-Real-IP; empty means the peer address is used
	TrustedProxies middleware.TrustedProxies
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel  string
	LogFormat string

	// Metrics
	MetricsEnabled    bool
	PoolStatsSchedule string

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
	OTelSampleRatio    float64
}

// Quota returns the quota for a route, falling back to the built-in default
func (c RateLimitConfig) Quota(route string) (middleware.Quota, bool) {
	if q, ok := c.Routes[route]; ok {
		return q, true
	}
	q, ok := DefaultQuotas()[route]
	return q, ok
}

// OTel converts the observability settings for observability.InitTracing
func (c ObservabilityConfig) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        c.OTelEnabled,
		Endpoint:       c.OTelEndpoint,
		ServiceName:    c.OTelServiceName,
		ServiceVersion: c.OTelServiceVersion,
		Insecure:       c.OTelInsecure,
		SampleRatio:    c.OTelSampleRatio,
	}
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Auth:          loadAuthConfig(),
		Storage:       loadStorageConfig(),
		Cache:         loadCacheConfig(),
		Mail:          loadMailConfig(),
		RateLimit:     loadRateLimitConfig(),
		Observability: loadObservabilityConfig(),
	}

	proxies, err := middleware.ParseTrustedProxies(getEnvList("ROLODEX_TRUSTED_PROXIES", nil))
	if err != nil {
		return nil, fmt.Errorf("ROLODEX_TRUSTED_PROXIES: %w", err)
	}
	cfg.RateLimit.TrustedProxies = proxies

	if cfg.RateLimit.File != "" {
		routes, err := LoadQuotaFile(cfg.RateLimit.File)
		if err != nil {
			return nil, err
		}
		for name, q := range routes {
			cfg.RateLimit.Routes[name] = q
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	port := getEnv("ROLODEX_PORT", "8000")
	return ServerConfig{
		Host:            getEnv("ROLODEX_HOST", "0.0.0.0"),
		Port:            port,
		ReadTimeout:     getEnvDuration("ROLODEX_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("ROLODEX_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("ROLODEX_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("ROLODEX_SHUTDOWN_TIMEOUT", 30*time.Second),
		MaxBodyBytes:    getEnvInt64("ROLODEX_MAX_BODY_BYTES", 5<<20),
		BaseURL:         strings.TrimRight(getEnv("ROLODEX_BASE_URL", "http://localhost:"+port), "/"),
		AllowedOrigins:  getEnvList("ROLODEX_CORS_ORIGINS", []string{"http://localhost:3000"}),
		HealthPort:      getEnv("ROLODEX_HEALTH_PORT", "9090"),
	}
}

// loadAuthConfig loads token and hashing settings from environment
func loadAuthConfig() AuthConfig {
	cfg := auth.DefaultConfig()
	cfg.SecretKey = getEnv("ROLODEX_SECRET_KEY", "")
	cfg.Algorithm = getEnv("ROLODEX_ALGORITHM", cfg.Algorithm)
	cfg.HashCost = getEnvInt("ROLODEX_HASH_COST", cfg.HashCost)
	cfg.AccessTTL = getEnvDuration("ROLODEX_ACCESS_TOKEN_TTL", cfg.AccessTTL)
	cfg.RefreshTTL = getEnvDuration("ROLODEX_REFRESH_TOKEN_TTL", cfg.RefreshTTL)
	cfg.EmailTTL = getEnvDuration("ROLODEX_EMAIL_TOKEN_TTL", cfg.EmailTTL)

	return AuthConfig{
		Config:          cfg,
		HashConcurrency: getEnvInt("ROLODEX_HASH_CONCURRENCY", 0),
	}
}

// loadStorageConfig loads storage configuration from environment
func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()

	// PostgreSQL config
	if pgURL := getEnv("ROLODEX_POSTGRES_URL", ""); pgURL != "" {
		cfg.PostgresURL = pgURL
	}
	if maxConns := getEnvInt("ROLODEX_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.PostgresMaxConns = maxConns
	}
	if minConns := getEnvInt("ROLODEX_POSTGRES_MIN_CONNS", 0); minConns > 0 {
		cfg.PostgresMinConns = minConns
	}
	if timeout := getEnvDuration("ROLODEX_POSTGRES_TIMEOUT", 0); timeout > 0 {
		cfg.PostgresTimeout = timeout
	}

	// S3 config
	cfg.S3Endpoint = getEnv("ROLODEX_S3_ENDPOINT", cfg.S3Endpoint)
	cfg.S3Region = getEnv("ROLODEX_S3_REGION", cfg.S3Region)
	cfg.S3Bucket = getEnv("ROLODEX_S3_BUCKET", cfg.S3Bucket)
	cfg.S3AccessKey = getEnv("ROLODEX_S3_ACCESS_KEY", cfg.S3AccessKey)
	cfg.S3SecretKey = getEnv("ROLODEX_S3_SECRET_KEY", cfg.S3SecretKey)
	cfg.S3UsePathStyle = getEnvBool("ROLODEX_S3_USE_PATH_STYLE", cfg.S3UsePathStyle)
	cfg.S3PublicBaseURL = getEnv("ROLODEX_S3_PUBLIC_BASE_URL", cfg.S3PublicBaseURL)

	// Redis config
	cfg.RedisURL = getEnv("ROLODEX_REDIS_URL", cfg.RedisURL)
	cfg.RedisPassword = getEnv("ROLODEX_REDIS_PASSWORD", cfg.RedisPassword)
	if redisDB := getEnvInt("ROLODEX_REDIS_DB", -1); redisDB >= 0 {
		cfg.RedisDB = redisDB
	}
	if redisMaxRetries := getEnvInt("ROLODEX_REDIS_MAX_RETRIES", 0); redisMaxRetries > 0 {
		cfg.RedisMaxRetries = redisMaxRetries
	}
	if redisPoolSize := getEnvInt("ROLODEX_REDIS_POOL_SIZE", 0); redisPoolSize > 0 {
		cfg.RedisPoolSize = redisPoolSize
	}

	return cfg
}

// loadCacheConfig loads identity cache settings from environment
func loadCacheConfig() CacheConfig {
	return CacheConfig{
		TTL:              getEnvDuration("ROLODEX_CACHE_TTL", cache.DefaultTTL),
		MemoryMaxEntries: getEnvInt("ROLODEX_CACHE_MAX_ENTRIES", cache.DefaultMaxEntries),
	}
}

// loadMailConfig loads SMTP settings from environment
func loadMailConfig() MailConfig {
	return MailConfig{
		SMTP: mail.SMTPConfig{
			Addr:          getEnv("ROLODEX_SMTP_ADDR", ""),
			User:          getEnv("ROLODEX_SMTP_USER", ""),
			Password:      getEnv("ROLODEX_SMTP_PASSWORD", ""),
			From:          getEnv("ROLODEX_SMTP_FROM", "no-reply@rolodex.local"),
			UseTLS:        getEnvBool("ROLODEX_SMTP_TLS", false),
			Timeout:       getEnvDuration("ROLODEX_SMTP_TIMEOUT", 10*time.Second),
			SubjectPrefix: getEnv("ROLODEX_SMTP_SUBJECT_PREFIX", "[Rolodex] "),
		},
		Dispatcher: mail.DispatcherConfig{
			Workers:     getEnvInt("ROLODEX_MAIL_WORKERS", 2),
			QueueSize:   getEnvInt("ROLODEX_MAIL_QUEUE_SIZE", 100),
			SendTimeout: getEnvDuration("ROLODEX_MAIL_SEND_TIMEOUT", 30*time.Second),
		},
	}
}

// loadRateLimitConfig loads rate limiting settings from environment
func loadRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled:   getEnvBool("ROLODEX_RATE_LIMIT_ENABLED", true),
		KeyPrefix: getEnv("ROLODEX_RATE_LIMIT_PREFIX", middleware.DefaultKeyPrefix),
		File:      getEnv("ROLODEX_RATE_LIMITS_FILE", ""),
		Routes:    DefaultQuotas(),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           strings.ToLower(getEnv("ROLODEX_LOG_LEVEL", "info")),
		LogFormat:          strings.ToLower(getEnv("ROLODEX_LOG_FORMAT", observability.FormatJSON)),
		MetricsEnabled:     getEnvBool("ROLODEX_METRICS_ENABLED", true),
		PoolStatsSchedule:  getEnv("ROLODEX_POOL_STATS_SCHEDULE", "@every 15s"),
		OTelEnabled:        getEnvBool("ROLODEX_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("ROLODEX_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("ROLODEX_OTEL_SERVICE_NAME", "rolodex"),
		OTelServiceVersion: getEnv("ROLODEX_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("ROLODEX_OTEL_INSECURE", true),
		OTelSampleRatio:    getEnvFloat("ROLODEX_OTEL_SAMPLE_RATIO", 1.0),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	if c.Storage.PostgresURL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Storage.S3Bucket != "" && c.Storage.S3Region == "" {
		return fmt.Errorf("S3 region is required when a bucket is set")
	}

	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache TTL must be positive")
	}

	for name, q := range c.RateLimit.Routes {
		if q.Limit <= 0 {
			return fmt.Errorf("rate limit for %s must be positive", name)
		}
		if q.Window < time.Second {
			return fmt.Errorf("rate limit window for %s must be at least 1s", name)
		}
	}

	switch c.Observability.LogFormat {
	case observability.FormatJSON, observability.FormatText:
	default:
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Observability.LogFormat)
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList returns a comma separated environment variable or a default
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
