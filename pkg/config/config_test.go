package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/rolodex/pkg/cache"
	"github.com/platinummonkey/rolodex/pkg/middleware"
)

// TestGetEnv tests the getEnv helper function
func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{
			name:         "returns env value when set",
			key:          "TEST_VAR",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
		},
		{
			name:         "returns default when env not set",
			key:          "TEST_VAR_NOT_SET",
			defaultValue: "default",
			envValue:     "",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv(tt.key, tt.envValue)
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestGetEnvBool tests the getEnvBool helper function
func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		defaultValue bool
		envValue     string
		want         bool
	}{
		{"returns true for 'true'", false, "true", true},
		{"returns true for 'TRUE'", false, "TRUE", true},
		{"returns true for '1'", false, "1", true},
		{"returns false for 'false'", true, "false", false},
		{"returns false for garbage", true, "yes please", false},
		{"returns default when unset", true, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv("TEST_BOOL", tt.envValue)
			}
			assert.Equal(t, tt.want, getEnvBool("TEST_BOOL", tt.defaultValue))
		})
	}
}

// TestGetEnvNumbers tests the numeric helpers including invalid input fallback
func TestGetEnvNumbers(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_BAD_INT", "forty-two")
	t.Setenv("TEST_INT64", "9000000000")
	t.Setenv("TEST_FLOAT", "0.25")
	t.Setenv("TEST_DURATION", "90s")
	t.Setenv("TEST_BAD_DURATION", "soon")

	assert.Equal(t, 42, getEnvInt("TEST_INT", 1))
	assert.Equal(t, 1, getEnvInt("TEST_BAD_INT", 1))
	assert.Equal(t, int64(9000000000), getEnvInt64("TEST_INT64", 1))
	assert.Equal(t, 0.25, getEnvFloat("TEST_FLOAT", 1))
	assert.Equal(t, 90*time.Second, getEnvDuration("TEST_DURATION", time.Second))
	assert.Equal(t, time.Second, getEnvDuration("TEST_BAD_DURATION", time.Second))
}

// TestGetEnvList tests comma separated parsing
func TestGetEnvList(t *testing.T) {
	assert.Equal(t, []string{"a"}, getEnvList("TEST_LIST_UNSET", []string{"a"}))

	t.Setenv("TEST_LIST", " https://a.example.com, ,https://b.example.com ")
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, getEnvList("TEST_LIST", nil))
}

// TestLoadConfig_Defaults tests defaults when only the secret is set
func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("ROLODEX_SECRET_KEY", "s3cret")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.HealthPort)
	assert.Equal(t, "http://localhost:8000", cfg.Server.BaseURL)
	assert.Equal(t, "s3cret", cfg.Auth.SecretKey)
	assert.Equal(t, "HS256", cfg.Auth.Algorithm)
	assert.Equal(t, cache.DefaultTTL, cfg.Cache.TTL)
	assert.Equal(t, 2, cfg.Mail.Dispatcher.Workers)
	assert.Empty(t, cfg.Mail.SMTP.Addr)
	assert.Empty(t, cfg.Storage.RedisURL)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, "ratelimit", cfg.RateLimit.KeyPrefix)
	assert.Equal(t, DefaultQuotas(), cfg.RateLimit.Routes)
	assert.Empty(t, cfg.RateLimit.TrustedProxies)
	assert.Equal(t, "json", cfg.Observability.LogFormat)
	assert.False(t, cfg.Observability.OTelEnabled)
}

// TestLoadConfig_FromEnv tests that environment variables override defaults
func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("ROLODEX_SECRET_KEY", "s3cret")
	t.Setenv("ROLODEX_PORT", "8080")
	t.Setenv("ROLODEX_BASE_URL", "https://rolodex.example.com/")
	t.Setenv("ROLODEX_ALGORITHM", "HS512")
	t.Setenv("ROLODEX_ACCESS_TOKEN_TTL", "5m")
	t.Setenv("ROLODEX_HASH_CONCURRENCY", "3")
	t.Setenv("ROLODEX_POSTGRES_URL", "postgres://u:p@db/rolodex")
	t.Setenv("ROLODEX_REDIS_URL", "redis://cache:6379/1")
	t.Setenv("ROLODEX_S3_BUCKET", "avatars")
	t.Setenv("ROLODEX_CACHE_TTL", "30s")
	t.Setenv("ROLODEX_SMTP_ADDR", "smtp.example.com:587")
	t.Setenv("ROLODEX_RATE_LIMIT_ENABLED", "false")
	t.Setenv("ROLODEX_LOG_FORMAT", "TEXT")
	t.Setenv("ROLODEX_OTEL_ENABLED", "true")
	t.Setenv("ROLODEX_OTEL_SAMPLE_RATIO", "0.1")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "https://rolodex.example.com", cfg.Server.BaseURL)
	assert.Equal(t, "HS512", cfg.Auth.Algorithm)
	assert.Equal(t, 5*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, 3, cfg.Auth.HashConcurrency)
	assert.Equal(t, "postgres://u:p@db/rolodex", cfg.Storage.PostgresURL)
	assert.Equal(t, "redis://cache:6379/1", cfg.Storage.RedisURL)
	assert.Equal(t, "avatars", cfg.Storage.S3Bucket)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Equal(t, "smtp.example.com:587", cfg.Mail.SMTP.Addr)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, "text", cfg.Observability.LogFormat)

	otel := cfg.Observability.OTel()
	assert.True(t, otel.Enabled)
	assert.Equal(t, 0.1, otel.SampleRatio)
	assert.Equal(t, "rolodex", otel.ServiceName)
}

// TestLoadConfig_TrustedProxies tests the forwarding header allowlist
func TestLoadConfig_TrustedProxies(t *testing.T) {
	t.Setenv("ROLODEX_SECRET_KEY", "s3cret")
	t.Setenv("ROLODEX_TRUSTED_PROXIES", "10.0.0.0/8, 192.0.2.10")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Len(t, cfg.RateLimit.TrustedProxies, 2)
	assert.Equal(t, "10.0.0.0/8", cfg.RateLimit.TrustedProxies[0].String())
	assert.Equal(t, "192.0.2.10/32", cfg.RateLimit.TrustedProxies[1].String())

	t.Setenv("ROLODEX_TRUSTED_PROXIES", "lb.internal")
	_, err = LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ROLODEX_TRUSTED_PROXIES")
}

// TestLoadConfig_MissingSecret tests that the signing secret is required
func TestLoadConfig_MissingSecret(t *testing.T) {
	os.Unsetenv("ROLODEX_SECRET_KEY")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "secret key is required")
}

// TestLoadConfig_QuotaFile tests the YAML quota overlay
func TestLoadConfig_QuotaFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "limits.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
routes:
  contacts.list:
    limit: 50
    window: 30s
  contacts.export:
    limit: 1
    window: 1h
`), 0o600))

	t.Setenv("ROLODEX_SECRET_KEY", "s3cret")
	t.Setenv("ROLODEX_RATE_LIMITS_FILE", path)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, middleware.Quota{Name: "contacts.list", Limit: 50, Window: 30 * time.Second}, cfg.RateLimit.Routes[RouteContactsList])
	assert.Equal(t, middleware.Quota{Name: "contacts.export", Limit: 1, Window: time.Hour}, cfg.RateLimit.Routes["contacts.export"])
	assert.Equal(t, DefaultQuotas()[RouteContactsCreate], cfg.RateLimit.Routes[RouteContactsCreate])
}

// TestLoadConfig_QuotaFileMissing tests that a configured but unreadable file fails loading
func TestLoadConfig_QuotaFileMissing(t *testing.T) {
	t.Setenv("ROLODEX_SECRET_KEY", "s3cret")
	t.Setenv("ROLODEX_RATE_LIMITS_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestParseQuotas(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr bool
		want    map[string]middleware.Quota
	}{
		{
			name: "valid",
			data: "routes:\n  contacts.get:\n    limit: 3\n    window: 2m\n",
			want: map[string]middleware.Quota{
				"contacts.get": {Name: "contacts.get", Limit: 3, Window: 2 * time.Minute},
			},
		},
		{
			name: "empty file",
			data: "",
			want: map[string]middleware.Quota{},
		},
		{
			name:    "zero limit",
			data:    "routes:\n  contacts.get:\n    limit: 0\n    window: 2m\n",
			wantErr: true,
		},
		{
			name:    "bad duration",
			data:    "routes:\n  contacts.get:\n    limit: 3\n    window: later\n",
			wantErr: true,
		},
		{
			name:    "not yaml",
			data:    "routes: [",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseQuotas([]byte(tt.data))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDefaultQuotas(t *testing.T) {
	quotas := DefaultQuotas()

	assert.Len(t, quotas, 7)
	for name, q := range quotas {
		assert.Equal(t, name, q.Name)
	}
	assert.Equal(t, 2, quotas[RouteContactsCreate].Limit)
	assert.Equal(t, 180*time.Second, quotas[RouteContactsCreate].Window)
	assert.Equal(t, 5, quotas[RouteContactsList].Limit)
}

func TestRateLimitConfig_Quota(t *testing.T) {
	cfg := RateLimitConfig{Routes: map[string]middleware.Quota{
		RouteContactsList: {Name: RouteContactsList, Limit: 99, Window: time.Minute},
	}}

	q, ok := cfg.Quota(RouteContactsList)
	assert.True(t, ok)
	assert.Equal(t, 99, q.Limit)

	q, ok = cfg.Quota(RouteContactsSearch)
	assert.True(t, ok)
	assert.Equal(t, 10, q.Limit)

	_, ok = cfg.Quota("unknown")
	assert.False(t, ok)
}

// TestValidate tests configuration validation
func TestValidate(t *testing.T) {
	t.Setenv("ROLODEX_SECRET_KEY", "s3cret")
	valid := func() *Config {
		cfg, err := LoadConfig()
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing port",
			mutate:  func(c *Config) { c.Server.Port = "" },
			wantErr: "server port is required",
		},
		{
			name:    "same ports",
			mutate:  func(c *Config) { c.Server.HealthPort = c.Server.Port },
			wantErr: "must be different",
		},
		{
			name:    "unsupported algorithm",
			mutate:  func(c *Config) { c.Auth.Algorithm = "RS256" },
			wantErr: "auth",
		},
		{
			name:    "missing postgres",
			mutate:  func(c *Config) { c.Storage.PostgresURL = "" },
			wantErr: "postgres URL is required",
		},
		{
			name: "bucket without region",
			mutate: func(c *Config) {
				c.Storage.S3Bucket = "avatars"
				c.Storage.S3Region = ""
			},
			wantErr: "S3 region",
		},
		{
			name:    "zero cache ttl",
			mutate:  func(c *Config) { c.Cache.TTL = 0 },
			wantErr: "cache TTL",
		},
		{
			name: "sub-second window",
			mutate: func(c *Config) {
				c.RateLimit.Routes[RouteContactsGet] = middleware.Quota{Name: RouteContactsGet, Limit: 1, Window: time.Millisecond}
			},
			wantErr: "at least 1s",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Observability.LogFormat = "xml" },
			wantErr: "invalid log format",
		},
		{
			name: "otel without endpoint",
			mutate: func(c *Config) {
				c.Observability.OTelEnabled = true
				c.Observability.OTelEndpoint = ""
			},
			wantErr: "endpoint is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
