package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testEnvVars = []string{
	"PORT", "PUBLIC_BASE_URL", "LOG_LEVEL", "LOG_FILE", "LOG_FORMAT",
	"DATABASE_TYPE", "DATABASE_PATH", "POSTGRES_HOST", "POSTGRES_PORT", "POSTGRES_DB",
	"POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_SSL_MODE",
	"JWT_SECRET", "JWT_TTL",
	"VAPID_SUBJECT", "VAPID_PUBLIC_KEY", "VAPID_PRIVATE_KEY", "PUSH_TTL", "PUSH_TIMEOUT",
	"RATE_LIMIT_ENABLED", "RATE_LIMIT_REQUESTS", "RATE_LIMIT_WINDOW", "TRUSTED_PROXIES",
	"REDIS_ADDRESS", "REDIS_PASSWORD", "REDIS_DB",
}

func clearTestEnvVars(t *testing.T) {
	for _, key := range testEnvVars {
		t.Setenv(key, "")
	}
}

func validConfig() *Config {
	return &Config{
		Port:              "8080",
		LogFormat:         "console",
		DatabaseType:      "sqlite",
		JWTSecret:         strings.Repeat("s", 32),
		JWTTTL:            time.Hour,
		VAPIDSubject:      "mailto:ops@example.com",
		PushTTL:           60,
		PushTimeout:       time.Second,
		RateLimitEnabled:  true,
		RateLimitRequests: 10,
		RateLimitWindow:   time.Minute,
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearTestEnvVars(t)

	config := Load()

	assert.Equal(t, "8080", config.Port)
	assert.Equal(t, "http://localhost:8080", config.PublicBaseURL)
	assert.Equal(t, "info", config.LogLevel)
	assert.Equal(t, "console", config.LogFormat)
	assert.Equal(t, "sqlite", config.DatabaseType)
	assert.Equal(t, "./pipeline_hub.db", config.DatabasePath)
	assert.Equal(t, 24*time.Hour, config.JWTTTL)
	assert.Equal(t, 86400, config.PushTTL)
	assert.Equal(t, 10*time.Second, config.PushTimeout)
	assert.True(t, config.RateLimitEnabled)
	assert.Equal(t, 60, config.RateLimitRequests)
	assert.Equal(t, time.Minute, config.RateLimitWindow)
	assert.Empty(t, config.RedisAddress)
	assert.Empty(t, config.TrustedProxies)
	assert.False(t, config.HasVAPIDKeys())
}

func TestLoad_FromEnvironment(t *testing.T) {
	clearTestEnvVars(t)
	t.Setenv("PORT", "9090")
	t.Setenv("PUBLIC_BASE_URL", "https://hooks.example.com/")
	t.Setenv("DATABASE_TYPE", "postgres")
	t.Setenv("JWT_TTL", "2h")
	t.Setenv("RATE_LIMIT_ENABLED", "false")
	t.Setenv("RATE_LIMIT_REQUESTS", "not-a-number")
	t.Setenv("VAPID_PUBLIC_KEY", "pub")
	t.Setenv("VAPID_PRIVATE_KEY", "priv")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, ,127.0.0.1")

	config := Load()

	assert.Equal(t, "9090", config.Port)
	assert.Equal(t, "https://hooks.example.com", config.PublicBaseURL)
	assert.Equal(t, "postgres", config.DatabaseType)
	assert.Equal(t, 2*time.Hour, config.JWTTTL)
	assert.False(t, config.RateLimitEnabled)
	assert.Equal(t, 60, config.RateLimitRequests, "invalid ints fall back to the default")
	assert.True(t, config.HasVAPIDKeys())
	assert.Equal(t, []string{"10.0.0.0/8", "127.0.0.1"}, config.TrustedProxies)
}

func TestPostgresDSN(t *testing.T) {
	config := &Config{
		PostgresUser:     "hub",
		PostgresPassword: "secret",
		PostgresHost:     "db",
		PostgresPort:     "5433",
		PostgresDB:       "pipelines",
		PostgresSSLMode:  "require",
	}
	assert.Equal(t, "postgres://hub:secret@db:5433/pipelines?sslmode=require", config.PostgresDSN())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing jwt secret", func(c *Config) { c.JWTSecret = "" }, "JWT_SECRET environment variable is required"},
		{"short jwt secret", func(c *Config) { c.JWTSecret = "short" }, "at least 32 characters"},
		{"bad port", func(c *Config) { c.Port = "70000" }, "PORT must be a valid port"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "LOG_FORMAT"},
		{"bad database type", func(c *Config) { c.DatabaseType = "mongo" }, "DATABASE_TYPE"},
		{"postgres without host", func(c *Config) {
			c.DatabaseType = "postgres"
			c.PostgresDB = "db"
			c.PostgresUser = "u"
			c.PostgresPort = "5432"
		}, "POSTGRES_HOST"},
		{"half vapid pair", func(c *Config) { c.VAPIDPublicKey = "pub" }, "must be set together"},
		{"bad vapid subject", func(c *Config) { c.VAPIDSubject = "ops@example.com" }, "VAPID_SUBJECT"},
		{"zero push timeout", func(c *Config) { c.PushTimeout = 0 }, "PUSH_TIMEOUT"},
		{"zero rate limit", func(c *Config) { c.RateLimitRequests = 0 }, "RATE_LIMIT_REQUESTS"},
		{"rate limit disabled ignores limits", func(c *Config) {
			c.RateLimitEnabled = false
			c.RateLimitRequests = 0
		}, ""},
		{"trusted proxies", func(c *Config) { c.TrustedProxies = []string{"10.0.0.0/8", "::1"} }, ""},
		{"bad trusted proxy", func(c *Config) { c.TrustedProxies = []string{"proxy.local"} }, "TRUSTED_PROXIES"},
		{"redis db out of range", func(c *Config) {
			c.RedisAddress = "localhost:6379"
			c.RedisDB = 16
		}, "REDIS_DB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			tt.mutate(config)

			err := config.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
