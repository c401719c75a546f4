package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SECRET_KEY", "unit-test-signing-key-0123456789abcdef")
	t.Setenv("MAIL_SERVER", "smtp.cuwep.com")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("PORT", "")
	t.Setenv("APP_BASE_URL", "")

	cfg := LoadConfig()

	assert.Equal(t, "5000", cfg.Port)
	assert.Equal(t, "http://localhost:5000/", cfg.AppBaseURL)
	assert.Equal(t, "localhost:6379", cfg.RedisURL)
	assert.Equal(t, 300*time.Minute, cfg.AccessTokenExpire)
	assert.Equal(t, 60*time.Minute, cfg.ResetTokenExpire)
	assert.Equal(t, "cuwep@cuwep.com", cfg.MailFrom)
	assert.Equal(t, "CUWEP", cfg.MailFromName)
	assert.Equal(t, 1025, cfg.MailPort)
	assert.False(t, cfg.TrustProxyHeaders)
	assert.Contains(t, cfg.DatabaseURL, "postgres://")
}

func TestLoadConfigAppBaseURLGetsTrailingSlash(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("APP_BASE_URL", "https://cuwep.example.com")

	cfg := LoadConfig()
	assert.Equal(t, "https://cuwep.example.com/", cfg.AppBaseURL)
}

func TestLoadConfigParsesCORSOrigins(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg := LoadConfig()
	require.Len(t, cfg.AllowedOrigins, 2)
	assert.Equal(t, "https://a.example.com", cfg.AllowedOrigins[0])
	assert.Equal(t, "https://b.example.com", cfg.AllowedOrigins[1])
}

func TestLoadConfigRedisURLWithCredentials(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("REDIS_URL", "redis://:sekret@redis.internal:6380/0")
	t.Setenv("REDIS_PASSWORD", "")

	cfg := LoadConfig()
	assert.Equal(t, "redis.internal:6380", cfg.RedisURL)
	assert.Equal(t, "sekret", cfg.RedisPassword)
}

func TestLoadConfigExplicitRedisPasswordWins(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("REDIS_URL", "redis://:urlpass@redis.internal:6379")
	t.Setenv("REDIS_PASSWORD", "explicit")

	cfg := LoadConfig()
	assert.Equal(t, "explicit", cfg.RedisPassword)
}

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("CFG_TEST_STR", "value")
	assert.Equal(t, "value", GetEnvOrDefault("CFG_TEST_STR", "fallback"))
	assert.Equal(t, "fallback", GetEnvOrDefault("CFG_TEST_MISSING", "fallback"))
}

func TestGetEnvAsBool(t *testing.T) {
	tests := []struct {
		value string
		def   bool
		want  bool
	}{
		{"true", false, true},
		{"1", false, true},
		{"yes", false, true},
		{"false", true, false},
		{"0", true, false},
		{"no", true, false},
		{"", true, true},
		{"garbage", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("CFG_TEST_BOOL", tt.value)
			assert.Equal(t, tt.want, GetEnvAsBool("CFG_TEST_BOOL", tt.def))
		})
	}
}

func TestGetEnvAsInt(t *testing.T) {
	t.Setenv("CFG_TEST_INT", "42")
	assert.Equal(t, 42, GetEnvAsInt("CFG_TEST_INT", 7))

	t.Setenv("CFG_TEST_INT", "not-a-number")
	assert.Equal(t, 7, GetEnvAsInt("CFG_TEST_INT", 7))

	t.Setenv("CFG_TEST_INT", "")
	assert.Equal(t, 7, GetEnvAsInt("CFG_TEST_INT", 7))
}

func TestNormalizeRedisAddress(t *testing.T) {
	assert.Equal(t, "localhost:6379", normalizeRedisAddress("localhost:6379"))
	assert.Equal(t, "redis.internal:6380", normalizeRedisAddress("redis://user:pw@redis.internal:6380/2"))
	assert.Equal(t, "", normalizeRedisAddress("  "))
}

func TestBuildDatabaseURLFromEnv(t *testing.T) {
	t.Setenv("POSTGRESQL_HOST", "db.internal")
	t.Setenv("POSTGRESQL_USER", "cuwep")
	t.Setenv("POSTGRESQL_PASSWORD", "pw")
	t.Setenv("POSTGRESQL_DATABASE", "cuwep")
	t.Setenv("POSTGRESQL_PORT", "5433")

	url := buildDatabaseURLFromEnv()
	assert.Contains(t, url, "postgres://cuwep:pw@db.internal:5433/cuwep")
	assert.Contains(t, url, "sslmode=require")
}

func TestBuildDatabaseURLFromEnvIncomplete(t *testing.T) {
	t.Setenv("POSTGRESQL_HOST", "db.internal")
	t.Setenv("POSTGRESQL_USER", "")
	t.Setenv("PGUSER", "")
	t.Setenv("POSTGRESQL_DATABASE", "")
	t.Setenv("PGDATABASE", "")

	assert.Equal(t, "", buildDatabaseURLFromEnv())
}
