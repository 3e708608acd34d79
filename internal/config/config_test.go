package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 15*time.Minute, cfg.JWTAccessExpiry)
	assert.Equal(t, 168*time.Hour, cfg.JWTRefreshExpiry)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.NotEqual(t, cfg.JWTAccessSecret, cfg.JWTRefreshSecret)
}

func TestLoad_FromEnvVars(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("JWT_ACCESS_TOKEN_EXPIRY", "5m")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com,https://admin.example.com")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, 5*time.Minute, cfg.JWTAccessExpiry)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.CORSAllowedOrigins)
}

func TestLoad_InvalidPort(t *testing.T) {
	t.Setenv("HTTP_PORT", "70000")

	_, err := Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid HTTP port")
}

func TestLoad_SecretsMustDiffer(t *testing.T) {
	t.Setenv("JWT_ACCESS_SECRET", strings.Repeat("a", 32))
	t.Setenv("JWT_REFRESH_SECRET", strings.Repeat("a", 32))

	_, err := Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "must differ")
}

func TestLoad_ProductionRequiresExplicitSecrets(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("GITHUB_CLIENT_ID", "prod-client")
	t.Setenv("GITHUB_CLIENT_SECRET", "prod-secret")

	_, err := Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_ACCESS_SECRET")
}

func TestLoad_ProductionRejectsShortSecrets(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("JWT_ACCESS_SECRET", "short")
	t.Setenv("JWT_REFRESH_SECRET", strings.Repeat("r", 32))
	t.Setenv("GITHUB_CLIENT_ID", "prod-client")
	t.Setenv("GITHUB_CLIENT_SECRET", "prod-secret")

	_, err := Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 32 characters")
}

func TestLoad_ProductionRequiresGithubCredentials(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("JWT_ACCESS_SECRET", strings.Repeat("a", 32))
	t.Setenv("JWT_REFRESH_SECRET", strings.Repeat("r", 32))

	_, err := Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "GITHUB_CLIENT_ID")
}

func TestLoad_ProductionSuccess(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("JWT_ACCESS_SECRET", strings.Repeat("a", 32))
	t.Setenv("JWT_REFRESH_SECRET", strings.Repeat("r", 32))
	t.Setenv("GITHUB_CLIENT_ID", "prod-client")
	t.Setenv("GITHUB_CLIENT_SECRET", "prod-secret")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "production", cfg.Environment)
}
