package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/threatforge/gateway/internal/config"
)

// setEnv is a helper that sets environment variables for a test and restores them after.
func setEnv(t *testing.T, env map[string]string) {
	t.Helper()
	for k, v := range env {
		t.Setenv(k, v)
	}
}

// validEnv returns the minimum set of valid environment variables.
func validEnv() map[string]string {
	return map[string]string{
		"API_KEYS":         "key-one,key-two",
		"SIGNING_SECRET":   "0123456789abcdef0123456789abcdef",
		"BACKEND_PROVIDER": "mock",
	}
}

func TestLoad_ValidConfig(t *testing.T) {
	setEnv(t, validEnv())

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Env)
	assert.True(t, cfg.Auth.Enabled)
	assert.Equal(t, []string{"key-one", "key-two"}, cfg.Auth.APIKeys)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 10, cfg.RateLimit.Requests)
	assert.Equal(t, 60*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, "memory", cfg.RateLimit.Backend)
	assert.True(t, cfg.Content.ValidationEnabled)
	assert.Equal(t, "mock", cfg.Backend.Provider)
}

func TestLoad_CustomPort(t *testing.T) {
	setEnv(t, validEnv())
	t.Setenv("GATEWAY_PORT", "9090")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoad_KeysTrimmedAndEmptyDropped(t *testing.T) {
	setEnv(t, validEnv())
	t.Setenv("API_KEYS", " k1 ,, k2,")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Auth.APIKeys)
}

func TestLoad_MissingKeysWhenAuthEnabled(t *testing.T) {
	env := validEnv()
	delete(env, "API_KEYS")
	setEnv(t, env)

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API_KEYS")
}

func TestLoad_MissingSigningSecret(t *testing.T) {
	env := validEnv()
	delete(env, "SIGNING_SECRET")
	setEnv(t, env)

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SIGNING_SECRET")
}

func TestLoad_ShortSigningSecret(t *testing.T) {
	setEnv(t, validEnv())
	t.Setenv("SIGNING_SECRET", "tooshort")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "32 bytes")
}

func TestLoad_AuthDisabledNeedsNoKeys(t *testing.T) {
	setEnv(t, map[string]string{
		"API_KEY_ENABLED":  "false",
		"BACKEND_PROVIDER": "mock",
	})

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.False(t, cfg.Auth.Enabled)
}

func TestLoad_CustomRateLimit(t *testing.T) {
	setEnv(t, validEnv())
	t.Setenv("RATE_LIMIT_REQUESTS", "5")
	t.Setenv("RATE_LIMIT_WINDOW_SECS", "30")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.RateLimit.Requests)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
}

func TestLoad_InvalidRateLimitRequests(t *testing.T) {
	setEnv(t, validEnv())
	t.Setenv("RATE_LIMIT_REQUESTS", "-1")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RATE_LIMIT_REQUESTS")
}

func TestLoad_RedisBackendRequiresURL(t *testing.T) {
	setEnv(t, validEnv())
	t.Setenv("RATE_LIMIT_BACKEND", "redis")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REDIS_URL")
}

func TestLoad_UnknownRateLimitBackend(t *testing.T) {
	setEnv(t, validEnv())
	t.Setenv("RATE_LIMIT_BACKEND", "memcached")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RATE_LIMIT_BACKEND")
}

func TestLoad_ContentValidationCanBeDisabled(t *testing.T) {
	setEnv(t, validEnv())
	t.Setenv("CONTENT_VALIDATION_ENABLED", "false")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.False(t, cfg.Content.ValidationEnabled)
}

func TestLoad_UnknownProvider(t *testing.T) {
	setEnv(t, validEnv())
	t.Setenv("BACKEND_PROVIDER", "bard")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BACKEND_PROVIDER")
}

func TestLoad_OpenAIRequiresKey(t *testing.T) {
	setEnv(t, validEnv())
	t.Setenv("BACKEND_PROVIDER", "openai")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestLoad_TokenTTLOverride(t *testing.T) {
	setEnv(t, validEnv())
	t.Setenv("TOKEN_TTL_HOURS", "1")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
}
