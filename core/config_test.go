package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SECRET", "")
	t.Setenv("secret", "")
	t.Setenv("ALLOWED_ORIGINS", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, "localhost", cfg.DefaultIssuer)
	assert.Equal(t, 5*time.Hour, cfg.SessionTTL)
	assert.Equal(t, time.Duration(0), cfg.TokenLeeway)
	assert.True(t, cfg.SeedEnabled)
	assert.Empty(t, cfg.AllowedOrigins)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("SECRET", "c2VjcmV0")
	t.Setenv("TOKEN_LEEWAY", "15s")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("SEED", "false")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example.com, ,https://b.example.com ")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "c2VjcmV0", cfg.Secret)
	assert.Equal(t, 15*time.Second, cfg.TokenLeeway)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.False(t, cfg.SeedEnabled)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.AllowedOrigins)
}

func TestLoad_LowercaseSecret(t *testing.T) {
	t.Setenv("SECRET", "")
	t.Setenv("secret", "bG93ZXI=")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "bG93ZXI=", cfg.Secret)
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("SESSION_TTL", "soon")

	_, err := Load()
	assert.Error(t, err)
}
