package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/humanize_test")
	t.Setenv("JWT_SECRET", "test-access-secret")
	t.Setenv("JWT_REFRESH_SECRET", "test-refresh-secret")
}

func TestLoad_defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 24*time.Hour, cfg.AccessTokenTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, 6, cfg.OTPLength)
	assert.Equal(t, "humanize", cfg.SMSSenderName)
	assert.False(t, cfg.Production())
}

func TestLoad_missingRequired(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DATABASE_URL", "")
	_, err := Load()
	assert.Error(t, err)

	setRequiredEnv(t)
	t.Setenv("JWT_SECRET", "")
	_, err = Load()
	assert.Error(t, err)

	setRequiredEnv(t)
	t.Setenv("JWT_REFRESH_SECRET", "")
	_, err = Load()
	assert.Error(t, err)
}

func TestLoad_secretsMustDiffer(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("JWT_REFRESH_SECRET", "test-access-secret")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("JWT_EXPIRES_IN", "15m")
	t.Setenv("OTP_LENGTH", "4")
	t.Setenv("APP_ENV", "production")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 4, cfg.OTPLength)
	assert.True(t, cfg.Production())
}

func TestLoad_invalidOTPLength(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("OTP_LENGTH", "99")

	_, err := Load()
	assert.Error(t, err)
}
