package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "0123456789abcdef0123456789abcdef")
	t.Setenv("PORT", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.Server.Port)
	require.Equal(t, 6, cfg.OTP.Length)
	require.Equal(t, 10*time.Minute, cfg.OTP.Expiry)
	require.Equal(t, 3, cfg.OTP.MaxAttempts)
	require.Equal(t, 5, cfg.OTP.RateLimitMax)
	require.Equal(t, time.Hour, cfg.OTP.RateLimitWindow)
	require.Equal(t, time.Minute, cfg.OTP.Cooldown)
	require.Equal(t, "+91", cfg.OTP.CountryCode)
	require.False(t, cfg.OTP.AllowLeadingZero)
	require.Equal(t, 1, cfg.Quota.FreeContactViews)
	require.Equal(t, 20, cfg.Quota.PremiumListings)
	require.Equal(t, 5, cfg.S3.MaxFiles)
	require.Empty(t, cfg.Server.CORSOrigins)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "0123456789abcdef0123456789abcdef")
	t.Setenv("OTP_RESEND_COOLDOWN", "30s")
	t.Setenv("OTP_MAX_ATTEMPTS", "5")
	t.Setenv("QUOTA_FREE_LISTINGS", "4")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.test, ,https://b.test")
	t.Setenv("OTP_LENGTH", "not-a-number")
	t.Setenv("OTP_ALLOW_LEADING_ZERO", "true")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 30*time.Second, cfg.OTP.Cooldown)
	require.Equal(t, 5, cfg.OTP.MaxAttempts)
	require.Equal(t, 4, cfg.Quota.FreeListings)
	require.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.Server.CORSOrigins)
	require.Equal(t, 6, cfg.OTP.Length)
	require.True(t, cfg.OTP.AllowLeadingZero)
}

func TestLoad_RejectsWeakSecret(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("JWT_SECRET_KEY", "too-short")
	_, err = Load()
	require.Error(t, err)
}

func TestLoad_RejectsNonPositiveOTPSettings(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "0123456789abcdef0123456789abcdef")
	t.Setenv("OTP_MAX_ATTEMPTS", "0")
	_, err := Load()
	require.Error(t, err)
}
