package gatekeeper

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenConfig_CarriesEveryTTL(t *testing.T) {
	cfg := Config{
		JWTSecret:        "a-secret-key-with-at-least-32-chars",
		JWTIssuer:        "custom-issuer",
		AccessTokenTTL:   15 * time.Minute,
		RefreshTokenTTL:  7 * 24 * time.Hour,
		ResetPasswordTTL: 5 * time.Minute,
		VerifyEmailTTL:   20 * time.Minute,
		VerifyOTPTTL:     3 * time.Minute,
		UpdateEmailTTL:   8 * time.Minute,
		InviteTTL:        24 * time.Hour,
	}

	tc := tokenConfig(cfg)
	assert.Equal(t, []byte(cfg.JWTSecret), tc.Secret)
	assert.Equal(t, "custom-issuer", tc.Issuer)
	assert.Equal(t, 15*time.Minute, tc.AccessTokenTTL)
	assert.Equal(t, 7*24*time.Hour, tc.RefreshTokenTTL)
	assert.Equal(t, 5*time.Minute, tc.ResetPasswordTTL)
	assert.Equal(t, 20*time.Minute, tc.VerifyEmailTTL)
	assert.Equal(t, 3*time.Minute, tc.VerifyOTPTTL)
	assert.Equal(t, 8*time.Minute, tc.UpdateEmailTTL)
	assert.Equal(t, 24*time.Hour, tc.InviteTTL)
}

func TestValidateConfig(t *testing.T) {
	// validateConfig only nil-checks the handle, so a zero DB suffices.
	db := new(sql.DB)

	err := validateConfig(&Config{JWTSecret: "a-secret-key-with-at-least-32-chars"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB is required")

	err = validateConfig(&Config{DB: db, JWTSecret: "short"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "32 characters")

	assert.NoError(t, validateConfig(&Config{DB: db, JWTSecret: "a-secret-key-with-at-least-32-chars"}))
}
