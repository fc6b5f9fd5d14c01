package main

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionTokenRoundTrip(t *testing.T) {
	app := &App{cfg: &Config{SigningSecret: "0123456789abcdef"}}

	token, err := app.createSessionToken(portalSession{Email: "asha@example.com"}, time.Now())
	require.NoError(t, err)

	session, err := app.verifySessionToken(token)
	require.NoError(t, err)
	assert.Equal(t, "asha@example.com", session.Email)
}

func TestSessionTokenRejectsTampering(t *testing.T) {
	app := &App{cfg: &Config{SigningSecret: "0123456789abcdef"}}
	other := &App{cfg: &Config{SigningSecret: "fedcba9876543210"}}

	token, err := other.createSessionToken(portalSession{Email: "asha@example.com"}, time.Now())
	require.NoError(t, err)
	_, err = app.verifySessionToken(token)
	assert.Error(t, err)

	expired, err := app.createSessionToken(portalSession{Email: "asha@example.com"}, time.Now().Add(-2*portalSessionDuration))
	require.NoError(t, err)
	_, err = app.verifySessionToken(expired)
	assert.Error(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"email": "asha@example.com"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = app.verifySessionToken(unsigned)
	assert.Error(t, err)
}

func TestLoadConfigRequiresSigningSecret(t *testing.T) {
	t.Setenv("PORTAL_SIGNING_SECRET", "short")
	_, err := loadConfig()
	assert.Error(t, err)

	t.Setenv("PORTAL_SIGNING_SECRET", "0123456789abcdef")
	t.Setenv("PORTAL_ADDR", "")
	t.Setenv("API_BASE_URL", "http://api.local/")
	t.Setenv("REPORT_SERVICE_URL", "")
	t.Setenv("OUTBOUND_TIMEOUT", "")
	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, defaultPortalAddr, cfg.Addr)
	assert.Equal(t, "http://api.local", cfg.APIBaseURL)
	assert.Equal(t, defaultReportServiceURL, cfg.ReportServiceURL)
	assert.Equal(t, 15*time.Second, cfg.OutboundTimeout)

	t.Setenv("OUTBOUND_TIMEOUT", "0s")
	_, err = loadConfig()
	assert.Error(t, err)
}
