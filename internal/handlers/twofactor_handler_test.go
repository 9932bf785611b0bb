package handlers_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"

	"github.com/bodhgriha/marketplace/internal/handlers/testutil"
	"github.com/bodhgriha/marketplace/internal/models"
)

type enrollmentPayload struct {
	Secret          string   `json:"secret"`
	ProvisioningURI string   `json:"provisioning_uri"`
	QRCodePNG       string   `json:"qr_code_png"`
	RecoveryCodes   []string `json:"recovery_codes"`
	ExpiresIn       int      `json:"expires_in"`
}

func beginEnrollment(t *testing.T, env *testutil.Env, token string) enrollmentPayload {
	t.Helper()

	rec := env.Request(t, http.MethodPost, "/api/auth/2fa/enroll", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload enrollmentPayload
	testutil.DecodeData(t, rec, &payload)
	require.NotEmpty(t, payload.Secret)
	require.Contains(t, payload.ProvisioningURI, "otpauth://totp/")
	require.NotEmpty(t, payload.QRCodePNG)
	require.NotEmpty(t, payload.RecoveryCodes)
	return payload
}

func TestTwoFactorEnrollmentLifecycle(t *testing.T) {
	env := testutil.NewEnv(t)
	_, token := env.LoginUser(t, "guru@bodhgriha.test", "password-123", models.RoleInstructor)

	enrollment := beginEnrollment(t, env, token)

	code, err := totp.GenerateCode(enrollment.Secret, time.Now())
	require.NoError(t, err)

	rec := env.Request(t, http.MethodPost, "/api/auth/2fa/confirm", map[string]any{"code": code}, token)
	require.Equal(t, http.StatusOK, rec.Code)

	var confirmed struct {
		Enabled bool `json:"enabled"`
	}
	testutil.DecodeData(t, rec, &confirmed)
	require.True(t, confirmed.Enabled)

	rec = env.Request(t, http.MethodGet, "/api/auth/2fa", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)

	var status struct {
		Enabled                bool `json:"enabled"`
		RecoveryCodesRemaining int  `json:"recovery_codes_remaining"`
	}
	testutil.DecodeData(t, rec, &status)
	require.True(t, status.Enabled)
	require.Equal(t, len(enrollment.RecoveryCodes), status.RecoveryCodesRemaining)
}

func TestTwoFactorLoginRequiresCode(t *testing.T) {
	env := testutil.NewEnv(t)
	_, token := env.LoginUser(t, "secured@bodhgriha.test", "password-123", models.RoleMember)

	enrollment := beginEnrollment(t, env, token)
	code, err := totp.GenerateCode(enrollment.Secret, time.Now())
	require.NoError(t, err)

	rec := env.Request(t, http.MethodPost, "/api/auth/2fa/confirm", map[string]any{"code": code}, token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.Request(t, http.MethodPost, "/api/auth/login", map[string]any{
		"email":    "secured@bodhgriha.test",
		"password": "password-123",
	}, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	code, err = totp.GenerateCode(enrollment.Secret, time.Now())
	require.NoError(t, err)

	rec = env.Request(t, http.MethodPost, "/api/auth/login", map[string]any{
		"email":     "secured@bodhgriha.test",
		"password":  "password-123",
		"totp_code": code,
	}, "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestTwoFactorStagedSecretNotStoredInPlaintext(t *testing.T) {
	env := testutil.NewEnv(t)
	user, token := env.LoginUser(t, "cautious@bodhgriha.test", "password-123", models.RoleMember)

	enrollment := beginEnrollment(t, env, token)

	staged, found, err := env.Cache.Get(context.Background(), "2fa:enroll:"+user.ID)
	require.NoError(t, err)
	require.True(t, found)
	require.NotContains(t, string(staged), enrollment.Secret)

	// The sealed copy still confirms.
	code, err := totp.GenerateCode(enrollment.Secret, time.Now())
	require.NoError(t, err)

	rec := env.Request(t, http.MethodPost, "/api/auth/2fa/confirm", map[string]any{"code": code}, token)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestTwoFactorConfirmWithoutEnrollment(t *testing.T) {
	env := testutil.NewEnv(t)
	_, token := env.LoginUser(t, "eager@bodhgriha.test", "password-123", models.RoleMember)

	rec := env.Request(t, http.MethodPost, "/api/auth/2fa/confirm", map[string]any{"code": "123456"}, token)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTwoFactorConfirmWithWrongCode(t *testing.T) {
	env := testutil.NewEnv(t)
	_, token := env.LoginUser(t, "fumbler@bodhgriha.test", "password-123", models.RoleMember)

	beginEnrollment(t, env, token)

	rec := env.Request(t, http.MethodPost, "/api/auth/2fa/confirm", map[string]any{"code": "000000"}, token)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.Request(t, http.MethodGet, "/api/auth/2fa", nil, token)
	var status struct {
		Enabled bool `json:"enabled"`
	}
	testutil.DecodeData(t, rec, &status)
	require.False(t, status.Enabled)
}

func TestTwoFactorDisable(t *testing.T) {
	env := testutil.NewEnv(t)
	_, token := env.LoginUser(t, "undoer@bodhgriha.test", "password-123", models.RoleMember)

	enrollment := beginEnrollment(t, env, token)
	code, err := totp.GenerateCode(enrollment.Secret, time.Now())
	require.NoError(t, err)

	rec := env.Request(t, http.MethodPost, "/api/auth/2fa/confirm", map[string]any{"code": code}, token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.Request(t, http.MethodDelete, "/api/auth/2fa", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.Request(t, http.MethodGet, "/api/auth/2fa", nil, token)
	var status struct {
		Enabled bool `json:"enabled"`
	}
	testutil.DecodeData(t, rec, &status)
	require.False(t, status.Enabled)
}
