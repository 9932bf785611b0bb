package handlers

import (
	"encoding/base64"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bodhgriha/marketplace/internal/auth/mfa"
	"github.com/bodhgriha/marketplace/internal/cache"
	"github.com/bodhgriha/marketplace/internal/services"
	"github.com/bodhgriha/marketplace/pkg/errors"
	"github.com/bodhgriha/marketplace/pkg/response"
)

// DefaultEnrollmentWindow bounds how long a started 2FA enrollment stays
// confirmable before the staged secret is discarded.
const DefaultEnrollmentWindow = 5 * time.Minute

// TwoFactorHandler drives the TOTP enrollment lifecycle over HTTP. The
// candidate secret is staged in the cache between begin and confirm so the
// client never has to resend it; the stage expires with the enrollment
// window.
type TwoFactorHandler struct {
	totp   *mfa.TOTPService
	stage  cache.Store
	window time.Duration
	audit  *services.AuditService
}

func NewTwoFactorHandler(totp *mfa.TOTPService, stage cache.Store, window time.Duration, audit *services.AuditService) *TwoFactorHandler {
	if window <= 0 {
		window = DefaultEnrollmentWindow
	}
	return &TwoFactorHandler{totp: totp, stage: stage, window: window, audit: audit}
}

type beginEnrollmentRequest struct {
	Rotate bool `json:"rotate"`
}

type confirmEnrollmentRequest struct {
	Code string `json:"code" validate:"required,totpcode"`
}

func enrollmentStageKey(userID string) string {
	return "2fa:enroll:" + userID
}

// POST /api/auth/2fa/enroll
func (h *TwoFactorHandler) Begin(c *gin.Context) {
	user, ok := mustCurrentUser(c)
	if !ok {
		return
	}

	var req beginEnrollmentRequest
	if c.Request.ContentLength > 0 && !bindAndValidate(c, &req) {
		return
	}

	ctx := requestContext(c)

	enrollment, err := h.totp.BeginEnrollment(ctx, user, req.Rotate)
	if err != nil {
		response.Error(c, mapEnrollmentError(err))
		return
	}

	// The staged copy is sealed so a database-backed cache never holds the
	// candidate secret in plaintext.
	sealed, err := h.totp.SealSecret(enrollment.Secret)
	if err != nil {
		response.Error(c, errors.ErrInternalServer)
		return
	}
	if err := h.stage.Set(ctx, enrollmentStageKey(user.ID), []byte(sealed), h.window); err != nil {
		response.Error(c, errors.ErrInternalServer)
		return
	}

	h.recordAudit(c, user.ID, "2fa.enroll_begin", "success")

	response.Success(c, http.StatusOK, gin.H{
		"secret":           enrollment.Secret,
		"provisioning_uri": enrollment.ProvisioningURI,
		"qr_code_png":      base64.StdEncoding.EncodeToString(enrollment.QRCodePNG),
		"recovery_codes":   enrollment.RecoveryCodes,
		"expires_in":       int(h.window.Seconds()),
	})
}

// POST /api/auth/2fa/confirm
func (h *TwoFactorHandler) Confirm(c *gin.Context) {
	user, ok := mustCurrentUser(c)
	if !ok {
		return
	}

	var req confirmEnrollmentRequest
	if !bindAndValidate(c, &req) {
		return
	}

	ctx := requestContext(c)
	key := enrollmentStageKey(user.ID)

	staged, found, err := h.stage.Get(ctx, key)
	if err != nil {
		response.Error(c, errors.ErrInternalServer)
		return
	}
	if !found {
		response.Error(c, errors.NewBadRequest("no enrollment in progress or the window expired"))
		return
	}

	secret, err := h.totp.OpenSecret(string(staged))
	if err != nil {
		response.Error(c, errors.ErrInternalServer)
		return
	}
	if !h.totp.VerifyCandidateSecret(secret, req.Code) {
		h.recordAudit(c, user.ID, "2fa.enroll_confirm", "failure")
		response.Error(c, errors.NewBadRequest("the code does not match the enrolled authenticator"))
		return
	}

	if err := h.totp.ConfirmEnrollment(ctx, user, secret); err != nil {
		response.Error(c, mapEnrollmentError(err))
		return
	}

	_ = h.stage.Delete(ctx, key)

	h.recordAudit(c, user.ID, "2fa.enroll_confirm", "success")

	response.Success(c, http.StatusOK, gin.H{"enabled": true})
}

// DELETE /api/auth/2fa
func (h *TwoFactorHandler) Disable(c *gin.Context) {
	user, ok := mustCurrentUser(c)
	if !ok {
		return
	}

	ctx := requestContext(c)

	if err := h.totp.Disable(ctx, user.ID); err != nil {
		response.Error(c, err)
		return
	}

	_ = h.stage.Delete(ctx, enrollmentStageKey(user.ID))

	h.recordAudit(c, user.ID, "2fa.disable", "success")

	response.Success(c, http.StatusOK, gin.H{"enabled": false})
}

// GET /api/auth/2fa
func (h *TwoFactorHandler) Status(c *gin.Context) {
	user, ok := mustCurrentUser(c)
	if !ok {
		return
	}

	ctx := requestContext(c)

	enabled, err := h.totp.Enabled(ctx, user.ID)
	if err != nil {
		response.Error(c, errors.ErrInternalServer)
		return
	}

	payload := gin.H{"enabled": enabled}
	if enabled {
		remaining, err := h.totp.RemainingRecoveryCodes(ctx, user.ID)
		if err != nil {
			response.Error(c, errors.ErrInternalServer)
			return
		}
		payload["recovery_codes_remaining"] = remaining
	}

	response.Success(c, http.StatusOK, payload)
}

// mapEnrollmentError translates enrollment state failures into client-facing
// error codes; anything unrecognised stays a 500.
func mapEnrollmentError(err error) error {
	switch {
	case stderrors.Is(err, mfa.ErrAlreadyEnabled):
		return errors.ErrTOTPAlreadyEnabled
	case stderrors.Is(err, mfa.ErrNoPendingEnrollment):
		return errors.NewBadRequest("no enrollment in progress")
	case stderrors.Is(err, mfa.ErrSecretMismatch):
		return errors.NewBadRequest("the staged secret no longer matches the pending enrollment")
	default:
		return err
	}
}

func (h *TwoFactorHandler) recordAudit(c *gin.Context, userID, action, result string) {
	if h.audit == nil {
		return
	}
	_ = h.audit.Log(requestContext(c), services.AuditEntry{
		UserID:    &userID,
		Action:    action,
		Resource:  "two_factor",
		Result:    result,
		ClientIP:  c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
}
