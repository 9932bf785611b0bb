package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/bodhgriha/marketplace/internal/auth"
	"github.com/bodhgriha/marketplace/internal/auth/mfa"
	"github.com/bodhgriha/marketplace/internal/middleware"
	"github.com/bodhgriha/marketplace/internal/models"
	"github.com/bodhgriha/marketplace/internal/services"
	"github.com/bodhgriha/marketplace/pkg/errors"
	"github.com/bodhgriha/marketplace/pkg/response"
)

// AuthHandler manages account creation and the session lifecycle:
// register, login, logout, token rotation and password changes.
type AuthHandler struct {
	credentials *iauth.CredentialService
	sessions    *iauth.SessionService
	login       *iauth.LoginService
	totp        *mfa.TOTPService
	audit       *services.AuditService
}

func NewAuthHandler(credentials *iauth.CredentialService, sessions *iauth.SessionService, login *iauth.LoginService, totp *mfa.TOTPService, audit *services.AuditService) *AuthHandler {
	return &AuthHandler{
		credentials: credentials,
		sessions:    sessions,
		login:       login,
		totp:        totp,
		audit:       audit,
	}
}

type registerRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8,max=128"`
	FirstName string `json:"first_name" validate:"required,max=200"`
	LastName  string `json:"last_name" validate:"required,max=200"`
}

type loginRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	TOTPCode   string `json:"totp_code"`
	RememberMe bool   `json:"remember_me"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=128"`
}

// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.credentials.Register(requestContext(c), iauth.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Roles:     models.RoleMember,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	h.recordAudit(c, &user.ID, user.Email, "auth.register", "success")

	response.Success(c, http.StatusCreated, userPayload(user))
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	prior, _ := c.Cookie(middleware.SessionCookieName)

	result, err := h.login.Login(requestContext(c), iauth.LoginInput{
		Email:      req.Email,
		Password:   req.Password,
		TOTPCode:   req.TOTPCode,
		PriorToken: prior,
		RememberMe: req.RememberMe,
		ClientIP:   c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
	})
	if err != nil {
		h.recordAudit(c, nil, req.Email, "auth.login", "failure")
		response.Error(c, err)
		return
	}

	payload := gin.H{
		"user":   userPayload(result.User),
		"reused": result.Reused,
	}
	if !result.Reused {
		setSessionCookie(c, result.RawToken, int(result.TTLSeconds))
		payload["token"] = result.RawToken
		payload["expires_in"] = result.TTLSeconds
	}

	h.recordAudit(c, &result.User.ID, result.User.Email, "auth.login", "success")

	response.Success(c, http.StatusOK, payload)
}

// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	token := presentedToken(c)
	if token == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	revoked, err := h.sessions.Revoke(requestContext(c), token)
	if err != nil {
		response.Error(c, errors.ErrInternalServer)
		return
	}

	clearSessionCookie(c)

	if user := middleware.CurrentUser(c); user != nil {
		h.recordAudit(c, &user.ID, user.Email, "auth.logout", "success")
	}

	response.Success(c, http.StatusOK, gin.H{"revoked": revoked})
}

// POST /api/auth/rotate
func (h *AuthHandler) Rotate(c *gin.Context) {
	token := presentedToken(c)
	if token == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	ttl := iauth.DefaultSessionTTL

	newToken, newSession, err := h.sessions.Rotate(requestContext(c), token, ttl, iauth.SessionMetadata{
		ClientIP:  c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		response.Error(c, errors.ErrInternalServer)
		return
	}
	if newToken == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	setSessionCookie(c, newToken, int(ttl.Seconds()))

	response.Success(c, http.StatusOK, gin.H{
		"token":      newToken,
		"expires_at": newSession.ExpiresAt,
	})
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := mustCurrentUser(c)
	if !ok {
		return
	}

	enabled, err := h.totp.Enabled(requestContext(c), user.ID)
	if err != nil {
		response.Error(c, errors.ErrInternalServer)
		return
	}

	payload := userPayload(user)
	payload["two_factor_enabled"] = enabled

	response.Success(c, http.StatusOK, payload)
}

// POST /api/auth/password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	user, ok := mustCurrentUser(c)
	if !ok {
		return
	}

	var req changePasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	err := h.credentials.ResetPasswordWithVerification(requestContext(c), user.Email, req.CurrentPassword, req.NewPassword)
	if err != nil {
		h.recordAudit(c, &user.ID, user.Email, "auth.password_change", "failure")
		response.Error(c, err)
		return
	}

	// Every session was revoked with the password change, this one included.
	clearSessionCookie(c)

	h.recordAudit(c, &user.ID, user.Email, "auth.password_change", "success")

	response.Success(c, http.StatusOK, gin.H{"changed": true})
}

func (h *AuthHandler) recordAudit(c *gin.Context, userID *string, email, action, result string) {
	if h.audit == nil {
		return
	}
	_ = h.audit.Log(requestContext(c), services.AuditEntry{
		UserID:    userID,
		Email:     email,
		Action:    action,
		Resource:  "auth",
		Result:    result,
		ClientIP:  c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
}

func userPayload(user *models.User) gin.H {
	return gin.H{
		"id":            user.ID,
		"email":         user.Email,
		"first_name":    user.FirstName,
		"last_name":     user.LastName,
		"is_active":     user.IsActive,
		"role_bits":     user.Roles,
		"last_login_at": user.LastLoginAt,
	}
}

func presentedToken(c *gin.Context) string {
	authz := c.GetHeader("Authorization")
	if len(authz) >= 8 && strings.EqualFold(authz[:7], "Bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	if cookie, err := c.Cookie(middleware.SessionCookieName); err == nil {
		return strings.TrimSpace(cookie)
	}
	return ""
}

func setSessionCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookieName, token, maxAge, "/", "", middleware.IsSecureRequest(c.Request), true)
}

func clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookieName, "", -1, "/", "", middleware.IsSecureRequest(c.Request), true)
}
