package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/bodhgriha/marketplace/internal/auth"
	"github.com/bodhgriha/marketplace/internal/models"
	"github.com/bodhgriha/marketplace/pkg/errors"
	"github.com/bodhgriha/marketplace/pkg/response"
)

const (
	CtxUserKey    = "authUser"
	CtxUserIDKey  = "userID"
	CtxSessionKey = "authSession"

	// SessionCookieName transports the bearer token for browser clients.
	SessionCookieName = "bodhgriha_session"
)

// Auth authenticates the request's bearer token against the session store
// and loads the owning user into the request context. The token comes from
// the Authorization header or, for browser clients, the session cookie.
func Auth(sessions *iauth.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		user, session, err := sessions.Authenticate(c.Request.Context(), token)
		if err != nil {
			response.Error(c, errors.ErrInternalServer)
			c.Abort()
			return
		}
		if user == nil {
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		c.Set(CtxUserKey, user)
		c.Set(CtxUserIDKey, user.ID)
		c.Set(CtxSessionKey, session)

		c.Next()
	}
}

// RequireTier gates a route on the caller's privilege magnitude.
func RequireTier(required models.RoleBits) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := iauth.Authorize(CurrentUser(c), required); err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireFlag gates a route on an exact role flag, regardless of tier.
func RequireFlag(flag models.RoleBits) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}
		if !user.Roles.HasFlag(flag) {
			response.Error(c, errors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// CurrentUser returns the authenticated user, or nil on public routes.
func CurrentUser(c *gin.Context) *models.User {
	value, ok := c.Get(CtxUserKey)
	if !ok {
		return nil
	}
	user, _ := value.(*models.User)
	return user
}

// CurrentSession returns the authenticated session, or nil.
func CurrentSession(c *gin.Context) *models.UserSession {
	value, ok := c.Get(CtxSessionKey)
	if !ok {
		return nil
	}
	session, _ := value.(*models.UserSession)
	return session
}

func bearerToken(c *gin.Context) string {
	authz := c.GetHeader("Authorization")
	if len(authz) >= 8 && strings.EqualFold(authz[:7], "Bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	if cookie, err := c.Cookie(SessionCookieName); err == nil {
		return strings.TrimSpace(cookie)
	}
	return ""
}
