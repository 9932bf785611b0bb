package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/bodhgriha/marketplace/internal/middleware"
	"github.com/bodhgriha/marketplace/internal/models"
	"github.com/bodhgriha/marketplace/pkg/errors"
	"github.com/bodhgriha/marketplace/pkg/response"
)

// requestContext returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// mustCurrentUser resolves the authenticated user or writes a 401 and
// reports false. Routes behind middleware.Auth always succeed here.
func mustCurrentUser(c *gin.Context) (*models.User, bool) {
	user := middleware.CurrentUser(c)
	if user == nil {
		response.Error(c, errors.ErrUnauthorized)
		return nil, false
	}
	return user, true
}
