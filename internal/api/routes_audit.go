package api

import (
	"github.com/gin-gonic/gin"

	"github.com/bodhgriha/marketplace/internal/handlers"
	"github.com/bodhgriha/marketplace/internal/middleware"
	"github.com/bodhgriha/marketplace/internal/models"
)

func registerAuditRoutes(r *gin.Engine, handler *handlers.AuditHandler, requireAuth gin.HandlerFunc) {
	r.GET("/api/audit", requireAuth, middleware.RequireTier(models.RoleStaff), handler.List)
}
