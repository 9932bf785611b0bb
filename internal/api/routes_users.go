package api

import (
	"github.com/gin-gonic/gin"

	"github.com/bodhgriha/marketplace/internal/handlers"
	"github.com/bodhgriha/marketplace/internal/middleware"
	"github.com/bodhgriha/marketplace/internal/models"
)

func registerUserRoutes(r *gin.Engine, handler *handlers.UserHandler, requireAuth gin.HandlerFunc) {
	users := r.Group("/api/users")
	users.Use(requireAuth)
	{
		users.PUT("/me", handler.UpdateProfile)

		users.GET("", middleware.RequireTier(models.RoleStaff), handler.List)
		users.GET("/:id", middleware.RequireTier(models.RoleStaff), handler.Get)
		users.PUT("/:id/active", middleware.RequireTier(models.RoleStaff), handler.SetActive)
		users.PUT("/:id/roles", middleware.RequireTier(models.RoleAdmin), handler.SetRoles)
		users.DELETE("/:id", middleware.RequireTier(models.RoleAdmin), handler.Archive)
	}
}
