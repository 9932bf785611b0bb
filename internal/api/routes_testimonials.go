package api

import (
	"github.com/gin-gonic/gin"

	"github.com/bodhgriha/marketplace/internal/handlers"
	"github.com/bodhgriha/marketplace/internal/middleware"
	"github.com/bodhgriha/marketplace/internal/models"
)

func registerTestimonialRoutes(r *gin.Engine, handler *handlers.TestimonialHandler, requireAuth gin.HandlerFunc) {
	r.GET("/api/testimonials", handler.List)

	protected := r.Group("/api/testimonials")
	protected.Use(requireAuth)
	{
		protected.POST("", handler.Submit)
		protected.POST("/:id/approve", middleware.RequireTier(models.RoleStaff), handler.Approve)
		protected.DELETE("/:id", middleware.RequireTier(models.RoleStaff), handler.Reject)
	}
}
