package api

import (
	"github.com/gin-gonic/gin"

	"github.com/bodhgriha/marketplace/internal/handlers"
	"github.com/bodhgriha/marketplace/internal/middleware"
	"github.com/bodhgriha/marketplace/internal/models"
)

func registerBlogRoutes(r *gin.Engine, handler *handlers.BlogHandler, requireAuth gin.HandlerFunc) {
	// Published posts are public reading material.
	public := r.Group("/api/blog")
	{
		public.GET("", handler.List)
		public.GET("/:slug", handler.Get)
	}

	editors := r.Group("/api/blog")
	editors.Use(requireAuth, middleware.RequireTier(models.RoleEditor))
	{
		editors.POST("", handler.Create)
		editors.PUT("/:slug", handler.Update)
		editors.POST("/:slug/publish", handler.Publish)
		editors.POST("/:slug/unpublish", handler.Unpublish)
		editors.DELETE("/:slug", handler.Delete)
	}
}
