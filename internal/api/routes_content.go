package api

import (
	"github.com/gin-gonic/gin"

	"github.com/bodhgriha/marketplace/internal/handlers"
)

func registerContentRoutes(r *gin.Engine, handler *handlers.ContentHandler) {
	content := r.Group("/api/content")
	{
		content.GET("/navbar", handler.Navbar)
		content.GET("/about", handler.About)
	}
}
