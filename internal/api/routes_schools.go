package api

import (
	"github.com/gin-gonic/gin"

	"github.com/bodhgriha/marketplace/internal/handlers"
)

func registerSchoolRoutes(r *gin.Engine, handler *handlers.SchoolHandler, requireAuth gin.HandlerFunc) {
	public := r.Group("/api/schools")
	{
		public.GET("", handler.List)
		public.GET("/:slug", handler.Get)
	}

	// Instructor flag and ownership checks happen in the handler and
	// service; the routes only require a session.
	protected := r.Group("/api/schools")
	protected.Use(requireAuth)
	{
		protected.POST("", handler.Create)
		protected.PUT("/:slug", handler.Update)
		protected.POST("/:slug/courses", handler.AddCourse)
		protected.DELETE("/courses/:id", handler.RemoveCourse)
	}
}
