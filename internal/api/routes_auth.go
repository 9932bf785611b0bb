package api

import (
	"github.com/gin-gonic/gin"

	"github.com/bodhgriha/marketplace/internal/handlers"
)

func registerAuthRoutes(r *gin.Engine, auth *handlers.AuthHandler, twoFactor *handlers.TwoFactorHandler, requireAuth gin.HandlerFunc) {
	public := r.Group("/api/auth")
	{
		public.POST("/register", auth.Register)
		public.POST("/login", auth.Login)
	}

	protected := r.Group("/api/auth")
	protected.Use(requireAuth)
	{
		protected.GET("/me", auth.Me)
		protected.POST("/logout", auth.Logout)
		protected.POST("/rotate", auth.Rotate)
		protected.POST("/password", auth.ChangePassword)

		protected.GET("/2fa", twoFactor.Status)
		protected.POST("/2fa/enroll", twoFactor.Begin)
		protected.POST("/2fa/confirm", twoFactor.Confirm)
		protected.DELETE("/2fa", twoFactor.Disable)
	}
}
