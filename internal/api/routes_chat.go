package api

import (
	"github.com/gin-gonic/gin"

	"github.com/bodhgriha/marketplace/internal/handlers"
)

func registerChatRoutes(r *gin.Engine, handler *handlers.ChatHandler, requireAuth gin.HandlerFunc) {
	chat := r.Group("/api/chat")
	chat.Use(requireAuth)
	{
		chat.POST("/messages", handler.Send)
		chat.GET("/conversations", handler.Conversations)
		chat.GET("/conversations/:partner", handler.Conversation)
		chat.POST("/conversations/:partner/read", handler.MarkRead)
		chat.GET("/unread", handler.Unread)
		chat.GET("/ws", handler.Websocket)
	}
}
