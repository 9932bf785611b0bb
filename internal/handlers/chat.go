package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bodhgriha/marketplace/internal/realtime"
	"github.com/bodhgriha/marketplace/internal/services"
	"github.com/bodhgriha/marketplace/pkg/response"
)

// ChatHandler exposes direct messaging: message history, inbox summaries
// and the websocket endpoint live delivery rides on.
type ChatHandler struct {
	chat *services.ChatService
	hub  *realtime.Hub
}

func NewChatHandler(chat *services.ChatService, hub *realtime.Hub) *ChatHandler {
	return &ChatHandler{chat: chat, hub: hub}
}

type sendMessageRequest struct {
	ReceiverID string `json:"receiver_id" validate:"required"`
	Body       string `json:"body" validate:"required,max=8000"`
}

// POST /api/chat/messages
func (h *ChatHandler) Send(c *gin.Context) {
	user, ok := mustCurrentUser(c)
	if !ok {
		return
	}

	var req sendMessageRequest
	if !bindAndValidate(c, &req) {
		return
	}

	message, err := h.chat.Send(requestContext(c), services.SendMessageInput{
		SenderID:   user.ID,
		ReceiverID: req.ReceiverID,
		Body:       req.Body,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, message)
}

// GET /api/chat/conversations
func (h *ChatHandler) Conversations(c *gin.Context) {
	user, ok := mustCurrentUser(c)
	if !ok {
		return
	}

	summaries, err := h.chat.Conversations(requestContext(c), user.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, summaries)
}

// GET /api/chat/conversations/:partner
func (h *ChatHandler) Conversation(c *gin.Context) {
	user, ok := mustCurrentUser(c)
	if !ok {
		return
	}

	opts := services.ConversationOptions{
		Page:     parseIntQuery(c, "page", 1),
		PageSize: parseIntQuery(c, "page_size", 50),
	}

	messages, total, err := h.chat.Conversation(requestContext(c), user.ID, c.Param("partner"), opts)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, messages, response.NewPageMeta(opts.Page, opts.PageSize, total))
}

// POST /api/chat/conversations/:partner/read
func (h *ChatHandler) MarkRead(c *gin.Context) {
	user, ok := mustCurrentUser(c)
	if !ok {
		return
	}

	updated, err := h.chat.MarkRead(requestContext(c), user.ID, c.Param("partner"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"read": updated})
}

// GET /api/chat/unread
func (h *ChatHandler) Unread(c *gin.Context) {
	user, ok := mustCurrentUser(c)
	if !ok {
		return
	}

	count, err := h.chat.UnreadCount(requestContext(c), user.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"unread": count})
}

// GET /api/chat/ws upgrades to a websocket carrying chat and presence
// events for the authenticated user.
func (h *ChatHandler) Websocket(c *gin.Context) {
	user, ok := mustCurrentUser(c)
	if !ok {
		return
	}

	h.hub.Serve(user.ID, c.Writer, c.Request)
}
