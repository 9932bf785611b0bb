package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/bodhgriha/marketplace/internal/models"
	apperrors "github.com/bodhgriha/marketplace/pkg/errors"
)

// ChatNotifier pushes chat events to connected clients. The realtime hub
// implements it; a nil notifier silently drops events.
type ChatNotifier interface {
	NotifyUser(userID string, event string, payload any)
}

// SendMessageInput describes one direct message.
type SendMessageInput struct {
	SenderID   string
	ReceiverID string
	Body       string
}

// ConversationOptions controls pagination for a message thread.
type ConversationOptions struct {
	Page     int
	PageSize int
}

// ConversationSummary is one row of a user's inbox: the partner, the last
// message exchanged and how many are unread.
type ConversationSummary struct {
	PartnerID   string         `json:"partner_id"`
	LastMessage models.Message `json:"last_message"`
	Unread      int64          `json:"unread"`
}

// ChatService persists direct messages between accounts and fans out
// realtime notifications for them.
type ChatService struct {
	db       *gorm.DB
	notifier ChatNotifier
}

// NewChatService constructs a ChatService instance.
func NewChatService(db *gorm.DB, notifier ChatNotifier) (*ChatService, error) {
	if db == nil {
		return nil, errors.New("chat service: db is required")
	}
	return &ChatService{db: db, notifier: notifier}, nil
}

// Send stores a message and notifies the receiver's live connections.
func (s *ChatService) Send(ctx context.Context, input SendMessageInput) (*models.Message, error) {
	ctx = ensureContext(ctx)

	senderID := strings.TrimSpace(input.SenderID)
	receiverID := strings.TrimSpace(input.ReceiverID)
	body := strings.TrimSpace(input.Body)

	if senderID == "" || receiverID == "" {
		return nil, apperrors.NewBadRequest("sender and receiver are required")
	}
	if senderID == receiverID {
		return nil, apperrors.NewBadRequest("cannot message yourself")
	}
	if body == "" {
		return nil, apperrors.NewBadRequest("message body is required")
	}

	var receiver models.User
	err := s.db.WithContext(ctx).Take(&receiver, "id = ?", receiverID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("chat service: load receiver: %w", err)
	}
	if !receiver.IsActive {
		return nil, apperrors.ErrUserNotFound
	}

	message := &models.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Body:       body,
		SentAt:     s.db.NowFunc(),
	}

	if err := s.db.WithContext(ctx).Create(message).Error; err != nil {
		return nil, fmt.Errorf("chat service: create message: %w", err)
	}

	if s.notifier != nil {
		s.notifier.NotifyUser(receiverID, "chat.message", message)
	}

	return message, nil
}

// Conversation returns the thread between two users, newest first.
func (s *ChatService) Conversation(ctx context.Context, userID, partnerID string, opts ConversationOptions) ([]models.Message, int64, error) {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(userID) == "" || strings.TrimSpace(partnerID) == "" {
		return nil, 0, apperrors.NewBadRequest("both participants are required")
	}

	page, perPage := clampPagination(opts.Page, opts.PageSize)

	query := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			userID, partnerID, partnerID, userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("chat service: count messages: %w", err)
	}

	var messages []models.Message
	if err := query.
		Order("sent_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&messages).Error; err != nil {
		return nil, 0, fmt.Errorf("chat service: list messages: %w", err)
	}

	return messages, total, nil
}

// Conversations builds the user's inbox: one summary per partner, ordered
// by the latest exchange.
func (s *ChatService) Conversations(ctx context.Context, userID string) ([]ConversationSummary, error) {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(userID) == "" {
		return nil, apperrors.NewBadRequest("user id is required")
	}

	var messages []models.Message
	if err := s.db.WithContext(ctx).
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Order("sent_at DESC").
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("chat service: load conversations: %w", err)
	}

	var summaries []ConversationSummary
	index := map[string]int{}
	for _, message := range messages {
		partnerID := message.SenderID
		if partnerID == userID {
			partnerID = message.ReceiverID
		}

		at, seen := index[partnerID]
		if !seen {
			index[partnerID] = len(summaries)
			summaries = append(summaries, ConversationSummary{
				PartnerID:   partnerID,
				LastMessage: message,
			})
			at = index[partnerID]
		}

		if message.ReceiverID == userID && message.ReadAt == nil {
			summaries[at].Unread++
		}
	}

	return summaries, nil
}

// MarkRead stamps every unread message from partner to user as read.
func (s *ChatService) MarkRead(ctx context.Context, userID, partnerID string) (int64, error) {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(userID) == "" || strings.TrimSpace(partnerID) == "" {
		return 0, apperrors.NewBadRequest("both participants are required")
	}

	result := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("receiver_id = ? AND sender_id = ? AND read_at IS NULL", userID, partnerID).
		Update("read_at", s.db.NowFunc())
	if result.Error != nil {
		return 0, fmt.Errorf("chat service: mark read: %w", result.Error)
	}

	return result.RowsAffected, nil
}

// UnreadCount reports the user's total unread messages.
func (s *ChatService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	ctx = ensureContext(ctx)

	var count int64
	err := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("receiver_id = ? AND read_at IS NULL", userID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("chat service: unread count: %w", err)
	}

	return count, nil
}
