package models

import "time"

// Message is one direct chat message between two users.
type Message struct {
	BaseModel

	SenderID string `gorm:"type:uuid;not null;index:idx_messages_pair" json:"sender_id"`
	Sender   *User  `gorm:"foreignKey:SenderID" json:"-"`

	ReceiverID string `gorm:"type:uuid;not null;index:idx_messages_pair" json:"receiver_id"`
	Receiver   *User  `gorm:"foreignKey:ReceiverID" json:"-"`

	Body string `gorm:"not null" json:"body"`

	SentAt time.Time  `gorm:"index;not null" json:"sent_at"`
	ReadAt *time.Time `json:"read_at"`
}
