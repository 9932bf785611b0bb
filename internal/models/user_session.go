package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// UserSession is one issued bearer token. Only the SHA-256 hash of the token
// is stored; the raw token is returned to the caller exactly once at issue
// time and is never recoverable afterwards.
type UserSession struct {
	ID        string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string `gorm:"type:uuid;not null;index" json:"user_id"`
	User      *User  `gorm:"foreignKey:UserID" json:"-"`
	TokenHash string `gorm:"uniqueIndex;not null" json:"-"`

	ClientIP  string         `json:"client_ip"`
	UserAgent string         `json:"user_agent"`
	Meta      datatypes.JSON `json:"meta,omitempty"`

	IssuedAt   time.Time  `gorm:"not null" json:"issued_at"`
	ExpiresAt  time.Time  `gorm:"index;not null" json:"expires_at"`
	LastUsedAt time.Time  `json:"last_used_at"`
	RevokedAt  *time.Time `json:"revoked_at"`

	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate assigns a UUID before persisting.
func (s *UserSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// ValidAt reports whether the session is live at the given instant:
// not revoked and not expired.
func (s *UserSession) ValidAt(now time.Time) bool {
	return s != nil && s.RevokedAt == nil && s.ExpiresAt.After(now)
}
