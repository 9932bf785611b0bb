package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User describes marketplace accounts: students, instructors, editors and
// back-office staff. Email is the login identity and is stored lowercased so
// uniqueness is case-insensitive across database vendors.
type User struct {
	ID           string `gorm:"primaryKey;type:uuid" json:"id"`
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`

	FirstName string `gorm:"size:200;not null" json:"first_name"`
	LastName  string `gorm:"size:200;not null" json:"last_name"`

	IsActive bool     `gorm:"default:true;index" json:"is_active"`
	Roles    RoleBits `gorm:"column:role_bits;not null;default:1" json:"role_bits"`

	// Meta carries free-form profile fields and preferences.
	Meta datatypes.JSON `json:"meta,omitempty"`

	TwoFactorCredentials []TwoFactorCredential `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Sessions             []UserSession         `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Posts                []BlogPost            `gorm:"foreignKey:AuthorID" json:"-"`
	Schools              []YogaSchool          `gorm:"foreignKey:OwnerID" json:"-"`

	LastLoginAt *time.Time `json:"last_login_at"`
	LastLoginIP string     `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns a UUID and normalises the email before persisting.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = NormaliseEmail(u.Email)
	return nil
}

// FullName joins the name parts for display contexts.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// NormaliseEmail lowercases and trims an email address. All lookups and
// writes route through this so the unique index behaves case-insensitively.
func NormaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ArchivedUser preserves a removed account's identity fields for audit
// purposes. Live credentials and sessions are cascade-deleted with the user
// row and are deliberately not copied here.
type ArchivedUser struct {
	BaseModel

	UserID     string         `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	Email      string         `gorm:"not null" json:"email"`
	FirstName  string         `json:"first_name"`
	LastName   string         `json:"last_name"`
	Roles      RoleBits       `gorm:"column:role_bits" json:"role_bits"`
	Meta       datatypes.JSON `json:"meta,omitempty"`
	ArchivedAt time.Time      `gorm:"not null" json:"archived_at"`
}
