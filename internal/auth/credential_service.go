package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/bodhgriha/marketplace/internal/database"
	"github.com/bodhgriha/marketplace/internal/models"
	"github.com/bodhgriha/marketplace/pkg/crypto"
	apperrors "github.com/bodhgriha/marketplace/pkg/errors"
)

// RegisterInput captures the details required to create an account.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Roles     models.RoleBits
	Meta      map[string]any
}

// CredentialService persists password credentials and identity fields. It
// never stores or logs a plaintext password.
type CredentialService struct {
	db       *gorm.DB
	sessions *SessionService
}

// NewCredentialService constructs a credential store. The session service is
// needed because a password change must invalidate every prior login.
func NewCredentialService(db *gorm.DB, sessions *SessionService) (*CredentialService, error) {
	if db == nil {
		return nil, errors.New("credential service: db is required")
	}
	if sessions == nil {
		return nil, errors.New("credential service: session service is required")
	}
	return &CredentialService{db: db, sessions: sessions}, nil
}

func (s *CredentialService) withDB(db *gorm.DB) *CredentialService {
	cpy := *s
	cpy.sessions = s.sessions.withDB(db)
	cpy.db = db
	return &cpy
}

// Register creates a new account with a hashed password. A taken email
// yields ErrDuplicateIdentity; the pre-insert existence check keeps the
// common case cheap and the unique index catches the concurrent-signup race.
func (s *CredentialService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	email := models.NormaliseEmail(input.Email)
	if email == "" {
		return nil, apperrors.NewBadRequest("email is required")
	}
	if strings.TrimSpace(input.Password) == "" {
		return nil, apperrors.NewBadRequest("password is required")
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("credential service: check email: %w", err)
	}
	if count > 0 {
		return nil, apperrors.ErrDuplicateIdentity
	}

	hash, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("credential service: hash password: %w", err)
	}

	roles := input.Roles
	if roles == 0 {
		roles = models.RoleMember
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		IsActive:     true,
		Roles:        roles,
	}

	if len(input.Meta) > 0 {
		encoded, err := json.Marshal(input.Meta)
		if err != nil {
			return nil, fmt.Errorf("credential service: marshal meta: %w", err)
		}
		user.Meta = encoded
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if database.IsUniqueConstraintError(err) {
			// Lost the race against a concurrent signup for the same email.
			return nil, apperrors.ErrDuplicateIdentity
		}
		return nil, fmt.Errorf("credential service: create user: %w", err)
	}

	return user, nil
}

// VerifyPassword checks a plaintext candidate against the stored hash.
func (s *CredentialService) VerifyPassword(user *models.User, password string) bool {
	if user == nil || user.PasswordHash == "" {
		return false
	}
	return crypto.VerifyPassword(user.PasswordHash, password)
}

// FindByEmail loads a user by normalised email, or nil when absent.
func (s *CredentialService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	email = models.NormaliseEmail(email)
	if email == "" {
		return nil, nil
	}

	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("credential service: find user: %w", err)
	}

	return &user, nil
}

// ForceResetPassword replaces the password hash without requiring the old
// password and revokes every active session for the user; a changed password
// invalidates all prior logins. Both writes share one transaction.
func (s *CredentialService) ForceResetPassword(ctx context.Context, user *models.User, newPassword string) error {
	if user == nil {
		return apperrors.ErrUserNotFound
	}
	if strings.TrimSpace(newPassword) == "" {
		return apperrors.NewBadRequest("new password is required")
	}

	hash, err := crypto.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("credential service: hash password: %w", err)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		scoped := s.withDB(tx)

		if err := tx.Model(&models.User{}).
			Where("id = ?", user.ID).
			Update("password_hash", hash).Error; err != nil {
			return fmt.Errorf("credential service: update password: %w", err)
		}

		if _, err := scoped.sessions.RevokeAllForUser(ctx, user.ID); err != nil {
			return err
		}

		user.PasswordHash = hash
		return nil
	})
}

// ResetPasswordWithVerification changes the password after checking the old
// one. Distinct failures stay distinct here; only the login path collapses
// causes into a generic error.
func (s *CredentialService) ResetPasswordWithVerification(ctx context.Context, email, oldPassword, newPassword string) error {
	user, err := s.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return apperrors.ErrUserNotFound
	}

	if !s.VerifyPassword(user, oldPassword) {
		return apperrors.ErrIncorrectPassword
	}

	return s.ForceResetPassword(ctx, user, newPassword)
}
