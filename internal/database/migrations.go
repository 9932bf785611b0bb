package database

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/bodhgriha/marketplace/internal/models"
	"github.com/bodhgriha/marketplace/pkg/crypto"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.ArchivedUser{},
		&models.TwoFactorCredential{},
		&models.UserSession{},
		&models.BlogPost{},
		&models.YogaSchool{},
		&models.Course{},
		&models.Testimonial{},
		&models.Message{},
		&models.AuditLog{},
		&models.CacheEntry{},
	)
}

// EnsureAdmin guarantees a back-office administrator account exists. Intended
// for first boot; it never touches an existing account.
func EnsureAdmin(db *gorm.DB, email, password string) error {
	if db == nil {
		return errors.New("nil database handle")
	}

	email = models.NormaliseEmail(email)
	if email == "" || strings.TrimSpace(password) == "" {
		return errors.New("admin email and password are required")
	}

	var count int64
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return fmt.Errorf("check admin account: %w", err)
	}
	if count > 0 {
		return nil
	}

	hash, err := crypto.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	admin := &models.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    "Site",
		LastName:     "Admin",
		IsActive:     true,
		Roles:        models.RoleAdmin,
	}

	if err := db.Create(admin).Error; err != nil {
		return fmt.Errorf("create admin account: %w", err)
	}

	return nil
}
