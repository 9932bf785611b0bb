package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/bodhgriha/marketplace/internal/database/testutil"
	"github.com/bodhgriha/marketplace/internal/models"
	apperrors "github.com/bodhgriha/marketplace/pkg/errors"
)

func setupUserService(t *testing.T) (*UserService, *gorm.DB) {
	t.Helper()

	db := testutil.MustOpenTestDB(t)
	audit, err := NewAuditService(db)
	require.NoError(t, err)

	svc, err := NewUserService(db, audit)
	require.NoError(t, err)
	return svc, db
}

func seedUser(t *testing.T, db *gorm.DB, email string, roles models.RoleBits) *models.User {
	t.Helper()

	user := &models.User{
		Email:        email,
		PasswordHash: "x",
		FirstName:    "Asha",
		LastName:     "Iyer",
		IsActive:     true,
		Roles:        roles,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestUserServiceGet(t *testing.T) {
	svc, db := setupUserService(t)
	user := seedUser(t, db, "get@example.com", models.RoleMember)

	found, err := svc.Get(context.Background(), user.ID)
	require.NoError(t, err)
	require.Equal(t, user.Email, found.Email)

	_, err = svc.Get(context.Background(), "missing-id")
	require.ErrorIs(t, err, apperrors.ErrUserNotFound)
}

func TestUserServiceListFilters(t *testing.T) {
	svc, db := setupUserService(t)
	seedUser(t, db, "member@example.com", models.RoleMember)
	instructor := seedUser(t, db, "instructor@example.com", models.RoleMember|models.RoleInstructor)
	inactive := seedUser(t, db, "inactive@example.com", models.RoleMember)
	require.NoError(t, db.Model(inactive).Update("is_active", false).Error)

	users, total, err := svc.List(context.Background(), ListUsersOptions{})
	require.NoError(t, err)
	require.EqualValues(t, 3, total)
	require.Len(t, users, 3)

	active := true
	users, total, err = svc.List(context.Background(), ListUsersOptions{
		Filters: UserFilters{IsActive: &active},
	})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)

	users, total, err = svc.List(context.Background(), ListUsersOptions{
		Filters: UserFilters{Flag: models.RoleInstructor},
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, instructor.ID, users[0].ID)

	_, total, err = svc.List(context.Background(), ListUsersOptions{
		Filters: UserFilters{Query: "INSTRUCTOR"},
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
}

func TestUserServiceSetActiveRevokesSessions(t *testing.T) {
	svc, db := setupUserService(t)
	user := seedUser(t, db, "toggle@example.com", models.RoleMember)

	require.NoError(t, db.Create(&models.UserSession{
		UserID:    user.ID,
		TokenHash: "hash-1",
		IssuedAt:  db.NowFunc(),
		ExpiresAt: db.NowFunc().Add(time.Hour),
	}).Error)

	require.NoError(t, svc.SetActive(context.Background(), user.ID, false))

	var sessionCount int64
	require.NoError(t, db.Model(&models.UserSession{}).Where("user_id = ?", user.ID).Count(&sessionCount).Error)
	require.Zero(t, sessionCount)

	found, err := svc.Get(context.Background(), user.ID)
	require.NoError(t, err)
	require.False(t, found.IsActive)

	// Reactivation turns the account back on without touching sessions.
	require.NoError(t, svc.SetActive(context.Background(), user.ID, true))
	found, err = svc.Get(context.Background(), user.ID)
	require.NoError(t, err)
	require.True(t, found.IsActive)
}

func TestUserServiceSetRoles(t *testing.T) {
	svc, db := setupUserService(t)
	user := seedUser(t, db, "roles@example.com", models.RoleMember)

	updated, err := svc.SetRoles(context.Background(), user.ID, models.RoleMember|models.RoleEditor)
	require.NoError(t, err)
	require.True(t, updated.Roles.HasFlag(models.RoleEditor))

	_, err = svc.SetRoles(context.Background(), user.ID, 0)
	require.Error(t, err)

	// The grant is audited with before and after values.
	var log models.AuditLog
	require.NoError(t, db.Where("action = ?", "user.set_roles").Take(&log).Error)
	require.Contains(t, log.Metadata, "previous")
}

func TestUserServiceArchive(t *testing.T) {
	svc, db := setupUserService(t)
	user := seedUser(t, db, "archive@example.com", models.RoleMember|models.RoleInstructor)

	require.NoError(t, db.Create(&models.UserSession{
		UserID:    user.ID,
		TokenHash: "hash-2",
		IssuedAt:  db.NowFunc(),
		ExpiresAt: db.NowFunc().Add(time.Hour),
	}).Error)
	require.NoError(t, db.Create(&models.TwoFactorCredential{
		UserID: user.ID,
		Method: models.TwoFactorMethodTOTP,
		Secret: "encrypted",
	}).Error)

	require.NoError(t, svc.Archive(context.Background(), user.ID))

	_, err := svc.Get(context.Background(), user.ID)
	require.ErrorIs(t, err, apperrors.ErrUserNotFound)

	var archived models.ArchivedUser
	require.NoError(t, db.Where("user_id = ?", user.ID).Take(&archived).Error)
	require.Equal(t, user.Email, archived.Email)
	require.Equal(t, user.Roles, archived.Roles)

	var count int64
	require.NoError(t, db.Model(&models.UserSession{}).Where("user_id = ?", user.ID).Count(&count).Error)
	require.Zero(t, count)
	require.NoError(t, db.Model(&models.TwoFactorCredential{}).Where("user_id = ?", user.ID).Count(&count).Error)
	require.Zero(t, count)
}
