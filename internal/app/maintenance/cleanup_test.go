package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	iauth "github.com/bodhgriha/marketplace/internal/auth"
	"github.com/bodhgriha/marketplace/internal/cache"
	dbtest "github.com/bodhgriha/marketplace/internal/database/testutil"
	"github.com/bodhgriha/marketplace/internal/models"
	"github.com/bodhgriha/marketplace/internal/services"
)

func seedUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	user := &models.User{
		Email:        "cleanup@bodhgriha.test",
		PasswordHash: "x",
		FirstName:    "Clean",
		LastName:     "Up",
		IsActive:     true,
		Roles:        models.RoleMember,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestRunOncePurgesExpiredState(t *testing.T) {
	db := dbtest.MustOpenTestDB(t)
	ctx := context.Background()

	sessions, err := iauth.NewSessionService(db, iauth.SessionConfig{})
	require.NoError(t, err)
	audit, err := services.NewAuditService(db)
	require.NoError(t, err)
	store := cache.NewDatabaseStore(db)

	user := seedUser(t, db)

	_, expired, err := sessions.Issue(ctx, user.ID, time.Hour, iauth.SessionMetadata{})
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.UserSession{}).
		Where("id = ?", expired.ID).
		Update("expires_at", time.Now().Add(-time.Hour)).Error)

	liveToken, _, err := sessions.Issue(ctx, user.ID, time.Hour, iauth.SessionMetadata{})
	require.NoError(t, err)

	require.NoError(t, db.Create(&models.CacheEntry{
		Key:       "ratelimit:stale",
		Value:     []byte("1"),
		ExpiresAt: time.Now().Add(-time.Minute),
	}).Error)
	require.NoError(t, store.Set(ctx, "fresh", []byte("keep"), time.Hour))

	require.NoError(t, db.Create(&models.AuditLog{
		ID:        uuid.NewString(),
		Action:    "auth.login",
		Result:    "success",
		CreatedAt: time.Now().AddDate(0, 0, -120),
	}).Error)
	require.NoError(t, audit.Log(ctx, services.AuditEntry{Action: "auth.login", Result: "success"}))

	cleaner := NewCleaner(sessions, store, audit)
	require.NoError(t, cleaner.RunOnce(ctx))

	var sessionCount int64
	require.NoError(t, db.Model(&models.UserSession{}).Count(&sessionCount).Error)
	require.Equal(t, int64(1), sessionCount)

	authUser, _, err := sessions.Authenticate(ctx, liveToken)
	require.NoError(t, err)
	require.NotNil(t, authUser)

	var cacheKeys []string
	require.NoError(t, db.Model(&models.CacheEntry{}).Pluck("key", &cacheKeys).Error)
	require.NotContains(t, cacheKeys, "ratelimit:stale")

	var auditCount int64
	require.NoError(t, db.Model(&models.AuditLog{}).Count(&auditCount).Error)
	require.Equal(t, int64(1), auditCount)
}

func TestRunOnceToleratesNilDependencies(t *testing.T) {
	cleaner := NewCleaner(nil, nil, nil)
	require.NoError(t, cleaner.RunOnce(context.Background()))
}

func TestStartOnlySchedulesConfiguredJobs(t *testing.T) {
	db := dbtest.MustOpenTestDB(t)

	sessions, err := iauth.NewSessionService(db, iauth.SessionConfig{})
	require.NoError(t, err)

	cleaner := NewCleaner(sessions, nil, nil,
		WithSessionSchedule("@every 1h"),
		WithAuditRetentionDays(30),
	)
	require.NoError(t, cleaner.Start())

	stopCtx := cleaner.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
