package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/bodhgriha/marketplace/internal/database/testutil"
	"github.com/bodhgriha/marketplace/internal/models"
	"github.com/bodhgriha/marketplace/pkg/crypto"
)

func setupSessionService(t *testing.T) (*gorm.DB, *SessionService, *testClock) {
	t.Helper()

	db := testutil.MustOpenTestDB(t)
	clock := newTestClock()

	svc, err := NewSessionService(db, SessionConfig{Clock: clock.Now})
	require.NoError(t, err)

	return db, svc, clock
}

func createTestUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	hash, err := crypto.HashPassword("initial-password")
	require.NoError(t, err)

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    "Test",
		LastName:     "User",
		IsActive:     true,
		Roles:        models.RoleMember,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestIssueStoresOnlyTokenHash(t *testing.T) {
	db, svc, clock := setupSessionService(t)
	user := createTestUser(t, db, "issue@example.com")

	raw, session, err := svc.Issue(context.Background(), user.ID, time.Hour, SessionMetadata{
		ClientIP:  "10.0.0.1 ",
		UserAgent: "unit-test",
	})
	require.NoError(t, err)
	require.NotEmpty(t, raw)
	require.Equal(t, "10.0.0.1", session.ClientIP)

	var stored models.UserSession
	require.NoError(t, db.Take(&stored, "id = ?", session.ID).Error)
	require.NotEqual(t, raw, stored.TokenHash)
	require.Equal(t, crypto.HashToken(raw), stored.TokenHash)
	require.True(t, stored.ExpiresAt.Equal(clock.Now().Add(time.Hour)))
}

func TestAuthenticateRoundTrip(t *testing.T) {
	db, svc, _ := setupSessionService(t)
	user := createTestUser(t, db, "roundtrip@example.com")

	raw, _, err := svc.Issue(context.Background(), user.ID, time.Hour, SessionMetadata{})
	require.NoError(t, err)

	got, session, err := svc.Authenticate(context.Background(), raw)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, user.ID, got.ID)
	require.Equal(t, user.ID, session.UserID)

	unknown, _, err := svc.Authenticate(context.Background(), "not-a-token")
	require.NoError(t, err)
	require.Nil(t, unknown)
}

func TestAuthenticateRejectsExpired(t *testing.T) {
	db, svc, clock := setupSessionService(t)
	user := createTestUser(t, db, "expired@example.com")

	raw, _, err := svc.Issue(context.Background(), user.ID, time.Hour, SessionMetadata{})
	require.NoError(t, err)

	clock.Advance(time.Hour + time.Second)

	got, _, err := svc.Authenticate(context.Background(), raw)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestRevokeInvalidatesToken(t *testing.T) {
	db, svc, _ := setupSessionService(t)
	user := createTestUser(t, db, "revoke@example.com")

	raw, _, err := svc.Issue(context.Background(), user.ID, time.Hour, SessionMetadata{})
	require.NoError(t, err)

	found, err := svc.Revoke(context.Background(), raw)
	require.NoError(t, err)
	require.True(t, found)

	got, _, err := svc.Authenticate(context.Background(), raw)
	require.NoError(t, err)
	require.Nil(t, got)

	// Revoking again finds nothing.
	found, err = svc.Revoke(context.Background(), raw)
	require.NoError(t, err)
	require.False(t, found)
}

func TestRotateReplacesToken(t *testing.T) {
	db, svc, _ := setupSessionService(t)
	user := createTestUser(t, db, "rotate@example.com")

	raw, _, err := svc.Issue(context.Background(), user.ID, time.Hour, SessionMetadata{})
	require.NoError(t, err)

	newRaw, newSession, err := svc.Rotate(context.Background(), raw, 2*time.Hour, SessionMetadata{})
	require.NoError(t, err)
	require.NotEmpty(t, newRaw)
	require.NotEqual(t, raw, newRaw)
	require.Equal(t, user.ID, newSession.UserID)

	// Old token is dead, new one lives.
	got, _, err := svc.Authenticate(context.Background(), raw)
	require.NoError(t, err)
	require.Nil(t, got)

	got, _, err = svc.Authenticate(context.Background(), newRaw)
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestRotateInvalidTokenIssuesNothing(t *testing.T) {
	db, svc, _ := setupSessionService(t)
	createTestUser(t, db, "rotate-none@example.com")

	newRaw, newSession, err := svc.Rotate(context.Background(), "bogus", time.Hour, SessionMetadata{})
	require.NoError(t, err)
	require.Empty(t, newRaw)
	require.Nil(t, newSession)

	var count int64
	require.NoError(t, db.Model(&models.UserSession{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestRevokeAllForUser(t *testing.T) {
	db, svc, _ := setupSessionService(t)
	user := createTestUser(t, db, "revokeall@example.com")
	other := createTestUser(t, db, "bystander@example.com")

	first, _, err := svc.Issue(context.Background(), user.ID, time.Hour, SessionMetadata{})
	require.NoError(t, err)
	second, _, err := svc.Issue(context.Background(), user.ID, time.Hour, SessionMetadata{})
	require.NoError(t, err)
	bystander, _, err := svc.Issue(context.Background(), other.ID, time.Hour, SessionMetadata{})
	require.NoError(t, err)

	revoked, err := svc.RevokeAllForUser(context.Background(), user.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2, revoked)

	for _, token := range []string{first, second} {
		got, _, err := svc.Authenticate(context.Background(), token)
		require.NoError(t, err)
		require.Nil(t, got)
	}

	got, _, err := svc.Authenticate(context.Background(), bystander)
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestCleanupExpiredRemovesDeadRows(t *testing.T) {
	db, svc, clock := setupSessionService(t)
	user := createTestUser(t, db, "cleanup@example.com")

	_, _, err := svc.Issue(context.Background(), user.ID, time.Minute, SessionMetadata{})
	require.NoError(t, err)
	live, _, err := svc.Issue(context.Background(), user.ID, time.Hour, SessionMetadata{})
	require.NoError(t, err)

	clock.Advance(10 * time.Minute)

	removed, err := svc.CleanupExpired(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	got, _, err := svc.Authenticate(context.Background(), live)
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestAuthenticateIgnoresDeactivatedUser(t *testing.T) {
	db, svc, _ := setupSessionService(t)
	user := createTestUser(t, db, "inactive@example.com")

	raw, _, err := svc.Issue(context.Background(), user.ID, time.Hour, SessionMetadata{})
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.User{}).Where("id = ?", user.ID).Update("is_active", false).Error)

	got, _, err := svc.Authenticate(context.Background(), raw)
	require.NoError(t, err)
	require.Nil(t, got)
}
