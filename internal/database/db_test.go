package database

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bodhgriha/marketplace/internal/models"
	"github.com/bodhgriha/marketplace/pkg/crypto"
)

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	require.Error(t, err)
}

func TestOpenDefaultsToSQLite(t *testing.T) {
	db, err := Open(Config{})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Ping())
	_ = sqlDB.Close()
}

func TestInMemoryDatabasesAreIsolated(t *testing.T) {
	first, err := Open(Config{Driver: "sqlite"})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(first))

	second, err := Open(Config{Driver: "sqlite"})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(second))

	require.NoError(t, first.Create(&models.User{
		Email:        "solo@example.com",
		PasswordHash: "x",
		FirstName:    "Solo",
		LastName:     "User",
		Roles:        models.RoleMember,
	}).Error)

	var count int64
	require.NoError(t, second.Model(&models.User{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestBuildPostgresDSNRequiresIdentity(t *testing.T) {
	_, err := buildPostgresDSN(Config{Driver: "postgres"})
	require.Error(t, err)

	dsn, err := buildPostgresDSN(Config{
		Driver: "postgres",
		User:   "app",
		Name:   "marketplace",
	})
	require.NoError(t, err)
	require.Contains(t, dsn, "host=localhost")
	require.Contains(t, dsn, "dbname=marketplace")
	require.Contains(t, dsn, "sslmode=disable")
	require.Contains(t, dsn, "application_name=bodhgriha")
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	db, err := Open(Config{Driver: "sqlite"})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))

	require.NoError(t, EnsureAdmin(db, "Admin@Example.com", "bootstrap-pass"))
	require.NoError(t, EnsureAdmin(db, "admin@example.com", "different-pass"))

	var admins []models.User
	require.NoError(t, db.Where("email = ?", "admin@example.com").Find(&admins).Error)
	require.Len(t, admins, 1)
	require.Equal(t, models.RoleAdmin, admins[0].Roles)
	require.True(t, crypto.VerifyPassword(admins[0].PasswordHash, "bootstrap-pass"))
}
