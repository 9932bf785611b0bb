package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bodhgriha/marketplace/internal/handlers/testutil"
	"github.com/bodhgriha/marketplace/internal/models"
)

type userPayload struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	IsActive bool   `json:"is_active"`
	Roles    int64  `json:"role_bits"`
}

func TestUserListIsStaffOnly(t *testing.T) {
	env := testutil.NewEnv(t)
	_, memberToken := env.LoginUser(t, "plain@bodhgriha.test", "password-123", models.RoleMember)

	rec := env.Request(t, http.MethodGet, "/api/users", nil, memberToken)
	require.Equal(t, http.StatusForbidden, rec.Code)

	_, staffToken := env.LoginUser(t, "hr@bodhgriha.test", "password-123", models.RoleStaff)
	rec = env.Request(t, http.MethodGet, "/api/users", nil, staffToken)
	require.Equal(t, http.StatusOK, rec.Code)

	var listed []userPayload
	testutil.DecodeData(t, rec, &listed)
	require.Len(t, listed, 2)
}

func TestUpdateOwnProfile(t *testing.T) {
	env := testutil.NewEnv(t)
	_, token := env.LoginUser(t, "profile@bodhgriha.test", "password-123", models.RoleMember)

	rec := env.Request(t, http.MethodPut, "/api/users/me", map[string]any{
		"first_name": "Asha",
		"meta":       map[string]any{"bio": "Vinyasa since 2015"},
	}, token)
	require.Equal(t, http.StatusOK, rec.Code)

	var updated struct {
		FirstName string `json:"first_name"`
	}
	testutil.DecodeData(t, rec, &updated)
	require.Equal(t, "Asha", updated.FirstName)
}

func TestSetActiveDisablesLogin(t *testing.T) {
	env := testutil.NewEnv(t)
	target := env.CreateUser(t, "target@bodhgriha.test", "password-123", models.RoleMember)
	_, staffToken := env.LoginUser(t, "ops@bodhgriha.test", "password-123", models.RoleStaff)

	rec := env.Request(t, http.MethodPut, "/api/users/"+target.ID+"/active", map[string]any{
		"active": false,
	}, staffToken)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.Request(t, http.MethodPost, "/api/auth/login", map[string]any{
		"email":    "target@bodhgriha.test",
		"password": "password-123",
	}, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSetRolesRequiresAdminTier(t *testing.T) {
	env := testutil.NewEnv(t)
	target := env.CreateUser(t, "promotee@bodhgriha.test", "password-123", models.RoleMember)

	_, staffToken := env.LoginUser(t, "almost@bodhgriha.test", "password-123", models.RoleStaff)
	rec := env.Request(t, http.MethodPut, "/api/users/"+target.ID+"/roles", map[string]any{
		"role_bits": int64(models.RoleEditor),
	}, staffToken)
	require.Equal(t, http.StatusForbidden, rec.Code)

	_, adminToken := env.LoginUser(t, "root@bodhgriha.test", "password-123", models.RoleAdmin)
	rec = env.Request(t, http.MethodPut, "/api/users/"+target.ID+"/roles", map[string]any{
		"role_bits": int64(models.RoleEditor),
	}, adminToken)
	require.Equal(t, http.StatusOK, rec.Code)

	var updated userPayload
	testutil.DecodeData(t, rec, &updated)
	require.Equal(t, int64(models.RoleEditor), updated.Roles)
}

func TestArchiveRejectsSelf(t *testing.T) {
	env := testutil.NewEnv(t)
	admin, adminToken := env.LoginUser(t, "lonely@bodhgriha.test", "password-123", models.RoleAdmin)

	rec := env.Request(t, http.MethodDelete, "/api/users/"+admin.ID, nil, adminToken)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	target := env.CreateUser(t, "bye@bodhgriha.test", "password-123", models.RoleMember)
	rec = env.Request(t, http.MethodDelete, "/api/users/"+target.ID, nil, adminToken)
	require.Equal(t, http.StatusOK, rec.Code)
}
