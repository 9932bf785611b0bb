// Package testutil wires a full API stack against an in-memory database so
// handler tests exercise real routing, middleware, and services.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/bodhgriha/marketplace/internal/api"
	"github.com/bodhgriha/marketplace/internal/app"
	iauth "github.com/bodhgriha/marketplace/internal/auth"
	"github.com/bodhgriha/marketplace/internal/auth/mfa"
	"github.com/bodhgriha/marketplace/internal/cache"
	dbtest "github.com/bodhgriha/marketplace/internal/database/testutil"
	"github.com/bodhgriha/marketplace/internal/models"
)

const testEncryptionKey = "0123456789abcdef0123456789abcdef"

// Env bundles the router and the services tests need to seed state directly.
type Env struct {
	DB          *gorm.DB
	Router      *gin.Engine
	Config      *app.Config
	Credentials *iauth.CredentialService
	Sessions    *iauth.SessionService
	Login       *iauth.LoginService
	TOTP        *mfa.TOTPService
	Cache       cache.Store
}

// NewEnv builds an isolated API stack on a fresh sqlite database.
func NewEnv(t *testing.T) *Env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := dbtest.MustOpenTestDB(t)
	store := cache.NewDatabaseStore(db)

	sessions, err := iauth.NewSessionService(db, iauth.SessionConfig{})
	require.NoError(t, err)

	credentials, err := iauth.NewCredentialService(db, sessions)
	require.NoError(t, err)

	totp, err := mfa.NewTOTPService(db, []byte(testEncryptionKey))
	require.NoError(t, err)

	login, err := iauth.NewLoginService(db, credentials, sessions, totp)
	require.NoError(t, err)

	cfg := &app.Config{}
	cfg.Auth.TOTP.EnrollmentWindow = 5 * time.Minute

	router, err := api.NewRouter(api.Deps{
		DB:          db,
		Config:      cfg,
		Credentials: credentials,
		Sessions:    sessions,
		Login:       login,
		TOTP:        totp,
		Cache:       store,
	})
	require.NoError(t, err)

	return &Env{
		DB:          db,
		Router:      router,
		Config:      cfg,
		Credentials: credentials,
		Sessions:    sessions,
		Login:       login,
		TOTP:        totp,
		Cache:       store,
	}
}

// Request performs an HTTP request against the router. A non-empty token is
// sent as a bearer credential.
func (e *Env) Request(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.Router.ServeHTTP(rec, req)
	return rec
}

// APIResponse mirrors the envelope every handler writes.
type APIResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
	Meta    json.RawMessage `json:"meta"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Decode parses the response envelope.
func Decode(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

// DecodeData unmarshals the data portion of a successful envelope into v.
func DecodeData(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	resp := Decode(t, rec)
	require.True(t, resp.Success, "expected success envelope, got %s", rec.Body.String())
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

// CreateUser registers a user with the given roles and returns it.
func (e *Env) CreateUser(t *testing.T, email, password string, roles models.RoleBits) *models.User {
	t.Helper()
	user, err := e.Credentials.Register(context.Background(), iauth.RegisterInput{
		Email:     email,
		Password:  password,
		FirstName: "Test",
		LastName:  "User",
		Roles:     roles,
	})
	require.NoError(t, err)
	return user
}

// IssueSession mints a session for the user and returns the raw token.
func (e *Env) IssueSession(t *testing.T, userID string) string {
	t.Helper()
	token, _, err := e.Sessions.Issue(context.Background(), userID, time.Hour, iauth.SessionMetadata{})
	require.NoError(t, err)
	return token
}

// LoginUser registers a user and issues a session in one step.
func (e *Env) LoginUser(t *testing.T, email, password string, roles models.RoleBits) (*models.User, string) {
	t.Helper()
	user := e.CreateUser(t, email, password, roles)
	return user, e.IssueSession(t, user.ID)
}
