package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/bodhgriha/marketplace/internal/models"
	"github.com/bodhgriha/marketplace/pkg/crypto"
	"github.com/bodhgriha/marketplace/pkg/metrics"
)

// Default session lifetimes for the login flow.
const (
	DefaultSessionTTL  = 7 * 24 * time.Hour
	RememberMeTTL      = 30 * 24 * time.Hour
	defaultTokenLength = 32 // bytes of entropy before encoding, 256 bits
)

// ErrSessionInvalidToken is returned when the supplied token is malformed.
var ErrSessionInvalidToken = errors.New("session: invalid token")

// SessionConfig describes tunable behaviour for the SessionService.
type SessionConfig struct {
	TokenLength int
	Clock       func() time.Time
}

// SessionMetadata captures contextual information about the client for audit.
type SessionMetadata struct {
	ClientIP  string
	UserAgent string
	Extra     map[string]any
}

// SessionService issues, validates, rotates and revokes opaque bearer
// tokens. Only a SHA-256 hash of each token is persisted; possession of the
// raw token is the sole credential.
type SessionService struct {
	db       *gorm.DB
	tokenLen int
	now      func() time.Time
}

// NewSessionService constructs a session manager backed by the provided database.
func NewSessionService(db *gorm.DB, cfg SessionConfig) (*SessionService, error) {
	if db == nil {
		return nil, errors.New("session service: db is required")
	}

	length := cfg.TokenLength
	if length <= 0 {
		length = defaultTokenLength
	}

	clock := time.Now
	if cfg.Clock != nil {
		clock = cfg.Clock
	}

	return &SessionService{
		db:       db,
		tokenLen: length,
		now:      clock,
	}, nil
}

// withDB returns a copy of the service bound to the given handle, so one
// database transaction can span several service calls.
func (s *SessionService) withDB(db *gorm.DB) *SessionService {
	cpy := *s
	cpy.db = db
	return &cpy
}

// Issue creates a session for the user and returns the raw token exactly
// once. The token is never recoverable afterwards.
func (s *SessionService) Issue(ctx context.Context, userID string, ttl time.Duration, meta SessionMetadata) (string, *models.UserSession, error) {
	if strings.TrimSpace(userID) == "" {
		return "", nil, errors.New("session service: user id is required")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	rawToken, err := crypto.GenerateToken(s.tokenLen)
	if err != nil {
		return "", nil, fmt.Errorf("session service: generate token: %w", err)
	}

	now := s.now()

	session := &models.UserSession{
		UserID:     userID,
		TokenHash:  crypto.HashToken(rawToken),
		ClientIP:   strings.TrimSpace(meta.ClientIP),
		UserAgent:  strings.TrimSpace(meta.UserAgent),
		IssuedAt:   now,
		ExpiresAt:  now.Add(ttl),
		LastUsedAt: now,
	}

	if len(meta.Extra) > 0 {
		encoded, err := json.Marshal(meta.Extra)
		if err != nil {
			return "", nil, fmt.Errorf("session service: marshal metadata: %w", err)
		}
		session.Meta = encoded
	}

	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return "", nil, fmt.Errorf("session service: create session: %w", err)
	}

	metrics.ActiveSessions.Inc()

	return rawToken, session, nil
}

// Authenticate resolves a raw token to its owning user, or nil when the
// token is unknown, expired or revoked. All three failure causes share one
// query shape and one result so callers cannot tell them apart.
func (s *SessionService) Authenticate(ctx context.Context, rawToken string) (*models.User, *models.UserSession, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return nil, nil, nil
	}

	now := s.now()

	var session models.UserSession
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("token_hash = ? AND revoked_at IS NULL AND expires_at > ?", crypto.HashToken(rawToken), now).
		Take(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("session service: find session: %w", err)
	}

	if session.User == nil || !session.User.IsActive {
		return nil, nil, nil
	}

	if err := s.db.WithContext(ctx).Model(&session).Update("last_used_at", now).Error; err != nil {
		return nil, nil, fmt.Errorf("session service: touch session: %w", err)
	}
	session.LastUsedAt = now

	return session.User, &session, nil
}

// Revoke marks the session belonging to the raw token as revoked. It reports
// whether an active session was found.
func (s *SessionService) Revoke(ctx context.Context, rawToken string) (bool, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return false, ErrSessionInvalidToken
	}

	now := s.now()

	result := s.db.WithContext(ctx).Model(&models.UserSession{}).
		Where("token_hash = ? AND revoked_at IS NULL", crypto.HashToken(rawToken)).
		Update("revoked_at", now)
	if result.Error != nil {
		return false, fmt.Errorf("session service: revoke session: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		metrics.ActiveSessions.Sub(float64(result.RowsAffected))
	}

	return result.RowsAffected > 0, nil
}

// Rotate revokes the old token and issues a fresh session for the same
// user. It returns empty results when the old token is invalid; no new
// session is created in that case.
func (s *SessionService) Rotate(ctx context.Context, rawToken string, ttl time.Duration, meta SessionMetadata) (string, *models.UserSession, error) {
	user, _, err := s.Authenticate(ctx, rawToken)
	if err != nil {
		return "", nil, err
	}
	if user == nil {
		return "", nil, nil
	}

	var newToken string
	var session *models.UserSession

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		scoped := s.withDB(tx)

		if _, err := scoped.Revoke(ctx, rawToken); err != nil {
			return err
		}

		newToken, session, err = scoped.Issue(ctx, user.ID, ttl, meta)
		return err
	})
	if err != nil {
		return "", nil, err
	}

	return newToken, session, nil
}

// RevokeAllForUser revokes every active session belonging to a user, e.g.
// after a password change. Returns the number of sessions revoked.
func (s *SessionService) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, errors.New("session service: user id is required")
	}

	now := s.now()

	result := s.db.WithContext(ctx).Model(&models.UserSession{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", now)
	if result.Error != nil {
		return 0, fmt.Errorf("session service: revoke user sessions: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		metrics.ActiveSessions.Sub(float64(result.RowsAffected))
	}

	return result.RowsAffected, nil
}

// CleanupExpired deletes expired and revoked session rows. Run periodically
// by the maintenance cleaner.
func (s *SessionService) CleanupExpired(ctx context.Context) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	now := s.now()

	var activeExpired int64
	if err := s.db.WithContext(ctx).
		Model(&models.UserSession{}).
		Where("expires_at < ? AND revoked_at IS NULL", now).
		Count(&activeExpired).Error; err != nil {
		return 0, fmt.Errorf("session service: count expired sessions: %w", err)
	}

	result := s.db.WithContext(ctx).
		Where("expires_at < ?", now).
		Or("revoked_at IS NOT NULL").
		Delete(&models.UserSession{})
	if result.Error != nil {
		return 0, fmt.Errorf("session service: cleanup sessions: %w", result.Error)
	}

	if activeExpired > 0 {
		metrics.ActiveSessions.Sub(float64(activeExpired))
	}

	return result.RowsAffected, nil
}
