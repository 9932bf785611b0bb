package auth

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bodhgriha/marketplace/internal/auth/mfa"
	"github.com/bodhgriha/marketplace/internal/models"
	apperrors "github.com/bodhgriha/marketplace/pkg/errors"
	"github.com/bodhgriha/marketplace/pkg/logger"
	"github.com/bodhgriha/marketplace/pkg/metrics"
)

// LoginInput carries everything one login attempt needs. PriorToken is the
// bearer token from an existing cookie, if the client presented one.
type LoginInput struct {
	Email      string
	Password   string
	TOTPCode   string
	PriorToken string
	RememberMe bool
	ClientIP   string
	UserAgent  string
}

// LoginResult is handed to the cookie-setting layer. RawToken is empty when
// an existing session was reused.
type LoginResult struct {
	User       *models.User
	Session    *models.UserSession
	RawToken   string
	TTLSeconds int64
	Reused     bool
}

// LoginService sequences one login attempt: existing-session short-circuit,
// password check, conditional second factor, session issuance. Every check
// must pass before a session row exists; the whole attempt is one
// transaction.
type LoginService struct {
	db          *gorm.DB
	credentials *CredentialService
	sessions    *SessionService
	totp        *mfa.TOTPService
	log         *zap.Logger
}

// NewLoginService wires the orchestrator from its collaborating services.
func NewLoginService(db *gorm.DB, credentials *CredentialService, sessions *SessionService, totp *mfa.TOTPService) (*LoginService, error) {
	if db == nil {
		return nil, errors.New("login service: db is required")
	}
	if credentials == nil || sessions == nil || totp == nil {
		return nil, errors.New("login service: all collaborating services are required")
	}

	return &LoginService{
		db:          db,
		credentials: credentials,
		sessions:    sessions,
		totp:        totp,
		log:         logger.WithModule("auth"),
	}, nil
}

// Login authenticates a user. Every failure cause (unknown email, wrong
// password, missing or invalid second factor, deactivated account) maps to
// the same ErrInvalidCredentials so the response cannot be used as an
// account or 2FA oracle. Internal logs keep the distinction.
func (s *LoginService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	email := models.NormaliseEmail(input.Email)

	// Trust-existing-session shortcut: a valid presented token whose owner
	// matches the requested email wins without a password re-check. A
	// mismatched or invalid token is ignored, never an error.
	if input.PriorToken != "" {
		user, session, err := s.sessions.Authenticate(ctx, input.PriorToken)
		if err != nil {
			return nil, err
		}
		if user != nil && user.Email == email {
			return &LoginResult{User: user, Session: session, Reused: true}, nil
		}
	}

	var result *LoginResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		credentials := s.credentials.withDB(tx)
		sessions := s.sessions.withDB(tx)
		totp := s.totp.WithDB(tx)

		user, err := credentials.FindByEmail(ctx, email)
		if err != nil {
			return err
		}
		if user == nil {
			s.log.Info("login rejected", zap.String("reason", "unknown_email"))
			return apperrors.ErrInvalidCredentials
		}
		if !user.IsActive {
			s.log.Info("login rejected", zap.String("reason", "account_disabled"), zap.String("user_id", user.ID))
			return apperrors.ErrInvalidCredentials
		}

		if !credentials.VerifyPassword(user, input.Password) {
			s.log.Info("login rejected", zap.String("reason", "bad_password"), zap.String("user_id", user.ID))
			return apperrors.ErrInvalidCredentials
		}

		enabled, err := totp.Enabled(ctx, user.ID)
		if err != nil {
			return err
		}
		if enabled {
			if input.TOTPCode == "" {
				s.log.Info("login rejected", zap.String("reason", "missing_second_factor"), zap.String("user_id", user.ID))
				return apperrors.ErrInvalidCredentials
			}

			ok, err := totp.Validate(ctx, user, input.TOTPCode)
			if err != nil {
				return err
			}
			if !ok {
				s.log.Info("login rejected", zap.String("reason", "bad_second_factor"), zap.String("user_id", user.ID))
				return apperrors.ErrInvalidCredentials
			}
		}

		ttl := DefaultSessionTTL
		if input.RememberMe {
			ttl = RememberMeTTL
		}

		rawToken, session, err := sessions.Issue(ctx, user.ID, ttl, SessionMetadata{
			ClientIP:  input.ClientIP,
			UserAgent: input.UserAgent,
		})
		if err != nil {
			return err
		}

		now := session.IssuedAt
		if err := tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]any{
			"last_login_at": now,
			"last_login_ip": session.ClientIP,
		}).Error; err != nil {
			return err
		}
		user.LastLoginAt = &now
		user.LastLoginIP = session.ClientIP

		result = &LoginResult{
			User:       user,
			Session:    session,
			RawToken:   rawToken,
			TTLSeconds: int64(ttl / time.Second),
		}
		return nil
	})
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, err
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	return result, nil
}
