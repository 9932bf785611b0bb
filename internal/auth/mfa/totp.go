package mfa

import (
	"context"
	cryptoRand "crypto/rand"
	"crypto/subtle"
	"encoding/base32"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/skip2/go-qrcode"
	"gorm.io/gorm"

	"github.com/bodhgriha/marketplace/internal/models"
	"github.com/bodhgriha/marketplace/pkg/crypto"
)

const (
	defaultIssuer            = "Bodhgriha"
	defaultRecoveryCodeCount = 10
	defaultRecoveryCodeLen   = 8
	defaultQRCodeSize        = 256

	// recoveryAlphabet omits the confusable 0/O/1/I pairs.
	recoveryAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

var (
	// ErrAlreadyEnabled is returned when enrollment is attempted while a
	// verified credential exists.
	ErrAlreadyEnabled = errors.New("mfa: totp already enabled")
	// ErrNoPendingEnrollment is returned when confirmation finds nothing to confirm.
	ErrNoPendingEnrollment = errors.New("mfa: no pending enrollment")
	// ErrSecretMismatch is returned when the confirmed secret does not match
	// the pending credential.
	ErrSecretMismatch = errors.New("mfa: secret mismatch")
)

// Option allows customising the TOTP service.
type Option func(*TOTPService)

// WithIssuer overrides the issuer string encoded in provisioning URIs.
func WithIssuer(issuer string) Option {
	return func(s *TOTPService) {
		if strings.TrimSpace(issuer) != "" {
			s.issuer = issuer
		}
	}
}

// WithRecoveryCodeCount overrides the number of recovery codes generated.
func WithRecoveryCodeCount(count int) Option {
	return func(s *TOTPService) {
		if count > 0 {
			s.recoveryCount = count
		}
	}
}

// WithRecoveryCodeLength overrides the length of each recovery code.
func WithRecoveryCodeLength(length int) Option {
	return func(s *TOTPService) {
		if length > 0 {
			s.recoveryLen = length
		}
	}
}

// WithQRCodeSize controls the pixel size of generated QR codes.
func WithQRCodeSize(size int) Option {
	return func(s *TOTPService) {
		if size > 0 {
			s.qrCodeSize = size
		}
	}
}

// WithClock injects a custom clock, primarily for testing.
func WithClock(clock func() time.Time) Option {
	return func(s *TOTPService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithLockoutPolicy enables second-factor lockout bookkeeping enforcement.
// The credential fields are maintained either way; only enforcement is
// gated.
func WithLockoutPolicy(threshold int, duration time.Duration) Option {
	return func(s *TOTPService) {
		if threshold > 0 && duration > 0 {
			s.lockoutThreshold = threshold
			s.lockoutDuration = duration
		}
	}
}

// Enrollment is the one-time disclosure returned by BeginEnrollment. The
// secret and recovery codes appear in plaintext here and nowhere else.
type Enrollment struct {
	Secret          string
	ProvisioningURI string
	QRCodePNG       []byte
	RecoveryCodes   []string
}

// TOTPService manages the pending→verified enrollment lifecycle of TOTP
// credentials and validates submitted codes against them.
type TOTPService struct {
	db            *gorm.DB
	encryptionKey []byte

	issuer        string
	recoveryCount int
	recoveryLen   int
	qrCodeSize    int
	now           func() time.Time

	lockoutThreshold int
	lockoutDuration  time.Duration
}

// NewTOTPService constructs a TOTP service backed by the provided database.
// The encryption key protects stored secrets at rest.
func NewTOTPService(db *gorm.DB, encryptionKey []byte, opts ...Option) (*TOTPService, error) {
	if db == nil {
		return nil, errors.New("totp: db is required")
	}
	if len(encryptionKey) == 0 {
		return nil, errors.New("totp: encryption key is required")
	}

	service := &TOTPService{
		db:            db,
		encryptionKey: encryptionKey,
		issuer:        defaultIssuer,
		recoveryCount: defaultRecoveryCodeCount,
		recoveryLen:   defaultRecoveryCodeLen,
		qrCodeSize:    defaultQRCodeSize,
		now:           time.Now,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// WithDB returns a copy of the service bound to the given handle, so a
// caller's transaction can span TOTP operations.
func (s *TOTPService) WithDB(db *gorm.DB) *TOTPService {
	cpy := *s
	cpy.db = db
	return &cpy
}

// BeginEnrollment starts or resumes TOTP enrollment for a user.
//
// A verified credential fails with ErrAlreadyEnabled. An existing pending
// credential is reused as-is unless rotation is requested: reuse returns the
// same secret with an empty recovery-code list (the plaintext codes were
// disclosed once and are not re-derivable), rotation discards the pending
// secret and codes and generates fresh ones.
func (s *TOTPService) BeginEnrollment(ctx context.Context, user *models.User, rotate bool) (*Enrollment, error) {
	if user == nil || strings.TrimSpace(user.ID) == "" {
		return nil, errors.New("totp: user is required")
	}

	var enrollment *Enrollment

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cred models.TwoFactorCredential
		err := tx.Where("user_id = ? AND method = ?", user.ID, models.TwoFactorMethodTOTP).
			Take(&cred).Error
		found := err == nil
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("totp: load credential: %w", err)
		}

		if found && cred.Verified() {
			return ErrAlreadyEnabled
		}

		if found && !rotate {
			secret, err := s.decryptSecret(&cred)
			if err != nil {
				return err
			}
			enrollment, err = s.buildEnrollment(user.Email, secret, nil)
			return err
		}

		secret, err := generateSecret(s.issuer, user.Email)
		if err != nil {
			return err
		}

		plainCodes, hashedCodes, err := s.generateRecoveryCodes()
		if err != nil {
			return err
		}

		encryptedSecret, err := crypto.Encrypt([]byte(secret), s.encryptionKey)
		if err != nil {
			return fmt.Errorf("totp: encrypt secret: %w", err)
		}

		codesJSON, err := json.Marshal(hashedCodes)
		if err != nil {
			return fmt.Errorf("totp: marshal recovery codes: %w", err)
		}

		if found {
			// Rotation while pending: prior secret and codes are discarded.
			updates := map[string]any{
				"secret":          encryptedSecret,
				"recovery_codes":  codesJSON,
				"enabled":         false,
				"verified_at":     nil,
				"last_used_at":    nil,
				"failed_attempts": 0,
				"locked_until":    nil,
			}
			if err := tx.Model(&cred).Updates(updates).Error; err != nil {
				return fmt.Errorf("totp: rotate credential: %w", err)
			}
		} else {
			cred = models.TwoFactorCredential{
				UserID:        user.ID,
				Method:        models.TwoFactorMethodTOTP,
				Secret:        encryptedSecret,
				RecoveryCodes: codesJSON,
			}
			if err := tx.Create(&cred).Error; err != nil {
				return fmt.Errorf("totp: create credential: %w", err)
			}
		}

		enrollment, err = s.buildEnrollment(user.Email, secret, plainCodes)
		return err
	})
	if err != nil {
		return nil, err
	}

	return enrollment, nil
}

// ConfirmEnrollment marks the pending credential as verified. Callers must
// have validated a live code against the same secret first; confirmation
// requires proof of possession, not just knowledge of the secret.
func (s *TOTPService) ConfirmEnrollment(ctx context.Context, user *models.User, secret string) error {
	if user == nil || strings.TrimSpace(user.ID) == "" {
		return errors.New("totp: user is required")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cred models.TwoFactorCredential
		err := tx.Where("user_id = ? AND method = ?", user.ID, models.TwoFactorMethodTOTP).
			Take(&cred).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNoPendingEnrollment
		}
		if err != nil {
			return fmt.Errorf("totp: load credential: %w", err)
		}

		if cred.Verified() {
			return ErrAlreadyEnabled
		}

		stored, err := s.decryptSecret(&cred)
		if err != nil {
			return err
		}
		if subtle.ConstantTimeCompare([]byte(stored), []byte(strings.TrimSpace(secret))) != 1 {
			return ErrSecretMismatch
		}

		now := s.now()
		return tx.Model(&cred).Updates(map[string]any{
			"enabled":     true,
			"verified_at": now,
		}).Error
	})
}

// Disable administratively removes a user's TOTP credential.
func (s *TOTPService) Disable(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return errors.New("totp: user id is required")
	}

	return s.db.WithContext(ctx).
		Where("user_id = ? AND method = ?", userID, models.TwoFactorMethodTOTP).
		Delete(&models.TwoFactorCredential{}).Error
}

// Enabled reports whether a verified, enabled TOTP credential exists.
func (s *TOTPService) Enabled(ctx context.Context, userID string) (bool, error) {
	cred, err := s.load(ctx, userID)
	if err != nil {
		return false, err
	}
	return cred.Active(), nil
}

// RemainingRecoveryCodes returns how many unused recovery codes are left.
func (s *TOTPService) RemainingRecoveryCodes(ctx context.Context, userID string) (int, error) {
	cred, err := s.load(ctx, userID)
	if err != nil {
		return 0, err
	}
	if cred == nil {
		return 0, nil
	}

	hashes, err := decodeRecoveryCodes(cred)
	if err != nil {
		return 0, err
	}
	return len(hashes), nil
}

func (s *TOTPService) load(ctx context.Context, userID string) (*models.TwoFactorCredential, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.New("totp: user id is required")
	}

	var cred models.TwoFactorCredential
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND method = ?", userID, models.TwoFactorMethodTOTP).
		Take(&cred).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("totp: load credential: %w", err)
	}

	return &cred, nil
}

func (s *TOTPService) decryptSecret(cred *models.TwoFactorCredential) (string, error) {
	raw, err := crypto.Decrypt(cred.Secret, s.encryptionKey)
	if err != nil {
		return "", fmt.Errorf("totp: decrypt secret: %w", err)
	}
	return string(raw), nil
}

// SealSecret encrypts a not-yet-verified secret with the credential key so it
// can be staged outside the credentials table without landing in plaintext.
func (s *TOTPService) SealSecret(secret string) (string, error) {
	sealed, err := crypto.Encrypt([]byte(secret), s.encryptionKey)
	if err != nil {
		return "", fmt.Errorf("totp: seal secret: %w", err)
	}
	return sealed, nil
}

// OpenSecret reverses SealSecret.
func (s *TOTPService) OpenSecret(sealed string) (string, error) {
	raw, err := crypto.Decrypt(sealed, s.encryptionKey)
	if err != nil {
		return "", fmt.Errorf("totp: open secret: %w", err)
	}
	return string(raw), nil
}

func (s *TOTPService) buildEnrollment(email, secret string, plainCodes []string) (*Enrollment, error) {
	uri := provisioningURI(s.issuer, email, secret)

	png, err := qrcode.Encode(uri, qrcode.Medium, s.qrCodeSize)
	if err != nil {
		return nil, fmt.Errorf("totp: render qr code: %w", err)
	}

	if plainCodes == nil {
		plainCodes = []string{}
	}

	return &Enrollment{
		Secret:          secret,
		ProvisioningURI: uri,
		QRCodePNG:       png,
		RecoveryCodes:   plainCodes,
	}, nil
}

func (s *TOTPService) generateRecoveryCodes() ([]string, []string, error) {
	plain := make([]string, s.recoveryCount)
	hashed := make([]string, s.recoveryCount)

	for i := range plain {
		code, err := generateRecoveryCode(s.recoveryLen)
		if err != nil {
			return nil, nil, fmt.Errorf("totp: generate recovery code: %w", err)
		}

		hash, err := crypto.HashPassword(code)
		if err != nil {
			return nil, nil, fmt.Errorf("totp: hash recovery code: %w", err)
		}

		plain[i] = code
		hashed[i] = hash
	}

	return plain, hashed, nil
}

func decodeRecoveryCodes(cred *models.TwoFactorCredential) ([]string, error) {
	if len(cred.RecoveryCodes) == 0 {
		return nil, nil
	}

	var hashes []string
	if err := json.Unmarshal(cred.RecoveryCodes, &hashes); err != nil {
		return nil, fmt.Errorf("totp: decode recovery codes: %w", err)
	}
	return hashes, nil
}

func generateSecret(issuer, email string) (string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: models.NormaliseEmail(email),
	})
	if err != nil {
		return "", fmt.Errorf("totp: generate key: %w", err)
	}
	return key.Secret(), nil
}

// provisioningURI builds the otpauth URL from the stored base32 secret so a
// resumed enrollment renders the same QR code as the original one.
func provisioningURI(issuer, email, secret string) string {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: models.NormaliseEmail(email),
		Secret:      mustDecodeBase32(secret),
	})
	if err != nil {
		// Generate only fails on rand exhaustion or empty inputs, neither of
		// which applies when a secret is supplied.
		return ""
	}
	return key.URL()
}

func mustDecodeBase32(secret string) []byte {
	decoded, err := base32.StdEncoding.WithPadding(base32.NoPadding).
		DecodeString(strings.ToUpper(strings.TrimSpace(secret)))
	if err != nil {
		return []byte(secret)
	}
	return decoded
}

func generateRecoveryCode(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := cryptoRand.Read(buf); err != nil {
		return "", err
	}

	code := make([]byte, length)
	for i, b := range buf {
		code[i] = recoveryAlphabet[int(b)%len(recoveryAlphabet)]
	}
	return string(code), nil
}
