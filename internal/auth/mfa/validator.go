package mfa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bodhgriha/marketplace/internal/models"
	"github.com/bodhgriha/marketplace/pkg/crypto"
	"github.com/bodhgriha/marketplace/pkg/metrics"
)

// Validate checks a submitted code against the user's active TOTP
// credential. Numeric submissions are tried as live TOTP values first with a
// ±1 time-step window; anything else, or a failed TOTP check, falls through
// to the unused recovery codes, the matched code being consumed in the same
// transaction. A failed attempt mutates nothing unless the lockout policy is
// enabled.
func (s *TOTPService) Validate(ctx context.Context, user *models.User, code string) (bool, error) {
	if user == nil || strings.TrimSpace(user.ID) == "" {
		return false, errors.New("totp: user is required")
	}

	code = strings.TrimSpace(code)
	if code == "" {
		return false, nil
	}

	valid := false
	method := "none"

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// SELECT FOR UPDATE so two concurrent checks cannot both consume
		// the same recovery code under read-committed isolation.
		var cred models.TwoFactorCredential
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND method = ?", user.ID, models.TwoFactorMethodTOTP).
			Take(&cred).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// No enrolled credential: fail closed.
			return nil
		}
		if err != nil {
			return fmt.Errorf("totp: load credential: %w", err)
		}

		if !cred.Active() {
			return nil
		}

		now := s.now()

		if s.lockoutThreshold > 0 && cred.LockedUntil != nil && cred.LockedUntil.After(now) {
			return nil
		}

		if isNumeric(code) {
			ok, err := s.verifyLiveCode(&cred, code)
			if err != nil {
				return err
			}
			if ok {
				valid = true
				method = "totp"
				return tx.Model(&cred).Updates(map[string]any{
					"last_used_at":    now,
					"failed_attempts": 0,
					"locked_until":    nil,
				}).Error
			}
		}

		consumed, remaining, err := consumeRecoveryCode(&cred, code)
		if err != nil {
			return err
		}
		if consumed {
			valid = true
			method = "recovery"
			return tx.Model(&cred).Updates(map[string]any{
				"recovery_codes":  remaining,
				"last_used_at":    now,
				"failed_attempts": 0,
				"locked_until":    nil,
			}).Error
		}

		if s.lockoutThreshold > 0 {
			updates := map[string]any{
				"failed_attempts": cred.FailedAttempts + 1,
			}
			if cred.FailedAttempts+1 >= s.lockoutThreshold {
				updates["locked_until"] = now.Add(s.lockoutDuration)
			}
			return tx.Model(&cred).Updates(updates).Error
		}

		return nil
	})
	if err != nil {
		return false, err
	}

	result := "failure"
	if valid {
		result = "success"
	}
	metrics.SecondFactorChecks.WithLabelValues(method, result).Inc()

	return valid, nil
}

// VerifyCandidateSecret checks a live code against a secret that is not yet
// persisted as verified, used during the enrollment confirmation step.
func (s *TOTPService) VerifyCandidateSecret(secret, code string) bool {
	ok, err := totp.ValidateCustom(strings.TrimSpace(code), secret, s.now(), validateOpts())
	return err == nil && ok
}

func (s *TOTPService) verifyLiveCode(cred *models.TwoFactorCredential, code string) (bool, error) {
	secret, err := s.decryptSecret(cred)
	if err != nil {
		return false, err
	}

	ok, err := totp.ValidateCustom(code, secret, s.now(), validateOpts())
	if err != nil {
		return false, fmt.Errorf("totp: validate code: %w", err)
	}
	return ok, nil
}

// consumeRecoveryCode removes the matching hash from the stored set and
// returns the re-encoded remainder. One code validates exactly once.
func consumeRecoveryCode(cred *models.TwoFactorCredential, code string) (bool, []byte, error) {
	hashes, err := decodeRecoveryCodes(cred)
	if err != nil {
		return false, nil, err
	}

	normalised := strings.ToUpper(code)

	for i, stored := range hashes {
		if crypto.VerifyPassword(stored, normalised) {
			remaining := append(hashes[:i:i], hashes[i+1:]...)
			encoded, err := json.Marshal(remaining)
			if err != nil {
				return false, nil, fmt.Errorf("totp: encode recovery codes: %w", err)
			}
			return true, encoded, nil
		}
	}

	return false, nil, nil
}

func validateOpts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
