package models

import (
	"time"

	"gorm.io/datatypes"
)

// TwoFactorMethodTOTP is the only second-factor method currently issued.
// Columns for other delivery methods exist in the schema but are unused.
const TwoFactorMethodTOTP = "totp"

// TwoFactorCredential stores one second-factor enrollment per (user, method).
// A credential with a nil VerifiedAt is pending: the secret has been shown to
// the user but possession has not been proven. At most one verified TOTP
// credential may be active per user.
type TwoFactorCredential struct {
	BaseModel

	UserID string `gorm:"type:uuid;not null;index:idx_two_factor_user_method,unique" json:"user_id"`
	Method string `gorm:"size:32;not null;default:totp;index:idx_two_factor_user_method,unique" json:"method"`

	// Secret is the base32 TOTP secret, AES-GCM encrypted at rest.
	Secret string `gorm:"not null" json:"-"`

	// RecoveryCodes holds bcrypt hashes of the unused recovery codes as a
	// JSON array. Consumed codes are removed from the array.
	RecoveryCodes datatypes.JSON `json:"-"`

	Enabled    bool       `gorm:"default:false" json:"enabled"`
	VerifiedAt *time.Time `json:"verified_at"`
	LastUsedAt *time.Time `json:"last_used_at"`

	// Lockout bookkeeping. Enforcement is a configurable policy and is off
	// by default; the fields are maintained regardless.
	FailedAttempts int        `gorm:"default:0" json:"-"`
	LockedUntil    *time.Time `json:"-"`
}

// Verified reports whether enrollment has been confirmed.
func (c *TwoFactorCredential) Verified() bool {
	return c != nil && c.VerifiedAt != nil
}

// Active reports whether the credential participates in login checks.
func (c *TwoFactorCredential) Active() bool {
	return c.Verified() && c.Enabled
}
