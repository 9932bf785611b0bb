package auth

import (
	"github.com/bodhgriha/marketplace/internal/models"
	apperrors "github.com/bodhgriha/marketplace/pkg/errors"
	"github.com/bodhgriha/marketplace/pkg/metrics"
)

// Authorize gates a protected operation behind a privilege tier. A missing
// identity yields ErrUnauthorized, an authenticated identity below the
// required tier yields ErrForbidden; the caller never learns more than that
// binary distinction.
//
// Tiers compare by numeric magnitude, not bit intersection: an Admin(16)
// clears a Staff(8) gate even though the 8 bit is not set in 16. Callers
// needing capability semantics use models.RoleBits.HasFlag explicitly.
func Authorize(user *models.User, required models.RoleBits) error {
	if user == nil {
		metrics.TierDenials.WithLabelValues("unauthenticated").Inc()
		return apperrors.ErrUnauthorized
	}

	if !user.Roles.MeetsTier(required) {
		metrics.TierDenials.WithLabelValues("insufficient_tier").Inc()
		return apperrors.ErrForbidden
	}

	return nil
}
