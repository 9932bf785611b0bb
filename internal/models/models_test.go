package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRoleBitsTierComparison(t *testing.T) {
	require.True(t, RoleAdmin.MeetsTier(RoleStaff), "16 >= 8")
	require.True(t, RoleStaff.MeetsTier(RoleStaff))
	require.False(t, RoleMember.MeetsTier(RoleInstructor))

	// Magnitude semantics, not bit containment: Admin does not carry the
	// Staff bit but still clears the Staff tier.
	require.False(t, RoleAdmin.HasFlag(RoleStaff))
	require.True(t, RoleAdmin.MeetsTier(RoleStaff))
}

func TestRoleBitsFlagPrimitives(t *testing.T) {
	role := RoleMember.AddFlag(RoleInstructor)
	require.True(t, role.HasFlag(RoleMember))
	require.True(t, role.HasFlag(RoleInstructor))
	require.False(t, role.HasFlag(RoleEditor))

	role = role.RemoveFlag(RoleInstructor)
	require.False(t, role.HasFlag(RoleInstructor))
	require.Equal(t, RoleMember, role)
}

func TestRoleBitsString(t *testing.T) {
	require.Equal(t, "member", RoleMember.String())
	require.Equal(t, "staff|member", (RoleStaff | RoleMember).String())
	require.Equal(t, "none", RoleBits(0).String())
}

func TestNormaliseEmail(t *testing.T) {
	require.Equal(t, "a@x.com", NormaliseEmail("  A@X.CoM "))
}

func TestSessionValidity(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	live := &UserSession{ExpiresAt: now.Add(time.Hour)}
	require.True(t, live.ValidAt(now))

	expired := &UserSession{ExpiresAt: now.Add(-time.Second)}
	require.False(t, expired.ValidAt(now))

	revokedAt := now.Add(-time.Minute)
	revoked := &UserSession{ExpiresAt: now.Add(time.Hour), RevokedAt: &revokedAt}
	require.False(t, revoked.ValidAt(now))
}

func TestTwoFactorCredentialStates(t *testing.T) {
	pending := &TwoFactorCredential{Enabled: false}
	require.False(t, pending.Verified())
	require.False(t, pending.Active())

	verifiedAt := time.Now()
	verified := &TwoFactorCredential{Enabled: true, VerifiedAt: &verifiedAt}
	require.True(t, verified.Verified())
	require.True(t, verified.Active())

	disabled := &TwoFactorCredential{Enabled: false, VerifiedAt: &verifiedAt}
	require.True(t, disabled.Verified())
	require.False(t, disabled.Active())
}
