package models

import "strings"

// RoleBits encodes a user's privilege level as a single integer. Each role is
// a power of two, but authorization gates compare by numeric magnitude
// (tiers), not by bit intersection. Bit tests remain available as a separate
// primitive for feature-flag style checks.
type RoleBits int64

const (
	RoleMember     RoleBits = 1 << iota // 1
	RoleInstructor                      // 2
	RoleEditor                          // 4
	RoleStaff                           // 8
	RoleAdmin                           // 16
)

// HasFlag reports whether the specific capability bit is set.
func (r RoleBits) HasFlag(capability RoleBits) bool {
	return r&capability != 0
}

// MeetsTier reports whether the role clears the required tier by magnitude.
// An Admin(16) passes a Staff(8) gate even though 16 does not contain the
// 8 bit; tiers are ordinal, not combinable.
func (r RoleBits) MeetsTier(required RoleBits) bool {
	return r >= required
}

// AddFlag returns the role with the capability bit set.
func (r RoleBits) AddFlag(capability RoleBits) RoleBits {
	return r | capability
}

// RemoveFlag returns the role with the capability bit cleared.
func (r RoleBits) RemoveFlag(capability RoleBits) RoleBits {
	return r &^ capability
}

// String renders the set bits for logs and admin views.
func (r RoleBits) String() string {
	names := []struct {
		bit  RoleBits
		name string
	}{
		{RoleAdmin, "admin"},
		{RoleStaff, "staff"},
		{RoleEditor, "editor"},
		{RoleInstructor, "instructor"},
		{RoleMember, "member"},
	}

	var set []string
	for _, n := range names {
		if r.HasFlag(n.bit) {
			set = append(set, n.name)
		}
	}
	if len(set) == 0 {
		return "none"
	}
	return strings.Join(set, "|")
}
