package domain

import dErrors "intake/pkg/domain-errors"

// Role is the staff capability level. Exactly one per account, immutable
// once assigned: changing a role is a delete+recreate, which closes the
// silent privilege-escalation path a mutable role field would open.
//
// Usage: construct via ParseRole at trust boundaries; direct casting
// bypasses validation.
type Role string

const (
	// RoleAdmin has unrestricted read/write over all applicant records and
	// all staff accounts.
	RoleAdmin Role = "ADMIN"
	// RoleReviewer may read/write only applicant records it currently owns,
	// and read its own account.
	RoleReviewer Role = "REVIEWER"
)

var validRoles = map[Role]bool{
	RoleAdmin:    true,
	RoleReviewer: true,
}

// ParseRole constructs a Role from external input.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !validRoles[r] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "role must be ADMIN or REVIEWER")
	}
	return r, nil
}

// IsValid checks the role against the closed enumeration.
func (r Role) IsValid() bool { return validRoles[r] }
