// Package staff manages vetting staff accounts.
package staff

import (
	"time"

	id "intake/pkg/domain"
)

// Account is a staff member.
//
// Invariants:
//   - Username is unique and immutable
//   - Role is immutable once assigned (see domain.Role)
//   - PasswordHash is a bcrypt hash; plaintext passwords are never persisted
type Account struct {
	ID           id.StaffID
	Username     string
	PasswordHash string
	Role         id.Role
	DisplayName  string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsAdmin reports whether the account holds the admin role.
func (a *Account) IsAdmin() bool { return a.Role == id.RoleAdmin }

// Update carries the mutable subset of an account. Nil fields are untouched.
// Role and Username are deliberately absent.
type Update struct {
	DisplayName *string
	Password    *string
	Active      *bool
}
