// Package access centralizes authorization decisions for applicant records.
//
// Admins see everything. Reviewers see only records currently assigned to
// them, and a reviewer denied access learns nothing about whether the record
// exists: the denial for "not yours" and "no such record" is the same error
// value, produced only here so the two paths cannot drift apart.
package access

import (
	id "intake/pkg/domain"
	dErrors "intake/pkg/domain-errors"
)

// Actor is the authenticated principal making a request. Username rides
// along from the token claims for audit details and note attribution.
type Actor struct {
	ID       id.StaffID
	Role     id.Role
	Username string
}

func (a Actor) IsAdmin() bool { return a.Role == id.RoleAdmin }

const deniedMessage = "access denied"

// Denied is the uniform record-access denial. Services return it in place of
// a not-found error when the caller is a reviewer.
func Denied() error {
	return dErrors.New(dErrors.CodeForbidden, deniedMessage)
}

// CheckRecord authorizes an actor against a record's current assignee.
// A nil assignee means the record is unassigned, which only admins may touch.
func CheckRecord(actor Actor, assignedTo *id.StaffID) error {
	if actor.IsAdmin() {
		return nil
	}
	if assignedTo != nil && *assignedTo == actor.ID {
		return nil
	}
	return Denied()
}

// CheckAdmin authorizes admin-only operations.
func CheckAdmin(actor Actor) error {
	if actor.IsAdmin() {
		return nil
	}
	return Denied()
}
