// Package domain holds typed identifiers shared across the service. Typed IDs
// make cross-entity assignment a compile error instead of a data leak.
package domain

import (
	"github.com/google/uuid"

	dErrors "intake/pkg/domain-errors"
)

// StaffID identifies a staff account (admin or reviewer).
type StaffID uuid.UUID

// ApplicantID identifies a membership applicant record.
type ApplicantID uuid.UUID

// ParseStaffID validates external input at trust boundaries.
// IDs must be valid, non-nil UUIDs.
func ParseStaffID(s string) (StaffID, error) {
	u, err := parseID(s)
	if err != nil {
		return StaffID{}, err
	}
	return StaffID(u), nil
}

// ParseApplicantID validates external input at trust boundaries.
func ParseApplicantID(s string) (ApplicantID, error) {
	u, err := parseID(s)
	if err != nil {
		return ApplicantID{}, err
	}
	return ApplicantID(u), nil
}

func parseID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be the nil UUID")
	}
	return u, nil
}

// NewStaffID mints a fresh staff identifier.
func NewStaffID() StaffID { return StaffID(uuid.New()) }

// NewApplicantID mints a fresh applicant identifier.
func NewApplicantID() ApplicantID { return ApplicantID(uuid.New()) }

func (id StaffID) String() string { return uuid.UUID(id).String() }

func (id StaffID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id ApplicantID) String() string { return uuid.UUID(id).String() }

func (id ApplicantID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
