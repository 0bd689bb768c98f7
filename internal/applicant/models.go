// Package applicant holds membership applications: the intake record, its
// encrypted contact fields, and the vetting workflow state.
package applicant

import (
	"fmt"
	"time"

	id "intake/pkg/domain"
)

// Status is the vetting state of an application.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusAssigned Status = "ASSIGNED"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

var validStatuses = map[Status]bool{
	StatusPending:  true,
	StatusAssigned: true,
	StatusApproved: true,
	StatusRejected: true,
}

// ParseStatus validates a status value from untrusted input.
func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if !validStatuses[status] {
		return "", fmt.Errorf("unknown status %q", s)
	}
	return status, nil
}

// CanTransitionTo reports whether the workflow permits moving to next.
// PENDING records must be claimed before a decision; decisions are terminal;
// reclamation moves ASSIGNED back to PENDING.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusAssigned
	case StatusAssigned:
		return next == StatusApproved || next == StatusRejected || next == StatusPending
	default:
		return false
	}
}

// IsTerminal reports whether the record has received a final decision.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Applicant is the persisted record. Street address, phone, email, and the
// custom-field blob are stored only as ciphertext; EmailIndex is a keyed
// hash of the normalized email used for duplicate detection without
// decryption.
type Applicant struct {
	ID        id.ApplicantID
	FirstName string
	LastName  string
	City      string
	Zip       string

	StreetAddressCT []byte
	PhoneCT         []byte
	EmailCT         []byte
	CustomFieldsCT  []byte
	EmailIndex      string

	Status     Status
	AssignedTo *id.StaffID
	Notes      string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Submission is the public intake payload.
type Submission struct {
	FirstName     string
	LastName      string
	City          string
	Zip           string
	StreetAddress string
	Phone         string
	Email         string
	FreeText      map[string]any
}

// View is the decrypted projection. It exists only on the far side of an
// access check and a PII_VIEWED audit entry.
type View struct {
	ID            id.ApplicantID
	FirstName     string
	LastName      string
	City          string
	Zip           string
	StreetAddress string
	Phone         string
	Email         string
	CustomFields  map[string]any
	Status        Status
	AssignedTo    *id.StaffID
	Notes         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Summary is the listing projection. No ciphertext and no decrypted PII
// ever appears here.
type Summary struct {
	ID         id.ApplicantID
	FirstName  string
	LastName   string
	City       string
	Zip        string
	Status     Status
	AssignedTo *id.StaffID
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Summarize projects the record for listings.
func (a *Applicant) Summarize() Summary {
	return Summary{
		ID:         a.ID,
		FirstName:  a.FirstName,
		LastName:   a.LastName,
		City:       a.City,
		Zip:        a.Zip,
		Status:     a.Status,
		AssignedTo: a.AssignedTo,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

// Filter narrows List results. AssignedTo set by the service for reviewers,
// never taken from request input.
type Filter struct {
	Status     *Status
	AssignedTo *id.StaffID
}
