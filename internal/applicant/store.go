package applicant

import (
	"context"
	"time"

	id "intake/pkg/domain"
)

// Store is pure I/O for applicant records. Sentinel contract:
//   - ErrNotFound: missing record, or ClaimOldestPending on an empty queue
//   - ErrConflict: Create with an already-indexed email
//   - ErrClaimConflict: a conditional transition matched zero rows because a
//     concurrent claimant, reclaimer, or decision won the race
//
// The claim, assign, and transition primitives are atomic: two concurrent
// callers can never both succeed against the same record state.
type Store interface {
	Create(ctx context.Context, a *Applicant) error
	FindByID(ctx context.Context, applicantID id.ApplicantID) (*Applicant, error)
	FindByEmailIndex(ctx context.Context, emailIndex string) (*Applicant, error)
	List(ctx context.Context, f Filter) ([]*Applicant, error)
	Update(ctx context.Context, a *Applicant) error
	Delete(ctx context.Context, applicantID id.ApplicantID) error

	// ClaimOldestPending atomically assigns the oldest PENDING record
	// (created_at ascending, ties by id) to the reviewer.
	ClaimOldestPending(ctx context.Context, reviewer id.StaffID, now time.Time) (*Applicant, error)

	// AssignIfClaimable atomically assigns a specific non-terminal record,
	// including re-assigning an already-ASSIGNED one.
	AssignIfClaimable(ctx context.Context, applicantID id.ApplicantID, reviewer id.StaffID, now time.Time) (*Applicant, error)

	// TransitionStatus atomically moves a record from an expected prior
	// state, optionally clearing the assignee.
	TransitionStatus(ctx context.Context, applicantID id.ApplicantID, from, to Status, clearAssignee bool, now time.Time) (*Applicant, error)

	// ReclaimStale returns every ASSIGNED record untouched since the cutoff
	// to PENDING, clearing the assignee, atomically per record.
	ReclaimStale(ctx context.Context, cutoff time.Time, now time.Time) ([]*Applicant, error)
}
