package audit

import (
	"time"

	"github.com/google/uuid"

	id "intake/pkg/domain"
)

// Action is the closed enumeration of auditable actions. The log is the sole
// source of truth for "who saw what PII and when", so new actions are added
// here deliberately, never ad hoc.
type Action string

const (
	ActionPIIViewed               Action = "PII_VIEWED"
	ActionNoteAdded               Action = "NOTE_ADDED"
	ActionStatusChanged           Action = "STATUS_CHANGED"
	ActionAssigned                Action = "ASSIGNED"
	ActionAutoAssigned            Action = "AUTO_ASSIGNED"
	ActionAssignmentReclaimed     Action = "ASSIGNMENT_RECLAIMED"
	ActionAssignmentReclaimedByOp Action = "ASSIGNMENT_RECLAIMED_MANUAL"
	ActionAccountCreated          Action = "ACCOUNT_CREATED"
	ActionAccountUpdated          Action = "ACCOUNT_UPDATED"
	ActionAccountDeleted          Action = "ACCOUNT_DELETED"
	ActionCustomFieldsUpdated     Action = "CUSTOM_FIELDS_UPDATED"
	ActionRecordDeleted           Action = "RECORD_DELETED"
	ActionLoginSucceeded          Action = "LOGIN_SUCCEEDED"
	ActionLoginFailed             Action = "LOGIN_FAILED"
	ActionSearchPerformed         Action = "SEARCH_PERFORMED"
)

var validActions = map[Action]bool{
	ActionPIIViewed:               true,
	ActionNoteAdded:               true,
	ActionStatusChanged:           true,
	ActionAssigned:                true,
	ActionAutoAssigned:            true,
	ActionAssignmentReclaimed:     true,
	ActionAssignmentReclaimedByOp: true,
	ActionAccountCreated:          true,
	ActionAccountUpdated:          true,
	ActionAccountDeleted:          true,
	ActionCustomFieldsUpdated:     true,
	ActionRecordDeleted:           true,
	ActionLoginSucceeded:          true,
	ActionLoginFailed:             true,
	ActionSearchPerformed:         true,
}

// IsValid checks the action against the closed enumeration.
func (a Action) IsValid() bool { return validActions[a] }

// Entry is one immutable audit record. ActorID nil denotes a system-triggered
// action (stale reclamation, bootstrap); ApplicantID nil denotes an
// account-level action. Once written an entry is never mutated; the only
// delete path is the whole-record purge cascading from an applicant deletion.
type Entry struct {
	ID          uuid.UUID
	ActorID     *id.StaffID
	ApplicantID *id.ApplicantID
	Action      Action
	Details     string
	Timestamp   time.Time
}

// Query narrows audit reads. Zero values mean "no constraint".
type Query struct {
	ActorID     *id.StaffID
	ApplicantID *id.ApplicantID
	From        time.Time
	To          time.Time
}
