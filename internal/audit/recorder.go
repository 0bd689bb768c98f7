package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "intake/pkg/domain"
)

// Recorder appends audit entries synchronously: the triggering operation is
// not complete until its entry is durably written, and a failed append fails
// the operation rather than silently skipping the trail. An optional mirror
// receives a best-effort copy for SIEM consumption and never blocks the
// synchronous path.
type Recorder struct {
	store  Store
	mirror *Publisher
}

func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

// WithMirror attaches a best-effort mirror sink.
func (r *Recorder) WithMirror(p *Publisher) *Recorder {
	r.mirror = p
	return r
}

// Record validates and appends one entry. ID and timestamp are assigned here
// so call sites stay terse.
func (r *Recorder) Record(ctx context.Context, actor *id.StaffID, applicant *id.ApplicantID, action Action, details string) error {
	if !action.IsValid() {
		return fmt.Errorf("audit: unknown action %q", action)
	}
	entry := Entry{
		ID:          uuid.New(),
		ActorID:     actor,
		ApplicantID: applicant,
		Action:      action,
		Details:     details,
		Timestamp:   time.Now().UTC(),
	}
	if err := r.store.Append(ctx, entry); err != nil {
		return fmt.Errorf("audit: append: %w", err)
	}
	if r.mirror != nil {
		r.mirror.Offer(entry)
	}
	return nil
}

// List queries the trail by actor, applicant, and time range.
func (r *Recorder) List(ctx context.Context, q Query) ([]Entry, error) {
	return r.store.List(ctx, q)
}

// PurgeByApplicant removes entries referencing a purged applicant record.
// Only the applicant purge path calls this; the purge's own RECORD_DELETED
// entry is written afterwards without an applicant reference so it survives.
func (r *Recorder) PurgeByApplicant(ctx context.Context, applicantID id.ApplicantID) (int, error) {
	return r.store.PurgeByApplicant(ctx, applicantID)
}
