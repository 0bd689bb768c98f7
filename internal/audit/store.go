package audit

import (
	"context"

	id "intake/pkg/domain"
)

// Store is the append-only persistence contract. No update operation exists;
// PurgeByApplicant is the single deletion path and only the applicant purge
// cascade may call it.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	List(ctx context.Context, q Query) ([]Entry, error)
	PurgeByApplicant(ctx context.Context, applicantID id.ApplicantID) (int, error)
}
