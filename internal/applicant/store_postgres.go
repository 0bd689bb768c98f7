package applicant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	id "intake/pkg/domain"
	"intake/pkg/platform/sentinel"
	txcontext "intake/pkg/platform/tx"
)

// PostgresStore persists applicant records. The partial unique index on
// email_index is the race judge for duplicate submissions, and the claim
// and transition primitives are single conditional statements so two
// concurrent writers can never both win the same record state.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const applicantColumns = `id, first_name, last_name, city, zip,
	street_address_ct, phone_ct, email_ct, custom_fields_ct, email_index,
	status, assigned_to, notes, created_at, updated_at`

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// execer returns the context transaction when one is active, so the purge
// cascade deletes the record and its audit trail in one commit.
func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, a *Applicant) error {
	query := `
		INSERT INTO applicants (` + applicantColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		a.ID.String(), a.FirstName, a.LastName, a.City, a.Zip,
		a.StreetAddressCT, a.PhoneCT, a.EmailCT, a.CustomFieldsCT, nullString(a.EmailIndex),
		string(a.Status), nullStaffID(a.AssignedTo), a.Notes, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create applicant: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, applicantID id.ApplicantID) (*Applicant, error) {
	query := `SELECT ` + applicantColumns + ` FROM applicants WHERE id = $1`
	return scanApplicant(s.execer(ctx).QueryRowContext(ctx, query, applicantID.String()))
}

func (s *PostgresStore) FindByEmailIndex(ctx context.Context, emailIndex string) (*Applicant, error) {
	if emailIndex == "" {
		return nil, sentinel.ErrNotFound
	}
	query := `SELECT ` + applicantColumns + ` FROM applicants WHERE email_index = $1`
	return scanApplicant(s.db.QueryRowContext(ctx, query, emailIndex))
}

func (s *PostgresStore) List(ctx context.Context, f Filter) ([]*Applicant, error) {
	query := `
		SELECT ` + applicantColumns + `
		FROM applicants
		WHERE ($1::text IS NULL OR status = $1)
		  AND ($2::uuid IS NULL OR assigned_to = $2)
		ORDER BY created_at DESC, id DESC
	`
	var status, assignee any
	if f.Status != nil {
		status = string(*f.Status)
	}
	if f.AssignedTo != nil {
		assignee = f.AssignedTo.String()
	}
	rows, err := s.db.QueryContext(ctx, query, status, assignee)
	if err != nil {
		return nil, fmt.Errorf("list applicants: %w", err)
	}
	defer rows.Close()
	return collectApplicants(rows)
}

func (s *PostgresStore) Update(ctx context.Context, a *Applicant) error {
	query := `
		UPDATE applicants
		SET street_address_ct = $2, phone_ct = $3, email_ct = $4, custom_fields_ct = $5,
		    status = $6, assigned_to = $7, notes = $8, updated_at = $9
		WHERE id = $1
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		a.ID.String(), a.StreetAddressCT, a.PhoneCT, a.EmailCT, a.CustomFieldsCT,
		string(a.Status), nullStaffID(a.AssignedTo), a.Notes, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update applicant: %w", err)
	}
	return requireRow(res, sentinel.ErrNotFound)
}

func (s *PostgresStore) Delete(ctx context.Context, applicantID id.ApplicantID) error {
	res, err := s.execer(ctx).ExecContext(ctx, `DELETE FROM applicants WHERE id = $1`, applicantID.String())
	if err != nil {
		return fmt.Errorf("delete applicant: %w", err)
	}
	return requireRow(res, sentinel.ErrNotFound)
}

// ClaimOldestPending picks and assigns the head of the queue in one
// statement. SKIP LOCKED keeps concurrent claimants from queueing on the
// same row; each takes a different head or sees an empty queue.
func (s *PostgresStore) ClaimOldestPending(ctx context.Context, reviewer id.StaffID, now time.Time) (*Applicant, error) {
	query := `
		UPDATE applicants
		SET status = $1, assigned_to = $2, updated_at = $3
		WHERE id = (
			SELECT id FROM applicants
			WHERE status = $4
			ORDER BY created_at, id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		) AND status = $4
		RETURNING ` + applicantColumns
	row := s.db.QueryRowContext(ctx, query,
		string(StatusAssigned), reviewer.String(), now, string(StatusPending))
	return scanApplicant(row)
}

func (s *PostgresStore) AssignIfClaimable(ctx context.Context, applicantID id.ApplicantID, reviewer id.StaffID, now time.Time) (*Applicant, error) {
	query := `
		UPDATE applicants
		SET status = $2, assigned_to = $3, updated_at = $4
		WHERE id = $1 AND status IN ($5, $6)
		RETURNING ` + applicantColumns
	row := s.db.QueryRowContext(ctx, query,
		applicantID.String(), string(StatusAssigned), reviewer.String(), now,
		string(StatusPending), string(StatusAssigned))
	a, err := scanApplicant(row)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, s.disambiguate(ctx, applicantID)
	}
	return a, err
}

func (s *PostgresStore) TransitionStatus(ctx context.Context, applicantID id.ApplicantID, from, to Status, clearAssignee bool, now time.Time) (*Applicant, error) {
	query := `
		UPDATE applicants
		SET status = $2,
		    assigned_to = CASE WHEN $4 THEN NULL ELSE assigned_to END,
		    updated_at = $5
		WHERE id = $1 AND status = $3
		RETURNING ` + applicantColumns
	row := s.db.QueryRowContext(ctx, query,
		applicantID.String(), string(to), string(from), clearAssignee, now)
	a, err := scanApplicant(row)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, s.disambiguate(ctx, applicantID)
	}
	return a, err
}

// disambiguate turns a zero-row conditional update into the right sentinel:
// the record is either gone or a concurrent writer changed its state first.
func (s *PostgresStore) disambiguate(ctx context.Context, applicantID id.ApplicantID) error {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM applicants WHERE id = $1`, applicantID.String()).Scan(&n)
	if err != nil {
		return fmt.Errorf("check applicant existence: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrClaimConflict
}

func (s *PostgresStore) ReclaimStale(ctx context.Context, cutoff time.Time, now time.Time) ([]*Applicant, error) {
	query := `
		UPDATE applicants
		SET status = $1, assigned_to = NULL, updated_at = $2
		WHERE status = $3 AND updated_at < $4
		RETURNING ` + applicantColumns
	rows, err := s.db.QueryContext(ctx, query,
		string(StatusPending), now, string(StatusAssigned), cutoff)
	if err != nil {
		return nil, fmt.Errorf("reclaim stale assignments: %w", err)
	}
	defer rows.Close()
	return collectApplicants(rows)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullStaffID(staffID *id.StaffID) any {
	if staffID == nil {
		return nil
	}
	return staffID.String()
}

func requireRow(res sql.Result, missing error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return missing
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplicant(row *sql.Row) (*Applicant, error) {
	a, err := scanApplicantRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return a, err
}

func collectApplicants(rows *sql.Rows) ([]*Applicant, error) {
	var out []*Applicant
	for rows.Next() {
		a, err := scanApplicantRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanApplicantRow(row rowScanner) (*Applicant, error) {
	var (
		a           Applicant
		rawID       string
		rawIndex    sql.NullString
		rawStatus   string
		rawAssignee sql.NullString
	)
	err := row.Scan(&rawID, &a.FirstName, &a.LastName, &a.City, &a.Zip,
		&a.StreetAddressCT, &a.PhoneCT, &a.EmailCT, &a.CustomFieldsCT, &rawIndex,
		&rawStatus, &rawAssignee, &a.Notes, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("corrupt applicant id %q: %w", rawID, err)
	}
	a.ID = id.ApplicantID(parsed)
	a.EmailIndex = rawIndex.String
	a.Status = Status(rawStatus)
	if rawAssignee.Valid {
		owner, err := id.ParseStaffID(rawAssignee.String)
		if err != nil {
			return nil, fmt.Errorf("corrupt assignee id %q: %w", rawAssignee.String, err)
		}
		a.AssignedTo = &owner
	}
	return &a, nil
}
