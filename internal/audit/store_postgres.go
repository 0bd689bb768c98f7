package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "intake/pkg/domain"
	txcontext "intake/pkg/platform/tx"
)

// PostgresStore persists audit entries. The table is append-only by contract:
// no UPDATE statement exists in this file, and the only DELETE is the
// applicant purge cascade.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// execer returns the context transaction when one is active so an audit
// append commits atomically with the action it describes.
func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Append(ctx context.Context, entry Entry) error {
	query := `
		INSERT INTO audit_entries (id, actor_id, applicant_id, action, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	var actorID, applicantID any
	if entry.ActorID != nil {
		actorID = entry.ActorID.String()
	}
	if entry.ApplicantID != nil {
		applicantID = entry.ApplicantID.String()
	}
	_, err := s.execer(ctx).ExecContext(ctx, query,
		entry.ID, actorID, applicantID, string(entry.Action), entry.Details, entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, q Query) ([]Entry, error) {
	query := `
		SELECT id, actor_id, applicant_id, action, details, created_at
		FROM audit_entries
		WHERE ($1::uuid IS NULL OR actor_id = $1)
		  AND ($2::uuid IS NULL OR applicant_id = $2)
		  AND ($3::timestamptz IS NULL OR created_at >= $3)
		  AND ($4::timestamptz IS NULL OR created_at <= $4)
		ORDER BY created_at, id
	`
	var actorID, applicantID, from, to any
	if q.ActorID != nil {
		actorID = q.ActorID.String()
	}
	if q.ApplicantID != nil {
		applicantID = q.ApplicantID.String()
	}
	if !q.From.IsZero() {
		from = q.From
	}
	if !q.To.IsZero() {
		to = q.To
	}

	rows, err := s.db.QueryContext(ctx, query, actorID, applicantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e          Entry
			rawActor   sql.NullString
			rawSubject sql.NullString
		)
		if err := rows.Scan(&e.ID, &rawActor, &rawSubject, &e.Action, &e.Details, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if rawActor.Valid {
			parsed, err := uuid.Parse(rawActor.String)
			if err != nil {
				return nil, fmt.Errorf("corrupt actor id %q: %w", rawActor.String, err)
			}
			actor := id.StaffID(parsed)
			e.ActorID = &actor
		}
		if rawSubject.Valid {
			parsed, err := uuid.Parse(rawSubject.String)
			if err != nil {
				return nil, fmt.Errorf("corrupt applicant id %q: %w", rawSubject.String, err)
			}
			subject := id.ApplicantID(parsed)
			e.ApplicantID = &subject
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) PurgeByApplicant(ctx context.Context, applicantID id.ApplicantID) (int, error) {
	res, err := s.execer(ctx).ExecContext(ctx,
		`DELETE FROM audit_entries WHERE applicant_id = $1`, applicantID.String())
	if err != nil {
		return 0, fmt.Errorf("purge audit entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge audit entries: %w", err)
	}
	return int(n), nil
}
