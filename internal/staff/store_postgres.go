package staff

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	id "intake/pkg/domain"
	"intake/pkg/platform/sentinel"
)

// PostgresStore persists staff accounts. The username unique constraint is
// the race judge for concurrent creates.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const staffColumns = `id, username, password_hash, role, display_name, active, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, account *Account) error {
	query := `
		INSERT INTO staff_accounts (` + staffColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		account.ID.String(), account.Username, account.PasswordHash, string(account.Role),
		account.DisplayName, account.Active, account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create staff account: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, staffID id.StaffID) (*Account, error) {
	query := `SELECT ` + staffColumns + ` FROM staff_accounts WHERE id = $1`
	return scanAccount(s.db.QueryRowContext(ctx, query, staffID.String()))
}

func (s *PostgresStore) FindByUsername(ctx context.Context, username string) (*Account, error) {
	query := `SELECT ` + staffColumns + ` FROM staff_accounts WHERE username = $1`
	return scanAccount(s.db.QueryRowContext(ctx, query, username))
}

func (s *PostgresStore) List(ctx context.Context) ([]*Account, error) {
	query := `SELECT ` + staffColumns + ` FROM staff_accounts ORDER BY username`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list staff accounts: %w", err)
	}
	defer rows.Close()

	var out []*Account
	for rows.Next() {
		account, err := scanAccountRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, account)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Update(ctx context.Context, account *Account) error {
	query := `
		UPDATE staff_accounts
		SET password_hash = $2, display_name = $3, active = $4, updated_at = $5
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		account.ID.String(), account.PasswordHash, account.DisplayName, account.Active, account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update staff account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update staff account: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, staffID id.StaffID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM staff_accounts WHERE id = $1`, staffID.String())
	if err != nil {
		// applicants.assigned_to references this row while the account
		// still owns assignments.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "foreign_key_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("delete staff account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete staff account: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM staff_accounts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count staff accounts: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row *sql.Row) (*Account, error) {
	account, err := scanAccountRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return account, err
}

func scanAccountRow(row rowScanner) (*Account, error) {
	var (
		account Account
		rawID   string
		rawRole string
	)
	err := row.Scan(&rawID, &account.Username, &account.PasswordHash, &rawRole,
		&account.DisplayName, &account.Active, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("corrupt staff id %q: %w", rawID, err)
	}
	account.ID = id.StaffID(parsed)
	account.Role = id.Role(rawRole)
	return &account, nil
}
