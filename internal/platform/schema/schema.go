// Package schema embeds the database schema so tests and tooling can
// provision a fresh database without external migration files.
package schema

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
)

//go:embed 0001_init.sql
var initSQL string

// Apply provisions the full schema on an empty database. Statements are
// idempotent, so applying twice is safe.
func Apply(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, initSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
