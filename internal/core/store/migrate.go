package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		kind TEXT NOT NULL,
		provider TEXT NOT NULL,
		status TEXT NOT NULL,
		status_code INTEGER,
		message TEXT,
		payload TEXT,
		extra_data TEXT,
		fetched_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL,
		UNIQUE(symbol, kind)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_snapshots_expires ON snapshots(expires_at);`,
	`CREATE INDEX IF NOT EXISTS idx_snapshots_provider ON snapshots(provider);`,
}

// addedColumns were introduced after the first release; older databases get
// them through ALTER TABLE.
var addedColumns = []struct {
	table, column, definition string
}{
	{"snapshots", "fetch_id", "TEXT"},
}

// Migrate creates the snapshot schema and brings older databases up to date.
func (s *Store) Migrate(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	for _, stmt := range schemaStatements {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store migration failed: %w", err)
		}
	}
	for _, col := range addedColumns {
		if err := s.ensureColumn(ctx, col.table, col.column, col.definition); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ensureColumn(ctx context.Context, table, column, definition string) error {
	exists, err := s.hasColumn(ctx, table, column)
	if err != nil {
		return fmt.Errorf("inspect %s schema: %w", table, err)
	}
	if exists {
		return nil
	}
	if _, err := s.DB.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, definition)); err != nil {
		return fmt.Errorf("add %s.%s column: %w", table, column, err)
	}
	return nil
}

func (s *Store) hasColumn(ctx context.Context, table, column string) (bool, error) {
	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	for rows.Next() {
		// cid, name, type, notnull, dflt_value, pk
		var (
			cid, notNull, pk int
			name, colType    string
			dflt             sql.NullString
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
