package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tickerlens/tickerlens/internal/core"
)

// SnapshotEntry is one row of the snapshot cache.
type SnapshotEntry struct {
	Symbol    string           `json:"symbol"`
	Kind      core.DataKind    `json:"kind"`
	Provider  string           `json:"provider"`
	Status    core.FetchStatus `json:"status"`
	FetchedAt time.Time        `json:"fetched_at"`
	ExpiresAt time.Time        `json:"expires_at"`
}

// Expired reports whether the entry is past its TTL at now.
func (e SnapshotEntry) Expired(now time.Time) bool {
	return !e.ExpiresAt.After(now)
}

// SnapshotQuery selects snapshot rows for listing or pruning.
type SnapshotQuery struct {
	All      bool
	Expired  bool
	Symbol   string
	Provider string
}

func (q SnapshotQuery) Validate() error {
	if q.All || q.Expired {
		return nil
	}
	if strings.TrimSpace(q.Symbol) != "" {
		return nil
	}
	if strings.TrimSpace(q.Provider) != "" {
		return nil
	}
	return errors.New("must specify --all, --expired, --symbol, or --provider")
}

func (q SnapshotQuery) whereClause(now time.Time) (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}

	clauses := []string{}
	args := []any{}
	if q.Expired {
		clauses = append(clauses, "expires_at <= ?")
		args = append(args, now.Unix())
	}
	if symbol := normalizeSymbol(q.Symbol); symbol != "" {
		clauses = append(clauses, "symbol = ?")
		args = append(args, symbol)
	}
	if provider := strings.ToLower(strings.TrimSpace(q.Provider)); provider != "" {
		clauses = append(clauses, "provider = ?")
		args = append(args, provider)
	}
	if len(clauses) == 0 {
		return "", nil, nil
	}
	return "WHERE " + strings.Join(clauses, " AND "), args, nil
}

// ListSnapshots returns the matching cache rows ordered by symbol and kind.
func (s *Store) ListSnapshots(ctx context.Context, q SnapshotQuery) ([]SnapshotEntry, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause(s.now())
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(`
		SELECT symbol, kind, provider, status, fetched_at, expires_at
		FROM snapshots
		%s
		ORDER BY symbol, kind
	`, where), args...)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	entries := []SnapshotEntry{}
	for rows.Next() {
		var (
			entry     SnapshotEntry
			kind      string
			status    string
			fetchedAt int64
			expiresAt int64
		)
		if err := rows.Scan(&entry.Symbol, &kind, &entry.Provider, &status, &fetchedAt, &expiresAt); err != nil {
			return nil, fmt.Errorf("scan snapshots: %w", err)
		}
		entry.Kind = core.DataKind(kind)
		entry.Status = core.FetchStatus(status)
		entry.FetchedAt = time.Unix(fetchedAt, 0).UTC()
		entry.ExpiresAt = time.Unix(expiresAt, 0).UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}

	return entries, nil
}

// CountSnapshots returns how many rows match q.
func (s *Store) CountSnapshots(ctx context.Context, q SnapshotQuery) (int, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause(s.now())
	if err != nil {
		return 0, err
	}

	row := s.DB.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT COUNT(*)
		FROM snapshots
		%s
	`, where), args...)

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count snapshots: %w", err)
	}
	return count, nil
}

// PruneSnapshots deletes matching rows and returns how many were removed.
func (s *Store) PruneSnapshots(ctx context.Context, q SnapshotQuery) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause(s.now())
	if err != nil {
		return 0, err
	}

	result, err := s.DB.ExecContext(ctx, fmt.Sprintf(`
		DELETE FROM snapshots
		%s
	`, where), args...)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	return affected, nil
}
