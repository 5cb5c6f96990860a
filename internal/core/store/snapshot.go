package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tickerlens/tickerlens/internal/core"
)

// snapshotPayload holds the kind-specific part of a result.
type snapshotPayload struct {
	Quote     *core.Quote     `json:"quote,omitempty"`
	Earnings  *core.Earnings  `json:"earnings,omitempty"`
	Sentiment *core.Sentiment `json:"sentiment,omitempty"`
}

// GetSnapshot returns a cached fetch result if it has not expired.
func (s *Store) GetSnapshot(ctx context.Context, symbol string, kind core.DataKind) (*core.FetchResult, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	key := normalizeSymbol(symbol)
	if key == "" {
		return nil, errors.New("snapshot symbol is required")
	}

	var (
		provider    string
		status      string
		statusCode  sql.NullInt64
		message     sql.NullString
		payloadJSON sql.NullString
		extraJSON   sql.NullString
		fetchID     sql.NullString
		fetchedAt   int64
		expiresAt   int64
	)

	row := s.DB.QueryRowContext(ctx, `
		SELECT provider, status, status_code, message, payload, extra_data, fetch_id, fetched_at, expires_at
		FROM snapshots
		WHERE symbol = ? AND kind = ? AND expires_at > ?
	`, key, string(kind), s.now().Unix())

	if err := row.Scan(&provider, &status, &statusCode, &message, &payloadJSON, &extraJSON, &fetchID, &fetchedAt, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch snapshot: %w", err)
	}

	var payload snapshotPayload
	if payloadJSON.Valid && payloadJSON.String != "" {
		if err := json.Unmarshal([]byte(payloadJSON.String), &payload); err != nil {
			return nil, fmt.Errorf("decode snapshot payload: %w", err)
		}
	}

	var extra map[string]any
	if extraJSON.Valid && extraJSON.String != "" && extraJSON.String != "null" {
		if err := json.Unmarshal([]byte(extraJSON.String), &extra); err != nil {
			return nil, fmt.Errorf("decode snapshot extra data: %w", err)
		}
	}

	fetched := time.Unix(fetchedAt, 0).UTC()
	expires := time.Unix(expiresAt, 0).UTC()

	return &core.FetchResult{
		Symbol:     key,
		Kind:       kind,
		Status:     core.FetchStatus(status),
		StatusCode: int(statusCode.Int64),
		Message:    message.String,
		Quote:      payload.Quote,
		Earnings:   payload.Earnings,
		Sentiment:  payload.Sentiment,
		ExtraData:  extra,
		Provenance: core.Provenance{
			FetchID:        fetchID.String,
			ResolvedAt:     fetched,
			Provider:       provider,
			FromCache:      true,
			CacheExpiresAt: &expires,
		},
	}, nil
}

// PutSnapshot stores a fetch result with a TTL. A non-positive TTL is a no-op.
func (s *Store) PutSnapshot(ctx context.Context, result *core.FetchResult, ttl time.Duration) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if ttl <= 0 || result == nil {
		return nil
	}

	key := normalizeSymbol(result.Symbol)
	if key == "" {
		return errors.New("snapshot symbol is required")
	}

	payloadJSON, err := json.Marshal(snapshotPayload{
		Quote:     result.Quote,
		Earnings:  result.Earnings,
		Sentiment: result.Sentiment,
	})
	if err != nil {
		return fmt.Errorf("encode snapshot payload: %w", err)
	}

	extraJSON, err := json.Marshal(result.ExtraData)
	if err != nil {
		return fmt.Errorf("encode snapshot extra data: %w", err)
	}

	now := s.now()
	expires := now.Add(ttl)

	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO snapshots (symbol, kind, provider, status, status_code, message, payload, extra_data, fetch_id, fetched_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, kind) DO UPDATE SET
			provider = excluded.provider,
			status = excluded.status,
			status_code = excluded.status_code,
			message = excluded.message,
			payload = excluded.payload,
			extra_data = excluded.extra_data,
			fetch_id = excluded.fetch_id,
			fetched_at = excluded.fetched_at,
			expires_at = excluded.expires_at
	`, key, string(result.Kind), result.Provenance.Provider, string(result.Status), result.StatusCode, result.Message,
		string(payloadJSON), string(extraJSON), result.Provenance.FetchID, now.Unix(), expires.Unix())
	if err != nil {
		return fmt.Errorf("store snapshot: %w", err)
	}

	return nil
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
