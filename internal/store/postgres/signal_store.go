package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/topiclab/topicbot/internal/domain"
)

// SignalStore persists emitted signals keyed by dedup key. A conflicting
// append is a no-op, which keeps retries after a partial failure safe.
type SignalStore struct {
	pool *pgxpool.Pool
}

// NewSignalStore creates a SignalStore backed by the given client.
func NewSignalStore(client *Client) *SignalStore {
	return &SignalStore{pool: client.Pool()}
}

// Append records a signal. Appending a signal whose dedup key already exists
// does nothing.
func (s *SignalStore) Append(ctx context.Context, sig domain.Signal) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO emitted_signals (dedup_key, id, leader_id, follower_id, edge_similarity, leader_resolution, emitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (dedup_key) DO NOTHING`,
		sig.DedupKey(), sig.ID, sig.LeaderID, sig.FollowerID,
		sig.EdgeSimilarity, string(sig.LeaderResolution), sig.EmittedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: append signal %s: %w", sig.DedupKey(), err)
	}
	return nil
}

// ListKeys returns every recorded dedup key, used to restore the emitted set
// at startup.
func (s *SignalStore) ListKeys(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT dedup_key FROM emitted_signals ORDER BY dedup_key ASC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list signal keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("postgres: scan signal key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate signal keys: %w", err)
	}
	return keys, nil
}

// ListRecent returns the most recently emitted signals, newest first.
func (s *SignalStore) ListRecent(ctx context.Context, limit int) ([]domain.Signal, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, leader_id, follower_id, edge_similarity, leader_resolution, emitted_at
		FROM emitted_signals
		ORDER BY emitted_at DESC, dedup_key ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent signals: %w", err)
	}
	defer rows.Close()

	var out []domain.Signal
	for rows.Next() {
		var (
			sig        domain.Signal
			resolution string
		)
		if err := rows.Scan(&sig.ID, &sig.LeaderID, &sig.FollowerID, &sig.EdgeSimilarity, &resolution, &sig.EmittedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan signal: %w", err)
		}
		sig.LeaderResolution = domain.Resolution(resolution)
		out = append(out, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate signals: %w", err)
	}
	return out, nil
}
