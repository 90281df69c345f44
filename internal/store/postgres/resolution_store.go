package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/topiclab/topicbot/internal/domain"
)

// ResolutionStore persists the ingestion tracker's resolution state. Save
// replaces the whole mapping in one transaction so a failed write leaves the
// stored state unchanged.
type ResolutionStore struct {
	pool *pgxpool.Pool
}

// NewResolutionStore creates a ResolutionStore backed by the given client.
func NewResolutionStore(client *Client) *ResolutionStore {
	return &ResolutionStore{pool: client.Pool()}
}

// Save atomically replaces the stored state.
func (s *ResolutionStore) Save(ctx context.Context, state *domain.ResolutionState) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin resolution save: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM resolution_state`); err != nil {
		return fmt.Errorf("postgres: clear resolution state: %w", err)
	}

	batch := &pgx.Batch{}
	for id, r := range state.Known {
		batch.Queue(`INSERT INTO resolution_state (market_id, resolution) VALUES ($1, $2)`,
			id, string(r))
	}
	if batch.Len() > 0 {
		results := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				return fmt.Errorf("postgres: insert resolution entry: %w", err)
			}
		}
		if err := results.Close(); err != nil {
			return fmt.Errorf("postgres: close resolution batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit resolution save: %w", err)
	}
	return nil
}

// Load returns the stored state. An empty store yields an empty state.
func (s *ResolutionStore) Load(ctx context.Context) (*domain.ResolutionState, error) {
	rows, err := s.pool.Query(ctx, `SELECT market_id, resolution FROM resolution_state`)
	if err != nil {
		return nil, fmt.Errorf("postgres: load resolution state: %w", err)
	}
	defer rows.Close()

	state := domain.NewResolutionState()
	for rows.Next() {
		var id, r string
		if err := rows.Scan(&id, &r); err != nil {
			return nil, fmt.Errorf("postgres: scan resolution entry: %w", err)
		}
		state.Known[id] = domain.Resolution(r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate resolution entries: %w", err)
	}
	return state, nil
}
