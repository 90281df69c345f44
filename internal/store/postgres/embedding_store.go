package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/topiclab/topicbot/internal/domain"
)

// EmbeddingStore persists sanitized embedding vectors as float8 arrays.
type EmbeddingStore struct {
	pool *pgxpool.Pool
}

// NewEmbeddingStore creates an EmbeddingStore backed by the given client.
func NewEmbeddingStore(client *Client) *EmbeddingStore {
	return &EmbeddingStore{pool: client.Pool()}
}

// Put inserts or replaces the embedding for a market.
func (s *EmbeddingStore) Put(ctx context.Context, rec domain.EmbeddingRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO embeddings (market_id, vector, model_name, model_version, seed, degenerate, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (market_id) DO UPDATE SET
			vector        = EXCLUDED.vector,
			model_name    = EXCLUDED.model_name,
			model_version = EXCLUDED.model_version,
			seed          = EXCLUDED.seed,
			degenerate    = EXCLUDED.degenerate,
			created_at    = EXCLUDED.created_at`,
		rec.MarketID, rec.Vector, rec.ModelName, rec.ModelVersion, rec.Seed, rec.Degenerate, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: put embedding %s: %w", rec.MarketID, err)
	}
	return nil
}

// Get returns the embedding record for a market.
func (s *EmbeddingStore) Get(ctx context.Context, marketID string) (domain.EmbeddingRecord, error) {
	var rec domain.EmbeddingRecord
	err := s.pool.QueryRow(ctx, `
		SELECT market_id, vector, model_name, model_version, seed, degenerate, created_at
		FROM embeddings WHERE market_id = $1`, marketID,
	).Scan(&rec.MarketID, &rec.Vector, &rec.ModelName, &rec.ModelVersion, &rec.Seed, &rec.Degenerate, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.EmbeddingRecord{}, domain.ErrNotFound
		}
		return domain.EmbeddingRecord{}, fmt.Errorf("postgres: get embedding %s: %w", marketID, err)
	}
	return rec, nil
}

// List returns all embedding records ordered by market id.
func (s *EmbeddingStore) List(ctx context.Context) ([]domain.EmbeddingRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT market_id, vector, model_name, model_version, seed, degenerate, created_at
		FROM embeddings ORDER BY market_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list embeddings: %w", err)
	}
	defer rows.Close()

	var out []domain.EmbeddingRecord
	for rows.Next() {
		var rec domain.EmbeddingRecord
		if err := rows.Scan(&rec.MarketID, &rec.Vector, &rec.ModelName, &rec.ModelVersion, &rec.Seed, &rec.Degenerate, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan embedding: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate embeddings: %w", err)
	}
	return out, nil
}
