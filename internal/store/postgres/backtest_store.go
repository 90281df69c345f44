package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/topiclab/topicbot/internal/domain"
)

// BacktestStore persists backtest results. The full result is stored as JSONB
// with summary columns lifted out for querying; the run timestamp is assigned
// here at insertion, keeping the result payload itself reproducible.
type BacktestStore struct {
	pool *pgxpool.Pool
}

// NewBacktestStore creates a BacktestStore backed by the given client.
func NewBacktestStore(client *Client) *BacktestStore {
	return &BacktestStore{pool: client.Pool()}
}

// Insert records a backtest result.
func (s *BacktestStore) Insert(ctx context.Context, result domain.BacktestResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("postgres: marshal backtest result: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO backtest_results (total_signals, hits, hit_rate, seed, result)
		VALUES ($1, $2, $3, $4, $5)`,
		result.TotalSignals, result.Hits, result.HitRate, result.Seed, payload,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert backtest result: %w", err)
	}
	return nil
}

// ListRecent returns the most recent backtest results, newest first.
func (s *BacktestStore) ListRecent(ctx context.Context, limit int) ([]domain.BacktestResult, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT result FROM backtest_results ORDER BY ran_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list backtest results: %w", err)
	}
	defer rows.Close()

	var out []domain.BacktestResult
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("postgres: scan backtest result: %w", err)
		}
		var result domain.BacktestResult
		if err := json.Unmarshal(payload, &result); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal backtest result: %w", err)
		}
		out = append(out, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate backtest results: %w", err)
	}
	return out, nil
}
