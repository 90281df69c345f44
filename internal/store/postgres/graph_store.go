package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/topiclab/topicbot/internal/domain"
)

// GraphStore persists the event graph. Each save replaces the previous graph
// wholesale inside a transaction; readers never observe a half-written graph.
type GraphStore struct {
	pool *pgxpool.Pool
}

// NewGraphStore creates a GraphStore backed by the given client.
func NewGraphStore(client *Client) *GraphStore {
	return &GraphStore{pool: client.Pool()}
}

// Save replaces the stored graph with g.
func (s *GraphStore) Save(ctx context.Context, g *domain.EventGraph) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin graph save: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM graph_edges`); err != nil {
		return fmt.Errorf("postgres: clear graph edges: %w", err)
	}

	batch := &pgx.Batch{}
	edges := g.Edges()
	for _, e := range edges {
		batch.Queue(`
			INSERT INTO graph_edges (pair_key, leader_id, follower_id, similarity, days_apart)
			VALUES ($1, $2, $3, $4, $5)`,
			e.Key(), e.LeaderID, e.FollowerID, e.Similarity, e.DaysApart,
		)
	}
	if len(edges) > 0 {
		results := tx.SendBatch(ctx, batch)
		for range edges {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				return fmt.Errorf("postgres: insert graph edge: %w", err)
			}
		}
		if err := results.Close(); err != nil {
			return fmt.Errorf("postgres: close graph batch: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO graph_meta (id, built_at) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET built_at = EXCLUDED.built_at`,
		g.BuiltAt,
	); err != nil {
		return fmt.Errorf("postgres: save graph meta: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit graph save: %w", err)
	}
	return nil
}

// Load reconstructs the most recently saved graph. An empty store yields an
// empty graph, not an error.
func (s *GraphStore) Load(ctx context.Context) (*domain.EventGraph, error) {
	g := domain.NewEventGraph()

	err := s.pool.QueryRow(ctx, `SELECT built_at FROM graph_meta WHERE id = 1`).Scan(&g.BuiltAt)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("postgres: load graph meta: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT leader_id, follower_id, similarity, days_apart
		FROM graph_edges ORDER BY pair_key ASC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: load graph edges: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e domain.Edge
		if err := rows.Scan(&e.LeaderID, &e.FollowerID, &e.Similarity, &e.DaysApart); err != nil {
			return nil, fmt.Errorf("postgres: scan graph edge: %w", err)
		}
		g.AddEdge(e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate graph edges: %w", err)
	}
	return g, nil
}
