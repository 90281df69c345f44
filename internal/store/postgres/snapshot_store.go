package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/topiclab/topicbot/internal/domain"
)

// SnapshotStore persists point-in-time market price observations.
type SnapshotStore struct {
	pool *pgxpool.Pool
}

// NewSnapshotStore creates a SnapshotStore backed by the given client.
func NewSnapshotStore(client *Client) *SnapshotStore {
	return &SnapshotStore{pool: client.Pool()}
}

// InsertBatch writes a batch of snapshots in a single round trip.
func (s *SnapshotStore) InsertBatch(ctx context.Context, snaps []domain.MarketSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, snap := range snaps {
		batch.Queue(`
			INSERT INTO market_snapshots (market_id, ts, yes_price, volume, liquidity)
			VALUES ($1, $2, $3, $4, $5)`,
			snap.MarketID, snap.Timestamp, snap.YesPrice, snap.Volume, snap.Liquidity,
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range snaps {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("postgres: insert snapshot batch: %w", err)
		}
	}
	return nil
}

// ListByMarket returns snapshots for one market in time order, filtered by the
// opts window.
func (s *SnapshotStore) ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.MarketSnapshot, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT market_id, ts, yes_price, volume, liquidity
		FROM market_snapshots
		WHERE market_id = $1`)

	args := []any{marketID}
	if opts.Since != nil {
		args = append(args, *opts.Since)
		fmt.Fprintf(&sb, " AND ts >= $%d", len(args))
	}
	if opts.Until != nil {
		args = append(args, *opts.Until)
		fmt.Fprintf(&sb, " AND ts < $%d", len(args))
	}
	sb.WriteString(" ORDER BY ts ASC")
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list snapshots for %s: %w", marketID, err)
	}
	defer rows.Close()

	var out []domain.MarketSnapshot
	for rows.Next() {
		var snap domain.MarketSnapshot
		if err := rows.Scan(&snap.MarketID, &snap.Timestamp, &snap.YesPrice, &snap.Volume, &snap.Liquidity); err != nil {
			return nil, fmt.Errorf("postgres: scan snapshot: %w", err)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate snapshots: %w", err)
	}
	return out, nil
}
