package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/topiclab/topicbot/internal/domain"
)

// MarketStore persists market metadata in the markets table.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a MarketStore backed by the given client.
func NewMarketStore(client *Client) *MarketStore {
	return &MarketStore{pool: client.Pool()}
}

const upsertMarketSQL = `
	INSERT INTO markets (
		id, question, slug, end_date, resolution, resolved_at,
		yes_price, volume, liquidity, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
	ON CONFLICT (id) DO UPDATE SET
		question    = EXCLUDED.question,
		slug        = EXCLUDED.slug,
		end_date    = EXCLUDED.end_date,
		resolution  = EXCLUDED.resolution,
		resolved_at = EXCLUDED.resolved_at,
		yes_price   = EXCLUDED.yes_price,
		volume      = EXCLUDED.volume,
		liquidity   = EXCLUDED.liquidity,
		updated_at  = NOW()`

// Upsert inserts or updates a single market.
func (s *MarketStore) Upsert(ctx context.Context, m domain.Market) error {
	_, err := s.pool.Exec(ctx, upsertMarketSQL,
		m.ID, m.Question, m.Slug, m.EndDate, string(m.Resolution), m.ResolvedAt,
		m.YesPrice, m.Volume, m.Liquidity,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert market %s: %w", m.ID, err)
	}
	return nil
}

// UpsertBatch inserts or updates markets in a single round trip.
func (s *MarketStore) UpsertBatch(ctx context.Context, markets []domain.Market) error {
	if len(markets) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, m := range markets {
		batch.Queue(upsertMarketSQL,
			m.ID, m.Question, m.Slug, m.EndDate, string(m.Resolution), m.ResolvedAt,
			m.YesPrice, m.Volume, m.Liquidity,
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := range markets {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert market batch (item %d, id %s): %w", i, markets[i].ID, err)
		}
	}
	return nil
}

// GetByID returns a market by its ID.
func (s *MarketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, question, slug, end_date, resolution, resolved_at,
		       yes_price, volume, liquidity, created_at, updated_at
		FROM markets WHERE id = $1`, id)

	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", id, err)
	}
	return m, nil
}

// ListResolved returns resolved markets, oldest resolution first, filtered by
// the opts time window on resolved_at.
func (s *MarketStore) ListResolved(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT id, question, slug, end_date, resolution, resolved_at,
		       yes_price, volume, liquidity, created_at, updated_at
		FROM markets
		WHERE resolution IN ('yes', 'no')`)

	args := []any{}
	if opts.Since != nil {
		args = append(args, *opts.Since)
		fmt.Fprintf(&sb, " AND resolved_at >= $%d", len(args))
	}
	if opts.Until != nil {
		args = append(args, *opts.Until)
		fmt.Fprintf(&sb, " AND resolved_at < $%d", len(args))
	}
	sb.WriteString(" ORDER BY resolved_at ASC, id ASC")
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		fmt.Fprintf(&sb, " OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list resolved markets: %w", err)
	}
	defer rows.Close()

	return collectMarkets(rows)
}

// List returns markets ordered by id.
func (s *MarketStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT id, question, slug, end_date, resolution, resolved_at,
		       yes_price, volume, liquidity, created_at, updated_at
		FROM markets
		ORDER BY id ASC`)

	args := []any{}
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		fmt.Fprintf(&sb, " OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	defer rows.Close()

	return collectMarkets(rows)
}

// Count returns the total number of stored markets.
func (s *MarketStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM markets`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return n, nil
}

func scanMarket(row pgx.Row) (domain.Market, error) {
	var (
		m          domain.Market
		resolution string
	)
	err := row.Scan(
		&m.ID, &m.Question, &m.Slug, &m.EndDate, &resolution, &m.ResolvedAt,
		&m.YesPrice, &m.Volume, &m.Liquidity, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}
	m.Resolution = domain.Resolution(resolution)
	return m, nil
}

func collectMarkets(rows pgx.Rows) ([]domain.Market, error) {
	var out []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate markets: %w", err)
	}
	return out, nil
}
