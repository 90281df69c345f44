package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// MarketStore persists market metadata.
type MarketStore interface {
	Upsert(ctx context.Context, market Market) error
	UpsertBatch(ctx context.Context, markets []Market) error
	GetByID(ctx context.Context, id string) (Market, error)
	ListResolved(ctx context.Context, opts ListOpts) ([]Market, error)
	List(ctx context.Context, opts ListOpts) ([]Market, error)
	Count(ctx context.Context) (int64, error)
}

// EmbeddingStore persists sanitized embedding records.
type EmbeddingStore interface {
	Put(ctx context.Context, rec EmbeddingRecord) error
	Get(ctx context.Context, marketID string) (EmbeddingRecord, error)
	List(ctx context.Context) ([]EmbeddingRecord, error)
}

// GraphStore persists the event graph. Save replaces the previous graph
// wholesale; each build supersedes the last.
type GraphStore interface {
	Save(ctx context.Context, g *EventGraph) error
	Load(ctx context.Context) (*EventGraph, error)
}

// ResolutionStore persists the resolution ingestion state. Save must be
// atomic: it either replaces the whole mapping or leaves the stored state
// unchanged.
type ResolutionStore interface {
	Save(ctx context.Context, state *ResolutionState) error
	Load(ctx context.Context) (*ResolutionState, error)
}

// SignalStore persists emitted signals and their dedup keys.
type SignalStore interface {
	Append(ctx context.Context, sig Signal) error
	ListKeys(ctx context.Context) ([]string, error)
	ListRecent(ctx context.Context, limit int) ([]Signal, error)
}

// SnapshotStore persists point-in-time market price snapshots.
type SnapshotStore interface {
	InsertBatch(ctx context.Context, snaps []MarketSnapshot) error
	ListByMarket(ctx context.Context, marketID string, opts ListOpts) ([]MarketSnapshot, error)
}

// BacktestStore persists backtest results.
type BacktestStore interface {
	Insert(ctx context.Context, result BacktestResult) error
	ListRecent(ctx context.Context, limit int) ([]BacktestResult, error)
}
