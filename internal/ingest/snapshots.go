package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/topiclab/topicbot/internal/domain"
)

// SnapshotIngester captures point-in-time price snapshots for markets so the
// repricing behavior of followers can be analyzed after the fact.
type SnapshotIngester struct {
	store  domain.SnapshotStore
	logger *slog.Logger
	now    func() time.Time
}

// NewSnapshotIngester creates a SnapshotIngester writing to the given store.
func NewSnapshotIngester(store domain.SnapshotStore, logger *slog.Logger) *SnapshotIngester {
	return &SnapshotIngester{
		store:  store,
		logger: logger.With(slog.String("component", "snapshot_ingester")),
		now:    time.Now,
	}
}

// Capture records the current price of every given market with a shared
// timestamp and persists the batch.
func (si *SnapshotIngester) Capture(ctx context.Context, markets []domain.Market) ([]domain.MarketSnapshot, error) {
	ts := si.now().UTC()
	snaps := make([]domain.MarketSnapshot, 0, len(markets))
	for _, m := range markets {
		snaps = append(snaps, domain.MarketSnapshot{
			MarketID:  m.ID,
			Timestamp: ts,
			YesPrice:  m.YesPrice,
			Volume:    m.Volume,
			Liquidity: m.Liquidity,
		})
	}
	if len(snaps) == 0 {
		return nil, nil
	}
	if err := si.store.InsertBatch(ctx, snaps); err != nil {
		return nil, fmt.Errorf("ingest: persist snapshots: %w", err)
	}
	si.logger.DebugContext(ctx, "snapshots captured", slog.Int("count", len(snaps)))
	return snaps, nil
}
