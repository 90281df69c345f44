// Package ingest tracks which markets are known and resolved across runs so
// polling is idempotent, and captures point-in-time price snapshots.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/topiclab/topicbot/internal/domain"
)

// Tracker owns the persisted ResolutionState. It is the only component that
// mutates the state, always through an atomic read-modify-write-persist cycle:
// the update is staged on a copy and swapped in only after the store write
// succeeds, so a failed write leaves both memory and disk unchanged.
type Tracker struct {
	state  *domain.ResolutionState
	store  domain.ResolutionStore
	logger *slog.Logger
}

// NewTracker creates a Tracker around an initial state. Pass a freshly loaded
// state (or domain.NewResolutionState() on first run).
func NewTracker(state *domain.ResolutionState, store domain.ResolutionStore, logger *slog.Logger) *Tracker {
	if state == nil {
		state = domain.NewResolutionState()
	}
	return &Tracker{
		state:  state,
		store:  store,
		logger: logger.With(slog.String("component", "resolution_tracker")),
	}
}

// Poll computes which of the current markets transitioned to resolved for the
// first time, persists the updated state, and returns the newly resolved
// markets ordered by (resolved_at, id). Repeated polls with no new
// resolutions return an empty list.
func (t *Tracker) Poll(ctx context.Context, current []domain.Market) ([]domain.Market, error) {
	staged := t.state.Clone()
	var fresh []domain.Market

	for _, m := range current {
		if !m.Resolved() {
			continue
		}
		if staged.ResolvedBefore(m.ID) {
			continue
		}
		staged.Known[m.ID] = m.Resolution
		fresh = append(fresh, m)
	}

	if len(fresh) == 0 {
		return nil, nil
	}

	if t.store != nil {
		if err := t.store.Save(ctx, staged); err != nil {
			return nil, fmt.Errorf("ingest: persist resolution state: %w", err)
		}
	}
	t.state = staged

	sort.Slice(fresh, func(i, j int) bool {
		ti, tj := fresh[i].ResolvedAt, fresh[j].ResolvedAt
		switch {
		case ti == nil && tj == nil:
			return fresh[i].ID < fresh[j].ID
		case ti == nil:
			return false
		case tj == nil:
			return true
		case !ti.Equal(*tj):
			return ti.Before(*tj)
		}
		return fresh[i].ID < fresh[j].ID
	})

	t.logger.InfoContext(ctx, "new resolutions",
		slog.Int("count", len(fresh)),
		slog.Int("known", len(t.state.Known)),
	)
	return fresh, nil
}

// State returns the current resolution state. Callers must treat it as
// read-only.
func (t *Tracker) State() *domain.ResolutionState { return t.state }
