// Package backtest replays historical resolutions through the graph builder
// and signal engine to measure how well graph edges predict follower
// outcomes. Runs are byte-for-byte reproducible given the same corpus and
// seed: the replay is single-threaded, every iteration order is fixed, and
// signal ids and timestamps are derived from the replay itself.
package backtest

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/topiclab/topicbot/internal/domain"
	"github.com/topiclab/topicbot/internal/graph"
	"github.com/topiclab/topicbot/internal/signalengine"
)

// Config holds replay parameters. Seed governs the vector index's randomized
// components; Graph carries the edge filters.
type Config struct {
	Seed  int64
	Graph graph.Config
}

// Engine replays a historical timeline and scores emitted signals.
type Engine struct {
	builder *graph.Builder
	cfg     Config
	logger  *slog.Logger
}

// NewEngine creates a backtest Engine around a graph builder.
func NewEngine(builder *graph.Builder, cfg Config, logger *slog.Logger) *Engine {
	return &Engine{
		builder: builder,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "backtest")),
	}
}

// Run replays all resolved markets ordered by (resolved_at, id). The graph is
// built once from the full historical set; whether a follower "hasn't
// repriced" is evaluated against only the resolutions at or before the
// simulated time, so no future information leaks into emission. Each signal
// scores a hit when the follower's eventual resolution matches the leader's.
//
// Edge orientation comes from end dates, so a follower that resolves before
// its designated leader produces no signal for that pair; those pairs are
// silently absent from the result, which is a known accuracy caveat.
func (e *Engine) Run(ctx context.Context, markets []domain.Market) (domain.BacktestResult, error) {
	timeline := make([]domain.Market, 0, len(markets))
	eventual := make(map[string]domain.Resolution, len(markets))
	for _, m := range markets {
		if !m.Resolved() || m.ResolvedAt == nil {
			continue
		}
		timeline = append(timeline, m)
		eventual[m.ID] = m.Resolution
	}
	sort.Slice(timeline, func(i, j int) bool {
		if !timeline[i].ResolvedAt.Equal(*timeline[j].ResolvedAt) {
			return timeline[i].ResolvedAt.Before(*timeline[j].ResolvedAt)
		}
		return timeline[i].ID < timeline[j].ID
	})

	g, err := e.builder.Build(ctx, markets)
	if err != nil {
		return domain.BacktestResult{}, fmt.Errorf("backtest: build graph: %w", err)
	}

	engine := signalengine.NewEngine(g, domain.NewEmittedSet(), nil, nil, e.logger)
	var simNow time.Time
	engine.SetClock(func() time.Time { return simNow })
	seq := 0
	engine.SetIDFunc(func() string {
		seq++
		return fmt.Sprintf("bt-%06d", seq)
	})

	state := domain.NewResolutionState()
	var scored []domain.ScoredSignal

	for _, leader := range timeline {
		if err := ctx.Err(); err != nil {
			return domain.BacktestResult{}, err
		}
		simNow = leader.ResolvedAt.UTC()
		state.Known[leader.ID] = leader.Resolution

		signals, err := engine.Emit(ctx, []domain.Market{leader}, state)
		if err != nil {
			return domain.BacktestResult{}, err
		}
		for _, sig := range signals {
			followerRes := eventual[sig.FollowerID]
			scored = append(scored, domain.ScoredSignal{
				Signal:             sig,
				FollowerResolution: followerRes,
				Hit:                followerRes == sig.LeaderResolution,
			})
		}
	}

	result := e.score(scored)
	e.logger.InfoContext(ctx, "backtest complete",
		slog.Int("markets", len(timeline)),
		slog.Int("signals", result.TotalSignals),
		slog.Float64("hit_rate", result.HitRate),
	)
	return result, nil
}

// score aggregates the replay into the result, including hit rates per
// similarity bucket (0.1-wide from the similarity floor up to 1.0).
func (e *Engine) score(scored []domain.ScoredSignal) domain.BacktestResult {
	result := domain.BacktestResult{
		TotalSignals: len(scored),
		Signals:      scored,
		Seed:         e.cfg.Seed,
	}
	for _, s := range scored {
		if s.Hit {
			result.Hits++
		}
	}
	if result.TotalSignals > 0 {
		result.HitRate = float64(result.Hits) / float64(result.TotalSignals)
	}

	// Integer bucket bounds avoid float accumulation drift across the loop.
	for tenth := int(math.Floor(e.cfg.Graph.MinSimilarity * 10)); tenth < 10; tenth++ {
		low := float64(tenth) / 10
		high := float64(tenth+1) / 10
		b := domain.SimilarityBucket{Low: low, High: high}
		for _, s := range scored {
			sim := s.Signal.EdgeSimilarity
			in := sim >= low && (sim < high || (high >= 1.0 && sim <= 1.0))
			if !in {
				continue
			}
			b.Count++
			if s.Hit {
				b.Hits++
			}
		}
		if b.Count > 0 {
			b.HitRate = float64(b.Hits) / float64(b.Count)
		}
		result.Buckets = append(result.Buckets, b)
	}
	return result
}
