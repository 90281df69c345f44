// Package graph builds the event similarity graph: resolved markets become
// nodes, and pairs passing the similarity and date-window filters become
// edges oriented leader → follower by end date.
package graph

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/topiclab/topicbot/internal/domain"
	"github.com/topiclab/topicbot/internal/embedding"
	"github.com/topiclab/topicbot/internal/vectorindex"
)

// Config holds the edge filters and neighbor search parameters.
type Config struct {
	MinSimilarity float64 // edges below this are never materialized
	MaxDaysApart  int     // edges farther apart than this are never materialized
	TopK          int     // initial neighbor count per market, widened as needed
	Index         vectorindex.Options
}

// Builder constructs EventGraphs from market sets. Build is deterministic
// given the same market set and embedding store contents; the full graph is
// recomputed from scratch on every invocation.
type Builder struct {
	embeddings *embedding.Store
	cfg        Config
	logger     *slog.Logger
	now        func() time.Time
}

// NewBuilder creates a Builder over the given embedding store.
func NewBuilder(embeddings *embedding.Store, cfg Config, logger *slog.Logger) *Builder {
	if cfg.TopK <= 0 {
		cfg.TopK = 50
	}
	return &Builder{
		embeddings: embeddings,
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "graph_builder")),
		now:        time.Now,
	}
}

// Build constructs the similarity graph for the given markets. Only resolved
// markets with a non-degenerate embedding become query points; candidates are
// filtered on self-match, end-date presence, date window, and similarity
// threshold. The context is checked between market iterations so a build can
// be aborted without corrupting anything (nothing is persisted here).
func (b *Builder) Build(ctx context.Context, markets []domain.Market) (*domain.EventGraph, error) {
	byID := make(map[string]domain.Market, len(markets))
	for _, m := range markets {
		byID[m.ID] = m
	}

	idx := vectorindex.New(b.embeddings.Records(), b.cfg.Index)

	// Iterate markets in id order so edge materialization order is fixed.
	ordered := append([]domain.Market(nil), markets...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	g := domain.NewEventGraph()
	g.BuiltAt = b.now().UTC()

	for _, m := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !m.Resolved() || m.EndDate == nil {
			continue
		}
		rec, err := b.embeddings.Get(m.ID)
		if err != nil || rec.Degenerate {
			continue
		}

		for _, cand := range b.neighbors(idx, rec) {
			n, ok := byID[cand.MarketID]
			if !ok || n.ID == m.ID {
				continue
			}
			if n.EndDate == nil {
				continue
			}
			days := daysApart(*m.EndDate, *n.EndDate)
			if days > b.cfg.MaxDaysApart {
				continue
			}
			if cand.Similarity < b.cfg.MinSimilarity {
				continue
			}
			g.AddEdge(orient(m, n, cand.Similarity, days))
		}
	}

	stats := g.Stats()
	b.logger.InfoContext(ctx, "graph built",
		slog.Int("markets", len(markets)),
		slog.Int("edges", stats.TotalEdges),
		slog.Int("leaders", stats.UniqueLeaders),
		slog.Float64("avg_similarity", stats.AvgSimilarity),
	)
	return g, nil
}

// neighbors queries the index for rec's top-K neighbors, widening K until the
// similarity filter, not top-k truncation, is the limiting factor: widening
// stops once the tail of the result list falls below the similarity threshold
// or the whole corpus has been returned.
func (b *Builder) neighbors(idx vectorindex.Index, rec domain.EmbeddingRecord) []vectorindex.Result {
	k := b.cfg.TopK
	for {
		results := idx.Query(rec.Vector, k, rec.MarketID)
		if len(results) < k {
			return results // entire corpus returned
		}
		if results[len(results)-1].Similarity < b.cfg.MinSimilarity {
			return results // everything past the tail fails the filter anyway
		}
		k *= 2
	}
}

// orient fixes the edge orientation at build time: earlier end date is the
// leader, ties broken by smaller id. Orientation derives from end dates, not
// from actual resolution order; the signal engine reacts to whichever side
// resolves first in practice.
func orient(a, bm domain.Market, similarity float64, days int) domain.Edge {
	leader, follower := a, bm
	switch {
	case bm.EndDate.Before(*a.EndDate):
		leader, follower = bm, a
	case a.EndDate.Equal(*bm.EndDate) && bm.ID < a.ID:
		leader, follower = bm, a
	}
	return domain.Edge{
		LeaderID:   leader.ID,
		FollowerID: follower.ID,
		Similarity: similarity,
		DaysApart:  days,
	}
}

// daysApart is the absolute whole-day difference between two end dates.
func daysApart(a, b time.Time) int {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return int(d.Hours() / 24)
}
