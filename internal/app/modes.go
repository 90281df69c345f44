package app

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/topiclab/topicbot/internal/backtest"
	"github.com/topiclab/topicbot/internal/domain"
	"github.com/topiclab/topicbot/internal/embedding"
	"github.com/topiclab/topicbot/internal/feed"
	"github.com/topiclab/topicbot/internal/graph"
	"github.com/topiclab/topicbot/internal/ingest"
	"github.com/topiclab/topicbot/internal/signalengine"
	"github.com/topiclab/topicbot/internal/vectorindex"
)

// IngestMode runs a single ingestion pass: fetch the market universe, persist
// it, embed any markets without an embedding, and capture a price snapshot.
func (a *App) IngestMode(ctx context.Context, deps *Dependencies) error {
	fetcher := a.newFetcher(deps)

	markets, err := fetcher.FetchMarkets(ctx)
	if err != nil {
		return fmt.Errorf("app: ingest fetch: %w", err)
	}
	closed, err := fetcher.FetchClosedMarkets(ctx, 0)
	if err != nil {
		return fmt.Errorf("app: ingest fetch closed: %w", err)
	}

	// Closed markets last so their resolution wins on overlap.
	all := dedupeMarkets(append(markets, closed...))

	if err := deps.MarketStore.UpsertBatch(ctx, all); err != nil {
		return fmt.Errorf("app: ingest upsert: %w", err)
	}
	for _, m := range all {
		if err := deps.MarketCache.Set(ctx, m); err != nil {
			a.logger.WarnContext(ctx, "cache market failed",
				slog.String("market", m.ID), slog.String("error", err.Error()))
			break
		}
	}

	mem := embedding.NewStore()
	if err := restoreEmbeddings(ctx, deps, mem); err != nil {
		return err
	}
	ingester := ingest.NewEmbeddingIngester(
		deps.Embedder, mem, deps.EmbeddingStore,
		a.cfg.Embedder.ModelName, a.cfg.Embedder.ModelVersion, a.cfg.Graph.Seed,
		a.logger,
	)
	added, err := ingester.EnsureEmbeddings(ctx, all)
	if err != nil {
		return fmt.Errorf("app: ingest embeddings: %w", err)
	}

	snapshots := ingest.NewSnapshotIngester(deps.SnapshotStore, a.logger)
	if _, err := snapshots.Capture(ctx, markets); err != nil {
		return fmt.Errorf("app: ingest snapshots: %w", err)
	}

	a.logger.InfoContext(ctx, "ingestion complete",
		slog.Int("markets", len(all)),
		slog.Int("new_embeddings", added),
	)
	return nil
}

// BuildMode rebuilds the event graph from persisted markets and embeddings and
// replaces the stored graph.
func (a *App) BuildMode(ctx context.Context, deps *Dependencies) error {
	markets, err := deps.MarketStore.List(ctx, domain.ListOpts{})
	if err != nil {
		return fmt.Errorf("app: build list markets: %w", err)
	}

	mem := embedding.NewStore()
	if err := restoreEmbeddings(ctx, deps, mem); err != nil {
		return err
	}

	builder := graph.NewBuilder(mem, a.graphConfig(), a.logger)
	g, err := builder.Build(ctx, markets)
	if err != nil {
		return fmt.Errorf("app: build graph: %w", err)
	}

	if err := deps.GraphStore.Save(ctx, g); err != nil {
		return fmt.Errorf("app: save graph: %w", err)
	}
	if deps.Archiver != nil {
		if err := deps.Archiver.ArchiveGraph(ctx, g); err != nil {
			a.logger.WarnContext(ctx, "archive graph failed", slog.String("error", err.Error()))
		}
	}
	return nil
}

// MonitorMode runs the live pipeline: the polling monitor, a periodic snapshot
// loop, and a WebSocket feed that triggers an immediate check when a market
// closes. Everything stops together when the context is cancelled.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	g, err := deps.GraphStore.Load(ctx)
	if err != nil {
		return fmt.Errorf("app: load graph: %w", err)
	}
	if g.EdgeCount() == 0 {
		a.logger.WarnContext(ctx, "graph is empty, run build first")
	}

	keys, err := deps.SignalStore.ListKeys(ctx)
	if err != nil {
		return fmt.Errorf("app: load emitted keys: %w", err)
	}
	state, err := deps.ResolutionStore.Load(ctx)
	if err != nil {
		return fmt.Errorf("app: load resolution state: %w", err)
	}

	fetcher := a.newFetcher(deps)
	tracker := ingest.NewTracker(state, deps.ResolutionStore, a.logger)
	engine := signalengine.NewEngine(g, domain.NewEmittedSetFrom(keys), deps.SignalStore, deps.SignalBus, a.logger)
	monitor := signalengine.NewMonitor(fetcher, tracker, engine, deps.Notifier, a.cfg.Monitor.PollInterval.Duration, a.logger)
	snapshots := ingest.NewSnapshotIngester(deps.SnapshotStore, a.logger)

	checkCh := make(chan struct{}, 1)
	wsFeed := feed.NewMarketWSFeed(a.cfg.Polymarket.WsHost, graphNodeIDs(g), func(ctx context.Context, ev feed.MarketEvent) {
		if !ev.Closed {
			return
		}
		select {
		case checkCh <- struct{}{}:
		default: // a check is already pending
		}
	}, a.logger)
	defer wsFeed.Close()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error { return monitor.Run(groupCtx) })

	group.Go(func() error {
		interval := a.cfg.Monitor.SnapshotInterval.Duration
		if interval <= 0 {
			interval = 5 * time.Minute
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-groupCtx.Done():
				return groupCtx.Err()
			case <-ticker.C:
				markets, err := fetcher.FetchMarkets(groupCtx)
				if err != nil {
					a.logger.WarnContext(groupCtx, "snapshot fetch failed", slog.String("error", err.Error()))
					continue
				}
				if _, err := snapshots.Capture(groupCtx, markets); err != nil {
					a.logger.WarnContext(groupCtx, "snapshot capture failed", slog.String("error", err.Error()))
				}
			}
		}
	})

	if a.cfg.Polymarket.WsHost != "" {
		group.Go(func() error { return wsFeed.Run(groupCtx) })
		group.Go(func() error {
			for {
				select {
				case <-groupCtx.Done():
					return groupCtx.Err()
				case <-checkCh:
					if _, err := monitor.Check(groupCtx); err != nil {
						a.logger.WarnContext(groupCtx, "triggered check failed", slog.String("error", err.Error()))
					}
				}
			}
		})
	}

	return group.Wait()
}

// BacktestMode replays resolved history through the signal pipeline and
// persists the scored result.
func (a *App) BacktestMode(ctx context.Context, deps *Dependencies) error {
	markets, err := deps.MarketStore.ListResolved(ctx, domain.ListOpts{Limit: a.cfg.Backtest.MaxMarkets})
	if err != nil {
		return fmt.Errorf("app: backtest list markets: %w", err)
	}

	mem := embedding.NewStore()
	if err := restoreEmbeddings(ctx, deps, mem); err != nil {
		return err
	}

	builder := graph.NewBuilder(mem, a.graphConfig(), a.logger)
	engine := backtest.NewEngine(builder, backtest.Config{
		Seed:  a.cfg.Graph.Seed,
		Graph: a.graphConfig(),
	}, a.logger)

	result, err := engine.Run(ctx, markets)
	if err != nil {
		return fmt.Errorf("app: backtest run: %w", err)
	}

	if a.cfg.Backtest.SaveResults {
		if err := deps.BacktestStore.Insert(ctx, result); err != nil {
			return fmt.Errorf("app: save backtest result: %w", err)
		}
	}
	if a.cfg.Backtest.Archive && deps.Archiver != nil {
		if err := deps.Archiver.ArchiveBacktest(ctx, result, time.Now()); err != nil {
			a.logger.WarnContext(ctx, "archive backtest failed", slog.String("error", err.Error()))
		}
	}
	return nil
}

// FullMode ingests, rebuilds the graph, and then monitors.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	if err := a.IngestMode(ctx, deps); err != nil {
		return err
	}
	if err := a.BuildMode(ctx, deps); err != nil {
		return err
	}
	return a.MonitorMode(ctx, deps)
}

func (a *App) newFetcher(deps *Dependencies) *ingest.MarketFetcher {
	return ingest.NewMarketFetcher(
		deps.Gamma,
		a.cfg.Polymarket.MarketsPerPage,
		a.cfg.Polymarket.MaxPages,
		a.cfg.Polymarket.MinLiquidity,
		a.logger,
	)
}

func (a *App) graphConfig() graph.Config {
	return graph.Config{
		MinSimilarity: a.cfg.Graph.MinSimilarity,
		MaxDaysApart:  a.cfg.Graph.MaxDaysApart,
		TopK:          a.cfg.Graph.TopK,
		Index: vectorindex.Options{
			Backend:    vectorindex.Backend(a.cfg.Graph.IndexBackend),
			Partitions: a.cfg.Graph.Partitions,
			Probes:     a.cfg.Graph.Probes,
			Seed:       a.cfg.Graph.Seed,
		},
	}
}

// restoreEmbeddings loads all persisted embeddings into the in-memory store.
func restoreEmbeddings(ctx context.Context, deps *Dependencies, mem *embedding.Store) error {
	records, err := deps.EmbeddingStore.List(ctx)
	if err != nil {
		return fmt.Errorf("app: load embeddings: %w", err)
	}
	if err := mem.Restore(records); err != nil {
		return fmt.Errorf("app: restore embeddings: %w", err)
	}
	return nil
}

// dedupeMarkets keeps the last occurrence per id, preserving first-seen order.
func dedupeMarkets(markets []domain.Market) []domain.Market {
	byID := make(map[string]domain.Market, len(markets))
	order := make([]string, 0, len(markets))
	for _, m := range markets {
		if _, seen := byID[m.ID]; !seen {
			order = append(order, m.ID)
		}
		byID[m.ID] = m
	}
	out := make([]domain.Market, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	return out
}

// graphNodeIDs returns the sorted ids of every market in the graph, used to
// subscribe the WebSocket feed.
func graphNodeIDs(g *domain.EventGraph) []string {
	set := make(map[string]struct{})
	for _, e := range g.Edges() {
		set[e.LeaderID] = struct{}{}
		set[e.FollowerID] = struct{}{}
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
