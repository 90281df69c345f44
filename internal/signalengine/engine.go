// Package signalengine emits deduplicated trading signals from the event
// graph as leader markets resolve.
package signalengine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/topiclab/topicbot/internal/domain"
)

// signalChannel is the bus channel and stream emitted signals are published on.
const signalChannel = "signals"

// Engine turns newly resolved leaders into signals for unrepriced followers.
// Each (leader, follower) pair is a two-state machine, and the signal-emitted
// state is terminal: the emitted set guarantees
// at most one signal per dedup key across restarts.
type Engine struct {
	graph   *domain.EventGraph
	emitted *domain.EmittedSet
	store   domain.SignalStore // may be nil (backtest replay)
	bus     domain.SignalBus   // may be nil
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string
}

// NewEngine creates an Engine over a built graph and a restored emitted set.
func NewEngine(graph *domain.EventGraph, emitted *domain.EmittedSet, store domain.SignalStore, bus domain.SignalBus, logger *slog.Logger) *Engine {
	if emitted == nil {
		emitted = domain.NewEmittedSet()
	}
	return &Engine{
		graph:   graph,
		emitted: emitted,
		store:   store,
		bus:     bus,
		logger:  logger.With(slog.String("component", "signal_engine")),
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
	}
}

// SetClock overrides the timestamp source. The backtest replay pins this to
// the simulated time so results are reproducible.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// SetIDFunc overrides signal id generation. The backtest replay uses a
// counter instead of random UUIDs so results are byte-identical across runs.
func (e *Engine) SetIDFunc(fn func() string) { e.newID = fn }

// Emit processes newly resolved leaders in the given order. For every edge
// where the leader is in the leader role and the follower is still unresolved
// per state, a signal is emitted unless its dedup key has already fired.
// Each signal is persisted synchronously with emission; a persistence failure
// aborts the call with the in-memory set reflecting only what was stored, so
// a retry is safe. A follower that resolves before its designated leader
// produces no signal for that pair in that direction.
func (e *Engine) Emit(ctx context.Context, leaders []domain.Market, state *domain.ResolutionState) ([]domain.Signal, error) {
	var signals []domain.Signal

	for _, leader := range leaders {
		for _, edge := range e.graph.Leading(leader.ID) {
			if state.ResolvedBefore(edge.FollowerID) {
				continue
			}
			sig := domain.Signal{
				ID:               e.newID(),
				LeaderID:         edge.LeaderID,
				FollowerID:       edge.FollowerID,
				EdgeSimilarity:   edge.Similarity,
				LeaderResolution: leader.Resolution,
				EmittedAt:        e.now().UTC(),
			}
			if e.emitted.Contains(sig.DedupKey()) {
				continue
			}

			if e.store != nil {
				if err := e.store.Append(ctx, sig); err != nil {
					return signals, fmt.Errorf("signalengine: persist signal %s: %w", sig.DedupKey(), err)
				}
			}
			e.emitted.Mark(sig.DedupKey())
			signals = append(signals, sig)
			e.publish(ctx, sig)

			e.logger.InfoContext(ctx, "signal emitted",
				slog.String("leader", sig.LeaderID),
				slog.String("follower", sig.FollowerID),
				slog.Float64("similarity", sig.EdgeSimilarity),
				slog.String("outcome", string(sig.LeaderResolution)),
			)
		}
	}
	return signals, nil
}

// publish pushes the signal onto the bus, both as a pub/sub message and as a
// durable stream entry. Bus failures are logged, not fatal: the signal is
// already persisted and downstream consumers dedup on key.
func (e *Engine) publish(ctx context.Context, sig domain.Signal) {
	if e.bus == nil {
		return
	}
	payload, err := json.Marshal(sig)
	if err != nil {
		e.logger.ErrorContext(ctx, "marshal signal", slog.String("error", err.Error()))
		return
	}
	if err := e.bus.Publish(ctx, signalChannel, payload); err != nil {
		e.logger.WarnContext(ctx, "publish signal", slog.String("error", err.Error()))
	}
	if err := e.bus.StreamAppend(ctx, signalChannel, payload); err != nil {
		e.logger.WarnContext(ctx, "stream signal", slog.String("error", err.Error()))
	}
}

// Emitted returns the engine's emitted set. Callers must not mutate it.
func (e *Engine) Emitted() *domain.EmittedSet { return e.emitted }
