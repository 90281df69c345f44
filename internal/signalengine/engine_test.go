package signalengine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/topiclab/topicbot/internal/domain"
)

type fakeSignalStore struct {
	appended  []domain.Signal
	appendErr error
}

func (f *fakeSignalStore) Append(_ context.Context, sig domain.Signal) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appended = append(f.appended, sig)
	return nil
}

func (f *fakeSignalStore) ListKeys(context.Context) ([]string, error) {
	keys := make([]string, 0, len(f.appended))
	for _, s := range f.appended {
		keys = append(keys, s.DedupKey())
	}
	return keys, nil
}

func (f *fakeSignalStore) ListRecent(context.Context, int) ([]domain.Signal, error) {
	return f.appended, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testGraph() *domain.EventGraph {
	g := domain.NewEventGraph()
	g.AddEdge(domain.Edge{LeaderID: "L", FollowerID: "F1", Similarity: 0.9, DaysApart: 3})
	g.AddEdge(domain.Edge{LeaderID: "L", FollowerID: "F2", Similarity: 0.5, DaysApart: 10})
	g.AddEdge(domain.Edge{LeaderID: "X", FollowerID: "L", Similarity: 0.4, DaysApart: 1})
	return g
}

func leader(id string, res domain.Resolution) domain.Market {
	at := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	return domain.Market{ID: id, Resolution: res, ResolvedAt: &at}
}

func TestEmitSignalsForUnresolvedFollowers(t *testing.T) {
	store := &fakeSignalStore{}
	e := NewEngine(testGraph(), nil, store, nil, testLogger())

	state := domain.NewResolutionState()
	state.Known["L"] = domain.ResolutionYes

	signals, err := e.Emit(context.Background(), []domain.Market{leader("L", domain.ResolutionYes)}, state)
	require.NoError(t, err)
	require.Len(t, signals, 2)

	// Followers are visited in id order.
	assert.Equal(t, "F1", signals[0].FollowerID)
	assert.Equal(t, "F2", signals[1].FollowerID)
	assert.Equal(t, domain.ResolutionYes, signals[0].LeaderResolution)
	assert.InDelta(t, 0.9, signals[0].EdgeSimilarity, 1e-12)
	assert.Len(t, store.appended, 2)
}

func TestEmitSkipsResolvedFollowers(t *testing.T) {
	e := NewEngine(testGraph(), nil, &fakeSignalStore{}, nil, testLogger())

	state := domain.NewResolutionState()
	state.Known["L"] = domain.ResolutionYes
	state.Known["F1"] = domain.ResolutionNo

	signals, err := e.Emit(context.Background(), []domain.Market{leader("L", domain.ResolutionYes)}, state)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, "F2", signals[0].FollowerID)
}

func TestEmitAtMostOncePerPair(t *testing.T) {
	store := &fakeSignalStore{}
	e := NewEngine(testGraph(), nil, store, nil, testLogger())

	state := domain.NewResolutionState()
	state.Known["L"] = domain.ResolutionYes

	first, err := e.Emit(context.Background(), []domain.Market{leader("L", domain.ResolutionYes)}, state)
	require.NoError(t, err)
	require.Len(t, first, 2)

	// The same leader resolving again (or a replayed poll) emits nothing.
	second, err := e.Emit(context.Background(), []domain.Market{leader("L", domain.ResolutionYes)}, state)
	require.NoError(t, err)
	assert.Empty(t, second)
	assert.Len(t, store.appended, 2)
}

func TestEmitRestoredSetSurvivesRestart(t *testing.T) {
	emitted := domain.NewEmittedSetFrom([]string{"L::F1"})
	e := NewEngine(testGraph(), emitted, &fakeSignalStore{}, nil, testLogger())

	state := domain.NewResolutionState()
	state.Known["L"] = domain.ResolutionYes

	signals, err := e.Emit(context.Background(), []domain.Market{leader("L", domain.ResolutionYes)}, state)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, "F2", signals[0].FollowerID)
}

func TestEmitFollowerFirstProducesNothing(t *testing.T) {
	// F1 resolves before L: F1 leads no edges, so nothing is emitted, and the
	// pair stays available for when L eventually resolves.
	e := NewEngine(testGraph(), nil, &fakeSignalStore{}, nil, testLogger())

	state := domain.NewResolutionState()
	state.Known["F1"] = domain.ResolutionYes

	signals, err := e.Emit(context.Background(), []domain.Market{leader("F1", domain.ResolutionYes)}, state)
	require.NoError(t, err)
	assert.Empty(t, signals)
}

func TestEmitPersistFailureIsRetrySafe(t *testing.T) {
	store := &fakeSignalStore{appendErr: errors.New("connection lost")}
	e := NewEngine(testGraph(), nil, store, nil, testLogger())

	state := domain.NewResolutionState()
	state.Known["L"] = domain.ResolutionYes

	signals, err := e.Emit(context.Background(), []domain.Market{leader("L", domain.ResolutionYes)}, state)
	require.Error(t, err)
	assert.Empty(t, signals)
	assert.Zero(t, e.Emitted().Len())

	// After the store recovers the full emission goes through once.
	store.appendErr = nil
	signals, err = e.Emit(context.Background(), []domain.Market{leader("L", domain.ResolutionYes)}, state)
	require.NoError(t, err)
	assert.Len(t, signals, 2)
}
