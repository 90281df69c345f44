package backtest

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/topiclab/topicbot/internal/domain"
	"github.com/topiclab/topicbot/internal/embedding"
	"github.com/topiclab/topicbot/internal/graph"
	"github.com/topiclab/topicbot/internal/vectorindex"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func tp(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func market(id string, end, resolvedAt *time.Time, res domain.Resolution) domain.Market {
	return domain.Market{ID: id, EndDate: end, ResolvedAt: resolvedAt, Resolution: res}
}

func testEngine(t *testing.T, vectors map[string][]float64) *Engine {
	t.Helper()
	emb := embedding.NewStore()
	for id, v := range vectors {
		_, err := emb.Put(id, v, "m", "1", 42)
		require.NoError(t, err)
	}
	gcfg := graph.Config{
		MinSimilarity: 0.3,
		MaxDaysApart:  90,
		TopK:          10,
		Index:         vectorindex.Options{Backend: vectorindex.BackendFlat, Seed: 42},
	}
	builder := graph.NewBuilder(emb, gcfg, testLogger())
	return NewEngine(builder, Config{Seed: 42, Graph: gcfg}, testLogger())
}

// history: a leads b (earlier end date, similarity 0.5) and resolves first, so
// the replay emits exactly one signal for the pair.
func history() []domain.Market {
	return []domain.Market{
		market("a", tp("2024-01-01T00:00:00Z"), tp("2024-01-02T00:00:00Z"), domain.ResolutionYes),
		market("b", tp("2024-01-10T00:00:00Z"), tp("2024-01-20T00:00:00Z"), domain.ResolutionYes),
	}
}

func historyVectors() map[string][]float64 {
	return map[string][]float64{
		"a": {1, 0},
		"b": {0.5, 0.8660254037844386},
	}
}

func TestRunEmitsAndScores(t *testing.T) {
	e := testEngine(t, historyVectors())

	result, err := e.Run(context.Background(), history())
	require.NoError(t, err)

	require.Equal(t, 1, result.TotalSignals)
	assert.Equal(t, 1, result.Hits)
	assert.InDelta(t, 1.0, result.HitRate, 1e-12)
	assert.EqualValues(t, 42, result.Seed)

	sig := result.Signals[0]
	assert.Equal(t, "a", sig.Signal.LeaderID)
	assert.Equal(t, "b", sig.Signal.FollowerID)
	assert.True(t, sig.Hit)
	assert.Equal(t, domain.ResolutionYes, sig.FollowerResolution)
	// Signal ids and timestamps come from the replay, not the wall clock.
	assert.Equal(t, "bt-000001", sig.Signal.ID)
	assert.Equal(t, tp("2024-01-02T00:00:00Z").UTC(), sig.Signal.EmittedAt)
}

func TestRunScoresMisses(t *testing.T) {
	markets := history()
	markets[1].Resolution = domain.ResolutionNo

	e := testEngine(t, historyVectors())
	result, err := e.Run(context.Background(), markets)
	require.NoError(t, err)

	require.Equal(t, 1, result.TotalSignals)
	assert.Zero(t, result.Hits)
	assert.Zero(t, result.HitRate)
	assert.False(t, result.Signals[0].Hit)
}

func TestRunNoFutureLeak(t *testing.T) {
	// b resolves before a despite the later end date. When a finally resolves,
	// b is already resolved, so no signal fires for the pair.
	markets := []domain.Market{
		market("a", tp("2024-01-01T00:00:00Z"), tp("2024-01-25T00:00:00Z"), domain.ResolutionYes),
		market("b", tp("2024-01-10T00:00:00Z"), tp("2024-01-05T00:00:00Z"), domain.ResolutionYes),
	}

	e := testEngine(t, historyVectors())
	result, err := e.Run(context.Background(), markets)
	require.NoError(t, err)
	assert.Zero(t, result.TotalSignals)
}

func TestRunReproducible(t *testing.T) {
	vectors := map[string][]float64{
		"a": {1, 0},
		"b": {0.6, 0.8},
		"c": {0.8, 0.6},
		"d": {0, 1},
	}
	markets := []domain.Market{
		market("a", tp("2024-01-01T00:00:00Z"), tp("2024-01-02T00:00:00Z"), domain.ResolutionYes),
		market("b", tp("2024-01-05T00:00:00Z"), tp("2024-01-06T00:00:00Z"), domain.ResolutionNo),
		market("c", tp("2024-01-09T00:00:00Z"), tp("2024-01-12T00:00:00Z"), domain.ResolutionYes),
		market("d", tp("2024-01-15T00:00:00Z"), tp("2024-01-20T00:00:00Z"), domain.ResolutionNo),
	}

	first, err := testEngine(t, vectors).Run(context.Background(), markets)
	require.NoError(t, err)
	second, err := testEngine(t, vectors).Run(context.Background(), markets)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRunBuckets(t *testing.T) {
	e := testEngine(t, historyVectors())
	result, err := e.Run(context.Background(), history())
	require.NoError(t, err)

	// Buckets run from the similarity floor (0.3) up to 1.0 in 0.1 steps.
	require.Len(t, result.Buckets, 7)
	assert.InDelta(t, 0.3, result.Buckets[0].Low, 1e-12)
	assert.InDelta(t, 1.0, result.Buckets[len(result.Buckets)-1].High, 1e-12)

	// The single signal (similarity 0.5) lands in [0.5, 0.6).
	b := result.Buckets[2]
	assert.InDelta(t, 0.5, b.Low, 1e-12)
	assert.Equal(t, 1, b.Count)
	assert.Equal(t, 1, b.Hits)
	assert.InDelta(t, 1.0, b.HitRate, 1e-12)

	for _, other := range []int{0, 1, 3, 4, 5, 6} {
		assert.Zero(t, result.Buckets[other].Count)
	}
}

func TestRunIgnoresUnresolvedMarkets(t *testing.T) {
	markets := append(history(),
		domain.Market{ID: "open", EndDate: tp("2024-01-03T00:00:00Z"), Resolution: domain.ResolutionUnresolved},
	)

	vectors := historyVectors()
	vectors["open"] = []float64{0.7, 0.7}

	e := testEngine(t, vectors)
	result, err := e.Run(context.Background(), markets)
	require.NoError(t, err)

	// The open market never appears as a leader in the replay.
	for _, s := range result.Signals {
		assert.NotEqual(t, "open", s.Signal.LeaderID)
	}
}
