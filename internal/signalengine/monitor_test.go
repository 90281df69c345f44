package signalengine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/topiclab/topicbot/internal/domain"
	"github.com/topiclab/topicbot/internal/embedding"
	"github.com/topiclab/topicbot/internal/graph"
	"github.com/topiclab/topicbot/internal/ingest"
	"github.com/topiclab/topicbot/internal/vectorindex"
)

type fakeSource struct {
	markets []domain.Market
}

func (f *fakeSource) FetchMarkets(context.Context) ([]domain.Market, error) {
	return f.markets, nil
}

// TestMonitorEndToEnd walks the whole pipeline: two related markets, the
// earlier one resolves, exactly one signal fires, and a repeat poll with no
// new resolutions emits nothing.
func TestMonitorEndToEnd(t *testing.T) {
	logger := testLogger()

	emb := embedding.NewStore()
	_, err := emb.Put("A", []float64{1, 0}, "m", "1", 42)
	require.NoError(t, err)
	// Similarity to A is exactly 0.42.
	_, err = emb.Put("B", []float64{0.42, 0.9075241044}, "m", "1", 42)
	require.NoError(t, err)

	endA := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	endB := endA.AddDate(0, 0, 10)
	resolvedAt := endA.Add(12 * time.Hour)

	universe := []domain.Market{
		{ID: "A", EndDate: &endA, Resolution: domain.ResolutionYes, ResolvedAt: &resolvedAt},
		{ID: "B", EndDate: &endB, Resolution: domain.ResolutionUnresolved},
	}

	builder := graph.NewBuilder(emb, graph.Config{
		MinSimilarity: 0.3,
		MaxDaysApart:  90,
		TopK:          10,
		Index:         vectorindex.Options{Backend: vectorindex.BackendFlat},
	}, logger)
	g, err := builder.Build(context.Background(), universe)
	require.NoError(t, err)

	edges := g.Edges()
	require.Len(t, edges, 1)
	assert.Equal(t, "A", edges[0].LeaderID)
	assert.Equal(t, "B", edges[0].FollowerID)
	assert.InDelta(t, 0.42, edges[0].Similarity, 1e-6)

	source := &fakeSource{markets: universe}
	tracker := ingest.NewTracker(nil, nil, logger)
	engine := NewEngine(g, nil, &fakeSignalStore{}, nil, logger)
	monitor := NewMonitor(source, tracker, engine, nil, time.Minute, logger)

	signals, err := monitor.Check(context.Background())
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, "A::B", signals[0].DedupKey())
	assert.Equal(t, domain.ResolutionYes, signals[0].LeaderResolution)

	// Nothing new resolved: the second cycle is silent.
	signals, err = monitor.Check(context.Background())
	require.NoError(t, err)
	assert.Empty(t, signals)
}
