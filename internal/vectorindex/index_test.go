package vectorindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/topiclab/topicbot/internal/domain"
)

func rec(id string, vec ...float64) domain.EmbeddingRecord {
	return domain.EmbeddingRecord{MarketID: id, Vector: vec}
}

// testCorpus is a small set of unit vectors in 2D, spread so similarities
// against the query [1, 0] are distinct except for an exact tie pair.
func testCorpus() []domain.EmbeddingRecord {
	return []domain.EmbeddingRecord{
		rec("m1", 1, 0),
		rec("m2", 0.8, 0.6),
		rec("m3", 0.6, 0.8),
		rec("m4", 0, 1),
		rec("m5", -1, 0),
		// m6 ties with m2 on similarity; id order must break the tie.
		rec("m6", 0.8, -0.6),
	}
}

func TestFlatQueryOrdering(t *testing.T) {
	idx := New(testCorpus(), Options{Backend: BackendFlat})
	require.Equal(t, 6, idx.Len())

	results := idx.Query([]float64{1, 0}, 4, "")
	require.Len(t, results, 4)
	assert.Equal(t, "m1", results[0].MarketID)
	// m2 and m6 have identical similarity 0.8; m2 wins on id.
	assert.Equal(t, "m2", results[1].MarketID)
	assert.Equal(t, "m6", results[2].MarketID)
	assert.Equal(t, "m3", results[3].MarketID)

	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Similarity, results[i].Similarity)
	}
}

func TestQueryExcludesSelf(t *testing.T) {
	idx := New(testCorpus(), Options{Backend: BackendFlat})
	results := idx.Query([]float64{1, 0}, 10, "m1")
	for _, r := range results {
		assert.NotEqual(t, "m1", r.MarketID)
	}
	assert.Len(t, results, 5)
}

func TestQueryExcludesDegenerate(t *testing.T) {
	corpus := append(testCorpus(), domain.EmbeddingRecord{
		MarketID:   "zz",
		Vector:     []float64{0, 0},
		Degenerate: true,
	})
	idx := New(corpus, Options{Backend: BackendFlat})
	assert.Equal(t, 6, idx.Len())

	results := idx.Query([]float64{1, 0}, 10, "")
	for _, r := range results {
		assert.NotEqual(t, "zz", r.MarketID)
	}
}

func TestQueryEmptyAndZeroK(t *testing.T) {
	idx := New(nil, Options{Backend: BackendFlat})
	assert.Empty(t, idx.Query([]float64{1, 0}, 5, ""))

	idx = New(testCorpus(), Options{Backend: BackendFlat})
	assert.Empty(t, idx.Query([]float64{1, 0}, 0, ""))
}

func TestBackendsAgree(t *testing.T) {
	corpus := testCorpus()
	flat := New(corpus, Options{Backend: BackendFlat})
	// Probes covering every partition make the candidate set exhaustive, so
	// both backends must return identical results.
	part := New(corpus, Options{
		Backend:    BackendPartitioned,
		Partitions: 2,
		Probes:     2,
		Seed:       42,
	})
	require.Equal(t, flat.Len(), part.Len())

	queries := [][]float64{
		{1, 0},
		{0, 1},
		{0.6, 0.8},
		{-1, 0},
	}
	for _, q := range queries {
		for _, k := range []int{1, 3, 6, 10} {
			assert.Equal(t, flat.Query(q, k, ""), part.Query(q, k, ""))
		}
	}
}

func TestPartitionedDeterministic(t *testing.T) {
	corpus := testCorpus()
	opts := Options{Backend: BackendPartitioned, Partitions: 3, Probes: 3, Seed: 42}

	a := New(corpus, opts)
	b := New(corpus, opts)
	q := []float64{0.7, 0.7}
	assert.Equal(t, a.Query(q, 6, ""), b.Query(q, 6, ""))
}
