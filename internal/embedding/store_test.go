package embedding

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/topiclab/topicbot/internal/domain"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name           string
		raw            []float64
		want           []float64
		wantDegenerate bool
	}{
		{
			name: "already unit vector",
			raw:  []float64{1, 0, 0},
			want: []float64{1, 0, 0},
		},
		{
			name: "normalizes to unit norm",
			raw:  []float64{3, 4},
			want: []float64{0.6, 0.8},
		},
		{
			name: "non-finite components become zero",
			raw:  []float64{math.NaN(), 2, math.Inf(1)},
			want: []float64{0, 1, 0},
		},
		{
			name:           "all zeros is degenerate",
			raw:            []float64{0, 0, 0},
			want:           []float64{0, 0, 0},
			wantDegenerate: true,
		},
		{
			name:           "all non-finite is degenerate",
			raw:            []float64{math.NaN(), math.Inf(-1)},
			want:           []float64{0, 0},
			wantDegenerate: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vec, degenerate := Sanitize(tt.raw)
			assert.Equal(t, tt.wantDegenerate, degenerate)
			require.Len(t, vec, len(tt.want))
			for i := range tt.want {
				assert.InDelta(t, tt.want[i], vec[i], 1e-12)
			}
		})
	}
}

func TestSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, Similarity([]float64{1, 0}, []float64{1, 0}), 1e-12)
	assert.InDelta(t, 0.0, Similarity([]float64{1, 0}, []float64{0, 1}), 1e-12)
	assert.InDelta(t, -1.0, Similarity([]float64{1, 0}, []float64{-1, 0}), 1e-12)

	// Length mismatch and degenerate vectors are defined as 0.
	assert.Zero(t, Similarity([]float64{1, 0}, []float64{1}))
	assert.Zero(t, Similarity([]float64{1, 0}, []float64{0, 0}))
}

func TestStorePut(t *testing.T) {
	s := NewStore()

	rec, err := s.Put("m1", []float64{3, 4}, "model", "1", 42)
	require.NoError(t, err)
	assert.Equal(t, "m1", rec.MarketID)
	assert.False(t, rec.Degenerate)
	assert.InDelta(t, 1.0, rec.Vector[0]*rec.Vector[0]+rec.Vector[1]*rec.Vector[1], 1e-12)
	assert.Equal(t, "model", rec.ModelName)
	assert.EqualValues(t, 42, rec.Seed)

	// Dimension is fixed by the first Put.
	_, err = s.Put("m2", []float64{1, 2, 3}, "model", "1", 42)
	require.ErrorIs(t, err, domain.ErrDimension)

	// Malformed values never error, they degrade to a degenerate record.
	rec, err = s.Put("m3", []float64{math.NaN(), math.Inf(1)}, "model", "1", 42)
	require.NoError(t, err)
	assert.True(t, rec.Degenerate)
}

func TestStoreGetAndRecords(t *testing.T) {
	s := NewStore()
	_, err := s.Put("b", []float64{1, 0}, "m", "1", 0)
	require.NoError(t, err)
	_, err = s.Put("a", []float64{0, 1}, "m", "1", 0)
	require.NoError(t, err)

	_, err = s.Get("missing")
	require.ErrorIs(t, err, domain.ErrNotFound)

	recs := s.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, "a", recs[0].MarketID)
	assert.Equal(t, "b", recs[1].MarketID)
}

func TestStoreRestore(t *testing.T) {
	s := NewStore()
	err := s.Restore([]domain.EmbeddingRecord{
		{MarketID: "m1", Vector: []float64{1, 0}},
		{MarketID: "m2", Vector: []float64{0, 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())

	err = s.Restore([]domain.EmbeddingRecord{{MarketID: "m3", Vector: []float64{1}}})
	require.ErrorIs(t, err, domain.ErrDimension)
}
