package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/topiclab/topicbot/internal/domain"
	"github.com/topiclab/topicbot/internal/embedding"
)

type fakeEmbedder struct {
	calls  [][]string
	err    error
	vector []float64
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.calls = append(f.calls, texts)
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}

type fakeEmbeddingStore struct {
	puts []domain.EmbeddingRecord
}

func (f *fakeEmbeddingStore) Put(_ context.Context, rec domain.EmbeddingRecord) error {
	f.puts = append(f.puts, rec)
	return nil
}

func (f *fakeEmbeddingStore) Get(context.Context, string) (domain.EmbeddingRecord, error) {
	return domain.EmbeddingRecord{}, domain.ErrNotFound
}

func (f *fakeEmbeddingStore) List(context.Context) ([]domain.EmbeddingRecord, error) {
	return f.puts, nil
}

func TestEnsureEmbeddingsOnlyEmbedsMissing(t *testing.T) {
	mem := embedding.NewStore()
	_, err := mem.Put("have", []float64{1, 0}, "m", "1", 42)
	require.NoError(t, err)

	embedder := &fakeEmbedder{vector: []float64{0, 1}}
	store := &fakeEmbeddingStore{}
	ing := NewEmbeddingIngester(embedder, mem, store, "m", "1", 42, testLogger())

	markets := []domain.Market{
		{ID: "have", Question: "already embedded?"},
		{ID: "need1", Question: "first new market?"},
		{ID: "need2", Question: "second new market?"},
	}

	added, err := ing.EnsureEmbeddings(context.Background(), markets)
	require.NoError(t, err)
	assert.Equal(t, 2, added)
	assert.Equal(t, 3, mem.Len())
	assert.Len(t, store.puts, 2)

	require.Len(t, embedder.calls, 1)
	assert.Equal(t, []string{"first new market?", "second new market?"}, embedder.calls[0])

	// A second pass is a no-op.
	added, err = ing.EnsureEmbeddings(context.Background(), markets)
	require.NoError(t, err)
	assert.Zero(t, added)
	assert.Len(t, embedder.calls, 1)
}

func TestEnsureEmbeddingsPropagatesServiceError(t *testing.T) {
	mem := embedding.NewStore()
	embedder := &fakeEmbedder{err: errors.New("model loading")}
	ing := NewEmbeddingIngester(embedder, mem, nil, "m", "1", 42, testLogger())

	_, err := ing.EnsureEmbeddings(context.Background(), []domain.Market{{ID: "a", Question: "q"}})
	require.Error(t, err)
	assert.Zero(t, mem.Len())
}
