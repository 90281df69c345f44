package vectorindex

import (
	"github.com/topiclab/topicbot/internal/domain"
	"github.com/topiclab/topicbot/internal/embedding"
)

// flatIndex is the exhaustive fallback backend: a full scan over the corpus.
// It is always correctness-equivalent and serves as the reference for the
// ordering contract.
type flatIndex struct {
	records []domain.EmbeddingRecord
}

func newFlat(records []domain.EmbeddingRecord) *flatIndex {
	return &flatIndex{records: searchable(records)}
}

func (f *flatIndex) Len() int { return len(f.records) }

func (f *flatIndex) Query(vector []float64, k int, excludeID string) []Result {
	if len(f.records) == 0 || k <= 0 {
		return nil
	}
	results := make([]Result, 0, len(f.records))
	for _, rec := range f.records {
		if rec.MarketID == excludeID {
			continue
		}
		results = append(results, Result{
			MarketID:   rec.MarketID,
			Similarity: embedding.Similarity(vector, rec.Vector),
		})
	}
	return rank(results, k)
}
