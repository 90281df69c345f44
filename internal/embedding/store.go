// Package embedding sanitizes, normalizes, and holds embedding vectors with
// provenance metadata. Persistence is performed by the caller through
// domain.EmbeddingStore; this store is the in-memory working set.
package embedding

import (
	"math"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/topiclab/topicbot/internal/domain"
)

// Store holds sanitized embedding records keyed by market id.
type Store struct {
	mu      sync.RWMutex
	dim     int
	records map[string]domain.EmbeddingRecord
	now     func() time.Time
}

// NewStore creates an empty store. The vector dimension is fixed by the first
// Put (or Restore).
func NewStore() *Store {
	return &Store{
		records: make(map[string]domain.EmbeddingRecord),
		now:     time.Now,
	}
}

// Restore loads previously persisted records into the store.
func (s *Store) Restore(records []domain.EmbeddingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		if s.dim == 0 {
			s.dim = rec.Dim()
		}
		if rec.Dim() != s.dim {
			return domain.ErrDimension
		}
		s.records[rec.MarketID] = rec
	}
	return nil
}

// Put sanitizes raw, normalizes it, and stores the record. Non-finite
// components are mapped to 0 before normalization; if the result is the zero
// vector the record is stored as degenerate. Malformed values never produce an
// error; only a dimension mismatch with previously stored vectors does.
func (s *Store) Put(marketID string, raw []float64, modelName, modelVersion string, seed int64) (domain.EmbeddingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dim == 0 {
		s.dim = len(raw)
	}
	if len(raw) != s.dim {
		return domain.EmbeddingRecord{}, domain.ErrDimension
	}

	vec, degenerate := Sanitize(raw)
	rec := domain.EmbeddingRecord{
		MarketID:     marketID,
		Vector:       vec,
		ModelName:    modelName,
		ModelVersion: modelVersion,
		Seed:         seed,
		Degenerate:   degenerate,
		CreatedAt:    s.now().UTC(),
	}
	s.records[marketID] = rec
	return rec, nil
}

// Get returns the record for a market id, or domain.ErrNotFound.
func (s *Store) Get(marketID string) (domain.EmbeddingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[marketID]
	if !ok {
		return domain.EmbeddingRecord{}, domain.ErrNotFound
	}
	return rec, nil
}

// Records returns all records ordered by market id.
func (s *Store) Records() []domain.EmbeddingRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.EmbeddingRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MarketID < out[j].MarketID })
	return out
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Sanitize maps non-finite components to 0 and L2-normalizes the result. When
// every component sanitizes to 0 the zero vector is returned with degenerate
// set, so callers always get a finite, well-defined vector.
func Sanitize(raw []float64) (vec []float64, degenerate bool) {
	vec = make([]float64, len(raw))
	for i, v := range raw {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue // leave as 0
		}
		vec[i] = v
	}
	norm := floats.Norm(vec, 2)
	if norm == 0 {
		return vec, true
	}
	floats.Scale(1/norm, vec)
	return vec, false
}

// Similarity is the dot product of two sanitized vectors. Both are unit norm
// (or explicitly zero), so this equals cosine similarity without redundant
// renormalization, and similarity against a degenerate vector is exactly 0.
func Similarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	return floats.Dot(a, b)
}
