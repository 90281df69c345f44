package domain

import "time"

// EmbeddingRecord is a sanitized, L2-normalized embedding vector together with
// its provenance. Every persisted vector has all-finite entries and either
// unit norm or, when the input degenerated to all zeros after sanitization,
// an explicit zero vector flagged Degenerate. Similarity against a degenerate
// vector is defined as 0; degenerate vectors never appear in top-k results.
type EmbeddingRecord struct {
	MarketID     string
	Vector       []float64
	ModelName    string
	ModelVersion string
	Seed         int64
	Degenerate   bool
	CreatedAt    time.Time
}

// Dim returns the vector dimension.
func (r EmbeddingRecord) Dim() int { return len(r.Vector) }
