// Package vectorindex provides nearest-neighbor search over embedding records
// with deterministic ranking: descending similarity, ties broken by ascending
// market id. Two backends, an exhaustive flat scan and a centroid-partitioned
// accelerated index, share the ordering contract so top-k results are
// bit-identical across runs and across backend swaps.
package vectorindex

import (
	"sort"

	"github.com/topiclab/topicbot/internal/domain"
)

// Backend selects the index implementation.
type Backend string

const (
	BackendFlat        Backend = "flat"
	BackendPartitioned Backend = "partitioned"
)

// Result is a single neighbor hit.
type Result struct {
	MarketID   string
	Similarity float64
}

// Index is the nearest-neighbor search contract. Query returns at most k
// results ordered by (similarity desc, market id asc); excludeID, when
// non-empty, is never returned. An empty corpus yields an empty result, not
// an error.
type Index interface {
	Query(vector []float64, k int, excludeID string) []Result
	Len() int
}

// Options configures index construction.
type Options struct {
	Backend Backend
	// Partitions is the target partition count for the partitioned backend;
	// 0 derives it from the corpus size.
	Partitions int
	// Probes is how many partitions a query scans; 0 derives a generous
	// default so both backends agree at the configured k.
	Probes int
	// Seed governs the deterministic centroid initialization.
	Seed int64
}

// New builds an index over the given records. Degenerate (zero) vectors are
// kept out of the searchable set: similarity against them is defined as 0 and
// they never appear in a top-k result.
func New(records []domain.EmbeddingRecord, opts Options) Index {
	switch opts.Backend {
	case BackendPartitioned:
		return newPartitioned(records, opts)
	default:
		return newFlat(records)
	}
}

// searchable filters out degenerate records and orders the rest by market id
// so every backend iterates the corpus in the same order.
func searchable(records []domain.EmbeddingRecord) []domain.EmbeddingRecord {
	out := make([]domain.EmbeddingRecord, 0, len(records))
	for _, rec := range records {
		if rec.Degenerate {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MarketID < out[j].MarketID })
	return out
}

// rank applies the total order (similarity desc, id asc) and truncates to k.
func rank(results []Result, k int) []Result {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].MarketID < results[j].MarketID
	})
	if k >= 0 && len(results) > k {
		results = results[:k]
	}
	return results
}
