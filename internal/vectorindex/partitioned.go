package vectorindex

import (
	"math/rand"
	"sort"

	"github.com/topiclab/topicbot/internal/domain"
	"github.com/topiclab/topicbot/internal/embedding"
)

const (
	// kmeansIterations is fixed so partition assignment is a pure function of
	// the corpus and the seed.
	kmeansIterations = 10
	defaultProbes    = 8
)

// partitionedIndex is the accelerated backend: records are grouped around
// seeded k-means centroids and a query scans only the closest partitions.
// Within the scanned candidate set the ordering contract is identical to the
// flat backend; the candidate set itself may differ from exhaustive search at
// extreme scale, which is an explicit deployment assumption for the corpus
// sizes this system targets.
type partitionedIndex struct {
	centroids  [][]float64
	partitions [][]domain.EmbeddingRecord
	probes     int
	size       int
}

func newPartitioned(records []domain.EmbeddingRecord, opts Options) *partitionedIndex {
	recs := searchable(records)

	nParts := opts.Partitions
	if nParts <= 0 {
		nParts = len(recs)/64 + 1
	}
	if nParts > len(recs) {
		nParts = len(recs)
	}
	probes := opts.Probes
	if probes <= 0 {
		probes = defaultProbes
	}
	if probes > nParts {
		probes = nParts
	}

	idx := &partitionedIndex{probes: probes, size: len(recs)}
	if len(recs) == 0 {
		return idx
	}

	idx.centroids = kmeans(recs, nParts, opts.Seed)
	idx.partitions = make([][]domain.EmbeddingRecord, len(idx.centroids))
	for _, rec := range recs {
		p := nearestCentroid(idx.centroids, rec.Vector)
		idx.partitions[p] = append(idx.partitions[p], rec)
	}
	return idx
}

func (p *partitionedIndex) Len() int { return p.size }

func (p *partitionedIndex) Query(vector []float64, k int, excludeID string) []Result {
	if p.size == 0 || k <= 0 {
		return nil
	}

	order := centroidOrder(p.centroids, vector)
	if len(order) > p.probes {
		order = order[:p.probes]
	}

	var results []Result
	for _, part := range order {
		for _, rec := range p.partitions[part] {
			if rec.MarketID == excludeID {
				continue
			}
			results = append(results, Result{
				MarketID:   rec.MarketID,
				Similarity: embedding.Similarity(vector, rec.Vector),
			})
		}
	}
	return rank(results, k)
}

// kmeans runs a fixed-iteration Lloyd's loop with rand.Rand seeded centroid
// picks over the id-sorted corpus. Identical input and seed always yield
// identical centroids.
func kmeans(recs []domain.EmbeddingRecord, nParts int, seed int64) [][]float64 {
	rng := rand.New(rand.NewSource(seed))
	dim := recs[0].Dim()

	// Initial centroids: sample without replacement from the sorted corpus.
	perm := rng.Perm(len(recs))[:nParts]
	sort.Ints(perm)
	centroids := make([][]float64, nParts)
	for i, ri := range perm {
		centroids[i] = append([]float64(nil), recs[ri].Vector...)
	}

	assign := make([]int, len(recs))
	for iter := 0; iter < kmeansIterations; iter++ {
		for i, rec := range recs {
			assign[i] = nearestCentroid(centroids, rec.Vector)
		}
		sums := make([][]float64, nParts)
		counts := make([]int, nParts)
		for i := range sums {
			sums[i] = make([]float64, dim)
		}
		for i, rec := range recs {
			c := assign[i]
			for d, v := range rec.Vector {
				sums[c][d] += v
			}
			counts[c]++
		}
		for c := range centroids {
			if counts[c] == 0 {
				continue // keep previous centroid for empty partitions
			}
			for d := range sums[c] {
				centroids[c][d] = sums[c][d] / float64(counts[c])
			}
		}
	}
	return centroids
}

// nearestCentroid returns the index of the highest-similarity centroid, ties
// broken by lowest index.
func nearestCentroid(centroids [][]float64, v []float64) int {
	best, bestSim := 0, embedding.Similarity(centroids[0], v)
	for i := 1; i < len(centroids); i++ {
		if sim := embedding.Similarity(centroids[i], v); sim > bestSim {
			best, bestSim = i, sim
		}
	}
	return best
}

// centroidOrder returns partition indices ordered by similarity to v,
// descending, ties by index.
func centroidOrder(centroids [][]float64, v []float64) []int {
	type scored struct {
		idx int
		sim float64
	}
	all := make([]scored, len(centroids))
	for i, c := range centroids {
		all[i] = scored{idx: i, sim: embedding.Similarity(c, v)}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].sim != all[j].sim {
			return all[i].sim > all[j].sim
		}
		return all[i].idx < all[j].idx
	})
	out := make([]int, len(all))
	for i, s := range all {
		out[i] = s.idx
	}
	return out
}
