package domain

// ScoredSignal is a backtest signal together with the follower's eventual
// resolution and whether it matched the leader's.
type ScoredSignal struct {
	Signal             Signal
	FollowerResolution Resolution
	Hit                bool
}

// SimilarityBucket aggregates hit statistics for a similarity range
// [Low, High).
type SimilarityBucket struct {
	Low     float64
	High    float64
	Count   int
	Hits    int
	HitRate float64
}

// BacktestResult is the deterministic output of a historical replay. Two runs
// on identical input and seed produce byte-identical results; anything
// wall-clock dependent (when the run happened) is recorded by the store at
// insertion time, not here.
type BacktestResult struct {
	TotalSignals int
	Hits         int
	HitRate      float64
	Buckets      []SimilarityBucket
	Signals      []ScoredSignal
	Seed         int64
}
