package s3

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/topiclab/topicbot/internal/domain"
)

// Archiver writes JSON snapshots of built graphs and backtest results to blob
// storage for offline analysis. Archiving is best-effort bookkeeping; callers
// log failures and continue.
type Archiver struct {
	writer domain.BlobWriter
}

// NewArchiver creates an Archiver writing through the given BlobWriter.
func NewArchiver(writer domain.BlobWriter) *Archiver {
	return &Archiver{writer: writer}
}

type archivedEdge struct {
	LeaderID   string  `json:"leader_id"`
	FollowerID string  `json:"follower_id"`
	Similarity float64 `json:"similarity"`
	DaysApart  int     `json:"days_apart"`
}

type archivedGraph struct {
	BuiltAt time.Time      `json:"built_at"`
	Edges   []archivedEdge `json:"edges"`
}

// ArchiveGraph uploads the graph under graphs/<built-at>.json.
func (a *Archiver) ArchiveGraph(ctx context.Context, g *domain.EventGraph) error {
	doc := archivedGraph{BuiltAt: g.BuiltAt}
	for _, e := range g.Edges() {
		doc.Edges = append(doc.Edges, archivedEdge{
			LeaderID:   e.LeaderID,
			FollowerID: e.FollowerID,
			Similarity: e.Similarity,
			DaysApart:  e.DaysApart,
		})
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("s3: marshal graph archive: %w", err)
	}

	path := fmt.Sprintf("graphs/%s.json", g.BuiltAt.UTC().Format("2006-01-02T15-04-05Z"))
	return a.writer.Put(ctx, path, payload, "application/json")
}

// ArchiveBacktest uploads a backtest result under backtests/<ran-at>.json. The
// upload path carries the wall-clock run time; the payload stays reproducible.
func (a *Archiver) ArchiveBacktest(ctx context.Context, result domain.BacktestResult, ranAt time.Time) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("s3: marshal backtest archive: %w", err)
	}

	path := fmt.Sprintf("backtests/%s.json", ranAt.UTC().Format("2006-01-02T15-04-05Z"))
	return a.writer.Put(ctx, path, payload, "application/json")
}
