package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/topiclab/topicbot/internal/domain"
	"github.com/topiclab/topicbot/internal/embedding"
)

// embedBatchSize caps how many questions go to the embedding service per call.
const embedBatchSize = 64

// TextEmbedder produces one raw vector per input text, in input order.
type TextEmbedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// EmbeddingIngester fills in embeddings for markets that do not have one yet:
// raw vectors from the embedding service go through the in-memory store for
// sanitization and are then persisted.
type EmbeddingIngester struct {
	embedder     TextEmbedder
	mem          *embedding.Store
	store        domain.EmbeddingStore // may be nil
	modelName    string
	modelVersion string
	seed         int64
	logger       *slog.Logger
}

// NewEmbeddingIngester creates an ingester. The model name, version, and seed
// are recorded as provenance on every embedding it produces.
func NewEmbeddingIngester(embedder TextEmbedder, mem *embedding.Store, store domain.EmbeddingStore, modelName, modelVersion string, seed int64, logger *slog.Logger) *EmbeddingIngester {
	return &EmbeddingIngester{
		embedder:     embedder,
		mem:          mem,
		store:        store,
		modelName:    modelName,
		modelVersion: modelVersion,
		seed:         seed,
		logger:       logger.With(slog.String("component", "embedding_ingester")),
	}
}

// EnsureEmbeddings embeds every market whose id has no record yet and returns
// how many new embeddings were produced. Markets are processed in the given
// order, batched per service call.
func (ei *EmbeddingIngester) EnsureEmbeddings(ctx context.Context, markets []domain.Market) (int, error) {
	var missing []domain.Market
	for _, m := range markets {
		if _, err := ei.mem.Get(m.ID); errors.Is(err, domain.ErrNotFound) {
			missing = append(missing, m)
		}
	}
	if len(missing) == 0 {
		return 0, nil
	}

	added := 0
	for start := 0; start < len(missing); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(missing) {
			end = len(missing)
		}
		batch := missing[start:end]

		texts := make([]string, len(batch))
		for i, m := range batch {
			texts[i] = m.Question
		}

		vectors, err := ei.embedder.Embed(ctx, texts)
		if err != nil {
			return added, fmt.Errorf("ingest: embed batch: %w", err)
		}

		for i, m := range batch {
			rec, err := ei.mem.Put(m.ID, vectors[i], ei.modelName, ei.modelVersion, ei.seed)
			if err != nil {
				return added, fmt.Errorf("ingest: store embedding %s: %w", m.ID, err)
			}
			if ei.store != nil {
				if err := ei.store.Put(ctx, rec); err != nil {
					return added, fmt.Errorf("ingest: persist embedding %s: %w", m.ID, err)
				}
			}
			added++
		}
	}

	ei.logger.InfoContext(ctx, "embeddings ingested",
		slog.Int("new", added),
		slog.Int("total", ei.mem.Len()),
	)
	return added, nil
}
