package ingestion

import (
	"context"
	"log/slog"
	"time"

	"github.com/poiesic/predindex/core"
	"github.com/poiesic/predindex/storage"
)

// IndexBuilder (re)builds the ANN index of a vector store.
type IndexBuilder struct {
	vectors storage.VectorStore
	logger  *slog.Logger
}

// NewIndexBuilder returns a builder for vectors. A nil logger uses slog.Default().
func NewIndexBuilder(vectors storage.VectorStore, logger *slog.Logger) (*IndexBuilder, error) {
	if vectors == nil {
		return nil, ErrVectorStoreRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IndexBuilder{vectors: vectors, logger: logger.With("component", "index-builder")}, nil
}

// RebuildIndex builds the index for kind. It is safe to call repeatedly and
// does nothing when the kind has no rows.
func (b *IndexBuilder) RebuildIndex(ctx context.Context, kind core.RecordKind) error {
	start := time.Now()
	if err := b.vectors.CreateIndex(ctx, kind); err != nil {
		return err
	}
	b.logger.Info("index ready", "kind", kind, "elapsed", time.Since(start))
	return nil
}
