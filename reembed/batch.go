package reembed

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/predindex/ai"
	"github.com/poiesic/predindex/core"
	"github.com/poiesic/predindex/storage"
)

// BatchProcessor embeds table rows and appends them to the vector store.
type BatchProcessor struct {
	vectors    storage.VectorStore
	embedder   ai.Embedder
	attempts   int
	retryDelay time.Duration
}

// NewBatchProcessor returns a processor that tries each embedding request up
// to attempts times.
func NewBatchProcessor(vectors storage.VectorStore, embedder ai.Embedder, attempts int, retryDelay time.Duration) *BatchProcessor {
	return &BatchProcessor{
		vectors:    vectors,
		embedder:   embedder,
		attempts:   attempts,
		retryDelay: retryDelay,
	}
}

// Process embeds records of kind and replaces their vector rows.
func (bp *BatchProcessor) Process(ctx context.Context, kind core.RecordKind, records []*core.Record) error {
	if len(records) == 0 {
		return nil
	}

	texts := make([]string, len(records))
	for i, record := range records {
		record.Kind = kind
		texts[i] = record.EmbeddingText()
	}

	var vectors [][]float32
	err := RetryWithBackoff(ctx, bp.attempts, bp.retryDelay, func(ctx context.Context) error {
		var err error
		vectors, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	})
	if err != nil {
		return fmt.Errorf("embed %d %ss: %w", len(records), kind, err)
	}
	if len(vectors) != len(records) {
		return fmt.Errorf("embedding count mismatch: expected %d, got %d", len(records), len(vectors))
	}

	rows := make([]*core.EmbeddingRecord, len(records))
	for i, record := range records {
		rows[i] = core.NewEmbeddingRecord(record, vectors[i])
	}
	if err := bp.vectors.Add(ctx, kind, rows...); err != nil {
		return fmt.Errorf("write vectors: %w", err)
	}
	return nil
}
