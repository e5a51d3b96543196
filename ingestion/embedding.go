package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/predindex/ai"
	"github.com/poiesic/predindex/core"
)

// embedPipeline turns a page of records into vectors on a worker pool so the
// orchestrator goroutine only waits on the result.
type embedPipeline struct {
	embedder ai.Embedder
	pool     *ants.Pool
	logger   *slog.Logger
}

type embedResult struct {
	vectors [][]float32
	err     error
}

func newEmbedPipeline(embedder ai.Embedder, pool *ants.Pool, logger *slog.Logger) *embedPipeline {
	return &embedPipeline{
		embedder: embedder,
		pool:     pool,
		logger:   logger.With("processor", "embeddings"),
	}
}

// embedPage returns one vector per record, in order.
func (ep *embedPipeline) embedPage(ctx context.Context, records []*core.Record) ([][]float32, error) {
	if len(records) == 0 {
		return nil, nil
	}

	texts := make([]string, len(records))
	for i, record := range records {
		texts[i] = record.EmbeddingText()
	}

	done := make(chan embedResult, 1)
	err := ep.pool.Submit(func() {
		vectors, err := ep.embedder.EmbedTexts(ctx, texts)
		done <- embedResult{vectors: vectors, err: err}
	})
	if err != nil {
		return nil, fmt.Errorf("%w: submit: %v", ErrEmbedding, err)
	}

	var res embedResult
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-done:
	}

	if res.err != nil {
		ep.logger.Error("error generating embeddings", "records", len(records), "err", res.err)
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, res.err)
	}
	if len(res.vectors) != len(records) {
		return nil, fmt.Errorf("%w: expected %d vectors, received %d", ErrEmbedding, len(records), len(res.vectors))
	}
	return res.vectors, nil
}
