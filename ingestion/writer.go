package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/poiesic/predindex/core"
	"github.com/poiesic/predindex/storage"
)

// pageWriter persists one fetched page.
type pageWriter interface {
	writePage(ctx context.Context, kind core.RecordKind, records []*core.Record) error
}

// dualStoreWriter commits a page to the table store and then appends its
// embeddings to the vector store. The two writes are not atomic: if the
// second fails the table rows stay and the vector store lags until the
// records are re-ingested or reembedded.
type dualStoreWriter struct {
	tables  storage.TableStore
	vectors storage.VectorStore
	embed   *embedPipeline
	logger  *slog.Logger

	// serializes table writes across tasks
	tableMu sync.Mutex
}

var _ pageWriter = (*dualStoreWriter)(nil)

func (w *dualStoreWriter) writePage(ctx context.Context, kind core.RecordKind, records []*core.Record) error {
	w.tableMu.Lock()
	err := w.tables.Upsert(ctx, kind, records...)
	w.tableMu.Unlock()
	if err != nil {
		return fmt.Errorf("%w: table: %w", ErrStoreWrite, err)
	}

	vectors, err := w.embed.embedPage(ctx, records)
	if err != nil {
		return err
	}

	rows := make([]*core.EmbeddingRecord, len(records))
	for i, record := range records {
		rows[i] = core.NewEmbeddingRecord(record, vectors[i])
	}
	if err := w.vectors.Add(ctx, kind, rows...); err != nil {
		return fmt.Errorf("%w: vector: %w", ErrStoreWrite, err)
	}

	w.logger.Debug("wrote page", "kind", kind, "records", len(records))
	return nil
}
