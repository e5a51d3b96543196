package storage

import (
	"context"

	"github.com/poiesic/predindex/core"
)

// TableStore holds the structured row of every market and event.
// Implementations must be thread-safe and support concurrent access.
type TableStore interface {
	// Upsert inserts or replaces records of the given kind, keyed by
	// (Ticker, Source). All records are written in one transaction: either
	// every row of the call is visible afterwards or none is.
	// Sets Kind and IngestedAt on each record.
	Upsert(ctx context.Context, kind core.RecordKind, records ...*core.Record) error

	// UpsertMarkets is Upsert for core.KindMarket.
	UpsertMarkets(ctx context.Context, records ...*core.Record) error

	// UpsertEvents is Upsert for core.KindEvent.
	UpsertEvents(ctx context.Context, records ...*core.Record) error

	// Get retrieves a single row.
	// Returns ErrNotFound if the row doesn't exist.
	Get(ctx context.Context, kind core.RecordKind, source core.Source, ticker string) (*core.Record, error)

	// ForEach calls fn with consecutive batches of up to batchSize rows of kind,
	// ordered by key. Iteration stops at the first error fn returns.
	ForEach(ctx context.Context, kind core.RecordKind, batchSize int, fn func(batch []*core.Record) error) error

	// Count returns the number of rows of kind.
	Count(ctx context.Context, kind core.RecordKind) (int, error)

	// Close releases resources held by the store.
	Close() error
}

// VectorStore holds one embedding row per (Source, Ticker) and answers
// approximate nearest-neighbor queries.
// Implementations must tolerate concurrent Add calls.
type VectorStore interface {
	// Add appends rows of the given kind, creating the table with the fixed
	// schema if it is absent. A row whose ID already exists supersedes it.
	// Every vector must have core.VectorDim elements or the whole call fails
	// with core.ErrDimensionMismatch.
	Add(ctx context.Context, kind core.RecordKind, records ...*core.EmbeddingRecord) error

	// AddMarkets is Add for core.KindMarket.
	AddMarkets(ctx context.Context, records ...*core.EmbeddingRecord) error

	// AddEvents is Add for core.KindEvent.
	AddEvents(ctx context.Context, records ...*core.EmbeddingRecord) error

	// CreateIndex builds or rebuilds the ANN index over all rows of kind.
	// Idempotent; a missing or empty table is a no-op.
	CreateIndex(ctx context.Context, kind core.RecordKind) error

	// Search returns up to limit rows nearest to vector, best first.
	// Result vectors are not populated.
	Search(ctx context.Context, kind core.RecordKind, vector []float32, limit int) ([]*core.SearchResult, error)

	// SearchSource is Search restricted to rows of one source. Rows of other
	// sources are dropped before the limit is applied.
	SearchSource(ctx context.Context, kind core.RecordKind, source core.Source, vector []float32, limit int) ([]*core.SearchResult, error)

	// Close releases resources held by the store.
	Close() error
}

// CheckpointStore persists the last committed cursor of each ingestion task.
type CheckpointStore interface {
	// SaveCheckpoint persists a checkpoint, updating UpdatedAt.
	SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error

	// LoadCheckpoint retrieves the checkpoint for a task.
	// Returns nil, nil if no checkpoint exists.
	LoadCheckpoint(ctx context.Context, task string) (*core.Checkpoint, error)

	// ClearCheckpoint removes the checkpoint for a task if present.
	ClearCheckpoint(ctx context.Context, task string) error
}
