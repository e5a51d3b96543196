package ingestion

import (
	"errors"
	"fmt"

	"github.com/poiesic/predindex/core"
)

var (
	// ErrTableStoreRequired is returned when a table store is not provided.
	ErrTableStoreRequired = errors.New("table store required")

	// ErrVectorStoreRequired is returned when a vector store is not provided.
	ErrVectorStoreRequired = errors.New("vector store required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrAdapterRequired is returned when no source adapter is provided.
	ErrAdapterRequired = errors.New("at least one source adapter required")
)

var (
	// ErrRetriesExhausted is returned when a page fetch keeps failing after
	// every retry.
	ErrRetriesExhausted = errors.New("fetch retries exhausted")

	// ErrEmbedding is returned when a page cannot be embedded.
	ErrEmbedding = errors.New("embedding failed")

	// ErrStoreWrite is returned when a page cannot be written to a store.
	ErrStoreWrite = errors.New("store write failed")

	// ErrCanceled is returned when a task stops because of cancellation.
	ErrCanceled = errors.New("ingestion canceled")

	// ErrUnknownSource is returned when a filter names a source with no adapter.
	ErrUnknownSource = errors.New("unknown source")
)

// TaskError is the failure of one ingestion task.
type TaskError struct {
	Source core.Source
	Kind   core.RecordKind
	Status string
	Page   int // pages committed before the failure
	Err    error
}

func (e *TaskError) Error() string {
	status := e.Status
	if status == "" {
		status = "any"
	}
	return fmt.Sprintf("ingest %s %ss (status %s) at page %d: %v", e.Source, e.Kind, status, e.Page, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}
