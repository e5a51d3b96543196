// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package reembed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/predindex/ai"
	"github.com/poiesic/predindex/core"
	"github.com/poiesic/predindex/storage"
)

// DefaultBatchSize is the number of table rows embedded per request.
const DefaultBatchSize = 100

// Config holds configuration for a reembedding run.
type Config struct {
	// BatchSize is the number of records embedded per request
	BatchSize int

	// ReportInterval is how often to report progress (number of records)
	ReportInterval int

	// MaxAttempts bounds the embedding requests per batch
	MaxAttempts int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration

	// SkipIndex leaves the vector index untouched after the run
	SkipIndex bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: DefaultBatchSize,
		MaxAttempts:    3,
		RetryDelay:     time.Second,
	}
}

// Result reports one kind's run.
type Result struct {
	Kind    core.RecordKind
	Records int
	Elapsed time.Duration
}

// Reembedder rebuilds vector rows from the table store. It heals a vector
// store that fell behind the table store and moves existing rows to a new
// embedding model.
type Reembedder struct {
	tables    storage.TableStore
	vectors   storage.VectorStore
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	logger    *slog.Logger
}

// NewReembedder creates a reembedder. progress receives the progress line
// and may be io.Discard.
func NewReembedder(tables storage.TableStore, vectors storage.VectorStore, embedder ai.Embedder, config *Config, progress io.Writer) (*Reembedder, error) {
	if tables == nil || vectors == nil {
		return nil, ErrStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.BatchSize < 1 {
		config.BatchSize = DefaultBatchSize
	}
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reembedder{
		tables:    tables,
		vectors:   vectors,
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(vectors, embedder, config.MaxAttempts, config.RetryDelay),
		logger:    slog.Default().With("component", "reembed"),
	}, nil
}

// Run reembeds every stored record of kind and then rebuilds its index.
func (r *Reembedder) Run(ctx context.Context, kind core.RecordKind) (*Result, error) {
	if err := core.ValidateKind(kind); err != nil {
		return nil, err
	}

	total, err := r.tables.Count(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("count %ss: %w", kind, err)
	}
	result := &Result{Kind: kind}
	if total == 0 {
		fmt.Fprintf(r.progress, "No %ss stored\n", kind)
		return result, nil
	}

	fmt.Fprintf(r.progress, "Reembedding %d %ss (batch size: %d)\n", total, kind, r.config.BatchSize)
	tracker := NewProgressTracker(r.progress, kind.String()+"s", total, r.config.ReportInterval)
	tracker.Start()

	err = r.tables.ForEach(ctx, kind, r.config.BatchSize, func(batch []*core.Record) error {
		if err := r.processor.Process(ctx, kind, batch); err != nil {
			return err
		}
		result.Records += len(batch)
		tracker.Increment(len(batch))
		return nil
	})
	if err != nil {
		r.logger.Error("reembedding stopped", "kind", kind, "records", result.Records, "err", err)
		return result, err
	}
	tracker.Finish()

	if !r.config.SkipIndex {
		if err := r.vectors.CreateIndex(ctx, kind); err != nil {
			return result, fmt.Errorf("rebuild %s index: %w", kind, err)
		}
	}

	result.Elapsed = tracker.Elapsed()
	r.logger.Info("reembedding complete", "kind", kind, "records", result.Records, "elapsed", result.Elapsed)
	return result, nil
}

// RunAll reembeds every record kind in turn.
func (r *Reembedder) RunAll(ctx context.Context) ([]*Result, error) {
	var results []*Result
	for _, kind := range core.RecordKinds {
		res, err := r.Run(ctx, kind)
		if res != nil {
			results = append(results, res)
		}
		if err != nil {
			return results, err
		}
	}
	return results, nil
}
