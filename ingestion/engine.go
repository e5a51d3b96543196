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


package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/predindex/ai"
	"github.com/poiesic/predindex/core"
	"github.com/poiesic/predindex/source"
	"github.com/poiesic/predindex/storage"
)

// Engine runs ingestion tasks for every selected source concurrently and
// builds the vector indexes once they have all finished.
type Engine struct {
	tables      storage.TableStore
	vectors     storage.VectorStore
	checkpoints storage.CheckpointStore
	registry    *source.Registry
	statuses    source.StatusTable
	pool        *ants.Pool
	writer      *dualStoreWriter
	index       *IndexBuilder
	policy      Policy
	sleep       sleepFunc
	logger      *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine) error

// WithPoolSize sets the embedding worker pool size.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(e *Engine) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if e.pool != nil {
			e.pool.Release()
		}
		e.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// WithCheckpoints enables resumable tasks backed by store.
func WithCheckpoints(store storage.CheckpointStore) Option {
	return func(e *Engine) error {
		e.checkpoints = store
		return nil
	}
}

// WithStatusTable replaces the status translations.
func WithStatusTable(table source.StatusTable) Option {
	return func(e *Engine) error {
		e.statuses = table
		return nil
	}
}

// WithPolicy replaces the retry and pacing policy. Zero fields keep their
// defaults, except MaxRetries which may be zero to disable retries.
func WithPolicy(p Policy) Option {
	return func(e *Engine) error {
		if p.MaxRetries < 0 {
			return fmt.Errorf("max retries must not be negative: %d", p.MaxRetries)
		}
		e.policy.MaxRetries = p.MaxRetries
		if p.BackoffBase > 0 {
			e.policy.BackoffBase = p.BackoffBase
		}
		if p.PageDelay > 0 {
			e.policy.PageDelay = p.PageDelay
		}
		if p.PageSize > 0 {
			e.policy.PageSize = p.PageSize
		}
		return nil
	}
}

// NewEngine creates an engine writing to tables and vectors.
func NewEngine(
	tables storage.TableStore,
	vectors storage.VectorStore,
	embedder ai.Embedder,
	adapters []source.Adapter,
	opts ...Option,
) (*Engine, error) {
	if tables == nil {
		return nil, ErrTableStoreRequired
	}
	if vectors == nil {
		return nil, ErrVectorStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if len(adapters) == 0 {
		return nil, ErrAdapterRequired
	}

	e := &Engine{
		tables:   tables,
		vectors:  vectors,
		registry: source.NewRegistry(adapters...),
		statuses: source.DefaultStatusTable(),
		policy:   DefaultPolicy(),
		sleep:    sleepContext,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(e); err != nil {
			e.Release()
			return nil, err
		}
	}

	if e.pool == nil {
		poolSize := runtime.NumCPU() / 2
		if poolSize < 1 {
			poolSize = 1
		}
		pool, err := ants.NewPool(poolSize)
		if err != nil {
			return nil, err
		}
		e.pool = pool
	}

	e.logger = e.logger.With("component", "ingestion")
	e.writer = &dualStoreWriter{
		tables:  tables,
		vectors: vectors,
		embed:   newEmbedPipeline(embedder, e.pool, e.logger),
		logger:  e.logger,
	}
	index, err := NewIndexBuilder(vectors, e.logger)
	if err != nil {
		e.Release()
		return nil, err
	}
	e.index = index
	return e, nil
}

// Release releases the embedding worker pool.
func (e *Engine) Release() {
	if e.pool != nil {
		e.pool.Release()
	}
}

// Report summarizes a run.
type Report struct {
	RunID     uuid.UUID
	Summaries []Summary // in submission order
	Elapsed   time.Duration
}

// Records returns the number of records committed across all tasks.
func (r *Report) Records() int {
	n := 0
	for _, s := range r.Summaries {
		n += s.Records
	}
	return n
}

// Plan lists the tasks a run with filter would launch, in submission order.
func (e *Engine) Plan(filter core.IngestionFilter) ([]TaskSpec, error) {
	sources, err := e.selectSources(filter.Sources)
	if err != nil {
		return nil, err
	}

	var tasks []TaskSpec
	for _, src := range sources {
		adapter, err := e.registry.Get(src)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSource, src)
		}
		caps := adapter.Capabilities()

		statuses := filter.EffectiveStatuses()
		if !caps.StatusFilter {
			statuses = []string{""}
		}
		for _, status := range statuses {
			task := TaskSpec{Source: src, Kind: core.KindMarket, Status: status, MaxPages: filter.MaxPages, Resume: filter.Resume}
			tasks = append(tasks, task)
			if caps.Events {
				task.Kind = core.KindEvent
				tasks = append(tasks, task)
			}
		}
	}
	return tasks, nil
}

// selectSources validates requested sources and returns them in canonical
// order. An empty request selects every registered source.
func (e *Engine) selectSources(requested []core.Source) ([]core.Source, error) {
	if len(requested) == 0 {
		return e.registry.Sources(), nil
	}
	for _, src := range requested {
		if _, err := e.registry.Get(src); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSource, src)
		}
	}
	var out []core.Source
	for _, src := range core.KnownSources {
		if slices.Contains(requested, src) {
			out = append(out, src)
		}
	}
	return out, nil
}

// RunAll runs every planned task concurrently and waits for all of them. A
// failing task does not stop its siblings, and committed pages are kept. The
// returned error is the first task error in submission order. Indexes are
// built only when every task succeeded.
func (e *Engine) RunAll(ctx context.Context, filter core.IngestionFilter, cancel CancelCheck) (*Report, error) {
	tasks, err := e.Plan(filter)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	report := &Report{RunID: uuid.New(), Summaries: make([]Summary, len(tasks))}
	logger := e.logger.With("run", report.RunID.String())
	logger.Info("starting ingestion", "tasks", len(tasks))

	errs := make([]error, len(tasks))
	var wg sync.WaitGroup
	for i, task := range tasks {
		adapter, err := e.registry.Get(task.Source)
		if err != nil {
			return nil, err
		}
		o := e.orchestrator(adapter, logger)

		wg.Add(1)
		go func() {
			defer wg.Done()
			sum, err := o.run(ctx, task, cancel)
			report.Summaries[i] = *sum
			errs[i] = err
		}()
	}
	wg.Wait()
	report.Elapsed = time.Since(start)

	for _, err := range errs {
		if err != nil {
			logger.Error("ingestion finished with errors", "elapsed", report.Elapsed, "err", err)
			return report, err
		}
	}

	for _, kind := range core.RecordKinds {
		if !slices.ContainsFunc(tasks, func(t TaskSpec) bool { return t.Kind == kind }) {
			continue
		}
		if err := e.index.RebuildIndex(ctx, kind); err != nil {
			return report, fmt.Errorf("build %s index: %w", kind, err)
		}
	}

	logger.Info("ingestion complete", "records", report.Records(), "elapsed", report.Elapsed)
	return report, nil
}

// Run runs a single task to completion without building indexes.
func (e *Engine) Run(ctx context.Context, task TaskSpec, cancel CancelCheck) (*Summary, error) {
	adapter, err := e.registry.Get(task.Source)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, task.Source)
	}
	return e.orchestrator(adapter, e.logger).run(ctx, task, cancel)
}

// RebuildIndex rebuilds the index for kind.
func (e *Engine) RebuildIndex(ctx context.Context, kind core.RecordKind) error {
	return e.index.RebuildIndex(ctx, kind)
}

func (e *Engine) orchestrator(adapter source.Adapter, logger *slog.Logger) *orchestrator {
	return &orchestrator{
		adapter:     adapter,
		writer:      e.writer,
		statuses:    e.statuses,
		checkpoints: e.checkpoints,
		policy:      e.policy,
		sleep:       e.sleep,
		logger:      logger,
	}
}
