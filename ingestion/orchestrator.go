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
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/predindex/core"
	"github.com/poiesic/predindex/source"
	"github.com/poiesic/predindex/storage"
)

// Default retry and pacing policy.
const (
	DefaultMaxRetries  = 5
	DefaultBackoffBase = time.Second
	DefaultPageDelay   = 100 * time.Millisecond
)

// CancelCheck is polled once per page. A non-nil error stops the task.
type CancelCheck func() error

// TaskSpec identifies one paginated sequence.
type TaskSpec struct {
	Source   core.Source
	Kind     core.RecordKind
	Status   string // unified status; empty for unfiltered sources
	MaxPages int    // 0 means unbounded
	Resume   bool
}

// Key is the checkpoint key of the task.
func (t TaskSpec) Key() string {
	return fmt.Sprintf("%s/%s/%s", t.Source, t.Kind, t.Status)
}

// State is the lifecycle state of a task.
type State int

const (
	StateIdle State = iota
	StateFetching
	StateWritingPage
	StateBackoff
	StateCompleted
	StateAborted
	StateFatal
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateWritingPage:
		return "writing"
	case StateBackoff:
		return "backoff"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	case StateFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Reasons a task stops.
const (
	ReasonLimit    = "limit"
	ReasonEmpty    = "empty"
	ReasonEnd      = "end"
	ReasonStalled  = "stalled"
	ReasonCanceled = "canceled"
	ReasonFetch    = "fetch"
	ReasonWrite    = "write"
)

// Summary reports how a task ended.
type Summary struct {
	Task    TaskSpec
	State   State
	Reason  string
	Pages   int
	Records int
	Retries int
	Err     error
}

// Policy controls retries and pacing.
type Policy struct {
	MaxRetries  int
	BackoffBase time.Duration
	PageDelay   time.Duration
	PageSize    int
}

// DefaultPolicy returns the default retry and pacing policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:  DefaultMaxRetries,
		BackoffBase: DefaultBackoffBase,
		PageDelay:   DefaultPageDelay,
		PageSize:    source.DefaultPageSize,
	}
}

// backoff returns the delay before retry number retries+1.
func (p Policy) backoff(retries int) time.Duration {
	return p.BackoffBase << uint(retries)
}

type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// orchestrator drives one task from first page to a terminal state.
type orchestrator struct {
	adapter     source.Adapter
	writer      pageWriter
	statuses    source.StatusTable
	checkpoints storage.CheckpointStore // optional
	policy      Policy
	sleep       sleepFunc
	logger      *slog.Logger
}

func (o *orchestrator) run(ctx context.Context, spec TaskSpec, cancel CancelCheck) (*Summary, error) {
	sum := &Summary{Task: spec, State: StateIdle}
	logger := o.logger.With("source", spec.Source, "kind", spec.Kind, "status", spec.Status)

	stop := func(state State, reason string, err error) (*Summary, error) {
		sum.State = state
		sum.Reason = reason
		if err != nil {
			sum.Err = &TaskError{Source: spec.Source, Kind: spec.Kind, Status: spec.Status, Page: sum.Pages, Err: err}
			logger.Error("task stopped", "state", state, "pages", sum.Pages, "err", err)
			return sum, sum.Err
		}
		logger.Info("task completed", "reason", reason, "pages", sum.Pages, "records", sum.Records)
		return sum, nil
	}
	abort := func(cause error) (*Summary, error) {
		return stop(StateAborted, ReasonCanceled, fmt.Errorf("%w: %w", ErrCanceled, cause))
	}

	cursor := o.startCursor(ctx, spec, logger)
	status := o.statuses.Translate(spec.Source, spec.Status)

	for {
		if spec.MaxPages > 0 && sum.Pages >= spec.MaxPages {
			return stop(StateCompleted, ReasonLimit, nil)
		}
		if cancel != nil {
			if err := cancel(); err != nil {
				return abort(err)
			}
		}
		if err := ctx.Err(); err != nil {
			return abort(err)
		}

		req := source.PageRequest{Kind: spec.Kind, Limit: o.policy.PageSize, Cursor: cursor, Status: status}
		page, err := o.fetch(ctx, sum, req, logger)
		if err != nil {
			if ctx.Err() != nil {
				return abort(ctx.Err())
			}
			return stop(StateFatal, ReasonFetch, err)
		}

		if len(page.Records) == 0 {
			o.clearCheckpoint(ctx, spec, logger)
			return stop(StateCompleted, ReasonEmpty, nil)
		}

		sum.State = StateWritingPage
		if err := o.writer.writePage(ctx, spec.Kind, page.Records); err != nil {
			if ctx.Err() != nil {
				return abort(ctx.Err())
			}
			return stop(StateFatal, ReasonWrite, err)
		}
		sum.Pages++
		sum.Records += len(page.Records)
		logger.Debug("page committed", "page", sum.Pages, "records", len(page.Records))

		switch page.NextCursor {
		case "":
			o.clearCheckpoint(ctx, spec, logger)
			return stop(StateCompleted, ReasonEnd, nil)
		case cursor:
			o.clearCheckpoint(ctx, spec, logger)
			return stop(StateCompleted, ReasonStalled, nil)
		}
		cursor = page.NextCursor
		o.saveCheckpoint(ctx, spec, cursor, sum.Pages, logger)

		sum.State = StateIdle
		if err := o.sleep(ctx, o.policy.PageDelay); err != nil {
			return abort(err)
		}
	}
}

// fetch requests one page, retrying with exponential backoff. The retry
// count starts at zero for every page.
func (o *orchestrator) fetch(ctx context.Context, sum *Summary, req source.PageRequest, logger *slog.Logger) (*core.Page, error) {
	for retries := 0; ; retries++ {
		sum.State = StateFetching
		page, err := o.adapter.FetchPage(ctx, req)
		if err == nil {
			if page == nil {
				page = &core.Page{}
			}
			return page, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		if retries >= o.policy.MaxRetries {
			return nil, fmt.Errorf("%w after %d retries: %w", ErrRetriesExhausted, retries, err)
		}

		delay := o.policy.backoff(retries)
		logger.Warn("fetch failed, retrying", "page", sum.Pages, "retry", retries+1, "delay", delay, "err", err)
		sum.State = StateBackoff
		sum.Retries++
		if err := o.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

func (o *orchestrator) startCursor(ctx context.Context, spec TaskSpec, logger *slog.Logger) string {
	if !spec.Resume || o.checkpoints == nil {
		return ""
	}
	cp, err := o.checkpoints.LoadCheckpoint(ctx, spec.Key())
	if err != nil {
		logger.Warn("could not load checkpoint, starting from the first page", "err", err)
		return ""
	}
	if cp == nil {
		return ""
	}
	logger.Info("resuming from checkpoint", "cursor", cp.Cursor, "pages", cp.Pages)
	return cp.Cursor
}

func (o *orchestrator) saveCheckpoint(ctx context.Context, spec TaskSpec, cursor string, pages int, logger *slog.Logger) {
	if o.checkpoints == nil {
		return
	}
	cp := &core.Checkpoint{Task: spec.Key(), Cursor: cursor, Pages: pages}
	if err := o.checkpoints.SaveCheckpoint(ctx, cp); err != nil {
		logger.Warn("could not save checkpoint", "err", err)
	}
}

func (o *orchestrator) clearCheckpoint(ctx context.Context, spec TaskSpec, logger *slog.Logger) {
	if o.checkpoints == nil {
		return
	}
	if err := o.checkpoints.ClearCheckpoint(ctx, spec.Key()); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("could not clear checkpoint", "err", err)
	}
}
