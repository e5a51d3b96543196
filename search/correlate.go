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


package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/poiesic/predindex/core"
)

// Correlation defaults.
const (
	DefaultThreshold = 0.75
	correlateBatch   = 100
)

// CorrelateOptions selects which markets to pair.
type CorrelateOptions struct {
	From      core.Source
	To        core.Source
	Threshold float32 // minimum cosine similarity; 0 selects DefaultThreshold
	Limit     int     // stop after this many matches; 0 means no limit
}

// Match pairs a market with its closest counterpart on another source.
type Match struct {
	From  *core.Record
	To    *core.EmbeddingRecord
	Score float32
}

var errStop = errors.New("stop")

// Correlate finds, for every stored market of opts.From, the most similar
// market of opts.To and calls fn for each pair scoring at least the
// threshold. Returning an error from fn stops the scan with that error.
func (s *Searcher) Correlate(ctx context.Context, opts CorrelateOptions, fn func(Match) error) error {
	if s.tables == nil {
		return ErrTableStoreRequired
	}
	if err := core.ValidateSource(opts.From); err != nil {
		return err
	}
	if err := core.ValidateSource(opts.To); err != nil {
		return err
	}
	if opts.From == opts.To {
		return ErrSameSource
	}
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}

	matched := 0
	err := s.tables.ForEach(ctx, core.KindMarket, correlateBatch, func(batch []*core.Record) error {
		var from []*core.Record
		texts := make([]string, 0, len(batch))
		for _, r := range batch {
			if r.Source == opts.From {
				from = append(from, r)
				texts = append(texts, r.EmbeddingText())
			}
		}
		if len(from) == 0 {
			return nil
		}

		vectors, err := s.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed %d markets: %w", len(texts), err)
		}
		if len(vectors) != len(from) {
			return fmt.Errorf("embedding count mismatch: expected %d, got %d", len(from), len(vectors))
		}

		for i, r := range from {
			best, err := s.bestMatch(ctx, vectors[i], opts)
			if err != nil {
				return err
			}
			if best == nil {
				continue
			}
			if err := fn(Match{From: r, To: best.Record, Score: best.Score}); err != nil {
				return err
			}
			matched++
			if opts.Limit > 0 && matched >= opts.Limit {
				return errStop
			}
		}
		return nil
	})
	if errors.Is(err, errStop) {
		err = nil
	}
	s.logger.Info("correlation finished", "from", opts.From, "to", opts.To, "matches", matched)
	return err
}

// bestMatch returns the highest scoring market of opts.To at or above the
// threshold, or nil.
func (s *Searcher) bestMatch(ctx context.Context, vector []float32, opts CorrelateOptions) (*core.SearchResult, error) {
	hits, err := s.vectors.SearchSource(ctx, core.KindMarket, opts.To, vector, 1)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 || hits[0].Score < opts.Threshold {
		return nil, nil
	}
	return hits[0], nil
}
