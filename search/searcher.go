package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/poiesic/predindex/ai"
	"github.com/poiesic/predindex/core"
	"github.com/poiesic/predindex/storage"
)

// DefaultKeywordBoost is added to the score of a hit whose title and
// description contain every query term.
const DefaultKeywordBoost = 0.1

// Searcher runs semantic search over the vector store and, when a table
// store is configured, attaches the full records to the hits.
type Searcher struct {
	vectors      storage.VectorStore
	tables       storage.TableStore
	embedder     ai.Embedder
	keywordBoost float32
	logger       *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithTables enables hydration of results and correlation.
func WithTables(tables storage.TableStore) Option {
	return func(s *Searcher) error {
		s.tables = tables
		return nil
	}
}

// WithKeywordBoost sets the verbatim match boost. Zero disables it.
func WithKeywordBoost(boost float32) Option {
	return func(s *Searcher) error {
		if boost < 0 {
			return fmt.Errorf("keyword boost must not be negative: %v", boost)
		}
		s.keywordBoost = boost
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(vectors storage.VectorStore, embedder ai.Embedder, opts ...Option) (*Searcher, error) {
	if vectors == nil {
		return nil, ErrVectorStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Searcher{
		vectors:      vectors,
		embedder:     embedder,
		keywordBoost: DefaultKeywordBoost,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// FindSimilar returns up to limit records of kind closest to query,
// best first.
func (s *Searcher) FindSimilar(ctx context.Context, kind core.RecordKind, query string, limit int) ([]*core.SearchResult, error) {
	return s.FindSimilarWithMonitor(ctx, kind, query, limit, nil)
}

// FindSimilarWithMonitor is FindSimilar with callbacks at each stage.
func (s *Searcher) FindSimilarWithMonitor(ctx context.Context, kind core.RecordKind, query string, limit int, monitor SearchMonitor) ([]*core.SearchResult, error) {
	if monitor == nil {
		monitor = noopMonitor{}
	}
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if err := core.ValidateKind(kind); err != nil {
		return nil, err
	}
	if limit < 1 {
		return nil, storage.ErrInvalidQuery
	}
	monitor.Start(kind, query)

	embedding, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, err
	}

	results, err := s.vectors.Search(ctx, kind, embedding, limit)
	if err != nil {
		s.logger.Error("error querying for similar records", "kind", kind, "err", err)
		return nil, err
	}
	monitor.AfterVectorSearch(results)

	if s.keywordBoost > 0 {
		for _, r := range results {
			if containsAllTerms(r.Record.Title+" "+r.Record.Description, query) {
				r.Score += s.keywordBoost
				monitor.KeywordHit(r)
			}
		}
		sort.SliceStable(results, func(i, j int) bool {
			return results[i].Score > results[j].Score
		})
	}

	if s.tables != nil {
		found, missing, err := s.hydrate(ctx, kind, results)
		if err != nil {
			return nil, err
		}
		monitor.AfterHydration(found, missing)
	}

	monitor.Finish(results)
	return results, nil
}

// hydrate attaches table rows to results. Hits without a row (the table was
// pruned or the stores diverged) keep a nil Details.
func (s *Searcher) hydrate(ctx context.Context, kind core.RecordKind, results []*core.SearchResult) (found, missing int, err error) {
	for _, r := range results {
		rec, err := s.tables.Get(ctx, kind, r.Record.Source, r.Record.Ticker)
		switch {
		case err == nil:
			r.Details = rec
			found++
		case errors.Is(err, storage.ErrNotFound):
			missing++
		default:
			return found, missing, fmt.Errorf("load %s %s: %w", r.Record.Source, r.Record.Ticker, err)
		}
	}
	if missing > 0 {
		s.logger.Debug("search hits without table rows", "kind", kind, "missing", missing)
	}
	return found, missing, nil
}
