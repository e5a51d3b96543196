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


package badger

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/predindex/core"
	"github.com/poiesic/predindex/storage"
)

// VectorStore implements storage.VectorStore on BadgerDB with an IVF
// (inverted file) index: rows are clustered around k-means centroids and a
// query only scans the lists of its nearest centroids.
type VectorStore struct {
	backend    *Backend
	dim        int
	probes     int
	maxLists   int
	iterations int
	logger     *slog.Logger

	// tableMu guards the schema and centroid caches and serializes table creation.
	tableMu   sync.Mutex
	tables    map[core.RecordKind]bool
	centroids map[core.RecordKind][][]float32
	loaded    map[core.RecordKind]bool

	// indexMu is held for writing while an index is rebuilt.
	indexMu sync.RWMutex
}

var _ storage.VectorStore = (*VectorStore)(nil)

// VectorOption configures a VectorStore.
type VectorOption func(*VectorStore) error

// WithProbes sets how many inverted lists a search scans.
func WithProbes(n int) VectorOption {
	return func(s *VectorStore) error {
		if n < 1 {
			return errors.New("probes must be positive")
		}
		s.probes = n
		return nil
	}
}

// WithMaxLists caps the number of inverted lists an index build creates.
func WithMaxLists(n int) VectorOption {
	return func(s *VectorStore) error {
		if n < 1 {
			return errors.New("max lists must be positive")
		}
		s.maxLists = n
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) VectorOption {
	return func(s *VectorStore) error {
		s.logger = logger
		return nil
	}
}

// NewVectorStore creates a new VectorStore.
func NewVectorStore(backend *Backend, opts ...VectorOption) (*VectorStore, error) {
	s := &VectorStore{
		backend:    backend,
		dim:        core.VectorDim,
		probes:     defaultProbes,
		maxLists:   defaultMaxLists,
		iterations: defaultIterations,
		logger:     slog.Default(),
		tables:     make(map[core.RecordKind]bool),
		centroids:  make(map[core.RecordKind][][]float32),
		loaded:     make(map[core.RecordKind]bool),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "badger-vectors")
	return s, nil
}

// Close is a no-op; the backend is owned by the caller.
func (s *VectorStore) Close() error {
	return nil
}

// Add appends rows, superseding rows with the same ID.
func (s *VectorStore) Add(ctx context.Context, kind core.RecordKind, records ...*core.EmbeddingRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := core.ValidateKind(kind); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	for _, record := range records {
		record.Kind = kind
		if err := core.ValidateEmbeddingRecord(record, s.dim); err != nil {
			return err
		}
	}

	if err := s.ensureTable(kind); err != nil {
		return err
	}

	s.indexMu.RLock()
	defer s.indexMu.RUnlock()

	centroids, err := s.loadCentroids(kind)
	if err != nil {
		return err
	}

	return s.backend.WithTx(func(tx *badger.Txn) error {
		for _, record := range records {
			rowID := core.IDFromContent(record.ID)
			if err := tx.Set(makeVectorRowKey(kind, rowID), storage.MarshalEmbeddingRecord(record)); err != nil {
				return err
			}
			if centroids != nil {
				c := nearestCentroid(centroids, normalize(record.Vector))
				if err := tx.Set(makeVectorListKey(kind, c, rowID), []byte{}); err != nil {
					return err
				}
			}
		}
		return tx.Commit()
	}, true)
}

// AddMarkets appends market rows.
func (s *VectorStore) AddMarkets(ctx context.Context, records ...*core.EmbeddingRecord) error {
	return s.Add(ctx, core.KindMarket, records...)
}

// AddEvents appends event rows.
func (s *VectorStore) AddEvents(ctx context.Context, records ...*core.EmbeddingRecord) error {
	return s.Add(ctx, core.KindEvent, records...)
}

// TableExists reports whether any row of kind was ever added.
func (s *VectorStore) TableExists(kind core.RecordKind) (bool, error) {
	s.tableMu.Lock()
	defer s.tableMu.Unlock()
	return s.tableExistsLocked(kind)
}

func (s *VectorStore) tableExistsLocked(kind core.RecordKind) (bool, error) {
	if s.tables[kind] {
		return true, nil
	}
	var schema *storage.VectorSchema
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeVectorMetaKey(kind))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			decoded, err := storage.UnmarshalVectorSchema(val)
			if err != nil {
				return err
			}
			schema = &decoded
			return nil
		})
	}, false)
	if err != nil || schema == nil {
		return false, err
	}
	if schema.Dim != s.dim {
		return false, fmt.Errorf("%w: table %s has dim %d, want %d", storage.ErrSchemaMismatch, kind, schema.Dim, s.dim)
	}
	s.tables[kind] = true
	return true, nil
}

// ensureTable creates the table schema on first use.
func (s *VectorStore) ensureTable(kind core.RecordKind) error {
	s.tableMu.Lock()
	defer s.tableMu.Unlock()

	exists, err := s.tableExistsLocked(kind)
	if err != nil || exists {
		return err
	}

	s.logger.Info("creating vector table", "kind", kind, "dim", s.dim)
	err = s.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeVectorMetaKey(kind), storage.MarshalVectorSchema(storage.DefaultVectorSchema())); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return err
	}
	s.tables[kind] = true
	return nil
}

// loadCentroids returns the cached index centroids, nil when no index exists.
// Callers hold indexMu.
func (s *VectorStore) loadCentroids(kind core.RecordKind) ([][]float32, error) {
	s.tableMu.Lock()
	defer s.tableMu.Unlock()
	if s.loaded[kind] {
		return s.centroids[kind], nil
	}

	var centroids [][]float32
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeVectorCentroidKey(kind))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var unmarshalErr error
			centroids, unmarshalErr = storage.UnmarshalVectors(val)
			return unmarshalErr
		})
	}, false)
	if err != nil {
		return nil, err
	}

	s.centroids[kind] = centroids
	s.loaded[kind] = true
	return centroids, nil
}

// CreateIndex clusters every row of kind and rewrites the inverted lists.
func (s *VectorStore) CreateIndex(ctx context.Context, kind core.RecordKind) error {
	exists, err := s.TableExists(kind)
	if err != nil {
		return err
	}
	if !exists {
		s.logger.Debug("no vector table, skipping index", "kind", kind)
		return nil
	}

	s.indexMu.Lock()
	defer s.indexMu.Unlock()

	var (
		rowIDs  []core.ID
		vectors [][]float32
	)
	err = s.backend.scanPrefix(makeVectorRowPrefix(kind), func(key, val []byte) error {
		record, err := storage.UnmarshalEmbeddingRecord(val)
		if err != nil {
			return err
		}
		rowIDs = append(rowIDs, rowIDFromKey(key))
		vectors = append(vectors, normalize(record.Vector))
		return nil
	})
	if err != nil {
		return err
	}
	if len(vectors) == 0 {
		s.logger.Debug("vector table empty, skipping index", "kind", kind)
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	lists := listCount(len(vectors), s.maxLists)
	centroids := trainCentroids(vectors, lists, s.iterations)

	if err := s.backend.deletePrefix(makeVectorListPrefix(kind)); err != nil {
		return err
	}

	wb := s.backend.NewWriteBatch()
	defer wb.Cancel()
	if err := wb.Set(makeVectorCentroidKey(kind), storage.MarshalVectors(centroids)); err != nil {
		return err
	}
	for i, v := range vectors {
		c := nearestCentroid(centroids, v)
		if err := wb.Set(makeVectorListKey(kind, c, rowIDs[i]), []byte{}); err != nil {
			return err
		}
	}
	if err := wb.Flush(); err != nil {
		return err
	}

	s.tableMu.Lock()
	s.centroids[kind] = centroids
	s.loaded[kind] = true
	s.tableMu.Unlock()

	s.logger.Info("built vector index", "kind", kind, "rows", len(vectors), "lists", len(centroids))
	return nil
}

// Search scans the lists of the nearest centroids, or every row when no
// index has been built, and ranks candidates by cosine similarity.
func (s *VectorStore) Search(ctx context.Context, kind core.RecordKind, vector []float32, limit int) ([]*core.SearchResult, error) {
	return s.search(ctx, kind, core.SourceUnknown, vector, limit)
}

// SearchSource is Search over the rows of one source.
func (s *VectorStore) SearchSource(ctx context.Context, kind core.RecordKind, source core.Source, vector []float32, limit int) ([]*core.SearchResult, error) {
	if err := core.ValidateSource(source); err != nil {
		return nil, err
	}
	return s.search(ctx, kind, source, vector, limit)
}

// search ranks rows of kind; SourceUnknown matches every source.
func (s *VectorStore) search(ctx context.Context, kind core.RecordKind, source core.Source, vector []float32, limit int) ([]*core.SearchResult, error) {
	if len(vector) != s.dim {
		return nil, fmt.Errorf("%w: query has %d elements, want %d", core.ErrDimensionMismatch, len(vector), s.dim)
	}
	if limit < 1 {
		return nil, storage.ErrInvalidQuery
	}

	exists, err := s.TableExists(kind)
	if err != nil || !exists {
		return nil, err
	}

	s.indexMu.RLock()
	defer s.indexMu.RUnlock()

	centroids, err := s.loadCentroids(kind)
	if err != nil {
		return nil, err
	}

	var results []*core.SearchResult
	if centroids == nil {
		results, err = s.scanAll(kind, source, vector)
	} else {
		results, err = s.scanLists(ctx, kind, source, centroids, vector)
	}
	if err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b *core.SearchResult) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Record.ID, b.Record.ID)
	})
	if len(results) > limit {
		results = results[:limit]
	}
	for _, r := range results {
		r.Record.Vector = nil
	}
	return results, nil
}

func (s *VectorStore) scanAll(kind core.RecordKind, source core.Source, query []float32) ([]*core.SearchResult, error) {
	var results []*core.SearchResult
	err := s.backend.scanPrefix(makeVectorRowPrefix(kind), func(_, val []byte) error {
		record, err := storage.UnmarshalEmbeddingRecord(val)
		if err != nil {
			return err
		}
		if !sourceMatches(record, source) {
			return nil
		}
		results = append(results, &core.SearchResult{Record: record, Score: cosine(query, record.Vector)})
		return nil
	})
	return results, err
}

func (s *VectorStore) scanLists(ctx context.Context, kind core.RecordKind, source core.Source, centroids [][]float32, query []float32) ([]*core.SearchResult, error) {
	seen := make(map[core.ID]bool)
	var candidates []core.ID
	for _, c := range rankCentroids(centroids, normalize(query), s.probes) {
		err := s.backend.scanPrefix(makePartialVectorListKey(kind, c), func(key, _ []byte) error {
			id := rowIDFromKey(key)
			if !seen[id] {
				seen[id] = true
				candidates = append(candidates, id)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var results []*core.SearchResult
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range candidates {
			item, err := tx.Get(makeVectorRowKey(kind, id))
			if err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					continue
				}
				return err
			}
			err = item.Value(func(val []byte) error {
				record, err := storage.UnmarshalEmbeddingRecord(val)
				if err != nil {
					return err
				}
				if sourceMatches(record, source) {
					results = append(results, &core.SearchResult{Record: record, Score: cosine(query, record.Vector)})
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	return results, err
}

func sourceMatches(record *core.EmbeddingRecord, source core.Source) bool {
	return source == core.SourceUnknown || record.Source == source
}
