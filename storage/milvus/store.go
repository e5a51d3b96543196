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


package milvus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	mclient "github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/poiesic/predindex/core"
	"github.com/poiesic/predindex/storage"
)

const vectorField = "vector"

// Config holds connection settings for a Milvus server.
type Config struct {
	Address          string
	Username         string
	Password         string
	DBName           string
	CollectionPrefix string
}

// VectorStore implements storage.VectorStore on a Milvus collection per record kind.
type VectorStore struct {
	cli         mclient.Client
	prefix      string
	dim         int
	searchParam entity.SearchParam
	logger      *slog.Logger

	mu    sync.Mutex
	known map[core.RecordKind]bool
}

var _ storage.VectorStore = (*VectorStore)(nil)

// Open connects to Milvus and returns a store over that connection.
func Open(ctx context.Context, cfg Config) (*VectorStore, error) {
	cli, err := mclient.NewClient(ctx, mclient.Config{
		Address:  cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
		DBName:   cfg.DBName,
	})
	if err != nil {
		return nil, fmt.Errorf("connect milvus %s: %w", cfg.Address, err)
	}
	return New(cli, cfg.CollectionPrefix)
}

// New wraps an existing client. Collections are named prefix+"markets" and
// prefix+"events".
func New(cli mclient.Client, prefix string) (*VectorStore, error) {
	if cli == nil {
		return nil, errors.New("milvus client is nil")
	}
	sp, err := entity.NewIndexAUTOINDEXSearchParam(1)
	if err != nil {
		return nil, err
	}
	if prefix == "" {
		prefix = "predindex_"
	}
	return &VectorStore{
		cli:         cli,
		prefix:      prefix,
		dim:         core.VectorDim,
		searchParam: sp,
		logger:      slog.Default().With("component", "milvus-vectors"),
		known:       make(map[core.RecordKind]bool),
	}, nil
}

// Close closes the client connection.
func (s *VectorStore) Close() error {
	return s.cli.Close()
}

// CollectionName returns the collection holding rows of kind.
func (s *VectorStore) CollectionName(kind core.RecordKind) string {
	return s.prefix + kind.String() + "s"
}

func (s *VectorStore) collectionExists(ctx context.Context, kind core.RecordKind) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.known[kind] {
		return true, nil
	}
	ok, err := s.cli.HasCollection(ctx, s.CollectionName(kind))
	if err != nil {
		return false, err
	}
	s.known[kind] = ok
	return ok, nil
}

func (s *VectorStore) ensureCollection(ctx context.Context, kind core.RecordKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.known[kind] {
		return nil
	}

	name := s.CollectionName(kind)
	ok, err := s.cli.HasCollection(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		s.logger.Info("creating collection", "collection", name, "dim", s.dim)
		if err := s.cli.CreateCollection(ctx, buildSchema(name, s.dim), entity.DefaultShardNumber); err != nil {
			return fmt.Errorf("create collection %s: %w", name, err)
		}
	}
	s.known[kind] = true
	return nil
}

// Add upserts rows; Milvus replaces rows with the same primary key.
func (s *VectorStore) Add(ctx context.Context, kind core.RecordKind, records ...*core.EmbeddingRecord) error {
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

	if err := s.ensureCollection(ctx, kind); err != nil {
		return err
	}

	_, err := s.cli.Upsert(ctx, s.CollectionName(kind), "", buildColumns(records, s.dim)...)
	return err
}

// AddMarkets appends market rows.
func (s *VectorStore) AddMarkets(ctx context.Context, records ...*core.EmbeddingRecord) error {
	return s.Add(ctx, core.KindMarket, records...)
}

// AddEvents appends event rows.
func (s *VectorStore) AddEvents(ctx context.Context, records ...*core.EmbeddingRecord) error {
	return s.Add(ctx, core.KindEvent, records...)
}

// CreateIndex flushes pending rows, builds an AUTOINDEX over the vector field
// and loads the collection for search.
func (s *VectorStore) CreateIndex(ctx context.Context, kind core.RecordKind) error {
	ok, err := s.collectionExists(ctx, kind)
	if err != nil {
		return err
	}
	if !ok {
		s.logger.Debug("no collection, skipping index", "kind", kind)
		return nil
	}

	name := s.CollectionName(kind)
	if err := s.cli.Flush(ctx, name, false); err != nil {
		return fmt.Errorf("flush %s: %w", name, err)
	}
	idx, err := entity.NewIndexAUTOINDEX(entity.COSINE)
	if err != nil {
		return err
	}
	if err := s.cli.CreateIndex(ctx, name, vectorField, idx, false); err != nil {
		return fmt.Errorf("create index on %s: %w", name, err)
	}
	if err := s.cli.LoadCollection(ctx, name, false); err != nil {
		return fmt.Errorf("load %s: %w", name, err)
	}
	s.logger.Info("built vector index", "collection", name)
	return nil
}

// Search returns the nearest rows by cosine similarity.
func (s *VectorStore) Search(ctx context.Context, kind core.RecordKind, vector []float32, limit int) ([]*core.SearchResult, error) {
	return s.search(ctx, kind, "", vector, limit)
}

// SearchSource returns the nearest rows of one source. The filter runs
// inside Milvus so other sources never take a result slot.
func (s *VectorStore) SearchSource(ctx context.Context, kind core.RecordKind, source core.Source, vector []float32, limit int) ([]*core.SearchResult, error) {
	if err := core.ValidateSource(source); err != nil {
		return nil, err
	}
	return s.search(ctx, kind, fmt.Sprintf("source == %q", source.String()), vector, limit)
}

func (s *VectorStore) search(ctx context.Context, kind core.RecordKind, expr string, vector []float32, limit int) ([]*core.SearchResult, error) {
	if len(vector) != s.dim {
		return nil, fmt.Errorf("%w: query has %d elements, want %d", core.ErrDimensionMismatch, len(vector), s.dim)
	}
	if limit < 1 {
		return nil, storage.ErrInvalidQuery
	}
	ok, err := s.collectionExists(ctx, kind)
	if err != nil || !ok {
		return nil, err
	}

	res, err := s.cli.Search(
		ctx,
		s.CollectionName(kind),
		[]string{},
		expr,
		outputFields,
		[]entity.Vector{entity.FloatVector(vector)},
		vectorField,
		entity.COSINE,
		limit,
		s.searchParam,
	)
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return nil, nil
	}
	return parseSearchResult(kind, res[0])
}
