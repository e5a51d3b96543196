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


package predindex

import (
	"errors"
	"io"
	"log/slog"

	"github.com/poiesic/predindex/ai"
	"github.com/poiesic/predindex/ai/openai"
	"github.com/poiesic/predindex/ingestion"
	"github.com/poiesic/predindex/reembed"
	"github.com/poiesic/predindex/search"
	"github.com/poiesic/predindex/source"
	"github.com/poiesic/predindex/storage"
	"github.com/poiesic/predindex/storage/badger"
)

// Database ties the table, vector and checkpoint stores to one embedder.
type Database struct {
	backend     *badger.Backend
	tables      storage.TableStore
	vectors     storage.VectorStore
	checkpoints storage.CheckpointStore
	embedder    ai.Embedder
	logger      *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	aiConfig   *ai.Config
	embedder   ai.Embedder
	vectors    storage.VectorStore
	vectorOpts []badger.VectorOption
	inMemory   bool
	logger     *slog.Logger
}

// WithAIConfig sets the embedding service configuration.
func WithAIConfig(cfg *ai.Config) DatabaseOption {
	return func(o *databaseOptions) {
		o.aiConfig = cfg
	}
}

// WithEmbedder uses embedder instead of building one from the AI config.
func WithEmbedder(embedder ai.Embedder) DatabaseOption {
	return func(o *databaseOptions) {
		o.embedder = embedder
	}
}

// WithVectorStore replaces the local badger vector store, for example with a
// Milvus collection. The Database takes ownership and closes it.
func WithVectorStore(vectors storage.VectorStore) DatabaseOption {
	return func(o *databaseOptions) {
		o.vectors = vectors
	}
}

// WithVectorOptions tunes the local vector store.
func WithVectorOptions(opts ...badger.VectorOption) DatabaseOption {
	return func(o *databaseOptions) {
		o.vectorOpts = append(o.vectorOpts, opts...)
	}
}

// InMemory keeps everything in memory; the path is ignored.
func InMemory() DatabaseOption {
	return func(o *databaseOptions) {
		o.inMemory = true
	}
}

// WithLogger sets the logger handed to the components.
func WithLogger(logger *slog.Logger) DatabaseOption {
	return func(o *databaseOptions) {
		o.logger = logger
	}
}

func NewDatabase(filePath string, opts ...DatabaseOption) (*Database, error) {
	options := &databaseOptions{
		aiConfig: ai.DefaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	vectors := options.vectors
	if vectors == nil {
		vectorOpts := append([]badger.VectorOption{badger.WithLogger(options.logger)}, options.vectorOpts...)
		local, err := badger.NewVectorStore(backend, vectorOpts...)
		if err != nil {
			backend.Close()
			return nil, err
		}
		vectors = local
	}

	embedder := options.embedder
	if embedder == nil {
		embedder, err = openai.NewEmbedder(options.aiConfig)
		if err != nil {
			vectors.Close()
			backend.Close()
			return nil, err
		}
	}

	return &Database{
		backend:     backend,
		tables:      badger.NewTableStore(backend),
		vectors:     vectors,
		checkpoints: badger.NewCheckpointStore(backend),
		embedder:    embedder,
		logger:      options.logger,
	}, nil
}

func (db *Database) Close() error {
	var errs []error
	if err := db.vectors.Close(); err != nil {
		db.logger.Error("error closing vector store", "err", err)
		errs = append(errs, err)
	}
	if err := db.tables.Close(); err != nil {
		db.logger.Error("error closing table store", "err", err)
		errs = append(errs, err)
	}
	if err := db.backend.Close(); err != nil {
		db.logger.Error("error closing backend storage", "err", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (db *Database) TableStore() storage.TableStore {
	return db.tables
}

func (db *Database) VectorStore() storage.VectorStore {
	return db.vectors
}

func (db *Database) CheckpointStore() storage.CheckpointStore {
	return db.checkpoints
}

func (db *Database) Embedder() ai.Embedder {
	return db.embedder
}

// NewIngestionEngine builds an engine over the database's stores with
// checkpoints enabled. Later options override earlier ones.
func (db *Database) NewIngestionEngine(adapters []source.Adapter, opts ...ingestion.Option) (*ingestion.Engine, error) {
	base := []ingestion.Option{ingestion.WithCheckpoints(db.checkpoints), ingestion.WithLogger(db.logger)}
	return ingestion.NewEngine(db.tables, db.vectors, db.embedder, adapters, append(base, opts...)...)
}

// NewSearcher builds a searcher that hydrates results from the table store.
func (db *Database) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	base := []search.Option{search.WithTables(db.tables), search.WithLogger(db.logger)}
	return search.NewSearcher(db.vectors, db.embedder, append(base, opts...)...)
}

func (db *Database) NewReembedder(config *reembed.Config, progress io.Writer) (*reembed.Reembedder, error) {
	return reembed.NewReembedder(db.tables, db.vectors, db.embedder, config, progress)
}
