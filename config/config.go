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


package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/poiesic/predindex/ai"
	"github.com/poiesic/predindex/core"
	"github.com/poiesic/predindex/ingestion"
	"github.com/poiesic/predindex/source"
	"github.com/poiesic/predindex/source/kalshi"
	"github.com/poiesic/predindex/source/polymarket"
)

// Vector store backends.
const (
	BackendBadger = "badger"
	BackendMilvus = "milvus"
)

type Config struct {
	DataDir     string            `yaml:"data_dir"`
	Log         LogConfig         `yaml:"log"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Sources     SourcesConfig     `yaml:"sources"`
	Ingestion   IngestionConfig   `yaml:"ingestion"`
	Server      ServerConfig      `yaml:"server"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type EmbeddingConfig struct {
	Host      string `yaml:"host"`
	Model     string `yaml:"model"`
	Token     string `yaml:"token"`
	BatchSize int    `yaml:"batch_size"`
}

type VectorStoreConfig struct {
	Backend string       `yaml:"backend"`
	Milvus  MilvusConfig `yaml:"milvus"`
}

type MilvusConfig struct {
	Address          string `yaml:"address"`
	Username         string `yaml:"username"`
	Password         string `yaml:"password"`
	DBName           string `yaml:"db_name"`
	CollectionPrefix string `yaml:"collection_prefix"`
}

type SourcesConfig struct {
	Kalshi     SourceConfig `yaml:"kalshi"`
	Polymarket SourceConfig `yaml:"polymarket"`
}

type SourceConfig struct {
	Enabled           bool          `yaml:"enabled"`
	BaseURL           string        `yaml:"base_url"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	Timeout           time.Duration `yaml:"timeout"`
}

type IngestionConfig struct {
	Statuses     []string      `yaml:"statuses"`
	MaxPages     int           `yaml:"max_pages"`
	PageSize     int           `yaml:"page_size"`
	MaxRetries   int           `yaml:"max_retries"`
	BackoffBase  time.Duration `yaml:"backoff_base"`
	PageDelay    time.Duration `yaml:"page_delay"`
	EmbedWorkers int           `yaml:"embed_workers"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	emb := ai.DefaultConfig()
	policy := ingestion.DefaultPolicy()
	return &Config{
		DataDir: "./data",
		Log:     LogConfig{Level: "info"},
		Embedding: EmbeddingConfig{
			Host:      emb.EmbeddingHost,
			Model:     emb.EmbeddingModel,
			Token:     emb.Token,
			BatchSize: emb.BatchSize,
		},
		VectorStore: VectorStoreConfig{
			Backend: BackendBadger,
			Milvus:  MilvusConfig{Address: "localhost:19530", CollectionPrefix: "predindex_"},
		},
		Sources: SourcesConfig{
			Kalshi:     defaultSource(kalshi.DefaultBaseURL),
			Polymarket: defaultSource(polymarket.DefaultBaseURL),
		},
		Ingestion: IngestionConfig{
			Statuses:    append([]string(nil), core.DefaultStatuses...),
			PageSize:    policy.PageSize,
			MaxRetries:  policy.MaxRetries,
			BackoffBase: policy.BackoffBase,
			PageDelay:   policy.PageDelay,
		},
		Server: ServerConfig{Addr: ":8080"},
	}
}

func defaultSource(baseURL string) SourceConfig {
	return SourceConfig{
		Enabled:           true,
		BaseURL:           baseURL,
		RequestsPerSecond: source.DefaultRequestsPerSecond,
		Burst:             source.DefaultBurst,
		Timeout:           source.DefaultTimeout,
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadEnvFiles loads variables from .env style files into the process
// environment without overriding variables already set. Missing files are
// ignored. With no arguments it reads ./.env.
func LoadEnvFiles(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	setString("PREDINDEX_DATA_DIR", &c.DataDir)
	setString("PREDINDEX_LOG_LEVEL", &c.Log.Level)
	setString("PREDINDEX_LOG_FILE", &c.Log.File)
	setString("PREDINDEX_EMBEDDING_HOST", &c.Embedding.Host)
	setString("PREDINDEX_EMBEDDING_MODEL", &c.Embedding.Model)
	setString("PREDINDEX_EMBEDDING_TOKEN", &c.Embedding.Token)
	setString("PREDINDEX_VECTOR_BACKEND", &c.VectorStore.Backend)
	setString("MILVUS_ADDRESS", &c.VectorStore.Milvus.Address)
	setString("MILVUS_USERNAME", &c.VectorStore.Milvus.Username)
	setString("MILVUS_PASSWORD", &c.VectorStore.Milvus.Password)
	setString("PREDINDEX_KALSHI_BASE_URL", &c.Sources.Kalshi.BaseURL)
	setString("PREDINDEX_POLYMARKET_BASE_URL", &c.Sources.Polymarket.BaseURL)
	setString("PREDINDEX_SERVER_ADDR", &c.Server.Addr)

	if v := strings.TrimSpace(os.Getenv("PREDINDEX_EMBED_WORKERS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PREDINDEX_EMBED_WORKERS: %w", err)
		}
		c.Ingestion.EmbedWorkers = n
	}
	return nil
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("data_dir is required")
	}
	switch c.VectorStore.Backend {
	case BackendBadger:
	case BackendMilvus:
		if c.VectorStore.Milvus.Address == "" {
			return errors.New("vector_store.milvus.address is required")
		}
	default:
		return fmt.Errorf("vector_store.backend must be %q or %q, got %q", BackendBadger, BackendMilvus, c.VectorStore.Backend)
	}
	if c.Ingestion.MaxRetries < 0 {
		return errors.New("ingestion.max_retries must not be negative")
	}
	if c.Ingestion.MaxPages < 0 {
		return errors.New("ingestion.max_pages must not be negative")
	}
	if !c.Sources.Kalshi.Enabled && !c.Sources.Polymarket.Enabled {
		return errors.New("at least one source must be enabled")
	}
	return c.AI().Validate()
}

// AI returns the embedding service configuration.
func (c *Config) AI() *ai.Config {
	return ai.NewConfig(
		ai.WithEmbeddingHost(c.Embedding.Host),
		ai.WithEmbeddingModel(c.Embedding.Model),
		ai.WithToken(c.Embedding.Token),
		ai.WithBatchSize(c.Embedding.BatchSize),
	)
}

// Policy returns the ingestion retry and pacing policy.
func (c *Config) Policy() ingestion.Policy {
	return ingestion.Policy{
		MaxRetries:  c.Ingestion.MaxRetries,
		BackoffBase: c.Ingestion.BackoffBase,
		PageDelay:   c.Ingestion.PageDelay,
		PageSize:    c.Ingestion.PageSize,
	}
}

// Filter returns the ingestion filter for the configured statuses and
// page limit, restricted to sources when any are given.
func (c *Config) Filter(sources ...core.Source) core.IngestionFilter {
	return core.IngestionFilter{
		Sources:  sources,
		Statuses: c.Ingestion.Statuses,
		MaxPages: c.Ingestion.MaxPages,
	}
}

// Adapters builds the enabled source adapters. A nil logger selects
// slog.Default().
func (c *Config) Adapters(logger *slog.Logger) []source.Adapter {
	if logger == nil {
		logger = slog.Default()
	}

	var adapters []source.Adapter
	if sc := c.Sources.Kalshi; sc.Enabled {
		opts := []kalshi.Option{kalshi.WithClient(sc.client()), kalshi.WithLogger(logger)}
		if sc.BaseURL != "" {
			opts = append(opts, kalshi.WithBaseURL(sc.BaseURL))
		}
		adapters = append(adapters, kalshi.New(opts...))
	}
	if sc := c.Sources.Polymarket; sc.Enabled {
		opts := []polymarket.Option{polymarket.WithClient(sc.client()), polymarket.WithLogger(logger)}
		if sc.BaseURL != "" {
			opts = append(opts, polymarket.WithBaseURL(sc.BaseURL))
		}
		adapters = append(adapters, polymarket.New(opts...))
	}
	return adapters
}

func (sc SourceConfig) client() *source.Client {
	timeout := sc.Timeout
	if timeout <= 0 {
		timeout = source.DefaultTimeout
	}
	return source.NewClient(&http.Client{Timeout: timeout}, sc.RequestsPerSecond, sc.Burst)
}
