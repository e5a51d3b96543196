package predindex

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/predindex/ai"
	"github.com/poiesic/predindex/ai/mock"
	"github.com/poiesic/predindex/core"
	"github.com/poiesic/predindex/reembed"
	"github.com/poiesic/predindex/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticAdapter struct{ src core.Source }

func (a staticAdapter) Source() core.Source                   { return a.src }
func (a staticAdapter) Capabilities() source.Capabilities     { return source.Capabilities{} }
func (a staticAdapter) FetchPage(context.Context, source.PageRequest) (*core.Page, error) {
	return &core.Page{}, nil
}

func TestNewDatabase(t *testing.T) {
	t.Run("create new database", func(t *testing.T) {
		tmpDir := filepath.Join(t.TempDir(), "test_db")
		db, err := NewDatabase(tmpDir)
		require.NoError(t, err)
		require.NotNil(t, db)
		defer db.Close()

		assert.NotNil(t, db.TableStore())
		assert.NotNil(t, db.VectorStore())
		assert.NotNil(t, db.CheckpointStore())
		assert.NotNil(t, db.Embedder())
		assert.NotNil(t, db.backend)
		assert.NotNil(t, db.logger)
	})

	t.Run("error with invalid path", func(t *testing.T) {
		tmpFile := filepath.Join(t.TempDir(), "not_a_dir")
		err := os.WriteFile(tmpFile, []byte("test"), 0644)
		require.NoError(t, err)

		db, err := NewDatabase(tmpFile)
		assert.Error(t, err)
		assert.Nil(t, db)
	})

	t.Run("error with invalid ai config", func(t *testing.T) {
		db, err := NewDatabase("", InMemory(), WithAIConfig(ai.NewConfig(ai.WithEmbeddingModel(""))))
		assert.Error(t, err)
		assert.Nil(t, db)
	})
}

func TestDatabase_Close(t *testing.T) {
	db, err := NewDatabase(t.TempDir())
	require.NoError(t, err)
	assert.NoError(t, db.Close())
}

func TestDatabase_FactoryMethods(t *testing.T) {
	db, err := NewDatabase("", InMemory(), WithEmbedder(mock.NewMockEmbedder()))
	require.NoError(t, err)
	defer db.Close()

	t.Run("can create ingestion engine", func(t *testing.T) {
		engine, err := db.NewIngestionEngine([]source.Adapter{staticAdapter{src: core.SourcePolymarket}})
		require.NoError(t, err)
		defer engine.Release()

		report, err := engine.RunAll(context.Background(), core.IngestionFilter{}, nil)
		require.NoError(t, err)
		require.Len(t, report.Summaries, 1)
		assert.Equal(t, 0, report.Records())
	})

	t.Run("can create searcher", func(t *testing.T) {
		searcher, err := db.NewSearcher()
		require.NoError(t, err)

		results, err := searcher.FindSimilar(context.Background(), core.KindMarket, "anything", 5)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("can create reembedder", func(t *testing.T) {
		r, err := db.NewReembedder(reembed.DefaultConfig(), io.Discard)
		require.NoError(t, err)
		require.NotNil(t, r)
	})
}

func TestDatabase_EndToEnd(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	db, err := NewDatabase("", InMemory(), WithEmbedder(embedder))
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	record := &core.Record{Ticker: "KXFED", Source: core.SourceKalshi, Title: "Fed cuts rates", Outcomes: []string{"Yes", "No"}}
	require.NoError(t, db.TableStore().UpsertMarkets(ctx, record))

	r, err := db.NewReembedder(&reembed.Config{BatchSize: 10, MaxAttempts: 1}, io.Discard)
	require.NoError(t, err)
	_, err = r.Run(ctx, core.KindMarket)
	require.NoError(t, err)

	embedder.EmbedTextFunc = func(context.Context, string) ([]float32, error) {
		return mock.Vector(record.EmbeddingText()), nil
	}
	searcher, err := db.NewSearcher()
	require.NoError(t, err)
	results, err := searcher.FindSimilar(ctx, core.KindMarket, "rates", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "KXFED", results[0].Record.Ticker)
	require.NotNil(t, results[0].Details)
	assert.Equal(t, "Fed cuts rates", results[0].Details.Title)
}
