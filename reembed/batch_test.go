package reembed

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/poiesic/predindex/ai/mock"
	"github.com/poiesic/predindex/core"
	"github.com/poiesic/predindex/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStores(t *testing.T) *badger.MemoryStores {
	t.Helper()
	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })
	return stores
}

func markets(n int) []*core.Record {
	out := make([]*core.Record, n)
	for i := range out {
		out[i] = &core.Record{
			Ticker:   fmt.Sprintf("KX%03d", i),
			Source:   core.SourceKalshi,
			Title:    fmt.Sprintf("market %d", i),
			Outcomes: []string{"Yes", "No"},
		}
	}
	return out
}

func TestBatchProcessor_Process(t *testing.T) {
	stores := newTestStores(t)
	embedder := mock.NewMockEmbedder()
	bp := NewBatchProcessor(stores.Vectors, embedder, 3, time.Millisecond)
	ctx := context.Background()

	batch := markets(3)
	require.NoError(t, bp.Process(ctx, core.KindMarket, batch))
	assert.Equal(t, 1, embedder.CallCount())

	results, err := stores.Vectors.Search(ctx, core.KindMarket, mock.Vector(batch[1].EmbeddingText()), 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Kalshi:KX001", results[0].Record.ID)
	assert.Equal(t, "Yes, No", results[0].Record.Outcomes)

	require.NoError(t, bp.Process(ctx, core.KindMarket, nil))
	assert.Equal(t, 1, embedder.CallCount())
}

func TestBatchProcessor_RetriesEmbedding(t *testing.T) {
	stores := newTestStores(t)
	embedder := mock.NewMockEmbedder()
	calls := 0
	embedder.EmbedTextsFunc = func(_ context.Context, texts []string) ([][]float32, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("busy")
		}
		out := make([][]float32, len(texts))
		for i, text := range texts {
			out[i] = mock.Vector(text)
		}
		return out, nil
	}
	bp := NewBatchProcessor(stores.Vectors, embedder, 3, time.Millisecond)

	require.NoError(t, bp.Process(context.Background(), core.KindEvent, markets(2)))
	assert.Equal(t, 3, calls)
}

func TestBatchProcessor_Failures(t *testing.T) {
	stores := newTestStores(t)
	embedder := mock.NewMockEmbedder()
	bp := NewBatchProcessor(stores.Vectors, embedder, 2, time.Millisecond)
	ctx := context.Background()

	embedder.EmbedTextsFunc = func(context.Context, []string) ([][]float32, error) {
		return nil, errors.New("model missing")
	}
	err := bp.Process(ctx, core.KindMarket, markets(2))
	assert.ErrorContains(t, err, "model missing")
	assert.Equal(t, 2, embedder.CallCount())

	embedder.EmbedTextsFunc = func(_ context.Context, texts []string) ([][]float32, error) {
		return [][]float32{mock.Vector(texts[0])}, nil
	}
	err = bp.Process(ctx, core.KindMarket, markets(2))
	assert.ErrorContains(t, err, "mismatch")

	embedder.EmbedTextsFunc = func(_ context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{1, 2}, {3, 4}}, nil
	}
	err = bp.Process(ctx, core.KindMarket, markets(2))
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
}
