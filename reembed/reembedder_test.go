package reembed

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poiesic/predindex/ai/mock"
	"github.com/poiesic/predindex/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReembedder_Validation(t *testing.T) {
	stores := newTestStores(t)
	embedder := mock.NewMockEmbedder()

	_, err := NewReembedder(nil, stores.Vectors, embedder, nil, nil)
	assert.ErrorIs(t, err, ErrStoreRequired)
	_, err = NewReembedder(stores.Tables, nil, embedder, nil, nil)
	assert.ErrorIs(t, err, ErrStoreRequired)
	_, err = NewReembedder(stores.Tables, stores.Vectors, nil, nil, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)
}

func TestReembedder_RebuildsVectorsFromTable(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	// table rows without vectors, as after a failed ingestion page
	records := markets(25)
	require.NoError(t, stores.Tables.UpsertMarkets(ctx, records...))
	exists, err := stores.Vectors.TableExists(core.KindMarket)
	require.NoError(t, err)
	require.False(t, exists)

	embedder := mock.NewMockEmbedder()
	var out bytes.Buffer
	r, err := NewReembedder(stores.Tables, stores.Vectors, embedder, &Config{
		BatchSize:      10,
		ReportInterval: 10,
		MaxAttempts:    1,
		RetryDelay:     time.Millisecond,
	}, &out)
	require.NoError(t, err)

	res, err := r.Run(ctx, core.KindMarket)
	require.NoError(t, err)
	assert.Equal(t, 25, res.Records)
	assert.Equal(t, 3, embedder.CallCount())
	assert.Contains(t, out.String(), "Reembedding 25 markets (batch size: 10)")
	assert.Contains(t, out.String(), "markets: 25/25")

	results, err := stores.Vectors.Search(ctx, core.KindMarket, mock.Vector(records[7].EmbeddingText()), 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Kalshi:KX007", results[0].Record.ID)
}

func TestReembedder_EmptyKind(t *testing.T) {
	stores := newTestStores(t)
	var out bytes.Buffer
	r, err := NewReembedder(stores.Tables, stores.Vectors, mock.NewMockEmbedder(), nil, &out)
	require.NoError(t, err)

	res, err := r.Run(context.Background(), core.KindEvent)
	require.NoError(t, err)
	assert.Zero(t, res.Records)
	assert.Contains(t, out.String(), "No events stored")

	_, err = r.Run(context.Background(), core.RecordKind(42))
	assert.ErrorIs(t, err, core.ErrInvalidKind)
}

func TestReembedder_StopsOnBatchFailure(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()
	require.NoError(t, stores.Tables.UpsertEvents(ctx, markets(5)...))

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(context.Context, []string) ([][]float32, error) {
		return nil, errors.New("offline")
	}
	r, err := NewReembedder(stores.Tables, stores.Vectors, embedder, &Config{BatchSize: 2, MaxAttempts: 1}, nil)
	require.NoError(t, err)

	res, err := r.Run(ctx, core.KindEvent)
	assert.ErrorContains(t, err, "offline")
	assert.Zero(t, res.Records)
}

func TestReembedder_RunAll(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()
	require.NoError(t, stores.Tables.UpsertMarkets(ctx, markets(3)...))
	require.NoError(t, stores.Tables.UpsertEvents(ctx, markets(2)...))

	r, err := NewReembedder(stores.Tables, stores.Vectors, mock.NewMockEmbedder(), nil, nil)
	require.NoError(t, err)

	results, err := r.RunAll(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, core.KindMarket, results[0].Kind)
	assert.Equal(t, 3, results[0].Records)
	assert.Equal(t, core.KindEvent, results[1].Kind)
	assert.Equal(t, 2, results[1].Records)
}
