package badger

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/poiesic/predindex/core"
	"github.com/poiesic/predindex/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStores(t *testing.T, opts ...VectorOption) *MemoryStores {
	t.Helper()
	stores, err := NewMemoryStores(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })
	return stores
}

func market(source core.Source, ticker, title string) *core.Record {
	return &core.Record{
		Ticker:   ticker,
		Source:   source,
		Title:    title,
		Status:   "active",
		Outcomes: []string{"Yes", "No"},
	}
}

func TestTableStore_UpsertAndGet(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	err := stores.Tables.UpsertMarkets(ctx,
		market(core.SourceKalshi, "KXA", "first"),
		market(core.SourcePolymarket, "KXA", "same ticker other source"),
	)
	require.NoError(t, err)

	got, err := stores.Tables.Get(ctx, core.KindMarket, core.SourceKalshi, "KXA")
	require.NoError(t, err)
	assert.Equal(t, "first", got.Title)
	assert.Equal(t, core.KindMarket, got.Kind)
	assert.False(t, got.IngestedAt.IsZero())

	count, err := stores.Tables.Count(ctx, core.KindMarket)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = stores.Tables.Count(ctx, core.KindEvent)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestTableStore_UpsertIsIdempotent(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	page := []*core.Record{
		market(core.SourceKalshi, "KXA", "a"),
		market(core.SourceKalshi, "KXB", "b"),
	}
	require.NoError(t, stores.Tables.UpsertMarkets(ctx, page...))
	require.NoError(t, stores.Tables.UpsertMarkets(ctx, page...))

	count, err := stores.Tables.Count(ctx, core.KindMarket)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// later ingestion overwrites
	require.NoError(t, stores.Tables.UpsertMarkets(ctx, market(core.SourceKalshi, "KXA", "renamed")))
	got, err := stores.Tables.Get(ctx, core.KindMarket, core.SourceKalshi, "KXA")
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Title)
}

func TestTableStore_UpsertRejectsInvalidPageAtomically(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	err := stores.Tables.UpsertMarkets(ctx,
		market(core.SourceKalshi, "KXA", "ok"),
		market(core.SourceKalshi, "", "missing ticker"),
	)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrEmptyTicker))

	count, err := stores.Tables.Count(ctx, core.KindMarket)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestTableStore_KindsAreSeparate(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	require.NoError(t, stores.Tables.UpsertEvents(ctx, market(core.SourceKalshi, "KXELECT", "event")))

	_, err := stores.Tables.Get(ctx, core.KindMarket, core.SourceKalshi, "KXELECT")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	got, err := stores.Tables.Get(ctx, core.KindEvent, core.SourceKalshi, "KXELECT")
	require.NoError(t, err)
	assert.Equal(t, core.KindEvent, got.Kind)
}

func TestTableStore_ForEach(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	var page []*core.Record
	for i := 0; i < 7; i++ {
		page = append(page, market(core.SourceKalshi, fmt.Sprintf("KX%02d", i), "m"))
	}
	require.NoError(t, stores.Tables.UpsertMarkets(ctx, page...))

	var sizes []int
	seen := 0
	err := stores.Tables.ForEach(ctx, core.KindMarket, 3, func(batch []*core.Record) error {
		sizes = append(sizes, len(batch))
		seen += len(batch)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 3, 1}, sizes)
	assert.Equal(t, 7, seen)

	stop := errors.New("stop")
	calls := 0
	err = stores.Tables.ForEach(ctx, core.KindMarket, 3, func(batch []*core.Record) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)

	err = stores.Tables.ForEach(ctx, core.KindMarket, 0, func([]*core.Record) error { return nil })
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestTableStore_UpsertCanceledContext(t *testing.T) {
	stores := newTestStores(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := stores.Tables.UpsertMarkets(ctx, market(core.SourceKalshi, "KXA", "a"))
	assert.ErrorIs(t, err, context.Canceled)
}
