package milvus

import (
	"context"
	"errors"
	"sync"
	"testing"

	mclient "github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/poiesic/predindex/ai/mock"
	"github.com/poiesic/predindex/core"
	"github.com/poiesic/predindex/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient records the calls the store makes. Methods the store never
// calls fall through to the nil embedded interface and panic.
type fakeClient struct {
	mclient.Client

	mu          sync.Mutex
	collections map[string]bool
	created     []*entity.Schema
	upserts     map[string][]entity.Column
	flushed     []string
	indexed     []string
	loaded      []string
	searchRes   []mclient.SearchResult
	searchErr   error
	searchTopK  int
	searchExpr  string
	closed      bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		collections: make(map[string]bool),
		upserts:     make(map[string][]entity.Column),
	}
}

func (f *fakeClient) HasCollection(_ context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.collections[name], nil
}

func (f *fakeClient) CreateCollection(_ context.Context, schema *entity.Schema, _ int32, _ ...mclient.CreateCollectionOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.collections[schema.CollectionName] = true
	f.created = append(f.created, schema)
	return nil
}

func (f *fakeClient) Upsert(_ context.Context, name, _ string, cols ...entity.Column) (entity.Column, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts[name] = cols
	return cols[0], nil
}

func (f *fakeClient) Flush(_ context.Context, name string, _ bool, _ ...mclient.FlushOption) error {
	f.flushed = append(f.flushed, name)
	return nil
}

func (f *fakeClient) CreateIndex(_ context.Context, name, field string, _ entity.Index, _ bool, _ ...mclient.IndexOption) error {
	f.indexed = append(f.indexed, name+"."+field)
	return nil
}

func (f *fakeClient) LoadCollection(_ context.Context, name string, _ bool, _ ...mclient.LoadCollectionOption) error {
	f.loaded = append(f.loaded, name)
	return nil
}

func (f *fakeClient) Search(_ context.Context, _ string, _ []string, expr string, _ []string, _ []entity.Vector,
	_ string, _ entity.MetricType, topK int, _ entity.SearchParam, _ ...mclient.SearchQueryOptionFunc) ([]mclient.SearchResult, error) {
	f.searchTopK = topK
	f.searchExpr = expr
	return f.searchRes, f.searchErr
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func embeddingRecord(source core.Source, ticker string) *core.EmbeddingRecord {
	return &core.EmbeddingRecord{
		ID:       core.EmbeddingID(source, ticker),
		Vector:   mock.Vector(ticker),
		Ticker:   ticker,
		Source:   source,
		Title:    "title " + ticker,
		Outcomes: "Yes, No",
	}
}

func TestVectorStore_AddCreatesCollectionOnce(t *testing.T) {
	cli := newFakeClient()
	store, err := New(cli, "test_")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.AddMarkets(ctx, embeddingRecord(core.SourceKalshi, "KXA")))
	require.NoError(t, store.AddMarkets(ctx, embeddingRecord(core.SourceKalshi, "KXB")))

	require.Len(t, cli.created, 1)
	assert.Equal(t, "test_markets", cli.created[0].CollectionName)
	assert.Len(t, cli.created[0].Fields, 8)
	assert.True(t, cli.created[0].Fields[0].PrimaryKey)

	cols := cli.upserts["test_markets"]
	require.Len(t, cols, 8)
	ids, ok := cols[0].(*entity.ColumnVarChar)
	require.True(t, ok)
	assert.Equal(t, []string{"Kalshi:KXB"}, ids.Data())
	vectors, ok := cols[1].(*entity.ColumnFloatVector)
	require.True(t, ok)
	assert.Len(t, vectors.Data()[0], core.VectorDim)
}

func TestVectorStore_AddRejectsBadDimension(t *testing.T) {
	cli := newFakeClient()
	store, err := New(cli, "")
	require.NoError(t, err)

	bad := embeddingRecord(core.SourceKalshi, "KXA")
	bad.Vector = bad.Vector[:8]
	err = store.AddEvents(context.Background(), bad)
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
	assert.Empty(t, cli.created)
	assert.Empty(t, cli.upserts)
}

func TestVectorStore_CreateIndex(t *testing.T) {
	cli := newFakeClient()
	store, err := New(cli, "p_")
	require.NoError(t, err)
	ctx := context.Background()

	// missing collection is a no-op
	require.NoError(t, store.CreateIndex(ctx, core.KindEvent))
	assert.Empty(t, cli.indexed)

	require.NoError(t, store.AddEvents(ctx, embeddingRecord(core.SourceKalshi, "KXE")))
	require.NoError(t, store.CreateIndex(ctx, core.KindEvent))
	assert.Equal(t, []string{"p_events"}, cli.flushed)
	assert.Equal(t, []string{"p_events.vector"}, cli.indexed)
	assert.Equal(t, []string{"p_events"}, cli.loaded)
}

func TestVectorStore_Search(t *testing.T) {
	cli := newFakeClient()
	cli.collections["predindex_markets"] = true
	cli.searchRes = []mclient.SearchResult{{
		ResultCount: 2,
		IDs:         entity.NewColumnVarChar("id", []string{"Kalshi:KXA", "Polymarket:123"}),
		Fields: mclient.ResultSet{
			entity.NewColumnVarChar("ticker", []string{"KXA", "123"}),
			entity.NewColumnVarChar("source", []string{"Kalshi", "Polymarket"}),
			entity.NewColumnVarChar("title", []string{"a", "b"}),
		},
		Scores: []float32{0.9, 0.5},
	}}
	store, err := New(cli, "")
	require.NoError(t, err)
	ctx := context.Background()

	results, err := store.Search(ctx, core.KindMarket, mock.Vector("q"), 5)
	require.NoError(t, err)
	assert.Equal(t, 5, cli.searchTopK)
	require.Len(t, results, 2)
	assert.Equal(t, "Kalshi:KXA", results[0].Record.ID)
	assert.Equal(t, core.SourcePolymarket, results[1].Record.Source)
	assert.Equal(t, "b", results[1].Record.Title)
	assert.Equal(t, core.KindMarket, results[1].Record.Kind)
	assert.Empty(t, results[1].Record.URL)
	assert.InDelta(t, 0.5, results[1].Score, 1e-6)

	_, err = store.Search(ctx, core.KindMarket, mock.Vector("q"), 0)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)

	_, err = store.Search(ctx, core.KindMarket, []float32{1}, 1)
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)

	// no events collection
	results, err = store.Search(ctx, core.KindEvent, mock.Vector("q"), 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestVectorStore_SearchSourceFiltersInMilvus(t *testing.T) {
	cli := newFakeClient()
	cli.collections["predindex_markets"] = true
	cli.searchRes = []mclient.SearchResult{{
		ResultCount: 1,
		IDs:         entity.NewColumnVarChar("id", []string{"Polymarket:123"}),
		Fields: mclient.ResultSet{
			entity.NewColumnVarChar("ticker", []string{"123"}),
			entity.NewColumnVarChar("source", []string{"Polymarket"}),
			entity.NewColumnVarChar("title", []string{"b"}),
		},
		Scores: []float32{0.9},
	}}
	store, err := New(cli, "")
	require.NoError(t, err)
	ctx := context.Background()

	results, err := store.SearchSource(ctx, core.KindMarket, core.SourcePolymarket, mock.Vector("q"), 1)
	require.NoError(t, err)
	assert.Equal(t, `source == "Polymarket"`, cli.searchExpr)
	assert.Equal(t, 1, cli.searchTopK)
	require.Len(t, results, 1)
	assert.Equal(t, core.SourcePolymarket, results[0].Record.Source)

	_, err = store.Search(ctx, core.KindMarket, mock.Vector("q"), 1)
	require.NoError(t, err)
	assert.Empty(t, cli.searchExpr)

	_, err = store.SearchSource(ctx, core.KindMarket, core.SourceUnknown, mock.Vector("q"), 1)
	assert.ErrorIs(t, err, core.ErrUnknownSource)
}

func TestVectorStore_SearchError(t *testing.T) {
	cli := newFakeClient()
	cli.collections["predindex_markets"] = true
	boom := errors.New("boom")
	cli.searchRes = []mclient.SearchResult{{Err: boom}}
	store, err := New(cli, "")
	require.NoError(t, err)

	_, err = store.Search(context.Background(), core.KindMarket, mock.Vector("q"), 3)
	assert.ErrorIs(t, err, boom)

	require.NoError(t, store.Close())
	assert.True(t, cli.closed)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab", truncate("abc", 2))
	// "é" is two bytes; cutting inside it drops the partial rune
	assert.Equal(t, "a", truncate("aé", 2))
}

func TestNewRejectsNilClient(t *testing.T) {
	_, err := New(nil, "")
	assert.Error(t, err)
}
