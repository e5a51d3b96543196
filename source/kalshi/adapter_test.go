package kalshi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/poiesic/predindex/core"
	"github.com/poiesic/predindex/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const marketsBody = `{
  "cursor": "next-1",
  "markets": [
    {
      "ticker": "KXFED-25DEC-T4.00",
      "title": "Fed funds rate above 4.00%?",
      "subtitle": "December meeting",
      "yes_sub_title": "Above 4.00%",
      "no_sub_title": "At or below 4.00%",
      "status": "active",
      "open_time": "2025-01-02T15:04:05Z",
      "close_time": "2025-12-10T19:00:00Z",
      "volume": 1200,
      "liquidity": 5400.5
    },
    {
      "ticker": "KXMVECOMBO-1",
      "title": "combo",
      "mve_collection_ticker": "KXMVE"
    }
  ]
}`

const eventsBody = `{
  "cursor": "",
  "events": [
    {"event_ticker": "KXFED-25DEC", "title": "Fed decision", "sub_title": "December", "strike_date": "2025-12-10T19:00:00Z"}
  ]
}`

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(WithBaseURL(srv.URL+"/"), WithClient(source.NewClient(srv.Client(), 1000, 10)))
}

func TestAdapter_FetchMarkets(t *testing.T) {
	var query map[string]string
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/markets", r.URL.Path)
		query = map[string]string{
			"limit":  r.URL.Query().Get("limit"),
			"cursor": r.URL.Query().Get("cursor"),
			"status": r.URL.Query().Get("status"),
		}
		_, _ = w.Write([]byte(marketsBody))
	})

	page, err := adapter.FetchPage(context.Background(), source.PageRequest{
		Kind:   core.KindMarket,
		Cursor: "c0",
		Status: "open",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"limit": "100", "cursor": "c0", "status": "open"}, query)
	assert.Equal(t, "next-1", page.NextCursor)

	// the multivariate market is dropped
	require.Len(t, page.Records, 1)
	r := page.Records[0]
	assert.Equal(t, core.KindMarket, r.Kind)
	assert.Equal(t, core.SourceKalshi, r.Source)
	assert.Equal(t, "KXFED-25DEC-T4.00", r.Ticker)
	assert.Equal(t, "December meeting", r.Description)
	assert.Equal(t, []string{"Above 4.00%", "At or below 4.00%"}, r.Outcomes)
	assert.Equal(t, time.Date(2025, 1, 2, 15, 4, 5, 0, time.UTC), r.StartDate)
	require.NotNil(t, r.Volume)
	assert.Equal(t, 1200.0, *r.Volume)
	require.NotNil(t, r.Liquidity)
	assert.Equal(t, 5400.5, *r.Liquidity)
	assert.Equal(t, "https://kalshi.com/markets/KXFED-25DEC-T4.00", r.URL)
}

func TestAdapter_FetchEvents(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/events", r.URL.Path)
		assert.Empty(t, r.URL.Query().Get("cursor"))
		_, _ = w.Write([]byte(eventsBody))
	})

	page, err := adapter.FetchPage(context.Background(), source.PageRequest{Kind: core.KindEvent, Limit: 50})
	require.NoError(t, err)
	assert.Empty(t, page.NextCursor)
	require.Len(t, page.Records, 1)
	assert.Equal(t, core.KindEvent, page.Records[0].Kind)
	assert.Equal(t, "KXFED-25DEC", page.Records[0].Ticker)
	assert.Equal(t, "December", page.Records[0].Description)
	assert.Equal(t, "https://kalshi.com/events/KXFED-25DEC", page.Records[0].URL)
	assert.Empty(t, page.Records[0].Outcomes)
}

func TestAdapter_ServerError(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := adapter.FetchPage(context.Background(), source.PageRequest{Kind: core.KindMarket})
	var httpErr *source.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusTooManyRequests, httpErr.StatusCode)
}

func TestAdapter_Capabilities(t *testing.T) {
	adapter := New()
	assert.Equal(t, core.SourceKalshi, adapter.Source())
	assert.True(t, adapter.Capabilities().Events)
	assert.True(t, adapter.Capabilities().StatusFilter)

	_, err := adapter.FetchPage(context.Background(), source.PageRequest{Kind: core.RecordKind(99)})
	assert.ErrorIs(t, err, source.ErrUnsupportedKind)
}

func TestAdapter_Quote(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/markets/KXFED-25DEC-T4.00", r.URL.Path)
		w.Write([]byte(`{"market": {
			"ticker": "KXFED-25DEC-T4.00",
			"last_price": 42,
			"yes_bid": 41,
			"yes_ask": 44,
			"volume": 1200
		}}`))
	})

	q, err := adapter.Quote(context.Background(), "KXFED-25DEC-T4.00")
	require.NoError(t, err)
	assert.Equal(t, "KXFED-25DEC-T4.00", q.Ticker)
	assert.Equal(t, core.SourceKalshi, q.Source)
	assert.Equal(t, "0.42", q.Price.String())
	assert.Equal(t, "0.41", q.Bid.Decimal.String())
	assert.Equal(t, "0.44", q.Ask.Decimal.String())
	require.True(t, q.Volume.Valid)
	assert.Equal(t, "1200", q.Volume.Decimal.String())
	assert.WithinDuration(t, time.Now(), q.Timestamp, time.Minute)
}

func TestAdapter_QuoteWithoutTrades(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"market": {"ticker": "KXNEW", "yes_bid": 30, "yes_ask": 40}}`))
	})

	q, err := adapter.Quote(context.Background(), "KXNEW")
	require.NoError(t, err)
	assert.Equal(t, "0.35", q.Price.String())
	assert.False(t, q.Volume.Valid)
}

func TestAdapter_QuoteNotFound(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	_, err := adapter.Quote(context.Background(), "KXGONE")
	var httpErr *source.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)

	_, err = adapter.Quote(context.Background(), "")
	assert.ErrorIs(t, err, source.ErrTickerRequired)
}
