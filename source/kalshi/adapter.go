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


package kalshi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/poiesic/predindex/core"
	"github.com/poiesic/predindex/source"
)

// DefaultBaseURL is the public trade API.
const DefaultBaseURL = "https://api.elections.kalshi.com/trade-api/v2"

// Adapter lists Kalshi markets and events.
type Adapter struct {
	baseURL string
	client  *source.Client
	logger  *slog.Logger
}

var (
	_ source.Adapter = (*Adapter)(nil)
	_ source.Quoter  = (*Adapter)(nil)
)

// Option configures an Adapter.
type Option func(*Adapter)

// WithBaseURL overrides the API root.
func WithBaseURL(u string) Option {
	return func(a *Adapter) {
		a.baseURL = strings.TrimRight(u, "/")
	}
}

// WithClient sets the rate-limited HTTP client.
func WithClient(c *source.Client) Option {
	return func(a *Adapter) {
		a.client = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) {
		a.logger = l
	}
}

// New returns an adapter for the public Kalshi API.
func New(opts ...Option) *Adapter {
	a := &Adapter{
		baseURL: DefaultBaseURL,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.client == nil {
		a.client = source.NewClient(&http.Client{Timeout: source.DefaultTimeout}, 0, 0)
	}
	a.logger = a.logger.With("component", "kalshi")
	return a
}

func (a *Adapter) Source() core.Source {
	return core.SourceKalshi
}

func (a *Adapter) Capabilities() source.Capabilities {
	return source.Capabilities{Events: true, StatusFilter: true}
}

// FetchPage fetches one page of markets or events.
func (a *Adapter) FetchPage(ctx context.Context, req source.PageRequest) (*core.Page, error) {
	switch req.Kind {
	case core.KindMarket:
		return a.fetchMarkets(ctx, req)
	case core.KindEvent:
		return a.fetchEvents(ctx, req)
	default:
		return nil, fmt.Errorf("%w: %s", source.ErrUnsupportedKind, req.Kind)
	}
}

func (a *Adapter) endpoint(path string, req source.PageRequest) string {
	q := url.Values{}
	limit := req.Limit
	if limit <= 0 {
		limit = source.DefaultPageSize
	}
	q.Set("limit", strconv.Itoa(limit))
	if req.Cursor != "" {
		q.Set("cursor", req.Cursor)
	}
	if req.Status != "" {
		q.Set("status", req.Status)
	}
	return a.baseURL + path + "?" + q.Encode()
}

func (a *Adapter) fetchMarkets(ctx context.Context, req source.PageRequest) (*core.Page, error) {
	var resp marketsResponse
	if err := a.client.GetJSON(ctx, a.endpoint("/markets", req), &resp); err != nil {
		return nil, err
	}

	page := &core.Page{NextCursor: resp.Cursor, Records: make([]*core.Record, 0, len(resp.Markets))}
	skipped := 0
	for _, m := range resp.Markets {
		// multivariate combos duplicate their legs
		if m.MVECollectionTicker != "" {
			skipped++
			continue
		}
		page.Records = append(page.Records, m.toRecord())
	}
	if skipped > 0 {
		a.logger.Debug("skipped multivariate markets", "count", skipped)
	}
	return page, nil
}

func (a *Adapter) fetchEvents(ctx context.Context, req source.PageRequest) (*core.Page, error) {
	var resp eventsResponse
	if err := a.client.GetJSON(ctx, a.endpoint("/events", req), &resp); err != nil {
		return nil, err
	}

	page := &core.Page{NextCursor: resp.Cursor, Records: make([]*core.Record, 0, len(resp.Events))}
	for _, e := range resp.Events {
		page.Records = append(page.Records, e.toRecord())
	}
	return page, nil
}

// Quote fetches a single market and reports its last trade, best yes bid
// and ask, and volume.
func (a *Adapter) Quote(ctx context.Context, ticker string) (*core.Quote, error) {
	if ticker == "" {
		return nil, source.ErrTickerRequired
	}
	var resp marketResponse
	if err := a.client.GetJSON(ctx, a.baseURL+"/markets/"+url.PathEscape(ticker), &resp); err != nil {
		return nil, err
	}
	if resp.Market.Ticker == "" {
		resp.Market.Ticker = ticker
	}
	return resp.Market.toQuote(time.Now().UTC()), nil
}

// parseTime accepts RFC 3339 timestamps; anything else is the zero time.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
