package polymarket

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/poiesic/predindex/core"
	"github.com/poiesic/predindex/source"
)

// DefaultBaseURL is the public CLOB API.
const DefaultBaseURL = "https://clob.polymarket.com"

// endCursor is what the CLOB returns after the last page.
const endCursor = "LTE="

// Adapter lists Polymarket CLOB markets. The CLOB has no event listing and
// no status filter, so every request is unfiltered.
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

// New returns an adapter for the public CLOB API.
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
	a.logger = a.logger.With("component", "polymarket")
	return a
}

func (a *Adapter) Source() core.Source {
	return core.SourcePolymarket
}

func (a *Adapter) Capabilities() source.Capabilities {
	return source.Capabilities{}
}

// FetchPage fetches one page of markets. Limit and Status are ignored; the
// CLOB decides the page size.
func (a *Adapter) FetchPage(ctx context.Context, req source.PageRequest) (*core.Page, error) {
	if req.Kind != core.KindMarket {
		return nil, fmt.Errorf("%w: %s", source.ErrUnsupportedKind, req.Kind)
	}

	endpoint := a.baseURL + "/markets"
	if req.Cursor != "" {
		endpoint += "?next_cursor=" + url.QueryEscape(req.Cursor)
	}

	var resp marketsResponse
	if err := a.client.GetJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}

	next := resp.NextCursor
	if next == endCursor {
		next = ""
	}

	page := &core.Page{NextCursor: next, Records: make([]*core.Record, 0, len(resp.Data))}
	skipped := 0
	for _, m := range resp.Data {
		if len(m.Tokens) == 0 {
			skipped++
			continue
		}
		page.Records = append(page.Records, m.toRecord())
	}
	if skipped > 0 {
		a.logger.Debug("skipped markets without tokens", "count", skipped)
	}
	return page, nil
}

// Quote reads the order book of a token and prices it at the midpoint of
// the best bid and ask. A 0x condition id is resolved to its first token.
func (a *Adapter) Quote(ctx context.Context, ticker string) (*core.Quote, error) {
	if ticker == "" {
		return nil, source.ErrTickerRequired
	}
	tokenID := ticker
	if strings.HasPrefix(ticker, "0x") {
		var err error
		if tokenID, err = a.resolveToken(ctx, ticker); err != nil {
			return nil, err
		}
	}

	var book bookResponse
	if err := a.client.GetJSON(ctx, a.baseURL+"/book?token_id="+url.QueryEscape(tokenID), &book); err != nil {
		return nil, err
	}
	bid, ask := book.best()
	return &core.Quote{
		Ticker:    ticker,
		Source:    core.SourcePolymarket,
		Price:     core.Midpoint(bid, ask),
		Bid:       bid,
		Ask:       ask,
		Timestamp: time.Now().UTC(),
	}, nil
}

func (a *Adapter) resolveToken(ctx context.Context, conditionID string) (string, error) {
	var m market
	if err := a.client.GetJSON(ctx, a.baseURL+"/markets/"+url.PathEscape(conditionID), &m); err != nil {
		return "", err
	}
	if len(m.Tokens) == 0 {
		return "", fmt.Errorf("market %s has no tokens", conditionID)
	}
	a.logger.Debug("resolved condition id", "condition_id", conditionID, "token_id", m.Tokens[0].TokenID)
	return m.Tokens[0].TokenID, nil
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05Z07:00", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
