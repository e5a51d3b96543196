package kalshi

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/poiesic/predindex/core"
)

type marketsResponse struct {
	Markets []market `json:"markets"`
	Cursor  string   `json:"cursor"`
}

type market struct {
	Ticker              string   `json:"ticker"`
	EventTicker         string   `json:"event_ticker"`
	Title               string   `json:"title"`
	Subtitle            string   `json:"subtitle"`
	YesSubTitle         string   `json:"yes_sub_title"`
	NoSubTitle          string   `json:"no_sub_title"`
	Status              string   `json:"status"`
	OpenTime            string   `json:"open_time"`
	CloseTime           string   `json:"close_time"`
	Volume              *float64 `json:"volume"`
	Liquidity           *float64 `json:"liquidity"`
	MVECollectionTicker string   `json:"mve_collection_ticker"`

	// prices in cents
	LastPrice *int64 `json:"last_price"`
	YesBid    *int64 `json:"yes_bid"`
	YesAsk    *int64 `json:"yes_ask"`
}

type marketResponse struct {
	Market market `json:"market"`
}

func cents(v *int64) decimal.NullDecimal {
	if v == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.New(*v, -2))
}

func (m market) toQuote(now time.Time) *core.Quote {
	q := &core.Quote{
		Ticker:    m.Ticker,
		Source:    core.SourceKalshi,
		Bid:       cents(m.YesBid),
		Ask:       cents(m.YesAsk),
		Timestamp: now,
	}
	if last := cents(m.LastPrice); last.Valid {
		q.Price = last.Decimal
	} else {
		q.Price = core.Midpoint(q.Bid, q.Ask)
	}
	if m.Volume != nil {
		q.Volume = decimal.NewNullDecimal(decimal.NewFromFloat(*m.Volume))
	}
	return q
}

func (m market) toRecord() *core.Record {
	return &core.Record{
		Kind:        core.KindMarket,
		Ticker:      m.Ticker,
		Source:      core.SourceKalshi,
		Title:       m.Title,
		Description: m.Subtitle,
		Status:      m.Status,
		Outcomes:    []string{m.YesSubTitle, m.NoSubTitle},
		StartDate:   parseTime(m.OpenTime),
		EndDate:     parseTime(m.CloseTime),
		Volume:      m.Volume,
		Liquidity:   m.Liquidity,
		URL:         "https://kalshi.com/markets/" + m.Ticker,
	}
}

type eventsResponse struct {
	Events []event `json:"events"`
	Cursor string  `json:"cursor"`
}

type event struct {
	EventTicker  string `json:"event_ticker"`
	SeriesTicker string `json:"series_ticker"`
	Title        string `json:"title"`
	SubTitle     string `json:"sub_title"`
	StrikeDate   string `json:"strike_date"`
}

func (e event) toRecord() *core.Record {
	return &core.Record{
		Kind:        core.KindEvent,
		Ticker:      e.EventTicker,
		Source:      core.SourceKalshi,
		Title:       e.Title,
		Description: e.SubTitle,
		StartDate:   parseTime(e.StrikeDate),
		URL:         "https://kalshi.com/events/" + e.EventTicker,
	}
}
