package polymarket

import (
	"github.com/shopspring/decimal"

	"github.com/poiesic/predindex/core"
)

type marketsResponse struct {
	Data       []market `json:"data"`
	NextCursor string   `json:"next_cursor"`
}

type token struct {
	TokenID string  `json:"token_id"`
	Outcome string  `json:"outcome"`
	Price   float64 `json:"price"`
}

type market struct {
	ConditionID   string  `json:"condition_id"`
	Question      string  `json:"question"`
	Description   string  `json:"description"`
	MarketSlug    string  `json:"market_slug"`
	Active        bool    `json:"active"`
	Closed        bool    `json:"closed"`
	EndDateISO    string  `json:"end_date_iso"`
	GameStartTime string  `json:"game_start_time"`
	Tokens        []token `json:"tokens"`
}

// toRecord keys the market by its first token id, the identifier quotes
// are requested with.
func (m market) toRecord() *core.Record {
	status := "closed"
	if m.Active && !m.Closed {
		status = "active"
	}
	outcomes := make([]string, 0, len(m.Tokens))
	for _, t := range m.Tokens {
		outcomes = append(outcomes, t.Outcome)
	}
	return &core.Record{
		Kind:        core.KindMarket,
		Ticker:      m.Tokens[0].TokenID,
		Source:      core.SourcePolymarket,
		Title:       m.Question,
		Description: m.Description,
		Status:      status,
		Outcomes:    outcomes,
		StartDate:   parseTime(m.GameStartTime),
		EndDate:     parseTime(m.EndDateISO),
		URL:         "https://polymarket.com/event/" + m.MarketSlug,
	}
}

type level struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

type bookResponse struct {
	AssetID string  `json:"asset_id"`
	Bids    []level `json:"bids"`
	Asks    []level `json:"asks"`
}

// best returns the highest bid and lowest ask. The CLOB does not promise an
// order for either side.
func (b bookResponse) best() (bid, ask decimal.NullDecimal) {
	for _, l := range b.Bids {
		if !bid.Valid || l.Price.GreaterThan(bid.Decimal) {
			bid = decimal.NewNullDecimal(l.Price)
		}
	}
	for _, l := range b.Asks {
		if !ask.Valid || l.Price.LessThan(ask.Decimal) {
			ask = decimal.NewNullDecimal(l.Price)
		}
	}
	return bid, ask
}
