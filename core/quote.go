package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a point-in-time price snapshot of one market. Prices are
// probabilities in [0, 1]. Fields a venue does not report are invalid.
type Quote struct {
	Ticker    string
	Source    Source
	Price     decimal.Decimal
	Bid       decimal.NullDecimal
	Ask       decimal.NullDecimal
	Volume    decimal.NullDecimal
	Timestamp time.Time
}

// Midpoint returns the mean of bid and ask, or whichever side is present.
// With neither side it returns zero.
func Midpoint(bid, ask decimal.NullDecimal) decimal.Decimal {
	switch {
	case bid.Valid && ask.Valid:
		return bid.Decimal.Add(ask.Decimal).Div(decimal.NewFromInt(2))
	case bid.Valid:
		return bid.Decimal
	case ask.Valid:
		return ask.Decimal
	default:
		return decimal.Zero
	}
}
