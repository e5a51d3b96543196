package core

import "strings"

// Source identifies a prediction-market venue.
type Source int

const (
	// SourceUnknown is the zero value.
	SourceUnknown Source = iota
	// SourceKalshi is the Kalshi exchange.
	SourceKalshi
	// SourcePolymarket is the Polymarket CLOB.
	SourcePolymarket
)

// KnownSources lists every supported source in canonical order.
var KnownSources = []Source{SourceKalshi, SourcePolymarket}

func (s Source) String() string {
	switch s {
	case SourceKalshi:
		return "Kalshi"
	case SourcePolymarket:
		return "Polymarket"
	default:
		return "Unknown"
	}
}

// ParseSource maps a case-insensitive name to a Source.
func ParseSource(name string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "kalshi":
		return SourceKalshi, nil
	case "polymarket":
		return SourcePolymarket, nil
	default:
		return SourceUnknown, ErrUnknownSource
	}
}

// DetectSource guesses a source from the shape of a ticker. Kalshi tickers
// start with KX; Polymarket is addressed by a 0x condition id or a decimal
// CLOB token id.
func DetectSource(ticker string) Source {
	switch {
	case strings.HasPrefix(ticker, "KX"):
		return SourceKalshi
	case strings.HasPrefix(ticker, "0x"), isTokenID(ticker):
		return SourcePolymarket
	default:
		return SourceUnknown
	}
}

func isTokenID(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
