package source

import (
	"errors"
	"fmt"
)

var (
	// ErrNotRegistered is returned when no adapter serves a source.
	ErrNotRegistered = errors.New("source not registered")

	// ErrUnsupportedKind is returned when a source cannot list a record kind.
	ErrUnsupportedKind = errors.New("record kind not supported by source")

	// ErrDecode is returned when a response body cannot be decoded.
	ErrDecode = errors.New("failed to decode source response")

	// ErrQuoteUnsupported is returned when a source adapter cannot quote.
	ErrQuoteUnsupported = errors.New("source does not serve quotes")

	// ErrTickerRequired is returned when a quote names no ticker.
	ErrTickerRequired = errors.New("ticker required")
)

// HTTPError is a non-2xx response from a source API.
type HTTPError struct {
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}
