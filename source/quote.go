package source

import (
	"context"
	"fmt"

	"github.com/poiesic/predindex/core"
)

// Quoter returns a live quote for one market.
type Quoter interface {
	Quote(ctx context.Context, ticker string) (*core.Quote, error)
}

// Quote routes ticker to the adapter of src. SourceUnknown detects the
// source from the ticker.
func (r *Registry) Quote(ctx context.Context, ticker string, src core.Source) (*core.Quote, error) {
	if ticker == "" {
		return nil, ErrTickerRequired
	}
	if src == core.SourceUnknown {
		src = core.DetectSource(ticker)
		if src == core.SourceUnknown {
			return nil, fmt.Errorf("%w: cannot detect source of %q", core.ErrUnknownSource, ticker)
		}
	}

	a, err := r.Get(src)
	if err != nil {
		return nil, err
	}
	q, ok := a.(Quoter)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrQuoteUnsupported, src)
	}
	return q.Quote(ctx, ticker)
}
