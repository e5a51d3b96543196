package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/poiesic/predindex/core"
	"github.com/poiesic/predindex/search"
	"github.com/poiesic/predindex/source"
	"github.com/poiesic/predindex/storage"
)

type errorResponse struct {
	Error string `json:"error"`
}

type recordResponse struct {
	Kind        string     `json:"kind"`
	Ticker      string     `json:"ticker"`
	Source      string     `json:"source"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status,omitempty"`
	Outcomes    []string   `json:"outcomes,omitempty"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	Volume      *float64   `json:"volume,omitempty"`
	Liquidity   *float64   `json:"liquidity,omitempty"`
	URL         string     `json:"url,omitempty"`
	IngestedAt  time.Time  `json:"ingested_at"`
}

type hitResponse struct {
	ID          string          `json:"id"`
	Ticker      string          `json:"ticker"`
	Source      string          `json:"source"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Outcomes    string          `json:"outcomes,omitempty"`
	URL         string          `json:"url,omitempty"`
	Score       float32         `json:"score"`
	Details     *recordResponse `json:"details,omitempty"`
}

type searchResponse struct {
	Query   string        `json:"query"`
	Kind    string        `json:"kind"`
	Results []hitResponse `json:"results"`
}

type quoteResponse struct {
	Ticker    string              `json:"ticker"`
	Source    string              `json:"source"`
	Price     decimal.Decimal     `json:"price"`
	Bid       decimal.NullDecimal `json:"bid"`
	Ask       decimal.NullDecimal `json:"ask"`
	Volume    decimal.NullDecimal `json:"volume"`
	Timestamp time.Time           `json:"timestamp"`
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func toRecordResponse(r *core.Record) *recordResponse {
	return &recordResponse{
		Kind:        r.Kind.String(),
		Ticker:      r.Ticker,
		Source:      r.Source.String(),
		Title:       r.Title,
		Description: r.Description,
		Status:      r.Status,
		Outcomes:    r.Outcomes,
		StartDate:   timePtr(r.StartDate),
		EndDate:     timePtr(r.EndDate),
		Volume:      r.Volume,
		Liquidity:   r.Liquidity,
		URL:         r.URL,
		IngestedAt:  r.IngestedAt,
	}
}

func (s *Server) fail(c *gin.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.FullPath(), "err", err)
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: err.Error()})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// search handles GET /v1/search?q=&kind=market&limit=10.
func (s *Server) search(c *gin.Context) {
	query := c.Query("q")
	kind, err := core.ParseRecordKind(c.DefaultQuery("kind", "market"))
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	limit := DefaultLimit
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			s.fail(c, http.StatusBadRequest, errors.New("limit must be a positive integer"))
			return
		}
	}
	limit = min(limit, MaxLimit)

	results, err := s.finder.FindSimilar(c.Request.Context(), kind, query, limit)
	switch {
	case errors.Is(err, search.ErrEmptyQuery):
		s.fail(c, http.StatusBadRequest, err)
		return
	case err != nil:
		s.fail(c, http.StatusInternalServerError, err)
		return
	}

	resp := searchResponse{Query: query, Kind: kind.String(), Results: make([]hitResponse, 0, len(results))}
	for _, r := range results {
		hit := hitResponse{
			ID:          r.Record.ID,
			Ticker:      r.Record.Ticker,
			Source:      r.Record.Source.String(),
			Title:       r.Record.Title,
			Description: r.Record.Description,
			Outcomes:    r.Record.Outcomes,
			URL:         r.Record.URL,
			Score:       r.Score,
		}
		if r.Details != nil {
			hit.Details = toRecordResponse(r.Details)
		}
		resp.Results = append(resp.Results, hit)
	}
	c.JSON(http.StatusOK, resp)
}

// record handles GET /v1/records/:kind/:source/:ticker.
func (s *Server) record(c *gin.Context) {
	kind, err := core.ParseRecordKind(c.Param("kind"))
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	src, err := core.ParseSource(c.Param("source"))
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}

	rec, err := s.tables.Get(c.Request.Context(), kind, src, c.Param("ticker"))
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.fail(c, http.StatusNotFound, err)
		return
	case err != nil:
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, toRecordResponse(rec))
}

// stats handles GET /v1/stats.
func (s *Server) stats(c *gin.Context) {
	counts := make(map[string]int, len(core.RecordKinds))
	for _, kind := range core.RecordKinds {
		n, err := s.tables.Count(c.Request.Context(), kind)
		if err != nil {
			s.fail(c, http.StatusInternalServerError, err)
			return
		}
		counts[kind.String()+"s"] = n
	}
	c.JSON(http.StatusOK, counts)
}

// quote handles GET /v1/quote/:ticker?source=.
func (s *Server) quote(c *gin.Context) {
	if s.quoter == nil {
		s.fail(c, http.StatusNotImplemented, errors.New("quotes are not enabled"))
		return
	}
	src := core.SourceUnknown
	if raw := c.Query("source"); raw != "" {
		var err error
		if src, err = core.ParseSource(raw); err != nil {
			s.fail(c, http.StatusBadRequest, err)
			return
		}
	}

	q, err := s.quoter.Quote(c.Request.Context(), c.Param("ticker"), src)
	if err != nil {
		var httpErr *source.HTTPError
		switch {
		case errors.Is(err, core.ErrUnknownSource), errors.Is(err, source.ErrNotRegistered), errors.Is(err, source.ErrQuoteUnsupported):
			s.fail(c, http.StatusBadRequest, err)
		case errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound:
			s.fail(c, http.StatusNotFound, err)
		default:
			s.fail(c, http.StatusBadGateway, err)
		}
		return
	}

	c.JSON(http.StatusOK, quoteResponse{
		Ticker:    q.Ticker,
		Source:    q.Source.String(),
		Price:     q.Price,
		Bid:       q.Bid,
		Ask:       q.Ask,
		Volume:    q.Volume,
		Timestamp: q.Timestamp,
	})
}
