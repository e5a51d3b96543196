package milvus

import (
	"strconv"
	"unicode/utf8"

	mclient "github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/poiesic/predindex/core"
)

// Maximum VARCHAR lengths per field.
var maxLengths = map[string]int{
	"id":          512,
	"ticker":      256,
	"source":      32,
	"title":       2048,
	"description": 8192,
	"outcomes":    4096,
	"url":         1024,
}

var outputFields = []string{"ticker", "source", "title", "description", "outcomes", "url"}

func varcharField(name string, primary bool) *entity.Field {
	return &entity.Field{
		Name:       name,
		DataType:   entity.FieldTypeVarChar,
		PrimaryKey: primary,
		TypeParams: map[string]string{entity.TypeParamMaxLength: strconv.Itoa(maxLengths[name])},
	}
}

func buildSchema(name string, dim int) *entity.Schema {
	return &entity.Schema{
		CollectionName: name,
		Description:    "prediction market embeddings",
		Fields: []*entity.Field{
			varcharField("id", true),
			{
				Name:       vectorField,
				DataType:   entity.FieldTypeFloatVector,
				TypeParams: map[string]string{entity.TypeParamDim: strconv.Itoa(dim)},
			},
			varcharField("ticker", false),
			varcharField("source", false),
			varcharField("title", false),
			varcharField("description", false),
			varcharField("outcomes", false),
			varcharField("url", false),
		},
	}
}

// truncate cuts s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}

func buildColumns(records []*core.EmbeddingRecord, dim int) []entity.Column {
	n := len(records)
	var (
		ids          = make([]string, 0, n)
		vectors      = make([][]float32, 0, n)
		tickers      = make([]string, 0, n)
		sources      = make([]string, 0, n)
		titles       = make([]string, 0, n)
		descriptions = make([]string, 0, n)
		outcomes     = make([]string, 0, n)
		urls         = make([]string, 0, n)
	)
	for _, r := range records {
		ids = append(ids, truncate(r.ID, maxLengths["id"]))
		vectors = append(vectors, r.Vector)
		tickers = append(tickers, truncate(r.Ticker, maxLengths["ticker"]))
		sources = append(sources, r.Source.String())
		titles = append(titles, truncate(r.Title, maxLengths["title"]))
		descriptions = append(descriptions, truncate(r.Description, maxLengths["description"]))
		outcomes = append(outcomes, truncate(r.Outcomes, maxLengths["outcomes"]))
		urls = append(urls, truncate(r.URL, maxLengths["url"]))
	}

	return []entity.Column{
		entity.NewColumnVarChar("id", ids),
		entity.NewColumnFloatVector(vectorField, dim, vectors),
		entity.NewColumnVarChar("ticker", tickers),
		entity.NewColumnVarChar("source", sources),
		entity.NewColumnVarChar("title", titles),
		entity.NewColumnVarChar("description", descriptions),
		entity.NewColumnVarChar("outcomes", outcomes),
		entity.NewColumnVarChar("url", urls),
	}
}

func columnByName(cols mclient.ResultSet, name string) entity.Column {
	for _, c := range cols {
		if c != nil && c.Name() == name {
			return c
		}
	}
	return nil
}

func stringAt(col entity.Column, i int) string {
	if col == nil {
		return ""
	}
	v, _ := col.GetAsString(i)
	return v
}

func parseSearchResult(kind core.RecordKind, sr mclient.SearchResult) ([]*core.SearchResult, error) {
	if sr.Err != nil {
		return nil, sr.Err
	}

	tickerCol := columnByName(sr.Fields, "ticker")
	sourceCol := columnByName(sr.Fields, "source")
	titleCol := columnByName(sr.Fields, "title")
	descCol := columnByName(sr.Fields, "description")
	outcomesCol := columnByName(sr.Fields, "outcomes")
	urlCol := columnByName(sr.Fields, "url")

	results := make([]*core.SearchResult, 0, sr.ResultCount)
	for i := 0; i < sr.ResultCount; i++ {
		id := stringAt(sr.IDs, i)
		source, _ := core.ParseSource(stringAt(sourceCol, i))
		score := float32(0)
		if i < len(sr.Scores) {
			score = sr.Scores[i]
		}
		results = append(results, &core.SearchResult{
			Record: &core.EmbeddingRecord{
				ID:          id,
				Kind:        kind,
				Ticker:      stringAt(tickerCol, i),
				Source:      source,
				Title:       stringAt(titleCol, i),
				Description: stringAt(descCol, i),
				Outcomes:    stringAt(outcomesCol, i),
				URL:         stringAt(urlCol, i),
			},
			Score: score,
		})
	}
	return results, nil
}
