// Package search finds markets and events by meaning.
//
// A Searcher embeds the query with the same model used at ingestion, asks
// the vector store for the nearest rows and optionally boosts hits whose
// title and description contain every query term. When a table store is
// configured the full records are attached to the hits.
//
// Correlate pairs markets across sources: each market of one source is
// matched with the closest market of the other, which surfaces the same
// question listed on two venues.
//
// Example:
//
//	s, err := search.NewSearcher(vectors, embedder, search.WithTables(tables))
//	hits, err := s.FindSimilar(ctx, core.KindMarket, "fed rate cut december", 10)
package search
