// Package ingestion pulls paginated records from prediction-market sources
// into the table and vector stores.
//
// The Engine plans one task per (source, kind, status) and runs them all
// concurrently. Each task:
//   - Fetches a page, retrying failed requests with exponential backoff
//   - Upserts the page into the table store under a shared mutex
//   - Embeds the page on a worker pool and appends it to the vector store
//   - Follows the next cursor until the stream ends, stalls, runs empty,
//     hits the page limit or is canceled
//
// Tasks never cancel each other. After every task succeeds the engine
// builds the vector index once per record kind.
package ingestion
