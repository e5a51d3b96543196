// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"encoding/binary"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// VectorDim is the fixed embedding dimension of every vector row.
const VectorDim = 384

// DefaultStatuses is used when an IngestionFilter names no statuses.
var DefaultStatuses = []string{"active", "closed"}

// ID is a fixed-width identifier derived from content.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// RecordKind distinguishes tradable markets from the events that group them.
type RecordKind int

const (
	// KindMarket is a single tradable market.
	KindMarket RecordKind = iota + 1
	// KindEvent is a real-world event grouping markets.
	KindEvent
)

// RecordKinds lists every kind in canonical order.
var RecordKinds = []RecordKind{KindMarket, KindEvent}

func (k RecordKind) String() string {
	switch k {
	case KindMarket:
		return "market"
	case KindEvent:
		return "event"
	default:
		return "unknown"
	}
}

// ParseRecordKind accepts the singular or plural kind name.
func ParseRecordKind(s string) (RecordKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "market", "markets":
		return KindMarket, nil
	case "event", "events":
		return KindEvent, nil
	default:
		return 0, ErrInvalidKind
	}
}

// Record is the unified shape of a market or event regardless of origin.
// Identity is (Ticker, Source); at most one row per identity and kind is kept.
type Record struct {
	Kind        RecordKind
	Ticker      string
	Source      Source
	Title       string
	Description string
	Status      string
	Outcomes    []string
	StartDate   time.Time
	EndDate     time.Time
	Volume      *float64
	Liquidity   *float64
	URL         string
	IngestedAt  time.Time // set by the table store on upsert
}

// RecordKey is the composite identity of a Record.
type RecordKey struct {
	Ticker string
	Source Source
}

// Key returns the identity of the record.
func (r *Record) Key() RecordKey {
	return RecordKey{Ticker: r.Ticker, Source: r.Source}
}

// EmbeddingID returns the vector row identifier for the record.
func (r *Record) EmbeddingID() string {
	return EmbeddingID(r.Source, r.Ticker)
}

// EmbeddingText renders the canonical text that is embedded for the record.
func (r *Record) EmbeddingText() string {
	var b strings.Builder
	b.WriteString("Title: ")
	b.WriteString(r.Title)
	b.WriteString("\nDescription: ")
	b.WriteString(r.Description)
	if r.Kind != KindEvent {
		b.WriteString("\nOutcomes: ")
		b.WriteString(strings.Join(r.Outcomes, ", "))
	}
	return b.String()
}

// Page is one unit of paginated retrieval. An empty NextCursor marks the end
// of the stream.
type Page struct {
	Records    []*Record
	NextCursor string
}

// EmbeddingID builds "<Source>:<ticker>".
func EmbeddingID(source Source, ticker string) string {
	return source.String() + ":" + ticker
}

// EmbeddingRecord is a row of the vector store.
type EmbeddingRecord struct {
	ID          string
	Kind        RecordKind
	Vector      []float32
	Ticker      string
	Source      Source
	Title       string
	Description string
	Outcomes    string // comma-joined
	URL         string
}

// NewEmbeddingRecord pairs a record with its vector.
func NewEmbeddingRecord(r *Record, vector []float32) *EmbeddingRecord {
	return &EmbeddingRecord{
		ID:          r.EmbeddingID(),
		Kind:        r.Kind,
		Vector:      vector,
		Ticker:      r.Ticker,
		Source:      r.Source,
		Title:       r.Title,
		Description: r.Description,
		Outcomes:    strings.Join(r.Outcomes, ", "),
		URL:         r.URL,
	}
}

// IngestionFilter selects what a run ingests.
type IngestionFilter struct {
	Sources  []Source // empty means every registered source
	Statuses []string // empty means DefaultStatuses
	MaxPages int      // per task; 0 means unbounded
	Resume   bool     // start tasks from saved checkpoints
}

// EffectiveStatuses returns the statuses a run should use.
func (f IngestionFilter) EffectiveStatuses() []string {
	if len(f.Statuses) == 0 {
		return DefaultStatuses
	}
	return f.Statuses
}

// Checkpoint is the last committed cursor of an ingestion task.
type Checkpoint struct {
	Task      string
	Cursor    string
	Pages     int
	UpdatedAt time.Time
}

// SearchResult is a vector match. Record.Vector is not populated.
type SearchResult struct {
	Record  *EmbeddingRecord
	Details *Record // full table row, when hydrated
	Score   float32
}
