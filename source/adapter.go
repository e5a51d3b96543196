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


package source

import (
	"context"

	"github.com/poiesic/predindex/core"
)

// DefaultPageSize is the number of records requested per page.
const DefaultPageSize = 100

// Capabilities describes what a source can serve.
type Capabilities struct {
	// Events reports whether the source has a separate event listing.
	Events bool
	// StatusFilter reports whether pagination can be segmented by status.
	StatusFilter bool
}

// PageRequest asks for one page of records.
type PageRequest struct {
	Kind   core.RecordKind
	Limit  int
	Cursor string // empty for the first page
	Status string // source-native status; empty for unfiltered
}

// Adapter fetches paginated records from one venue.
// Implementations must be safe for concurrent use.
type Adapter interface {
	Source() core.Source
	Capabilities() Capabilities
	// FetchPage returns one page. Records carry Kind and Source; an empty
	// NextCursor marks the end of the stream.
	FetchPage(ctx context.Context, req PageRequest) (*core.Page, error)
}
