package search

import (
	"github.com/poiesic/predindex/core"
)

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to trace intermediate results, for example from
// a CLI flag.
type SearchMonitor interface {
	Start(kind core.RecordKind, query string)
	AfterVectorSearch(results []*core.SearchResult)
	KeywordHit(result *core.SearchResult)
	AfterHydration(found, missing int)
	Finish(results []*core.SearchResult)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (noopMonitor) Start(core.RecordKind, string)          {}
func (noopMonitor) AfterVectorSearch([]*core.SearchResult) {}
func (noopMonitor) KeywordHit(*core.SearchResult)          {}
func (noopMonitor) AfterHydration(int, int)                {}
func (noopMonitor) Finish([]*core.SearchResult)            {}
