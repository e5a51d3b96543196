package source

import "github.com/poiesic/predindex/core"

// StatusTable maps unified status names to source-native ones.
// Statuses without an entry pass through unchanged.
type StatusTable map[core.Source]map[string]string

// DefaultStatusTable returns the built-in translations.
func DefaultStatusTable() StatusTable {
	return StatusTable{
		core.SourceKalshi: {"active": "open"},
	}
}

// Translate returns the native status for source.
func (t StatusTable) Translate(source core.Source, status string) string {
	if native, ok := t[source][status]; ok {
		return native
	}
	return status
}
