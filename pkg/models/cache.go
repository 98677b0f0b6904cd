package models

import "time"

// ClearFilter selects cache entries for eviction. Zero fields are ignored and
// the remaining ones are combined with AND; an empty filter matches every
// entry.
type ClearFilter struct {
	ModelID        string    `json:"model_id,omitempty"`
	AccessedBefore time.Time `json:"accessed_before,omitzero"`
	CreatedBefore  time.Time `json:"created_before,omitzero"`
}

// IsEmpty reports whether no filter field is set.
func (f ClearFilter) IsEmpty() bool {
	return f.ModelID == "" && f.AccessedBefore.IsZero() && f.CreatedBefore.IsZero()
}

// CacheStats reports cache contents and the lookups served by one handle.
type CacheStats struct {
	Entries int64 `json:"entries"`
	Strings int64 `json:"strings"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// ModelSummary aggregates the entries stored for one model id.
type ModelSummary struct {
	ModelID         string    `json:"model_id"`
	Entries         int64     `json:"entries"`
	EarliestCreated time.Time `json:"earliest_created"`
	LatestCreated   time.Time `json:"latest_created"`
	EarliestAccess  time.Time `json:"earliest_access"`
	LatestAccess    time.Time `json:"latest_access"`
}
