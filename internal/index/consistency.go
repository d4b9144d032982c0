package index

import (
	"sort"
	"time"
)

// InconsistencyType categorizes a divergence between store and index.
type InconsistencyType string

const (
	// InconsistencyOrphan is an indexed chunk no stored document owns.
	InconsistencyOrphan InconsistencyType = "orphan"
	// InconsistencyMissing is a stored chunk the index does not know.
	InconsistencyMissing InconsistencyType = "missing"
)

// Inconsistency is a single divergence.
type Inconsistency struct {
	Type    InconsistencyType `json:"type"`
	ChunkID string            `json:"chunk_id"`
}

// CheckResult is the outcome of a consistency check.
type CheckResult struct {
	Checked         int             `json:"checked"`
	Inconsistencies []Inconsistency `json:"inconsistencies,omitempty"`
	Duration        time.Duration   `json:"duration"`
}

// Consistent reports whether no divergence was found.
func (r *CheckResult) Consistent() bool {
	return len(r.Inconsistencies) == 0
}

// Count returns the number of inconsistencies of type t.
func (r *CheckResult) Count(t InconsistencyType) int {
	n := 0
	for _, inc := range r.Inconsistencies {
		if inc.Type == t {
			n++
		}
	}
	return n
}

// Check compares the chunk ids the store holds against the index.
// Inconsistencies are ordered by chunk id.
func (ix *Indexer) Check(storeChunkIDs []string) *CheckResult {
	start := time.Now()

	stored := make(map[string]struct{}, len(storeChunkIDs))
	var incs []Inconsistency
	for _, id := range storeChunkIDs {
		stored[id] = struct{}{}
		if !ix.Has(id) {
			incs = append(incs, Inconsistency{Type: InconsistencyMissing, ChunkID: id})
		}
	}
	for id := range ix.forward {
		if _, ok := stored[id]; !ok {
			incs = append(incs, Inconsistency{Type: InconsistencyOrphan, ChunkID: id})
		}
	}

	sort.Slice(incs, func(i, j int) bool {
		return incs[i].ChunkID < incs[j].ChunkID
	})

	result := &CheckResult{
		Checked:         len(stored),
		Inconsistencies: incs,
		Duration:        time.Since(start),
	}
	result.Checked += result.Count(InconsistencyOrphan)
	return result
}

