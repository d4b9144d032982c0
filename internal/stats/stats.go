// Package stats reports corpus-level counters for observability.
package stats

import (
	"context"

	"github.com/Aman-CERP/minirag/internal/telemetry"
)

// Source is the part of the document store the aggregator reads.
type Source interface {
	Counts() (documents, chunks, keywords int)
	Health(ctx context.Context) string
	BackendName() string
}

// Stats is the status payload. Every field is computed fresh on request.
type Stats struct {
	TotalDocuments  int                 `json:"total_documents"`
	TotalChunks     int                 `json:"total_chunks"`
	SystemStatus    string              `json:"system_status"`
	StorageBackend  string              `json:"storage_backend"`
	IndexedKeywords int                 `json:"indexed_keywords"`
	Queries         *telemetry.Snapshot `json:"queries,omitempty"`
}

// Aggregator derives Stats from the store and optional query metrics.
type Aggregator struct {
	source  Source
	metrics *telemetry.QueryMetrics
}

// NewAggregator creates an aggregator. metrics may be nil.
func NewAggregator(source Source, metrics *telemetry.QueryMetrics) *Aggregator {
	return &Aggregator{source: source, metrics: metrics}
}

// Stats probes the store and returns current counters.
func (a *Aggregator) Stats(ctx context.Context) Stats {
	docs, chunks, keywords := a.source.Counts()
	s := Stats{
		TotalDocuments:  docs,
		TotalChunks:     chunks,
		SystemStatus:    a.source.Health(ctx),
		StorageBackend:  a.source.BackendName(),
		IndexedKeywords: keywords,
	}
	if a.metrics != nil {
		s.Queries = a.metrics.Snapshot()
	}
	return s
}
