package mcp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	raerrors "github.com/Aman-CERP/minirag/internal/errors"
)

// Resource URIs.
const (
	documentURIPrefix   = "minirag://documents/"
	documentURITemplate = documentURIPrefix + "{id}"
	queryMetricsURI     = "minirag://query_metrics"
)

// QueryMetricsOutput is the JSON structure for the query_metrics resource.
type QueryMetricsOutput struct {
	Summary             QueryMetricsSummary `json:"summary"`
	TopTerms            []TermCountOutput   `json:"top_terms"`
	ZeroResultQueries   []string            `json:"zero_result_queries"`
	LatencyDistribution map[string]int64    `json:"latency_distribution"`
	Scorers             map[string]int64    `json:"scorers"`
}

// QueryMetricsSummary provides overview statistics.
type QueryMetricsSummary struct {
	TotalQueries  int64   `json:"total_queries"`
	CacheHits     int64   `json:"cache_hits"`
	ZeroResultPct float64 `json:"zero_result_pct"`
	AvgLatencyMs  float64 `json:"avg_latency_ms"`
}

// registerResources exposes each document's text and the query telemetry.
func (s *Server) registerResources() {
	s.mcp.AddResourceTemplate(
		&mcp.ResourceTemplate{
			Name:        "document",
			URITemplate: documentURITemplate,
			Description: "Full extracted text of an uploaded document",
			MIMEType:    "text/plain",
		},
		s.readDocument,
	)

	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "query_metrics",
			URI:         queryMetricsURI,
			Description: "Query pattern telemetry: top terms, zero-result queries, latency",
			MIMEType:    "application/json",
		},
		s.readQueryMetrics,
	)
}

// readDocument serves minirag://documents/{id}.
func (s *Server) readDocument(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := req.Params.URI
	id := strings.TrimPrefix(uri, documentURIPrefix)
	if id == uri || id == "" {
		return nil, mcp.ResourceNotFoundError(uri)
	}

	doc, err := s.engine.Store.Get(id)
	if raerrors.IsNotFound(err) {
		return nil, mcp.ResourceNotFoundError(uri)
	}
	if err != nil {
		return nil, MapError(err)
	}

	mimeType := doc.Metadata.ContentType
	if mimeType == "" || !strings.HasPrefix(mimeType, "text/") {
		// pdf and docx are served as their extracted text.
		mimeType = "text/plain"
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: mimeType,
				Text:     doc.RawText,
			},
		},
	}, nil
}

// readQueryMetrics serves the query_metrics resource.
func (s *Server) readQueryMetrics(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	snap := s.engine.Metrics.Snapshot()

	output := QueryMetricsOutput{
		Summary: QueryMetricsSummary{
			TotalQueries: snap.TotalQueries,
			CacheHits:    snap.CacheHits,
			AvgLatencyMs: snap.AvgLatencyMs,
		},
		TopTerms:            make([]TermCountOutput, 0, len(snap.TopTerms)),
		ZeroResultQueries:   append([]string{}, snap.ZeroResultQueries...),
		LatencyDistribution: make(map[string]int64, len(snap.LatencyDistribution)),
		Scorers:             make(map[string]int64, len(snap.ScorerCounts)),
	}
	if snap.TotalQueries > 0 {
		output.Summary.ZeroResultPct = float64(snap.ZeroResultCount) / float64(snap.TotalQueries) * 100
	}
	for _, tc := range snap.TopTerms {
		output.TopTerms = append(output.TopTerms, TermCountOutput(tc))
	}
	for bucket, count := range snap.LatencyDistribution {
		output.LatencyDistribution[string(bucket)] = count
	}
	for scorer, count := range snap.ScorerCounts {
		output.Scorers[scorer] = count
	}

	content, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return nil, MapError(err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      queryMetricsURI,
				MIMEType: "application/json",
				Text:     string(content),
			},
		},
	}, nil
}
