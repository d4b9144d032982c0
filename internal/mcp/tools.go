package mcp

import (
	"time"

	"github.com/Aman-CERP/minirag/internal/search"
	"github.com/Aman-CERP/minirag/internal/stats"
	"github.com/Aman-CERP/minirag/internal/store"
)

// Tool names.
const (
	ToolUpload = "upload_document"
	ToolQuery  = "query_documents"
	ToolList   = "list_documents"
	ToolGet    = "get_document"
	ToolDelete = "delete_document"
	ToolStats  = "get_stats"
)

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var toolInfos = []ToolInfo{
	{
		Name:        ToolUpload,
		Description: "Add a document to the knowledge base. Pass either a file path readable by the server, or a filename plus its text content. Supported types: pdf, txt, docx, md.",
	},
	{
		Name:        ToolQuery,
		Description: "Find the chunks of uploaded documents that best match a question by keyword overlap. Returns ranked sources with a similarity score between 0 and 1 and a content preview.",
	},
	{
		Name:        ToolList,
		Description: "List every uploaded document with its id, upload time, chunk count and a short preview.",
	},
	{
		Name:        ToolGet,
		Description: "Fetch one document's full extracted text and metadata by id.",
	},
	{
		Name:        ToolDelete,
		Description: "Remove a document and all of its chunks from the knowledge base.",
	},
	{
		Name:        ToolStats,
		Description: "Report document and chunk counts, storage health, and query statistics.",
	},
}

// UploadInput defines the input schema for the upload_document tool.
type UploadInput struct {
	Path     string `json:"path,omitempty" jsonschema:"absolute path of a file to upload"`
	Filename string `json:"filename,omitempty" jsonschema:"name for inline content, e.g. notes.md"`
	Content  string `json:"content,omitempty" jsonschema:"text content to upload under filename"`
}

// UploadOutput defines the output schema for the upload_document tool.
type UploadOutput struct {
	DocumentID    string `json:"document_id"`
	Filename      string `json:"filename"`
	ChunksCreated int    `json:"chunks_created"`
	Message       string `json:"message"`
}

// QueryInput defines the input schema for the query_documents tool.
type QueryInput struct {
	Query               string   `json:"query" jsonschema:"the question or keywords to search for"`
	MaxResults          *int     `json:"max_results,omitempty" jsonschema:"maximum number of sources, default from config"`
	SimilarityThreshold *float64 `json:"similarity_threshold,omitempty" jsonschema:"minimum score between 0 and 1, default from config"`
}

// QueryOutput defines the output schema for the query_documents tool.
type QueryOutput struct {
	Query          string         `json:"query"`
	Keywords       []string       `json:"keywords"`
	Sources        []SourceOutput `json:"sources"`
	ResponseTimeMs float64        `json:"response_time_ms"`
	Scorer         string         `json:"scorer"`
}

// SourceOutput is one ranked chunk.
type SourceOutput struct {
	DocumentID     string  `json:"document_id"`
	Filename       string  `json:"filename"`
	ChunkID        string  `json:"chunk_id"`
	ChunkIndex     int     `json:"chunk_index"`
	StartOffset    int     `json:"start_offset"`
	EndOffset      int     `json:"end_offset"`
	Score          float64 `json:"similarity_score" jsonschema:"fraction of query keywords found in the chunk"`
	ContentPreview string  `json:"content_preview"`
}

// ListInput defines the input schema for the list_documents tool (no parameters).
type ListInput struct{}

// ListOutput defines the output schema for the list_documents tool.
type ListOutput struct {
	Documents []SummaryOutput `json:"documents"`
}

// SummaryOutput is the list view of a document.
type SummaryOutput struct {
	ID             string `json:"id"`
	Filename       string `json:"filename"`
	UploadTime     string `json:"upload_time"`
	TotalChunks    int    `json:"total_chunks"`
	ContentPreview string `json:"content_preview"`
}

// IDInput defines the input schema for get_document and delete_document.
type IDInput struct {
	ID string `json:"id" jsonschema:"document id as returned by upload_document or list_documents"`
}

// DocumentOutput defines the output schema for the get_document tool.
type DocumentOutput struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	UploadTime  string `json:"upload_time"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
	TotalChunks int    `json:"total_chunks"`
	Content     string `json:"content"`
}

// DeleteOutput defines the output schema for the delete_document tool.
type DeleteOutput struct {
	ID            string `json:"id"`
	ChunksRemoved int    `json:"chunks_removed"`
	Message       string `json:"message"`
}

// StatsInput defines the input schema for the get_stats tool (no parameters).
type StatsInput struct{}

// StatsOutput defines the output schema for the get_stats tool.
type StatsOutput struct {
	TotalDocuments  int              `json:"total_documents"`
	TotalChunks     int              `json:"total_chunks"`
	SystemStatus    string           `json:"system_status" jsonschema:"healthy, degraded, or unavailable"`
	StorageBackend  string           `json:"storage_backend"`
	IndexedKeywords int              `json:"indexed_keywords"`
	Queries         QueryStatsOutput `json:"queries"`
}

// QueryStatsOutput summarizes query telemetry.
type QueryStatsOutput struct {
	Total        int64             `json:"total"`
	ZeroResult   int64             `json:"zero_result"`
	AvgLatencyMs float64           `json:"avg_latency_ms"`
	TopTerms     []TermCountOutput `json:"top_terms"`
}

// TermCountOutput is a query keyword and its frequency.
type TermCountOutput struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// Slices are always non-nil: the SDK validates structured output against
// the inferred schema, which does not admit null arrays.

func toQueryOutput(res *search.QueryResult) QueryOutput {
	out := QueryOutput{
		Query:          res.Query,
		Keywords:       append([]string{}, res.Keywords...),
		Sources:        make([]SourceOutput, 0, len(res.Sources)),
		ResponseTimeMs: float64(res.ResponseTime) / float64(time.Millisecond),
		Scorer:         res.Scorer,
	}
	for _, src := range res.Sources {
		out.Sources = append(out.Sources, SourceOutput(src))
	}
	return out
}

func toListOutput(summaries []store.Summary) ListOutput {
	out := ListOutput{Documents: make([]SummaryOutput, 0, len(summaries))}
	for _, s := range summaries {
		out.Documents = append(out.Documents, SummaryOutput{
			ID:             s.ID,
			Filename:       s.Filename,
			UploadTime:     s.UploadTime.Format(time.RFC3339),
			TotalChunks:    s.TotalChunks,
			ContentPreview: s.ContentPreview,
		})
	}
	return out
}

func toDocumentOutput(doc *store.Document) DocumentOutput {
	return DocumentOutput{
		ID:          doc.ID,
		Filename:    doc.Filename,
		UploadTime:  doc.UploadTime.Format(time.RFC3339),
		ContentType: doc.Metadata.ContentType,
		SizeBytes:   doc.Metadata.SizeBytes,
		TotalChunks: len(doc.Chunks),
		Content:     doc.RawText,
	}
}

func toStatsOutput(s stats.Stats) StatsOutput {
	out := StatsOutput{
		TotalDocuments:  s.TotalDocuments,
		TotalChunks:     s.TotalChunks,
		SystemStatus:    s.SystemStatus,
		StorageBackend:  s.StorageBackend,
		IndexedKeywords: s.IndexedKeywords,
		Queries:         QueryStatsOutput{TopTerms: []TermCountOutput{}},
	}
	if q := s.Queries; q != nil {
		out.Queries.Total = q.TotalQueries
		out.Queries.ZeroResult = q.ZeroResultCount
		out.Queries.AvgLatencyMs = q.AvgLatencyMs
		for _, tc := range q.TopTerms {
			out.Queries.TopTerms = append(out.Queries.TopTerms, TermCountOutput(tc))
		}
	}
	return out
}
