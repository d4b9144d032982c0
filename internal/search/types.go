package search

import (
	"time"

	"github.com/Aman-CERP/minirag/internal/config"
)

// Query is a fully specified search request. Use Retriever.NewQuery to
// start from the configured defaults.
type Query struct {
	Text                string  `json:"query"`
	MaxResults          int     `json:"max_results"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
}

// Source is one ranked chunk in a query result.
type Source struct {
	DocumentID     string  `json:"document_id"`
	Filename       string  `json:"filename"`
	ChunkID        string  `json:"chunk_id"`
	ChunkIndex     int     `json:"chunk_index"`
	StartOffset    int     `json:"start_offset"`
	EndOffset      int     `json:"end_offset"`
	Score          float64 `json:"similarity_score"`
	ContentPreview string  `json:"content_preview"`
}

// QueryResult is the ranked, thresholded answer to a Query. Sources are
// ordered by descending score, ties broken by ascending chunk id.
type QueryResult struct {
	Query        string        `json:"query"`
	Sources      []Source      `json:"sources"`
	ResponseTime time.Duration `json:"response_time"`
	Keywords     []string      `json:"keywords,omitempty"`
	Scorer       string        `json:"scorer"`
	Cached       bool          `json:"cached,omitempty"`
}

// Config holds retriever defaults.
type Config struct {
	MaxResults          int
	SimilarityThreshold float64
	Scorer              string
	CacheSize           int
	PreviewLength       int
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxResults:          5,
		SimilarityThreshold: 0.7,
		Scorer:              config.ScorerOverlap,
		CacheSize:           256,
		PreviewLength:       200,
	}
}

// ConfigFrom derives retriever defaults from the application config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		MaxResults:          cfg.Search.MaxResults,
		SimilarityThreshold: cfg.Search.SimilarityThreshold,
		Scorer:              cfg.Search.Scorer,
		CacheSize:           cfg.Search.CacheSize,
		PreviewLength:       cfg.Search.PreviewLength,
	}
}
