package store

import (
	"time"

	"github.com/Aman-CERP/minirag/internal/chunk"
)

// SummaryPreviewLength is the number of characters of raw text carried in
// a document summary.
const SummaryPreviewLength = 500

// Document is the durable record of an uploaded document.
//
// Documents are immutable once stored; readers share the same pointer.
type Document struct {
	ID         string         `json:"id"`
	Filename   string         `json:"filename"`
	RawText    string         `json:"raw_text"`
	UploadTime time.Time      `json:"upload_time"`
	Metadata   Metadata       `json:"metadata"`
	Chunks     []*chunk.Chunk `json:"chunks"`
}

// Metadata is the explicit metadata kept per document.
type Metadata struct {
	TotalChunks int               `json:"total_chunks"`
	ContentType string            `json:"content_type,omitempty"`
	SizeBytes   int64             `json:"size_bytes,omitempty"`
	Source      string            `json:"source,omitempty"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// NewDocument is the ingestion input: an optional id, a filename, and
// already-extracted plain text.
type NewDocument struct {
	ID       string
	Filename string
	Text     string
	Metadata Metadata
}

// Summary is the list view of a document.
type Summary struct {
	ID             string    `json:"id"`
	Filename       string    `json:"filename"`
	UploadTime     time.Time `json:"upload_time"`
	TotalChunks    int       `json:"total_chunks"`
	ContentPreview string    `json:"content_preview"`
}

// Summarize builds the list view of d.
func (d *Document) Summarize() Summary {
	return Summary{
		ID:             d.ID,
		Filename:       d.Filename,
		UploadTime:     d.UploadTime,
		TotalChunks:    len(d.Chunks),
		ContentPreview: Preview(d.RawText, SummaryPreviewLength),
	}
}

// ChunkIDs returns the ids of the document's chunks in order.
func (d *Document) ChunkIDs() []string {
	ids := make([]string, len(d.Chunks))
	for i, ch := range d.Chunks {
		ids[i] = ch.ID
	}
	return ids
}

// Preview returns the first n characters of text, with "..." appended
// when text was truncated. n <= 0 returns text unchanged.
func Preview(text string, n int) string {
	if n <= 0 {
		return text
	}
	count := 0
	for i := range text {
		if count == n {
			return text[:i] + "..."
		}
		count++
	}
	return text
}
