// Package chunk splits document text into overlapping fixed-size windows.
//
// Sizes and offsets count Unicode code points, not bytes. A window of
// ChunkSize characters advances by ChunkSize-Overlap each step. The
// final window may be shorter. Splitting is pure and deterministic.
package chunk

import (
	"fmt"

	raerrors "github.com/Aman-CERP/minirag/internal/errors"
)

// Defaults match the upload pipeline's historical settings.
const (
	DefaultChunkSize = 1000
	DefaultOverlap   = 200
)

// Chunk is one window of a document's text.
type Chunk struct {
	ID          string `json:"id"`
	DocumentID  string `json:"document_id"`
	Seq         int    `json:"seq"`
	Text        string `json:"text"`
	StartOffset int    `json:"start_offset"`
	EndOffset   int    `json:"end_offset"` // exclusive
}

// Len returns the chunk length in characters.
func (c *Chunk) Len() int {
	return c.EndOffset - c.StartOffset
}

// ID derives a chunk id from its document and position. Zero padding keeps
// lexical order equal to positional order.
func ID(documentID string, seq int) string {
	return fmt.Sprintf("%s-%08d", documentID, seq)
}

// Chunker splits text with a fixed size and overlap.
type Chunker struct {
	size    int
	overlap int
}

// New validates the window geometry. overlap must satisfy
// 0 <= overlap < size; anything else is a configuration error.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, raerrors.New(raerrors.ErrCodeChunkingConfig,
			fmt.Sprintf("chunk_size must be positive, got %d", size), nil)
	}
	if overlap < 0 || overlap >= size {
		return nil, raerrors.New(raerrors.ErrCodeChunkingConfig,
			fmt.Sprintf("chunk_overlap must be in [0, %d), got %d", size, overlap), nil).
			WithSuggestion("Lower chunking.chunk_overlap or raise chunking.chunk_size")
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Size returns the configured window size.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Spans returns the [start, end) windows for a text of n characters.
func (c *Chunker) Spans(n int) [][2]int {
	if n <= 0 {
		return nil
	}
	step := c.size - c.overlap
	spans := make([][2]int, 0, n/step+1)
	for start := 0; ; start += step {
		end := min(start+c.size, n)
		spans = append(spans, [2]int{start, end})
		if end == n {
			return spans
		}
	}
}

// Chunk splits text into chunks owned by documentID. Empty text yields
// no chunks.
func (c *Chunker) Chunk(documentID, text string) []*Chunk {
	runes := []rune(text)
	spans := c.Spans(len(runes))

	chunks := make([]*Chunk, len(spans))
	for i, sp := range spans {
		chunks[i] = &Chunk{
			ID:          ID(documentID, i),
			DocumentID:  documentID,
			Seq:         i,
			Text:        string(runes[sp[0]:sp[1]]),
			StartOffset: sp[0],
			EndOffset:   sp[1],
		}
	}
	return chunks
}

// Matches reports whether chunks are exactly what this chunker would
// produce for a text of n characters. Stores use it to detect records
// written under a different geometry.
func (c *Chunker) Matches(chunks []*Chunk, n int) bool {
	spans := c.Spans(n)
	if len(spans) != len(chunks) {
		return false
	}
	for i, sp := range spans {
		ch := chunks[i]
		if ch.Seq != i || ch.StartOffset != sp[0] || ch.EndOffset != sp[1] {
			return false
		}
	}
	return true
}

// Reconstruct rebuilds the original text from ordered chunks by dropping
// the part of each chunk already covered by its predecessor.
func Reconstruct(chunks []*Chunk) string {
	var out []rune
	covered := 0
	for _, ch := range chunks {
		r := []rune(ch.Text)
		if skip := covered - ch.StartOffset; skip > 0 {
			if skip >= len(r) {
				continue
			}
			r = r[skip:]
		}
		out = append(out, r...)
		covered = ch.EndOffset
	}
	return string(out)
}
