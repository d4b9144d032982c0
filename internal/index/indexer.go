// Package index maintains the keyword index derived from stored chunks.
//
// The index is a pure function of the chunk set: every entry can be
// recomputed from chunk text, so recovery is always a full Rebuild.
package index

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"

	"github.com/Aman-CERP/minirag/internal/chunk"
)

// Indexer maps keyword -> chunk id -> term frequency.
//
// Indexer is not safe for concurrent use. The document store owns it and
// serializes writes with its own locks.
type Indexer struct {
	tokenizer *Tokenizer

	// postings is keyword -> chunk id -> term frequency.
	postings map[string]map[string]int
	// forward is chunk id -> keyword -> term frequency; needed to retract.
	forward map[string]map[string]int
}

// New returns an empty index that tokenizes with tok.
func New(tok *Tokenizer) *Indexer {
	if tok == nil {
		tok = NewTokenizer()
	}
	return &Indexer{
		tokenizer: tok,
		postings:  make(map[string]map[string]int),
		forward:   make(map[string]map[string]int),
	}
}

// Tokenizer returns the tokenizer shared with query parsing.
func (ix *Indexer) Tokenizer() *Tokenizer {
	return ix.tokenizer
}

// Update retracts removed chunk ids, then folds in added chunks. A chunk
// id that is already indexed is replaced.
func (ix *Indexer) Update(added []*chunk.Chunk, removed []string) {
	for _, id := range removed {
		ix.retract(id)
	}
	for _, ch := range added {
		ix.retract(ch.ID)
		ix.insert(ch.ID, ix.tokenizer.Keywords(ch.Text))
	}
}

// Rebuild discards everything and indexes all chunks from scratch.
func (ix *Indexer) Rebuild(all []*chunk.Chunk) {
	ix.postings = make(map[string]map[string]int)
	ix.forward = make(map[string]map[string]int, len(all))
	for _, ch := range all {
		ix.insert(ch.ID, ix.tokenizer.Keywords(ch.Text))
	}
}

func (ix *Indexer) insert(id string, keywords map[string]int) {
	ix.forward[id] = keywords
	for kw, tf := range keywords {
		p := ix.postings[kw]
		if p == nil {
			p = make(map[string]int)
			ix.postings[kw] = p
		}
		p[id] = tf
	}
}

func (ix *Indexer) retract(id string) {
	keywords, ok := ix.forward[id]
	if !ok {
		return
	}
	for kw := range keywords {
		p := ix.postings[kw]
		delete(p, id)
		if len(p) == 0 {
			delete(ix.postings, kw)
		}
	}
	delete(ix.forward, id)
}

// Postings returns chunk id -> term frequency for keyword. The map is
// owned by the index and must not be modified.
func (ix *Indexer) Postings(keyword string) map[string]int {
	return ix.postings[keyword]
}

// TermFrequency returns how often keyword occurs in the chunk.
func (ix *Indexer) TermFrequency(keyword, chunkID string) int {
	return ix.postings[keyword][chunkID]
}

// DocumentFrequency returns the number of chunks containing keyword.
func (ix *Indexer) DocumentFrequency(keyword string) int {
	return len(ix.postings[keyword])
}

// Has reports whether the chunk is indexed, even with zero keywords.
func (ix *Indexer) Has(chunkID string) bool {
	_, ok := ix.forward[chunkID]
	return ok
}

// ChunkCount returns the number of indexed chunks.
func (ix *Indexer) ChunkCount() int {
	return len(ix.forward)
}

// KeywordCount returns the number of distinct keywords.
func (ix *Indexer) KeywordCount() int {
	return len(ix.postings)
}

// ChunkIDs returns all indexed chunk ids in ascending order.
func (ix *Indexer) ChunkIDs() []string {
	ids := make([]string, 0, len(ix.forward))
	for id := range ix.forward {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Fingerprint hashes the indexed chunk id set.
func (ix *Indexer) Fingerprint() string {
	return Fingerprint(ix.ChunkIDs())
}

// Fingerprint hashes a sorted chunk id list. Stores compute the same value
// over their records to validate a cached snapshot.
func Fingerprint(sortedIDs []string) string {
	h := sha256.New()
	for _, id := range sortedIDs {
		h.Write([]byte(id))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ContentFingerprint hashes every chunk's id, offsets and text, in id
// order. Re-chunking under a different geometry can keep the id set while
// moving text between chunks; this fingerprint changes when it does.
func ContentFingerprint(chunks []*chunk.Chunk) string {
	sorted := make([]*chunk.Chunk, len(chunks))
	copy(sorted, chunks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	h := sha256.New()
	var buf []byte
	for _, ch := range sorted {
		buf = buf[:0]
		buf = append(buf, ch.ID...)
		buf = append(buf, 0)
		buf = strconv.AppendInt(buf, int64(ch.StartOffset), 10)
		buf = append(buf, ':')
		buf = strconv.AppendInt(buf, int64(ch.EndOffset), 10)
		buf = append(buf, ':')
		buf = strconv.AppendInt(buf, int64(len(ch.Text)), 10)
		buf = append(buf, 0)
		h.Write(buf)
		h.Write([]byte(ch.Text))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func sortedIDs(chunks []*chunk.Chunk) []string {
	ids := make([]string, len(chunks))
	for i, ch := range chunks {
		ids[i] = ch.ID
	}
	sort.Strings(ids)
	return ids
}
