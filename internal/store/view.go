package store

import (
	"github.com/Aman-CERP/minirag/internal/chunk"
	"github.com/Aman-CERP/minirag/internal/index"
)

// View is a read-only snapshot of the store, valid only inside the
// callback passed to DocumentStore.View.
type View struct {
	s *DocumentStore
}

// View runs fn under the read lock. fn must not retain the View or call
// mutating store methods.
func (s *DocumentStore) View(fn func(v View)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(View{s: s})
}

// Index returns the keyword index.
func (v View) Index() *index.Indexer {
	return v.s.index
}

// Chunk returns the chunk with id and its parent document.
func (v View) Chunk(id string) (*chunk.Chunk, *Document, bool) {
	ch, ok := v.s.chunks[id]
	if !ok {
		return nil, nil, false
	}
	doc, ok := v.s.docs[ch.DocumentID]
	if !ok {
		return nil, nil, false
	}
	return ch, doc, true
}

// ChunkIDs returns every stored chunk id in ascending order.
func (v View) ChunkIDs() []string {
	return v.s.sortedChunkIDs()
}

// ChunkCount returns the number of stored chunks.
func (v View) ChunkCount() int {
	return len(v.s.chunks)
}

// Generation is the store generation this view observes.
func (v View) Generation() uint64 {
	return v.s.generation.Load()
}
