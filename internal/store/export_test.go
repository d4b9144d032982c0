package store

import "github.com/Aman-CERP/minirag/internal/chunk"

// IndexChunkForTest indexes ch without storing it, leaving a posting that
// points at a chunk the store does not hold.
func (s *DocumentStore) IndexChunkForTest(ch *chunk.Chunk) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index.Update([]*chunk.Chunk{ch}, nil)
}
