package index

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/minirag/internal/chunk"
)

func mkChunk(id, text string) *chunk.Chunk {
	return &chunk.Chunk{ID: id, Text: text}
}

func TestIndexer_UpdateAndPostings(t *testing.T) {
	// Given: an empty index
	ix := New(nil)

	// When: two chunks are added
	ix.Update([]*chunk.Chunk{
		mkChunk("d1-00000000", "quick brown fox"),
		mkChunk("d1-00000001", "fox fox jumps"),
	}, nil)

	// Then: postings carry term frequencies
	assert.Equal(t, map[string]int{"d1-00000000": 1, "d1-00000001": 2}, ix.Postings("fox"))
	assert.Equal(t, 2, ix.DocumentFrequency("fox"))
	assert.Equal(t, 1, ix.DocumentFrequency("quick"))
	assert.Equal(t, 2, ix.TermFrequency("fox", "d1-00000001"))
	assert.Equal(t, 2, ix.ChunkCount())
	assert.Equal(t, 4, ix.KeywordCount())
}

func TestIndexer_UpdateRemovesAndReplaces(t *testing.T) {
	// Given: an indexed chunk
	ix := New(nil)
	ix.Update([]*chunk.Chunk{mkChunk("c1", "alpha beta")}, nil)

	// When: it is re-added with different text
	ix.Update([]*chunk.Chunk{mkChunk("c1", "gamma")}, nil)

	// Then: old keywords are gone
	assert.Nil(t, ix.Postings("alpha"))
	assert.Equal(t, 1, ix.DocumentFrequency("gamma"))

	// When: it is removed
	ix.Update(nil, []string{"c1", "unknown"})

	// Then: the index is empty
	assert.Equal(t, 0, ix.ChunkCount())
	assert.Equal(t, 0, ix.KeywordCount())
	assert.False(t, ix.Has("c1"))
}

func TestIndexer_ChunkWithoutKeywordsIsTracked(t *testing.T) {
	// Given: a chunk of punctuation only
	ix := New(nil)

	// When: indexed
	ix.Update([]*chunk.Chunk{mkChunk("c1", "!! ?? a")}, nil)

	// Then: it is known even though it has no postings
	assert.True(t, ix.Has("c1"))
	assert.Equal(t, 0, ix.KeywordCount())
	assert.Equal(t, []string{"c1"}, ix.ChunkIDs())
}

func TestIndexer_RebuildMatchesIncremental(t *testing.T) {
	// Given: a chunk set
	chunks := []*chunk.Chunk{
		mkChunk("a", "one two three"),
		mkChunk("b", "two three four"),
		mkChunk("c", "three four five"),
	}

	// When: built incrementally with a removal, and rebuilt from scratch
	inc := New(nil)
	inc.Update(chunks, nil)
	inc.Update(nil, []string{"b"})

	full := New(nil)
	full.Rebuild([]*chunk.Chunk{chunks[0], chunks[2]})

	// Then: both are identical
	assert.Equal(t, full.forward, inc.forward)
	assert.Equal(t, full.postings, inc.postings)
	assert.Equal(t, full.Fingerprint(), inc.Fingerprint())
}

func TestIndexer_RebuildIsIdempotent(t *testing.T) {
	chunks := []*chunk.Chunk{mkChunk("a", "x1 y2"), mkChunk("b", "y2 z3")}

	ix := New(nil)
	ix.Rebuild(chunks)
	first := ix.postings

	ix.Rebuild(chunks)

	assert.Equal(t, first, ix.postings)
}

func TestFingerprint_OrderMatters(t *testing.T) {
	assert.Equal(t, Fingerprint([]string{"a", "b"}), Fingerprint([]string{"a", "b"}))
	assert.NotEqual(t, Fingerprint([]string{"a", "b"}), Fingerprint([]string{"ab"}))
	assert.NotEqual(t, Fingerprint(nil), Fingerprint([]string{"a"}))
}

func TestContentFingerprint(t *testing.T) {
	a := &chunk.Chunk{ID: "d-0", Text: "ab cd", StartOffset: 0, EndOffset: 5}
	b := &chunk.Chunk{ID: "d-1", Text: "cd ef", StartOffset: 3, EndOffset: 8}

	assert.Equal(t, ContentFingerprint([]*chunk.Chunk{a, b}), ContentFingerprint([]*chunk.Chunk{b, a}), "order independent")
	assert.NotEqual(t, ContentFingerprint([]*chunk.Chunk{a, b}),
		ContentFingerprint([]*chunk.Chunk{a, {ID: "d-1", Text: "cd eg", StartOffset: 3, EndOffset: 8}}))
	assert.NotEqual(t, ContentFingerprint([]*chunk.Chunk{{ID: "x", Text: "ab"}}),
		ContentFingerprint([]*chunk.Chunk{{ID: "xa", Text: "b"}}))
	assert.NotEqual(t, ContentFingerprint(nil), ContentFingerprint([]*chunk.Chunk{a}))
}

func TestIndexer_SnapshotRoundTrip(t *testing.T) {
	// Given: a populated index saved to disk
	path := filepath.Join(t.TempDir(), SnapshotFileName)
	chunks := []*chunk.Chunk{mkChunk("a", "red green"), mkChunk("b", "green blue")}
	ix := New(nil)
	ix.Update(chunks, nil)
	require.NoError(t, ix.Save(path, chunks))

	// When: loaded against the same chunks
	loaded := New(nil)
	ok, err := loaded.Load(path, chunks)

	// Then: the snapshot is used
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, ix.postings, loaded.postings)
}

func TestIndexer_SnapshotRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, SnapshotFileName)

	saved := []*chunk.Chunk{{ID: "a", Text: "red gh", StartOffset: 0, EndOffset: 6}}
	ix := New(nil)
	ix.Update(saved, nil)
	require.NoError(t, ix.Save(path, saved))

	t.Run("missing file", func(t *testing.T) {
		ok, err := New(nil).Load(filepath.Join(dir, "nope.json"), saved)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("different chunk ids", func(t *testing.T) {
		loaded := New(nil)
		ok, err := loaded.Load(path, []*chunk.Chunk{saved[0], mkChunk("b", "blue")})
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, 0, loaded.ChunkCount())
	})

	t.Run("same ids with different text", func(t *testing.T) {
		rechunked := []*chunk.Chunk{{ID: "a", Text: "red ab", StartOffset: 0, EndOffset: 6}}
		loaded := New(nil)
		ok, err := loaded.Load(path, rechunked)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, 0, loaded.ChunkCount())
	})

	t.Run("same ids with different offsets", func(t *testing.T) {
		moved := []*chunk.Chunk{{ID: "a", Text: "red gh", StartOffset: 4, EndOffset: 10}}
		ok, err := New(nil).Load(path, moved)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("corrupt file", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, writeFile(bad, "{not json"))
		ok, err := New(nil).Load(bad, saved)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestIndexer_Check(t *testing.T) {
	// Given: an index that drifted from the store
	ix := New(nil)
	ix.Update([]*chunk.Chunk{mkChunk("a", "x1"), mkChunk("orphan", "x2")}, nil)

	// When: checked against the store's ids
	res := ix.Check([]string{"a", "missing"})

	// Then: both directions are reported
	assert.False(t, res.Consistent())
	assert.Equal(t, 3, res.Checked)
	assert.Equal(t, 1, res.Count(InconsistencyOrphan))
	assert.Equal(t, 1, res.Count(InconsistencyMissing))
	assert.Equal(t, []Inconsistency{
		{Type: InconsistencyMissing, ChunkID: "missing"},
		{Type: InconsistencyOrphan, ChunkID: "orphan"},
	}, res.Inconsistencies)

	// When: rebuilt and rechecked
	ix.Rebuild([]*chunk.Chunk{mkChunk("a", "x1"), mkChunk("missing", "x3")})

	// Then: consistent
	assert.True(t, ix.Check([]string{"a", "missing"}).Consistent())
}
