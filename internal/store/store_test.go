package store

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/minirag/internal/chunk"
	raerrors "github.com/Aman-CERP/minirag/internal/errors"
	"github.com/Aman-CERP/minirag/internal/index"
)

func openTestStore(t *testing.T, dir, backend string) *DocumentStore {
	t.Helper()
	s, err := Open(context.Background(), Options{
		DataDir:      dir,
		Backend:      backend,
		ChunkSize:    20,
		ChunkOverlap: 5,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

var backends = []string{BackendFile, BackendSQLite}

func TestOpen_InvalidChunking(t *testing.T) {
	// When: opening with overlap >= size
	_, err := Open(context.Background(), Options{DataDir: t.TempDir(), ChunkSize: 10, ChunkOverlap: 10})

	// Then: configuration error, nothing opened
	require.Error(t, err)
	assert.True(t, raerrors.IsConfiguration(err))
	assert.Equal(t, raerrors.ErrCodeChunkingConfig, raerrors.GetCode(err))
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), Options{DataDir: t.TempDir(), Backend: "redis", ChunkSize: 10})
	require.Error(t, err)
}

func TestOpen_DataDirLocked(t *testing.T) {
	// Given: an open store
	dir := t.TempDir()
	_ = openTestStore(t, dir, BackendFile)

	// When: a second store opens the same directory
	_, err := Open(context.Background(), Options{DataDir: dir, ChunkSize: 20, ChunkOverlap: 5})

	// Then: it is refused
	require.Error(t, err)
	assert.Equal(t, raerrors.ErrCodeStorageLocked, raerrors.GetCode(err))
}

func TestDocumentStore_AddGetList(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			// Given: an empty store
			s := openTestStore(t, t.TempDir(), backend)
			ctx := context.Background()

			// When: two documents are added
			d1, err := s.Add(ctx, NewDocument{Filename: "fox.txt", Text: "The quick brown fox jumps over the lazy dog"})
			require.NoError(t, err)
			d2, err := s.Add(ctx, NewDocument{Filename: "b.txt", Text: "short"})
			require.NoError(t, err)

			// Then: ids are assigned and chunks derived
			assert.NotEmpty(t, d1.ID)
			assert.Len(t, d1.Chunks, 3)
			assert.Equal(t, 3, d1.Metadata.TotalChunks)

			got, err := s.Get(d1.ID)
			require.NoError(t, err)
			assert.Equal(t, "fox.txt", got.Filename)

			// And: list preserves insertion order
			list := s.List()
			require.Len(t, list, 2)
			assert.Equal(t, d1.ID, list[0].ID)
			assert.Equal(t, d2.ID, list[1].ID)
			assert.Equal(t, 1, list[1].TotalChunks)

			docs, chunks, keywords := s.Counts()
			assert.Equal(t, 2, docs)
			assert.Equal(t, 4, chunks)
			assert.Positive(t, keywords)
		})
	}
}

func TestDocumentStore_AddDuplicateID(t *testing.T) {
	s := openTestStore(t, t.TempDir(), BackendFile)
	ctx := context.Background()

	_, err := s.Add(ctx, NewDocument{ID: "doc-1", Filename: "a.txt", Text: "alpha"})
	require.NoError(t, err)

	_, err = s.Add(ctx, NewDocument{ID: "doc-1", Filename: "b.txt", Text: "beta"})
	require.Error(t, err)
	assert.Equal(t, raerrors.ErrCodeDuplicateID, raerrors.GetCode(err))

	// The original is untouched
	doc, err := s.Get("doc-1")
	require.NoError(t, err)
	assert.Equal(t, "alpha", doc.RawText)
}

func TestDocumentStore_EmptyTextHasNoChunks(t *testing.T) {
	s := openTestStore(t, t.TempDir(), BackendFile)

	doc, err := s.Add(context.Background(), NewDocument{Filename: "empty.txt"})

	require.NoError(t, err)
	assert.Empty(t, doc.Chunks)
	assert.Equal(t, 0, doc.Metadata.TotalChunks)
}

func TestDocumentStore_GetNotFound(t *testing.T) {
	s := openTestStore(t, t.TempDir(), BackendFile)

	_, err := s.Get("missing")

	require.Error(t, err)
	assert.True(t, raerrors.IsNotFound(err))
}

func TestDocumentStore_DeleteCascade(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			// Given: two documents
			s := openTestStore(t, t.TempDir(), backend)
			ctx := context.Background()
			keep, err := s.Add(ctx, NewDocument{Filename: "keep.txt", Text: "giraffe neck savanna"})
			require.NoError(t, err)
			gone, err := s.Add(ctx, NewDocument{Filename: "gone.txt", Text: "The quick brown fox jumps over the lazy dog"})
			require.NoError(t, err)
			_, before, _ := s.Counts()

			// When: one is deleted
			deleted, err := s.Delete(ctx, gone.ID)
			require.NoError(t, err)

			// Then: its chunks leave the store and the index
			_, after, _ := s.Counts()
			assert.Equal(t, before-len(deleted.Chunks), after)
			s.View(func(v View) {
				assert.Nil(t, v.Index().Postings("fox"))
				assert.Equal(t, 1, v.Index().DocumentFrequency("giraffe"))
				for _, id := range gone.ChunkIDs() {
					assert.False(t, v.Index().Has(id))
					_, _, ok := v.Chunk(id)
					assert.False(t, ok)
				}
			})
			assert.True(t, s.CheckConsistency().Consistent())

			// And: a second delete is not found, not a crash
			_, err = s.Delete(ctx, gone.ID)
			require.Error(t, err)
			assert.True(t, raerrors.IsNotFound(err))

			list := s.List()
			require.Len(t, list, 1)
			assert.Equal(t, keep.ID, list[0].ID)
		})
	}
}

func TestDocumentStore_ReopenRestoresState(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			// Given: a store with documents, closed cleanly
			dir := t.TempDir()
			ctx := context.Background()
			s, err := Open(ctx, Options{DataDir: dir, Backend: backend, ChunkSize: 20, ChunkOverlap: 5})
			require.NoError(t, err)
			d1, err := s.Add(ctx, NewDocument{Filename: "a.txt", Text: "first document text here"})
			require.NoError(t, err)
			d2, err := s.Add(ctx, NewDocument{Filename: "b.txt", Text: "second document"})
			require.NoError(t, err)
			_, err = s.Delete(ctx, d1.ID)
			require.NoError(t, err)
			d3, err := s.Add(ctx, NewDocument{Filename: "c.txt", Text: "third"})
			require.NoError(t, err)
			require.NoError(t, s.Close())

			// When: reopened
			s2 := openTestStore(t, dir, backend)

			// Then: documents and order survive
			list := s2.List()
			require.Len(t, list, 2)
			assert.Equal(t, d2.ID, list[0].ID)
			assert.Equal(t, d3.ID, list[1].ID)
			assert.True(t, s2.CheckConsistency().Consistent())
			s2.View(func(v View) {
				assert.Equal(t, 1, v.Index().DocumentFrequency("second"))
				assert.Nil(t, v.Index().Postings("first"))
			})
		})
	}
}

func TestDocumentStore_StaleSnapshotIsRebuilt(t *testing.T) {
	// Given: a snapshot that no longer matches the records
	dir := t.TempDir()
	ctx := context.Background()
	s, err := Open(ctx, Options{DataDir: dir, ChunkSize: 20, ChunkOverlap: 5})
	require.NoError(t, err)
	_, err = s.Add(ctx, NewDocument{Filename: "a.txt", Text: "zebra stripes"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	stale := index.New(nil)
	require.NoError(t, stale.Save(filepath.Join(dir, index.SnapshotFileName), nil))

	// When: reopened
	s2 := openTestStore(t, dir, BackendFile)

	// Then: the index was recomputed from the records
	assert.True(t, s2.CheckConsistency().Consistent())
	s2.View(func(v View) {
		assert.Equal(t, 1, v.Index().DocumentFrequency("zebra"))
	})
}

func TestDocumentStore_RechunksOnGeometryChange(t *testing.T) {
	// Given: documents stored with size 20 / overlap 5
	dir := t.TempDir()
	ctx := context.Background()
	s, err := Open(ctx, Options{DataDir: dir, ChunkSize: 20, ChunkOverlap: 5})
	require.NoError(t, err)
	doc, err := s.Add(ctx, NewDocument{Filename: "fox.txt", Text: "The quick brown fox jumps over the lazy dog"})
	require.NoError(t, err)
	require.Len(t, doc.Chunks, 3)
	require.NoError(t, s.Close())

	// When: reopened with a larger window
	s2, err := Open(ctx, Options{DataDir: dir, ChunkSize: 100, ChunkOverlap: 10})
	require.NoError(t, err)
	defer func() { _ = s2.Close() }()

	// Then: the document is re-chunked and reindexed
	got, err := s2.Get(doc.ID)
	require.NoError(t, err)
	assert.Len(t, got.Chunks, 1)
	assert.Equal(t, 1, got.Metadata.TotalChunks)
	assert.True(t, s2.CheckConsistency().Consistent())
}

func TestDocumentStore_GeometryChangeIgnoresSnapshot(t *testing.T) {
	for _, backend := range []string{BackendFile, BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			// Given: a document whose chunk count is 2 under both 10/2 and 12/2
			dir := t.TempDir()
			ctx := context.Background()
			s, err := Open(ctx, Options{DataDir: dir, Backend: backend, ChunkSize: 10, ChunkOverlap: 2})
			require.NoError(t, err)
			doc, err := s.Add(ctx, NewDocument{Filename: "a.txt", Text: "ab cd ef gh ij kl"})
			require.NoError(t, err)
			require.Len(t, doc.Chunks, 2)
			require.NoError(t, s.Close())

			// When: reopened with a wider window, keeping the same chunk ids
			s2, err := Open(ctx, Options{DataDir: dir, Backend: backend, ChunkSize: 12, ChunkOverlap: 2})
			require.NoError(t, err)
			defer func() { _ = s2.Close() }()

			// Then: "gh" moved into the first chunk and the index follows it
			got, err := s2.Get(doc.ID)
			require.NoError(t, err)
			require.Len(t, got.Chunks, 2)
			assert.Contains(t, got.Chunks[0].Text, "gh")
			s2.View(func(v View) {
				assert.Equal(t, map[string]int{chunk.ID(doc.ID, 0): 1}, v.Index().Postings("gh"))
			})

			// And: a rebuild leaves the index unchanged
			var before map[string]int
			s2.View(func(v View) { before = maps.Clone(v.Index().Postings("gh")) })
			require.NoError(t, s2.Rebuild(ctx))
			s2.View(func(v View) {
				assert.Equal(t, before, v.Index().Postings("gh"))
			})
		})
	}
}

func TestDocumentStore_InvalidUTF8IsReplaced(t *testing.T) {
	for _, backend := range []string{BackendFile, BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			// Given: text with stray non-UTF-8 bytes
			dir := t.TempDir()
			ctx := context.Background()
			s, err := Open(ctx, Options{DataDir: dir, Backend: backend, ChunkSize: 4, ChunkOverlap: 1})
			require.NoError(t, err)

			// When: stored
			doc, err := s.Add(ctx, NewDocument{Filename: "bin.txt", Text: "ab\xffcd\xfeefgh"})
			require.NoError(t, err)

			// Then: the raw text is valid and every chunk is a substring of it
			assert.Equal(t, "ab\ufffdcd\ufffdefgh", doc.RawText)
			for _, ch := range doc.Chunks {
				assert.Equal(t, ch.Text, string([]rune(doc.RawText)[ch.StartOffset:ch.EndOffset]))
			}
			assert.Equal(t, doc.RawText, chunk.Reconstruct(doc.Chunks))

			// And: the persisted record reads back identically
			require.NoError(t, s.Close())
			s2, err := Open(ctx, Options{DataDir: dir, Backend: backend, ChunkSize: 4, ChunkOverlap: 1})
			require.NoError(t, err)
			defer func() { _ = s2.Close() }()
			got, err := s2.Get(doc.ID)
			require.NoError(t, err)
			assert.Equal(t, doc.RawText, got.RawText)
			assert.Equal(t, len(doc.Chunks), len(got.Chunks))
			assert.True(t, s2.CheckConsistency().Consistent())
		})
	}
}

func TestDocumentStore_CorruptRecord(t *testing.T) {
	// Given: a record that is not valid JSON
	dir := t.TempDir()
	docs := filepath.Join(dir, documentsDirName)
	require.NoError(t, os.MkdirAll(docs, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "bad.json"), []byte("{"), 0644))

	// When: opening
	_, err := Open(context.Background(), Options{DataDir: dir, ChunkSize: 20, ChunkOverlap: 5})

	// Then: reported as corruption, and the lock is released
	require.Error(t, err)
	assert.Equal(t, raerrors.ErrCodeStorageCorrupt, raerrors.GetCode(err))
	assert.True(t, raerrors.IsStorage(err))

	require.NoError(t, os.Remove(filepath.Join(docs, "bad.json")))
	_ = openTestStore(t, dir, BackendFile)
}

func TestDocumentStore_RebuildIsIdempotent(t *testing.T) {
	s := openTestStore(t, t.TempDir(), BackendFile)
	ctx := context.Background()
	_, err := s.Add(ctx, NewDocument{Filename: "a.txt", Text: "The quick brown fox jumps over the lazy dog"})
	require.NoError(t, err)

	var before, after map[string]int
	s.View(func(v View) { before = copyPostings(v.Index().Postings("fox")) })
	gen := s.Generation()

	require.NoError(t, s.Rebuild(ctx))

	s.View(func(v View) { after = copyPostings(v.Index().Postings("fox")) })
	assert.Equal(t, before, after)
	assert.Greater(t, s.Generation(), gen)
}

func TestDocumentStore_EnsureConsistentRebuildsOnDivergence(t *testing.T) {
	// Given: an index that lost a chunk
	s := openTestStore(t, t.TempDir(), BackendFile)
	ctx := context.Background()
	doc, err := s.Add(ctx, NewDocument{Filename: "a.txt", Text: "The quick brown fox jumps over the lazy dog"})
	require.NoError(t, err)
	s.mu.Lock()
	s.index.Update(nil, []string{doc.Chunks[0].ID})
	s.mu.Unlock()

	// When: consistency is enforced
	result, err := s.EnsureConsistent(ctx)

	// Then: divergence was reported and repaired by rebuild
	require.NoError(t, err)
	assert.Equal(t, 1, result.Count(index.InconsistencyMissing))
	assert.True(t, s.CheckConsistency().Consistent())
}

func TestDocumentStore_Health(t *testing.T) {
	s := openTestStore(t, t.TempDir(), BackendFile)
	assert.Equal(t, StatusHealthy, s.Health(context.Background()))

	require.NoError(t, s.Close())
	assert.Equal(t, StatusUnavailable, s.Health(context.Background()))
}

func TestDocumentStore_ClosedRejectsWrites(t *testing.T) {
	s := openTestStore(t, t.TempDir(), BackendFile)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err := s.Add(context.Background(), NewDocument{Filename: "a.txt", Text: "x"})
	assert.Equal(t, raerrors.ErrCodeStorageClosed, raerrors.GetCode(err))
}

func TestDocumentStore_ConcurrentAddDeleteSearch(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			// Given: a shared store
			s := openTestStore(t, t.TempDir(), backend)
			ctx := context.Background()

			const writers = 8
			const perWriter = 10
			var wg sync.WaitGroup
			ids := make(chan string, writers*perWriter)

			// When: writers add and delete while readers scan
			for w := 0; w < writers; w++ {
				wg.Add(1)
				go func(w int) {
					defer wg.Done()
					for i := 0; i < perWriter; i++ {
						doc, err := s.Add(ctx, NewDocument{
							Filename: fmt.Sprintf("w%d-%d.txt", w, i),
							Text:     fmt.Sprintf("writer%d item%d shared keyword text that spans more than one chunk", w, i),
						})
						if !assert.NoError(t, err) {
							return
						}
						if i%2 == 0 {
							_, err := s.Delete(ctx, doc.ID)
							assert.NoError(t, err)
						} else {
							ids <- doc.ID
						}
					}
				}(w)
			}
			for r := 0; r < 4; r++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := 0; i < 50; i++ {
						s.View(func(v View) {
							// Every posting resolves to a stored chunk.
							for id := range v.Index().Postings("shared") {
								_, _, ok := v.Chunk(id)
								assert.True(t, ok)
							}
						})
						_ = s.List()
					}
				}()
			}
			wg.Wait()
			close(ids)

			// Then: state is consistent and exactly the survivors remain
			assert.True(t, s.CheckConsistency().Consistent())
			docs, _, _ := s.Counts()
			assert.Equal(t, writers*perWriter/2, docs)
			for id := range ids {
				_, err := s.Get(id)
				assert.NoError(t, err)
			}
		})
	}
}

func TestPreview(t *testing.T) {
	tests := []struct {
		name string
		text string
		n    int
		want string
	}{
		{"shorter", "abc", 5, "abc"},
		{"exact", "abcde", 5, "abcde"},
		{"truncated", "abcdef", 5, "abcde..."},
		{"runes", "ééééé", 2, "éé..."},
		{"no limit", "abc", 0, "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Preview(tt.text, tt.n))
		})
	}
}

func TestDetectBackend(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, "", DetectBackend(dir))

	s := openTestStore(t, dir, BackendSQLite)
	require.NoError(t, s.Close())
	assert.Equal(t, BackendSQLite, DetectBackend(dir))
}

func TestOpen_WarnsOnBackendMismatch(t *testing.T) {
	// Given: a data directory already holding file backend records
	dir := t.TempDir()
	s := openTestStore(t, dir, BackendFile)
	_, err := s.Add(context.Background(), NewDocument{Filename: "a.txt", Text: "alpha beta"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopen := func(backend string) string {
		var buf bytes.Buffer
		s, err := Open(context.Background(), Options{
			DataDir:      dir,
			Backend:      backend,
			ChunkSize:    20,
			ChunkOverlap: 5,
			Logger:       slog.New(slog.NewTextHandler(&buf, nil)),
		})
		require.NoError(t, err)
		require.NoError(t, s.Close())
		return buf.String()
	}

	// When/Then: reopening with the same backend is quiet
	assert.NotContains(t, reopen(""), "storage_backend_mismatch")

	// When/Then: switching backends is logged with what was found
	logs := reopen(BackendSQLite)
	assert.Contains(t, logs, "storage_backend_mismatch")
	assert.Contains(t, logs, "found=file")
	assert.Contains(t, logs, "configured=sqlite")
}

func copyPostings(p map[string]int) map[string]int {
	out := make(map[string]int, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

func TestWriteFileAtomic_ReplacesWithoutLeftovers(t *testing.T) {
	// Given: an existing record file
	path := filepath.Join(t.TempDir(), "doc.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"old":true}`), 0o644))

	// When
	require.NoError(t, writeFileAtomic(path, []byte(`{"new":true}`)))

	// Then: the new bytes are in place and no temp file remains
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"new":true}`, string(data))
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	// And: a missing directory is reported without creating anything
	err = writeFileAtomic(filepath.Join(t.TempDir(), "gone", "doc.json"), []byte("x"))
	assert.ErrorContains(t, err, "failed to write doc.json")
}
