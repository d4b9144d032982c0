// Package store owns the durable record of documents and their chunks.
//
// DocumentStore is the exclusive writer of on-disk state and owns the
// keyword index. Mutations are serialized by a writer lock, persisted
// before they become visible, and applied to memory and the index inside
// one critical section, so readers never see a document whose chunks are
// only partly indexed.
package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Aman-CERP/minirag/internal/chunk"
	"github.com/Aman-CERP/minirag/internal/config"
	raerrors "github.com/Aman-CERP/minirag/internal/errors"
	"github.com/Aman-CERP/minirag/internal/index"
)

// Status values reported by Health.
const (
	StatusHealthy     = "healthy"
	StatusDegraded    = "degraded"
	StatusUnavailable = "unavailable"
)

// Options configures Open.
type Options struct {
	DataDir      string
	Backend      string
	ChunkSize    int
	ChunkOverlap int
	Logger       *slog.Logger
}

// OptionsFromConfig derives store options from cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		DataDir:      cfg.Storage.DataDir,
		Backend:      cfg.Storage.Backend,
		ChunkSize:    cfg.Chunking.ChunkSize,
		ChunkOverlap: cfg.Chunking.ChunkOverlap,
	}
}

// DocumentStore holds every document and the index derived from them.
type DocumentStore struct {
	// writeMu serializes add, delete and rebuild, including persistence.
	writeMu sync.Mutex
	// mu guards the in-memory view below. Writers take it only for the
	// final apply step.
	mu sync.RWMutex

	docs   map[string]*Document
	order  []string
	chunks map[string]*chunk.Chunk
	index  *index.Indexer

	chunker    *chunk.Chunker
	backend    Backend
	lock       *dirLock
	dataDir    string
	logger     *slog.Logger
	generation atomic.Uint64
	closed     bool
}

// Open acquires the data directory, loads every record and restores the
// index, from its cached snapshot when that still matches the records and
// by full rebuild otherwise.
func Open(ctx context.Context, opts Options) (*DocumentStore, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	chunker, err := chunk.New(opts.ChunkSize, opts.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	if opts.DataDir == "" {
		return nil, raerrors.ConfigurationError("storage.data_dir is required", nil)
	}

	lock := newDirLock(opts.DataDir)
	acquired, err := lock.TryLock()
	if err != nil {
		return nil, raerrors.New(raerrors.ErrCodeStorageWrite, "cannot lock data directory", err)
	}
	if !acquired {
		return nil, raerrors.New(raerrors.ErrCodeStorageLocked,
			"data directory is in use by another process", nil).
			WithDetail("data_dir", opts.DataDir).
			WithSuggestion("Stop the other minirag process or use the running daemon")
	}

	configured := opts.Backend
	if configured == "" {
		configured = BackendFile
	}
	if found := DetectBackend(opts.DataDir); found != "" && found != configured {
		logger.Warn("storage_backend_mismatch",
			slog.String("configured", configured),
			slog.String("found", found),
			slog.String("data_dir", opts.DataDir))
	}

	backend, err := NewBackend(opts.Backend, opts.DataDir)
	if err != nil {
		_ = lock.Unlock()
		return nil, classifyOpenError(err)
	}

	s := &DocumentStore{
		docs:    make(map[string]*Document),
		chunks:  make(map[string]*chunk.Chunk),
		index:   index.New(index.NewTokenizer()),
		chunker: chunker,
		backend: backend,
		lock:    lock,
		dataDir: opts.DataDir,
		logger:  logger,
	}

	if err := s.load(ctx); err != nil {
		_ = backend.Close()
		_ = lock.Unlock()
		return nil, classifyOpenError(err)
	}
	return s, nil
}

func classifyOpenError(err error) error {
	var corrupt *corruptRecordError
	if stderrors.As(err, &corrupt) {
		return raerrors.New(raerrors.ErrCodeStorageCorrupt, "stored document is corrupt", err)
	}
	if _, ok := raerrors.As(err); ok {
		return err
	}
	return raerrors.New(raerrors.ErrCodeStorageRead, "failed to load documents", err)
}

func (s *DocumentStore) load(ctx context.Context) error {
	start := time.Now()

	docs, err := s.backend.LoadAll(ctx)
	if err != nil {
		return err
	}

	rechunked := 0
	for _, doc := range docs {
		if s.chunker.Matches(doc.Chunks, utf8.RuneCountInString(doc.RawText)) {
			continue
		}
		// Written under a different chunk geometry, or a legacy record
		// without chunks. Re-derive from the raw text.
		doc.Chunks = s.chunker.Chunk(doc.ID, doc.RawText)
		doc.Metadata.TotalChunks = len(doc.Chunks)
		if err := s.backend.Put(ctx, doc); err != nil {
			return err
		}
		rechunked++
	}

	for _, doc := range docs {
		s.docs[doc.ID] = doc
		s.order = append(s.order, doc.ID)
		for _, ch := range doc.Chunks {
			s.chunks[ch.ID] = ch
		}
	}

	// A snapshot predates any re-chunking done above.
	restored := false
	if rechunked == 0 {
		restored, err = s.index.Load(s.snapshotPath(), s.allChunks())
		if err != nil {
			s.logger.Warn("index_snapshot_unreadable", slog.String("error", err.Error()))
		}
	}
	if !restored {
		s.index.Rebuild(s.allChunks())
	}

	s.logger.Info("store_opened",
		slog.String("backend", s.backend.Name()),
		slog.String("data_dir", s.dataDir),
		slog.Int("documents", len(s.docs)),
		slog.Int("chunks", len(s.chunks)),
		slog.Int("rechunked", rechunked),
		slog.Bool("snapshot_restored", restored),
		slog.Duration("duration", time.Since(start)))
	return nil
}

func (s *DocumentStore) snapshotPath() string {
	return filepath.Join(s.dataDir, index.SnapshotFileName)
}

// Add stores a new document and indexes its chunks. Chunking happens
// before the writer lock is taken. The document is persisted before it
// becomes visible; once Add returns, searches see it.
//
// Invalid UTF-8 is replaced with U+FFFD before chunking, so every chunk is
// a substring of the stored raw text and the JSON record round-trips.
func (s *DocumentStore) Add(ctx context.Context, in NewDocument) (*Document, error) {
	id := in.ID
	if id == "" {
		id = uuid.Must(uuid.NewV7()).String()
	}
	text := strings.ToValidUTF8(in.Text, string(utf8.RuneError))

	doc := &Document{
		ID:         id,
		Filename:   in.Filename,
		RawText:    text,
		UploadTime: time.Now().UTC(),
		Metadata:   in.Metadata,
		Chunks:     s.chunker.Chunk(id, text),
	}
	doc.Metadata.TotalChunks = len(doc.Chunks)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.closed {
		return nil, errClosed()
	}
	// docs is only mutated with writeMu held, so no read lock is needed.
	if _, exists := s.docs[id]; exists {
		return nil, raerrors.New(raerrors.ErrCodeDuplicateID, "document id already exists", nil).
			WithDetail("document_id", id)
	}

	if err := s.backend.Put(ctx, doc); err != nil {
		return nil, raerrors.StorageError("failed to persist document", err).
			WithDetail("document_id", id)
	}

	s.mu.Lock()
	s.docs[id] = doc
	s.order = append(s.order, id)
	for _, ch := range doc.Chunks {
		s.chunks[ch.ID] = ch
	}
	s.index.Update(doc.Chunks, nil)
	s.generation.Add(1)
	s.mu.Unlock()

	s.logger.Debug("document_added",
		slog.String("document_id", id),
		slog.String("filename", doc.Filename),
		slog.Int("chunks", len(doc.Chunks)))
	return doc, nil
}

// Get returns the document with id.
func (s *DocumentStore) Get(id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, raerrors.NotFoundError(id)
	}
	return doc, nil
}

// List returns document summaries in insertion order.
func (s *DocumentStore) List() []Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Summary, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.docs[id].Summarize())
	}
	return out
}

// FindBySource returns the ids of documents uploaded from path, oldest
// first.
func (s *DocumentStore) FindBySource(path string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for _, id := range s.order {
		if s.docs[id].Metadata.Source == path {
			ids = append(ids, id)
		}
	}
	return ids
}

// Delete removes the document, its chunks and their index entries. A
// second Delete of the same id returns a not-found error.
func (s *DocumentStore) Delete(ctx context.Context, id string) (*Document, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.closed {
		return nil, errClosed()
	}
	doc, ok := s.docs[id]
	if !ok {
		return nil, raerrors.NotFoundError(id)
	}

	if err := s.backend.Delete(ctx, id); err != nil {
		return nil, raerrors.StorageError("failed to delete document", err).
			WithDetail("document_id", id)
	}

	removed := doc.ChunkIDs()

	s.mu.Lock()
	delete(s.docs, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	for _, cid := range removed {
		delete(s.chunks, cid)
	}
	s.index.Update(nil, removed)
	s.generation.Add(1)
	s.mu.Unlock()

	s.logger.Debug("document_deleted",
		slog.String("document_id", id),
		slog.Int("chunks", len(removed)))
	return doc, nil
}

// Rebuild discards the index and recomputes it from stored chunk text.
func (s *DocumentStore) Rebuild(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.closed {
		return errClosed()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	s.mu.Lock()
	s.index.Rebuild(s.allChunks())
	keywords := s.index.KeywordCount()
	s.generation.Add(1)
	s.mu.Unlock()

	s.logger.Info("index_rebuilt",
		slog.Int("chunks", len(s.chunks)),
		slog.Int("keywords", keywords),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// CheckConsistency compares stored chunk ids against the index.
func (s *DocumentStore) CheckConsistency() *index.CheckResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Check(s.sortedChunkIDs())
}

// EnsureConsistent checks the index and falls back to a full rebuild on
// any divergence. It never attempts partial repair.
func (s *DocumentStore) EnsureConsistent(ctx context.Context) (*index.CheckResult, error) {
	result := s.CheckConsistency()
	if result.Consistent() {
		return result, nil
	}
	s.logger.Warn("index_divergence",
		slog.Int("orphans", result.Count(index.InconsistencyOrphan)),
		slog.Int("missing", result.Count(index.InconsistencyMissing)))
	return result, s.Rebuild(ctx)
}

// Health probes the backend. A failed read makes the store unavailable;
// a failed write with working reads makes it degraded.
func (s *DocumentStore) Health(ctx context.Context) string {
	s.writeMu.Lock()
	closed := s.closed
	s.writeMu.Unlock()
	if closed {
		return StatusUnavailable
	}

	if err := s.backend.ReadProbe(ctx); err != nil {
		s.logger.Warn("store_read_probe_failed", slog.String("error", err.Error()))
		return StatusUnavailable
	}

	s.writeMu.Lock()
	err := s.backend.WriteProbe(ctx)
	s.writeMu.Unlock()
	if err != nil {
		s.logger.Warn("store_write_probe_failed", slog.String("error", err.Error()))
		return StatusDegraded
	}
	return StatusHealthy
}

// Counts returns document, chunk and keyword totals from one consistent view.
func (s *DocumentStore) Counts() (documents, chunks, keywords int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs), len(s.chunks), s.index.KeywordCount()
}

// BackendName returns the active backend name.
func (s *DocumentStore) BackendName() string {
	return s.backend.Name()
}

// Generation increases on every mutation. Caches key on it.
func (s *DocumentStore) Generation() uint64 {
	return s.generation.Load()
}

// Chunker returns the chunker the store was opened with.
func (s *DocumentStore) Chunker() *chunk.Chunker {
	return s.chunker
}

// Tokenizer returns the tokenizer the index was built with.
func (s *DocumentStore) Tokenizer() *index.Tokenizer {
	return s.index.Tokenizer()
}

// Checkpoint writes the index snapshot so the next Open can skip the
// rebuild even if this process dies without Close.
func (s *DocumentStore) Checkpoint() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.closed {
		return errClosed()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.index.Save(s.snapshotPath(), s.allChunks()); err != nil {
		return raerrors.StorageError("failed to save index snapshot", err)
	}
	return nil
}

// Close saves the index snapshot, closes the backend and releases the
// data directory. Close is idempotent.
func (s *DocumentStore) Close() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	s.mu.RLock()
	if err := s.index.Save(s.snapshotPath(), s.allChunks()); err != nil {
		// The snapshot is a cache; the next Open rebuilds.
		s.logger.Warn("index_snapshot_save_failed", slog.String("error", err.Error()))
	}
	s.mu.RUnlock()

	if err := s.backend.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close backend: %w", err))
	}
	if err := s.lock.Unlock(); err != nil {
		errs = append(errs, err)
	}
	return stderrors.Join(errs...)
}

func (s *DocumentStore) allChunks() []*chunk.Chunk {
	all := make([]*chunk.Chunk, 0, len(s.chunks))
	for _, id := range s.order {
		all = append(all, s.docs[id].Chunks...)
	}
	return all
}

func (s *DocumentStore) sortedChunkIDs() []string {
	ids := make([]string, 0, len(s.chunks))
	for id := range s.chunks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func errClosed() error {
	return raerrors.New(raerrors.ErrCodeStorageClosed, "document store is closed", nil)
}
