// Package ingest validates uploads, extracts their text and hands them to
// the document store.
//
// Extraction and chunking run in parallel across a bounded worker pool;
// the final commit is serialized by the store's writer lock.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/minirag/internal/config"
	raerrors "github.com/Aman-CERP/minirag/internal/errors"
	"github.com/Aman-CERP/minirag/internal/store"
)

// Adder is the write side of the document store.
type Adder interface {
	Add(ctx context.Context, in store.NewDocument) (*store.Document, error)
}

// Result reports the outcome of one upload.
type Result struct {
	DocumentID    string `json:"document_id,omitempty"`
	Filename      string `json:"filename"`
	ChunksCreated int    `json:"chunks_created"`
	Message       string `json:"message"`
	Path          string `json:"path,omitempty"`
	Error         string `json:"error,omitempty"`

	Err error `json:"-"`
}

// Ingester uploads files into a store.
type Ingester struct {
	store     Adder
	validator *Validator
	workers   int
	logger    *slog.Logger
}

// Option configures an Ingester.
type Option func(*Ingester)

// WithWorkers bounds UploadMany's parallelism.
func WithWorkers(n int) Option {
	return func(i *Ingester) {
		if n > 0 {
			i.workers = n
		}
	}
}

// WithLogger sets the logger; slog.Default otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(i *Ingester) {
		i.logger = l
	}
}

// New creates an ingester that validates against upload.
func New(s Adder, upload config.UploadConfig, opts ...Option) *Ingester {
	i := &Ingester{
		store:     s,
		validator: NewValidator(upload),
		workers:   4,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Validator returns the upload validator.
func (i *Ingester) Validator() *Validator {
	return i.validator
}

// Upload validates, extracts and stores one file's bytes.
func (i *Ingester) Upload(ctx context.Context, filename string, data []byte) (*Result, error) {
	if err := i.validator.CheckFile(filename, int64(len(data))); err != nil {
		return nil, err
	}

	text, contentType, err := Extract(filename, data)
	if err != nil {
		return nil, err
	}

	return i.commit(ctx, filename, text, store.Metadata{
		ContentType: contentType,
		SizeBytes:   int64(len(data)),
	})
}

// UploadText stores already-extracted text. The filename extension is
// still checked against the allowed list.
func (i *Ingester) UploadText(ctx context.Context, filename, text string) (*Result, error) {
	if err := i.validator.CheckFile(filename, int64(len(text))); err != nil {
		return nil, err
	}
	contentType := ContentTypeText
	if e, ok := ExtractorFor(Extension(filename)); ok {
		contentType = e.ContentType()
	}
	return i.commit(ctx, filename, normalizeText(text), store.Metadata{
		ContentType: contentType,
		SizeBytes:   int64(len(text)),
	})
}

// UploadFile reads path from disk and uploads it under its base name.
func (i *Ingester) UploadFile(ctx context.Context, path string) (*Result, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, raerrors.New(raerrors.ErrCodeFileNotFound, "file not found", err).
			WithDetail("path", path)
	}
	if err != nil {
		return nil, raerrors.New(raerrors.ErrCodeStorageRead, "cannot stat file", err)
	}

	filename := filepath.Base(path)
	// Check before reading so oversized files are never loaded.
	if err := i.validator.CheckFile(filename, info.Size()); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, raerrors.New(raerrors.ErrCodeStorageRead, "cannot read file", err).
			WithDetail("path", path)
	}

	text, contentType, err := Extract(filename, data)
	if err != nil {
		return nil, err
	}

	res, err := i.commit(ctx, filename, text, store.Metadata{
		ContentType: contentType,
		SizeBytes:   info.Size(),
		Source:      path,
	})
	if res != nil {
		res.Path = path
	}
	return res, err
}

func (i *Ingester) commit(ctx context.Context, filename, text string, meta store.Metadata) (*Result, error) {
	if err := i.validator.CheckContent(filename, text); err != nil {
		return nil, err
	}

	start := time.Now()
	doc, err := i.store.Add(ctx, store.NewDocument{
		Filename: filename,
		Text:     text,
		Metadata: meta,
	})
	if err != nil {
		return nil, err
	}

	i.logger.Info("document_uploaded",
		slog.String("document_id", doc.ID),
		slog.String("filename", filename),
		slog.Int("chunks", len(doc.Chunks)),
		slog.Duration("duration", time.Since(start)))

	return &Result{
		DocumentID:    doc.ID,
		Filename:      filename,
		ChunksCreated: len(doc.Chunks),
		Message:       fmt.Sprintf("Document uploaded successfully with %d chunks", len(doc.Chunks)),
	}, nil
}

// ProgressFunc is called once per finished file, in completion order.
// Calls are serialized.
type ProgressFunc func(done, total int, r Result)

// UploadMany uploads paths with at most the configured number of workers.
// Results are in input order; one file failing does not stop the rest.
// progress may be nil.
func (i *Ingester) UploadMany(ctx context.Context, paths []string, progress ProgressFunc) []Result {
	results := make([]Result, len(paths))

	var (
		g    errgroup.Group
		mu   sync.Mutex
		done int
	)
	g.SetLimit(i.workers)

	finish := func(idx int, r Result) {
		results[idx] = r
		if progress == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		done++
		progress(done, len(paths), r)
	}

	for idx, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				finish(idx, failed(path, err))
				return nil
			}
			res, err := i.UploadFile(ctx, path)
			if err != nil {
				i.logger.Warn("upload_failed",
					slog.String("path", path),
					slog.String("error", err.Error()))
				finish(idx, failed(path, err))
				return nil
			}
			finish(idx, *res)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func failed(path string, err error) Result {
	return Result{
		Filename: filepath.Base(path),
		Path:     path,
		Message:  "upload failed",
		Error:    err.Error(),
		Err:      err,
	}
}

// Succeeded counts results without an error.
func Succeeded(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Err == nil && r.Error == "" {
			n++
		}
	}
	return n
}
