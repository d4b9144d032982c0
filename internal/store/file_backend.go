package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	documentsDirName = "documents"
	recordExt        = ".json"
	probeFileName    = ".probe"
)

func documentsDir(dataDir string) string {
	return filepath.Join(dataDir, documentsDirName)
}

// FileBackend stores one JSON record per document under
// <data_dir>/documents/<id>.json. Writes are atomic (temp file + rename).
type FileBackend struct {
	dir string
}

// NewFileBackend creates the documents directory if needed.
func NewFileBackend(dataDir string) (*FileBackend, error) {
	dir := documentsDir(dataDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create documents directory: %w", err)
	}
	return &FileBackend{dir: dir}, nil
}

// Name implements Backend.
func (b *FileBackend) Name() string { return BackendFile }

func (b *FileBackend) recordPath(id string) string {
	return filepath.Join(b.dir, id+recordExt)
}

// LoadAll implements Backend. Records are ordered by upload time, then id.
func (b *FileBackend) LoadAll(ctx context.Context) ([]*Document, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read documents directory: %w", err)
	}

	docs := make([]*Document, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() || !strings.HasSuffix(e.Name(), recordExt) {
			continue
		}
		path := filepath.Join(b.dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", e.Name(), err)
		}
		var doc Document
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, &corruptRecordError{path: path, err: err}
		}
		docs = append(docs, &doc)
	}

	sort.SliceStable(docs, func(i, j int) bool {
		if !docs[i].UploadTime.Equal(docs[j].UploadTime) {
			return docs[i].UploadTime.Before(docs[j].UploadTime)
		}
		return docs[i].ID < docs[j].ID
	})
	return docs, nil
}

// Put implements Backend.
func (b *FileBackend) Put(_ context.Context, doc *Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	return writeFileAtomic(b.recordPath(doc.ID), data)
}

// Delete implements Backend.
func (b *FileBackend) Delete(_ context.Context, id string) error {
	if err := os.Remove(b.recordPath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove document record: %w", err)
	}
	return nil
}

// ReadProbe implements Backend.
func (b *FileBackend) ReadProbe(_ context.Context) error {
	_, err := os.ReadDir(b.dir)
	return err
}

// WriteProbe implements Backend.
func (b *FileBackend) WriteProbe(_ context.Context) error {
	path := filepath.Join(b.dir, probeFileName)
	if err := os.WriteFile(path, []byte("ok"), 0644); err != nil {
		return err
	}
	return os.Remove(path)
}

// Close implements Backend.
func (b *FileBackend) Close() error { return nil }

// writeFileAtomic writes to a temp file, syncs it and renames it over
// path, then syncs the directory so the rename survives a crash.
func writeFileAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp"
	if err := writeFileSynced(tmpPath, data); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to save %s: %w", filepath.Base(path), err)
	}
	return syncDir(filepath.Dir(path))
}

func writeFileSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// syncDir flushes directory entries. Platforms that cannot fsync a
// directory report an error that is ignored.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("failed to sync %s: %w", dir, err)
	}
	_ = d.Sync()
	return d.Close()
}

type corruptRecordError struct {
	path string
	err  error
}

func (e *corruptRecordError) Error() string {
	return fmt.Sprintf("corrupt record %s: %v", e.path, e.err)
}

func (e *corruptRecordError) Unwrap() error { return e.err }
