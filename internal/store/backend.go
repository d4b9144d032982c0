package store

import (
	"context"
	"fmt"
	"os"
)

// Backend names accepted by NewBackend.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Backend persists document records. Every method is called with the
// store's writer lock held or before the store is shared, so backends do
// not need their own locking for correctness.
type Backend interface {
	// Name returns the backend name reported in stats.
	Name() string

	// LoadAll returns every record in insertion order.
	LoadAll(ctx context.Context) ([]*Document, error)

	// Put durably writes the record, replacing any record with the same id.
	Put(ctx context.Context, doc *Document) error

	// Delete removes the record. Deleting an absent id is not an error.
	Delete(ctx context.Context, id string) error

	// ReadProbe checks the backend can be read.
	ReadProbe(ctx context.Context) error

	// WriteProbe checks the backend can be written.
	WriteProbe(ctx context.Context) error

	Close() error
}

// NewBackend creates the named backend rooted at dataDir.
//
// backend options:
//   - "file" (default): one JSON record per document
//   - "sqlite": documents and chunks tables in a single database
func NewBackend(backend, dataDir string) (Backend, error) {
	switch backend {
	case BackendFile, "":
		return NewFileBackend(dataDir)
	case BackendSQLite:
		return NewSQLiteBackend(SQLitePath(dataDir))
	default:
		return nil, fmt.Errorf("unknown storage backend: %s (valid options: file, sqlite)", backend)
	}
}

// DetectBackend reports which backend already holds data in dataDir, or
// "" when neither does.
func DetectBackend(dataDir string) string {
	if fileExists(SQLitePath(dataDir)) {
		return BackendSQLite
	}
	if dirExists(documentsDir(dataDir)) {
		return BackendFile
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
