package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Aman-CERP/minirag/internal/chunk"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// SQLiteFileName is the database file inside the data directory.
const SQLiteFileName = "documents.db"

// SQLitePath returns the database path for dataDir.
func SQLitePath(dataDir string) string {
	return filepath.Join(dataDir, SQLiteFileName)
}

// SQLiteBackend stores documents and chunks in two tables. Insertion order
// is the documents rowid order.
type SQLiteBackend struct {
	db   *sql.DB
	path string
}

// validateSQLiteIntegrity checks an existing database before opening it.
func validateSQLiteIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check: %s", result)
	}
	return nil
}

// NewSQLiteBackend opens or creates the database at path. An empty path
// opens an in-memory database for testing.
func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", filepath.Dir(path), err)
		}
		// Documents are the source of truth; unlike a derived index a
		// corrupt database is reported, never silently cleared.
		if err := validateSQLiteIntegrity(path); err != nil {
			slog.Error("sqlite_store_corrupted",
				slog.String("path", path),
				slog.String("error", err.Error()))
			return nil, &corruptRecordError{path: path, err: err}
		}
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer; the store serializes mutations anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// DSN params may be ignored by modernc.org/sqlite
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	b := &SQLiteBackend{db: db, path: path}
	if err := b.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return b, nil
}

func (b *SQLiteBackend) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS documents (
		id          TEXT PRIMARY KEY,
		filename    TEXT NOT NULL,
		raw_text    TEXT NOT NULL,
		upload_time TEXT NOT NULL,
		metadata    TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chunks (
		id           TEXT PRIMARY KEY,
		document_id  TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		seq          INTEGER NOT NULL,
		start_offset INTEGER NOT NULL,
		end_offset   INTEGER NOT NULL,
		text         TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id, seq);

	CREATE TABLE IF NOT EXISTS probe (
		id         INTEGER PRIMARY KEY,
		checked_at TEXT NOT NULL
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := b.db.Exec(schema)
	return err
}

// Name implements Backend.
func (b *SQLiteBackend) Name() string { return BackendSQLite }

// LoadAll implements Backend.
func (b *SQLiteBackend) LoadAll(ctx context.Context) ([]*Document, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT id, filename, raw_text, upload_time, metadata FROM documents ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var docs []*Document
	byID := make(map[string]*Document)
	for rows.Next() {
		var (
			doc        Document
			uploadTime string
			meta       string
		)
		if err := rows.Scan(&doc.ID, &doc.Filename, &doc.RawText, &uploadTime, &meta); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		if doc.UploadTime, err = time.Parse(time.RFC3339Nano, uploadTime); err != nil {
			return nil, &corruptRecordError{path: doc.ID, err: err}
		}
		if err := json.Unmarshal([]byte(meta), &doc.Metadata); err != nil {
			return nil, &corruptRecordError{path: doc.ID, err: err}
		}
		docs = append(docs, &doc)
		byID[doc.ID] = &doc
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}

	crows, err := b.db.QueryContext(ctx,
		`SELECT id, document_id, seq, start_offset, end_offset, text FROM chunks ORDER BY document_id, seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer func() { _ = crows.Close() }()

	for crows.Next() {
		var ch chunk.Chunk
		if err := crows.Scan(&ch.ID, &ch.DocumentID, &ch.Seq, &ch.StartOffset, &ch.EndOffset, &ch.Text); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		if doc, ok := byID[ch.DocumentID]; ok {
			doc.Chunks = append(doc.Chunks, &ch)
		}
	}
	if err := crows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chunks: %w", err)
	}
	return docs, nil
}

// Put implements Backend. The document row and its chunks are written in
// one transaction.
func (b *SQLiteBackend) Put(ctx context.Context, doc *Document) error {
	meta, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Upsert keeps the original rowid, and with it insertion order.
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO documents (id, filename, raw_text, upload_time, metadata)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			filename = excluded.filename,
			raw_text = excluded.raw_text,
			upload_time = excluded.upload_time,
			metadata = excluded.metadata`,
		doc.ID, doc.Filename, doc.RawText, doc.UploadTime.UTC().Format(time.RFC3339Nano), string(meta),
	); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, doc.ID); err != nil {
		return fmt.Errorf("failed to clear chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, seq, start_offset, end_offset, text)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare chunk insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, ch := range doc.Chunks {
		if _, err := stmt.ExecContext(ctx, ch.ID, ch.DocumentID, ch.Seq, ch.StartOffset, ch.EndOffset, ch.Text); err != nil {
			return fmt.Errorf("failed to write chunk %s: %w", ch.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Delete implements Backend. Chunks go with the document via ON DELETE CASCADE.
func (b *SQLiteBackend) Delete(ctx context.Context, id string) error {
	if _, err := b.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

// ReadProbe implements Backend.
func (b *SQLiteBackend) ReadProbe(ctx context.Context) error {
	var n int
	return b.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n)
}

// WriteProbe implements Backend.
func (b *SQLiteBackend) WriteProbe(ctx context.Context) error {
	_, err := b.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO probe (id, checked_at) VALUES (1, ?)`,
		time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

// Close checkpoints the WAL and closes the database.
func (b *SQLiteBackend) Close() error {
	if b.path != "" {
		_, _ = b.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	}
	return b.db.Close()
}
