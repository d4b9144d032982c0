package telemetry

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// DBFileName is the telemetry database inside the data directory.
const DBFileName = "telemetry.db"

// maxZeroResultQueries bounds the persisted zero-result buffer.
const maxZeroResultQueries = 100

// Store persists query metrics.
type Store interface {
	// SaveDelta adds the counts in d to the totals for date.
	SaveDelta(date string, d Delta) error

	// LoadTotals returns all-time totals with the topN terms and the most
	// recent zeroN zero-result queries.
	LoadTotals(topN, zeroN int) (*Totals, error)

	Close() error
}

// Delta is a batch of counts recorded since the last flush.
type Delta struct {
	Queries      int64
	ZeroResults  int64
	CacheHits    int64
	LatencyNanos int64
	Terms        map[string]int64
	Latency      map[LatencyBucket]int64
	Scorers      map[string]int64
	ZeroQueries  []string
}

func newDelta() Delta {
	return Delta{
		Terms:   make(map[string]int64),
		Latency: make(map[LatencyBucket]int64),
		Scorers: make(map[string]int64),
	}
}

// Empty reports whether the delta carries nothing to save.
func (d Delta) Empty() bool {
	return d.Queries == 0
}

func (d *Delta) merge(o Delta) {
	d.Queries += o.Queries
	d.ZeroResults += o.ZeroResults
	d.CacheHits += o.CacheHits
	d.LatencyNanos += o.LatencyNanos
	for k, v := range o.Terms {
		d.Terms[k] += v
	}
	for k, v := range o.Latency {
		d.Latency[k] += v
	}
	for k, v := range o.Scorers {
		d.Scorers[k] += v
	}
	d.ZeroQueries = append(o.ZeroQueries, d.ZeroQueries...)
}

// Totals are all-time persisted metrics.
type Totals struct {
	Queries      int64
	ZeroResults  int64
	CacheHits    int64
	LatencyNanos int64
	TopTerms     []TermCount
	ZeroQueries  []string
	Latency      map[LatencyBucket]int64
	Scorers      map[string]int64
	Since        time.Time
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens or creates the telemetry database at path. An
// empty path opens an in-memory database.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create telemetry directory: %w", err)
		}
		dsn = path + "?_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open telemetry database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	-- Daily totals
	CREATE TABLE IF NOT EXISTS query_totals (
		date TEXT PRIMARY KEY,
		queries INTEGER NOT NULL DEFAULT 0,
		zero_results INTEGER NOT NULL DEFAULT 0,
		cache_hits INTEGER NOT NULL DEFAULT 0,
		latency_ns INTEGER NOT NULL DEFAULT 0
	);

	-- Query keywords (with frequency count)
	CREATE TABLE IF NOT EXISTS query_terms (
		term TEXT PRIMARY KEY,
		count INTEGER NOT NULL DEFAULT 1,
		last_seen TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_query_terms_count ON query_terms(count DESC);

	-- Zero-result queries (circular buffer)
	CREATE TABLE IF NOT EXISTS zero_result_queries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		query TEXT NOT NULL,
		timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- Latency histogram
	CREATE TABLE IF NOT EXISTS query_latency_stats (
		date TEXT NOT NULL,
		bucket TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (date, bucket)
	);

	-- Scorer usage
	CREATE TABLE IF NOT EXISTS query_scorer_stats (
		date TEXT NOT NULL,
		scorer TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (date, scorer)
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create telemetry schema: %w", err)
	}
	return nil
}

// SaveDelta implements Store in a single transaction.
func (s *SQLiteStore) SaveDelta(date string, d Delta) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
		INSERT INTO query_totals (date, queries, zero_results, cache_hits, latency_ns)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			queries = queries + excluded.queries,
			zero_results = zero_results + excluded.zero_results,
			cache_hits = cache_hits + excluded.cache_hits,
			latency_ns = latency_ns + excluded.latency_ns
	`, date, d.Queries, d.ZeroResults, d.CacheHits, d.LatencyNanos); err != nil {
		return fmt.Errorf("upsert totals: %w", err)
	}

	for term, count := range d.Terms {
		if _, err := tx.Exec(`
			INSERT INTO query_terms (term, count, last_seen)
			VALUES (?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(term) DO UPDATE SET
				count = count + excluded.count,
				last_seen = CURRENT_TIMESTAMP
		`, term, count); err != nil {
			return fmt.Errorf("upsert term count: %w", err)
		}
	}

	for bucket, count := range d.Latency {
		if _, err := tx.Exec(`
			INSERT INTO query_latency_stats (date, bucket, count)
			VALUES (?, ?, ?)
			ON CONFLICT(date, bucket) DO UPDATE SET count = count + excluded.count
		`, date, string(bucket), count); err != nil {
			return fmt.Errorf("upsert latency count: %w", err)
		}
	}

	for scorer, count := range d.Scorers {
		if _, err := tx.Exec(`
			INSERT INTO query_scorer_stats (date, scorer, count)
			VALUES (?, ?, ?)
			ON CONFLICT(date, scorer) DO UPDATE SET count = count + excluded.count
		`, date, scorer, count); err != nil {
			return fmt.Errorf("upsert scorer count: %w", err)
		}
	}

	for _, q := range d.ZeroQueries {
		if _, err := tx.Exec(`INSERT INTO zero_result_queries (query) VALUES (?)`, q); err != nil {
			return fmt.Errorf("insert zero-result query: %w", err)
		}
	}
	if _, err := tx.Exec(`
		DELETE FROM zero_result_queries
		WHERE id NOT IN (SELECT id FROM zero_result_queries ORDER BY id DESC LIMIT ?)
	`, maxZeroResultQueries); err != nil {
		return fmt.Errorf("trim zero-result queries: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// LoadTotals implements Store.
func (s *SQLiteStore) LoadTotals(topN, zeroN int) (*Totals, error) {
	t := &Totals{
		Latency: make(map[LatencyBucket]int64),
		Scorers: make(map[string]int64),
	}

	var since sql.NullString
	if err := s.db.QueryRow(`
		SELECT COALESCE(SUM(queries), 0), COALESCE(SUM(zero_results), 0),
		       COALESCE(SUM(cache_hits), 0), COALESCE(SUM(latency_ns), 0), MIN(date)
		FROM query_totals
	`).Scan(&t.Queries, &t.ZeroResults, &t.CacheHits, &t.LatencyNanos, &since); err != nil {
		return nil, fmt.Errorf("load totals: %w", err)
	}
	if since.Valid {
		if ts, err := time.ParseInLocation("2006-01-02", since.String, time.Local); err == nil {
			t.Since = ts
		}
	}

	rows, err := s.db.Query(`SELECT term, count FROM query_terms ORDER BY count DESC, term LIMIT ?`, topN)
	if err != nil {
		return nil, fmt.Errorf("load top terms: %w", err)
	}
	for rows.Next() {
		var tc TermCount
		if err := rows.Scan(&tc.Term, &tc.Count); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan term: %w", err)
		}
		t.TopTerms = append(t.TopTerms, tc)
	}
	_ = rows.Close()

	// Newest N, returned oldest first.
	rows, err = s.db.Query(`
		SELECT query FROM (
			SELECT id, query FROM zero_result_queries ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`, zeroN)
	if err != nil {
		return nil, fmt.Errorf("load zero-result queries: %w", err)
	}
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan query: %w", err)
		}
		t.ZeroQueries = append(t.ZeroQueries, q)
	}
	_ = rows.Close()

	if err := s.loadCounts(`SELECT bucket, SUM(count) FROM query_latency_stats GROUP BY bucket`, func(k string, v int64) {
		t.Latency[LatencyBucket(k)] = v
	}); err != nil {
		return nil, err
	}
	if err := s.loadCounts(`SELECT scorer, SUM(count) FROM query_scorer_stats GROUP BY scorer`, func(k string, v int64) {
		t.Scorers[k] = v
	}); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *SQLiteStore) loadCounts(query string, fn func(string, int64)) error {
	rows, err := s.db.Query(query)
	if err != nil {
		return fmt.Errorf("load counts: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var k string
		var v int64
		if err := rows.Scan(&k, &v); err != nil {
			return fmt.Errorf("scan count: %w", err)
		}
		fn(k, v)
	}
	return rows.Err()
}

// Close releases the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
