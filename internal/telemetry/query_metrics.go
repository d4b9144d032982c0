// Package telemetry records query patterns for the stats report.
// All telemetry data is stored locally - no external reporting.
package telemetry

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LatencyBucket represents a latency histogram bucket.
type LatencyBucket string

const (
	BucketP1    LatencyBucket = "p1"    // <1ms
	BucketP10   LatencyBucket = "p10"   // 1-10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP1000 LatencyBucket = "p1000" // >=100ms
)

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	switch {
	case d < time.Millisecond:
		return BucketP1
	case d < 10*time.Millisecond:
		return BucketP10
	case d < 50*time.Millisecond:
		return BucketP50
	case d < 100*time.Millisecond:
		return BucketP100
	default:
		return BucketP1000
	}
}

// QueryEvent is a single search for telemetry recording.
type QueryEvent struct {
	Query string
	// Keywords are the query keywords after tokenization.
	Keywords    []string
	Scorer      string
	ResultCount int
	Latency     time.Duration
	CacheHit    bool
	Timestamp   time.Time
}

// IsZeroResult returns true if this query returned no results.
func (e QueryEvent) IsZeroResult() bool {
	return e.ResultCount == 0
}

// CircularBuffer is a fixed-capacity FIFO buffer.
type CircularBuffer[T any] struct {
	items    []T
	head     int
	size     int
	capacity int
}

// NewCircularBuffer creates a buffer with the given capacity.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &CircularBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Add appends item, evicting the oldest when full.
func (b *CircularBuffer[T]) Add(item T) {
	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
}

// Items returns all items oldest first.
func (b *CircularBuffer[T]) Items() []T {
	result := make([]T, b.size)
	if b.size < b.capacity {
		copy(result, b.items[:b.size])
	} else {
		copy(result, b.items[b.head:])
		copy(result[b.capacity-b.head:], b.items[:b.head])
	}
	return result
}

// Size returns the number of items held.
func (b *CircularBuffer[T]) Size() int {
	return b.size
}

// TermCount is a query keyword and how often it was searched.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// Snapshot is an immutable view of query metrics.
type Snapshot struct {
	TotalQueries        int64                   `json:"total"`
	ZeroResultCount     int64                   `json:"zero_result"`
	CacheHits           int64                   `json:"cache_hits"`
	AvgLatencyMs        float64                 `json:"avg_latency_ms"`
	TopTerms            []TermCount             `json:"top_terms"`
	ZeroResultQueries   []string                `json:"zero_result_queries,omitempty"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution,omitempty"`
	ScorerCounts        map[string]int64        `json:"scorers,omitempty"`
	ExactRepeatCount    int64                   `json:"exact_repeats"`
	Since               time.Time               `json:"since"`
}

// ZeroResultPercentage returns the percentage of zero-result queries.
func (s *Snapshot) ZeroResultPercentage() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(s.TotalQueries) * 100
}

// Config configures the collector.
type Config struct {
	TopTermsCapacity      int // default 100
	TopTermsReported      int // default 10
	ZeroResultsCapacity   int // default 100
	RecentQueriesCapacity int // default 500
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		TopTermsCapacity:      100,
		TopTermsReported:      10,
		ZeroResultsCapacity:   100,
		RecentQueriesCapacity: 500,
	}
}

// QueryMetrics collects query telemetry. Safe for concurrent use.
type QueryMetrics struct {
	mu sync.Mutex

	topTerms        *lru.Cache[string, int64]
	recentQueries   *lru.Cache[string, struct{}]
	zeroResults     *CircularBuffer[string]
	latencies       map[LatencyBucket]int64
	scorers         map[string]int64
	totalQueries    int64
	zeroResultCount int64
	cacheHits       int64
	totalLatency    time.Duration
	repeats         int64
	startTime       time.Time

	// pending accumulates what has not been flushed to store yet.
	pending Delta
	store   Store
	config  Config
	closed  bool
}

// NewQueryMetrics creates a collector. With a non-nil store, totals are
// seeded from what was persisted before.
func NewQueryMetrics(store Store, cfg Config) (*QueryMetrics, error) {
	def := DefaultConfig()
	if cfg.TopTermsCapacity <= 0 {
		cfg.TopTermsCapacity = def.TopTermsCapacity
	}
	if cfg.TopTermsReported <= 0 {
		cfg.TopTermsReported = def.TopTermsReported
	}
	if cfg.ZeroResultsCapacity <= 0 {
		cfg.ZeroResultsCapacity = def.ZeroResultsCapacity
	}
	if cfg.RecentQueriesCapacity <= 0 {
		cfg.RecentQueriesCapacity = def.RecentQueriesCapacity
	}

	topTerms, err := lru.New[string, int64](cfg.TopTermsCapacity)
	if err != nil {
		return nil, err
	}
	recentQueries, err := lru.New[string, struct{}](cfg.RecentQueriesCapacity)
	if err != nil {
		return nil, err
	}

	m := &QueryMetrics{
		topTerms:      topTerms,
		recentQueries: recentQueries,
		zeroResults:   NewCircularBuffer[string](cfg.ZeroResultsCapacity),
		latencies:     make(map[LatencyBucket]int64),
		scorers:       make(map[string]int64),
		startTime:     time.Now(),
		pending:       newDelta(),
		store:         store,
		config:        cfg,
	}

	if store != nil {
		totals, err := store.LoadTotals(cfg.TopTermsCapacity, cfg.ZeroResultsCapacity)
		if err != nil {
			return nil, err
		}
		m.seed(totals)
	}
	return m, nil
}

func (m *QueryMetrics) seed(t *Totals) {
	m.totalQueries = t.Queries
	m.zeroResultCount = t.ZeroResults
	m.cacheHits = t.CacheHits
	m.totalLatency = time.Duration(t.LatencyNanos)
	if !t.Since.IsZero() {
		m.startTime = t.Since
	}
	// Lowest first so the most frequent terms are the most recently used.
	for i := len(t.TopTerms) - 1; i >= 0; i-- {
		m.topTerms.Add(t.TopTerms[i].Term, t.TopTerms[i].Count)
	}
	for _, q := range t.ZeroQueries {
		m.zeroResults.Add(q)
	}
	for k, v := range t.Latency {
		m.latencies[k] = v
	}
	for k, v := range t.Scorers {
		m.scorers[k] = v
	}
}

// Record captures metrics from one search.
func (m *QueryMetrics) Record(event QueryEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	m.totalQueries++
	m.totalLatency += event.Latency
	m.pending.Queries++
	m.pending.LatencyNanos += int64(event.Latency)

	seen := make(map[string]struct{}, len(event.Keywords))
	for _, kw := range event.Keywords {
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		count, _ := m.topTerms.Get(kw)
		m.topTerms.Add(kw, count+1)
		m.pending.Terms[kw]++
	}

	if event.IsZeroResult() {
		m.zeroResults.Add(event.Query)
		m.zeroResultCount++
		m.pending.ZeroResults++
		m.pending.ZeroQueries = append(m.pending.ZeroQueries, event.Query)
	}

	if event.CacheHit {
		m.cacheHits++
		m.pending.CacheHits++
	}

	bucket := LatencyToBucket(event.Latency)
	m.latencies[bucket]++
	m.pending.Latency[bucket]++

	if event.Scorer != "" {
		m.scorers[event.Scorer]++
		m.pending.Scorers[event.Scorer]++
	}

	queryHash := hashQuery(event.Query)
	if _, exists := m.recentQueries.Get(queryHash); exists {
		m.repeats++
	}
	m.recentQueries.Add(queryHash, struct{}{})
}

// hashQuery normalizes the query for repetition detection.
func hashQuery(query string) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:16])
}

// Snapshot returns current metrics for reporting.
func (m *QueryMetrics) Snapshot() *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	topTerms := make([]TermCount, 0, m.topTerms.Len())
	for _, key := range m.topTerms.Keys() {
		if count, ok := m.topTerms.Peek(key); ok {
			topTerms = append(topTerms, TermCount{Term: key, Count: count})
		}
	}
	sort.Slice(topTerms, func(i, j int) bool {
		if topTerms[i].Count != topTerms[j].Count {
			return topTerms[i].Count > topTerms[j].Count
		}
		return topTerms[i].Term < topTerms[j].Term
	})
	if len(topTerms) > m.config.TopTermsReported {
		topTerms = topTerms[:m.config.TopTermsReported]
	}

	latencies := make(map[LatencyBucket]int64, len(m.latencies))
	for k, v := range m.latencies {
		latencies[k] = v
	}
	scorers := make(map[string]int64, len(m.scorers))
	for k, v := range m.scorers {
		scorers[k] = v
	}

	var avg float64
	if m.totalQueries > 0 {
		avg = float64(m.totalLatency) / float64(m.totalQueries) / float64(time.Millisecond)
	}

	return &Snapshot{
		TotalQueries:        m.totalQueries,
		ZeroResultCount:     m.zeroResultCount,
		CacheHits:           m.cacheHits,
		AvgLatencyMs:        avg,
		TopTerms:            topTerms,
		ZeroResultQueries:   m.zeroResults.Items(),
		LatencyDistribution: latencies,
		ScorerCounts:        scorers,
		ExactRepeatCount:    m.repeats,
		Since:               m.startTime,
	}
}

// Flush persists everything recorded since the last flush. Safe to call
// when no store is configured.
func (m *QueryMetrics) Flush() error {
	if m.store == nil {
		return nil
	}

	m.mu.Lock()
	delta := m.pending
	m.pending = newDelta()
	m.mu.Unlock()

	if delta.Empty() {
		return nil
	}
	if err := m.store.SaveDelta(time.Now().Format("2006-01-02"), delta); err != nil {
		// Put it back so the next flush retries.
		m.mu.Lock()
		m.pending.merge(delta)
		m.mu.Unlock()
		return err
	}
	return nil
}

// Close flushes and releases the store.
func (m *QueryMetrics) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	if err := m.Flush(); err != nil {
		return err
	}
	if m.store != nil {
		return m.store.Close()
	}
	return nil
}
