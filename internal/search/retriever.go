// Package search scores indexed chunks against a query.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	raerrors "github.com/Aman-CERP/minirag/internal/errors"
	"github.com/Aman-CERP/minirag/internal/index"
	"github.com/Aman-CERP/minirag/internal/store"
	"github.com/Aman-CERP/minirag/internal/telemetry"
)

// cancelCheckInterval is how many chunks are scored between context checks.
const cancelCheckInterval = 1024

// Corpus is the read side of the document store.
type Corpus interface {
	View(fn func(v store.View))
	Generation() uint64
	Tokenizer() *index.Tokenizer
	EnsureConsistent(ctx context.Context) (*index.CheckResult, error)
}

// Retriever ranks chunks by keyword overlap with a query.
type Retriever struct {
	corpus  Corpus
	config  Config
	scorer  Scorer
	cache   *lru.Cache[string, *QueryResult]
	metrics *telemetry.QueryMetrics
	logger  *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithMetrics sets an optional query metrics collector.
func WithMetrics(m *telemetry.QueryMetrics) Option {
	return func(r *Retriever) {
		r.metrics = m
	}
}

// WithLogger sets the logger; slog.Default otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(r *Retriever) {
		r.logger = l
	}
}

// WithScorer overrides the scorer named in Config.
func WithScorer(s Scorer) Option {
	return func(r *Retriever) {
		r.scorer = s
	}
}

// NewRetriever creates a retriever over corpus.
func NewRetriever(corpus Corpus, cfg Config, opts ...Option) (*Retriever, error) {
	if corpus == nil {
		return nil, raerrors.InternalError("retriever requires a corpus", nil)
	}

	r := &Retriever{
		corpus: corpus,
		config: cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.scorer == nil {
		scorer, err := NewScorer(cfg.Scorer)
		if err != nil {
			return nil, raerrors.ConfigurationError(err.Error(), nil)
		}
		r.scorer = scorer
	}

	if cfg.CacheSize > 0 {
		cache, err := lru.New[string, *QueryResult](cfg.CacheSize)
		if err != nil {
			return nil, raerrors.ConfigurationError("invalid search.cache_size", err)
		}
		r.cache = cache
	}
	return r, nil
}

// NewQuery returns a query for text with the configured defaults.
func (r *Retriever) NewQuery(text string) Query {
	return Query{
		Text:                text,
		MaxResults:          r.config.MaxResults,
		SimilarityThreshold: r.config.SimilarityThreshold,
	}
}

// ScorerName returns the active scorer.
func (r *Retriever) ScorerName() string {
	return r.scorer.Name()
}

// Validate rejects out-of-range query parameters.
func (q Query) Validate() error {
	if q.MaxResults <= 0 {
		return raerrors.New(raerrors.ErrCodeInvalidMaxResult,
			fmt.Sprintf("max_results must be a positive integer, got %d", q.MaxResults), nil)
	}
	if math.IsNaN(q.SimilarityThreshold) || q.SimilarityThreshold < 0 || q.SimilarityThreshold > 1 {
		return raerrors.New(raerrors.ErrCodeInvalidThreshold,
			fmt.Sprintf("similarity_threshold must be in [0, 1], got %v", q.SimilarityThreshold), nil)
	}
	return nil
}

// Search scores every indexed chunk against q and returns the top
// MaxResults chunks scoring at least SimilarityThreshold. A query with no
// keywords, or with no chunk meeting the threshold, yields no sources.
func (r *Retriever) Search(ctx context.Context, q Query) (*QueryResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	keywords := r.corpus.Tokenizer().Keywords(q.Text)
	sortedKeywords := sortedKeys(keywords)

	if r.cache != nil {
		if cached, ok := r.cache.Get(r.cacheKey(r.corpus.Generation(), sortedKeywords, q)); ok {
			result := cached.withQuery(q.Text)
			result.Cached = true
			result.ResponseTime = time.Since(start)
			r.record(result)
			return result, nil
		}
	}

	sources, gen, divergent, err := r.score(ctx, keywords, sortedKeywords, q)
	if err != nil {
		return nil, err
	}
	if divergent {
		// A posting pointed at a chunk the store no longer has.
		r.logger.Warn("search_index_divergence", slog.String("query", q.Text))
		if _, err := r.corpus.EnsureConsistent(ctx); err != nil {
			return nil, raerrors.New(raerrors.ErrCodeIndexDivergence, "index rebuild failed", err)
		}
		if sources, gen, _, err = r.score(ctx, keywords, sortedKeywords, q); err != nil {
			return nil, err
		}
	}

	result := &QueryResult{
		Query:        q.Text,
		Sources:      sources,
		ResponseTime: time.Since(start),
		Keywords:     sortedKeywords,
		Scorer:       r.scorer.Name(),
	}
	if r.cache != nil {
		r.cache.Add(r.cacheKey(gen, sortedKeywords, q), result.withQuery(q.Text))
	}
	r.record(result)

	r.logger.Debug("search_completed",
		slog.String("query", q.Text),
		slog.Int("keywords", len(keywords)),
		slog.Int("results", len(sources)),
		slog.Duration("duration", result.ResponseTime))
	return result, nil
}

// score runs one scoring pass under the store's read lock and returns the
// generation it observed. It reports divergence instead of repairing,
// since repair needs the write lock.
func (r *Retriever) score(ctx context.Context, keywords map[string]int, sortedKeywords []string, q Query) ([]Source, uint64, bool, error) {
	sources := []Source{}
	var (
		gen       uint64
		divergent bool
		ctxErr    error
	)

	r.corpus.View(func(v store.View) {
		gen = v.Generation()
		if len(keywords) == 0 {
			return
		}
		ix := v.Index()
		weights := r.scorer.Weights(keywords, ix)

		// Sum in sorted keyword order so a chunk holding every keyword
		// scores exactly 1.
		var total float64
		for _, kw := range sortedKeywords {
			total += weights[kw]
		}
		if total <= 0 {
			return
		}

		acc := make(map[string]float64)
		for _, kw := range sortedKeywords {
			for id := range ix.Postings(kw) {
				acc[id] += weights[kw]
			}
		}

		candidates := sortedKeys(acc)
		if q.SimilarityThreshold == 0 {
			// Nothing is strictly below zero: every chunk qualifies.
			candidates = v.ChunkIDs()
		}

		type scored struct {
			id    string
			score float64
		}
		hits := make([]scored, 0, len(candidates))
		for i, id := range candidates {
			if i%cancelCheckInterval == 0 {
				if ctxErr = ctx.Err(); ctxErr != nil {
					return
				}
			}
			s := math.Min(acc[id]/total, 1)
			if s < q.SimilarityThreshold {
				continue
			}
			hits = append(hits, scored{id: id, score: s})
		}

		sort.Slice(hits, func(i, j int) bool {
			if hits[i].score != hits[j].score {
				return hits[i].score > hits[j].score
			}
			return hits[i].id < hits[j].id
		})
		if len(hits) > q.MaxResults {
			hits = hits[:q.MaxResults]
		}

		for _, h := range hits {
			ch, doc, ok := v.Chunk(h.id)
			if !ok {
				divergent = true
				return
			}
			sources = append(sources, Source{
				DocumentID:     doc.ID,
				Filename:       doc.Filename,
				ChunkID:        ch.ID,
				ChunkIndex:     ch.Seq,
				StartOffset:    ch.StartOffset,
				EndOffset:      ch.EndOffset,
				Score:          h.score,
				ContentPreview: store.Preview(ch.Text, r.config.PreviewLength),
			})
		}
	})

	if ctxErr != nil {
		return nil, gen, false, ctxErr
	}
	if divergent {
		return nil, gen, true, nil
	}
	return sources, gen, false, nil
}

func (r *Retriever) record(result *QueryResult) {
	if r.metrics == nil {
		return
	}
	r.metrics.Record(telemetry.QueryEvent{
		Query:       result.Query,
		Keywords:    result.Keywords,
		Scorer:      result.Scorer,
		ResultCount: len(result.Sources),
		Latency:     result.ResponseTime,
		CacheHit:    result.Cached,
		Timestamp:   time.Now(),
	})
}

// cacheKey identifies a result by store generation and normalized query.
// Any mutation bumps the generation, so stale entries are never hit.
func (r *Retriever) cacheKey(gen uint64, sortedKeywords []string, q Query) string {
	var b strings.Builder
	b.WriteString(strconv.FormatUint(gen, 10))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(q.MaxResults))
	b.WriteByte('|')
	b.WriteString(strconv.FormatFloat(q.SimilarityThreshold, 'g', -1, 64))
	b.WriteByte('|')
	b.WriteString(strings.Join(sortedKeywords, " "))
	return b.String()
}

// withQuery returns a copy carrying the given query text.
func (res *QueryResult) withQuery(text string) *QueryResult {
	out := *res
	out.Query = text
	out.Sources = append([]Source(nil), res.Sources...)
	if out.Sources == nil {
		out.Sources = []Source{}
	}
	return &out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
