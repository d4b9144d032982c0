package search

import (
	"fmt"
	"math"

	"github.com/Aman-CERP/minirag/internal/config"
)

// CorpusStats is what a scorer may know about the corpus.
type CorpusStats interface {
	ChunkCount() int
	DocumentFrequency(keyword string) int
}

// Scorer assigns a positive weight to each query keyword. A chunk scores
// the sum of the weights of the keywords it contains divided by the sum of
// all weights, which keeps every score in [0, 1] whatever the scorer.
//
// Swapping the scorer changes ranking without touching chunking or storage.
type Scorer interface {
	Name() string
	Weights(query map[string]int, corpus CorpusStats) map[string]float64
}

// NewScorer returns the scorer registered under name.
func NewScorer(name string) (Scorer, error) {
	switch name {
	case config.ScorerOverlap, "":
		return OverlapScorer{}, nil
	case config.ScorerWeighted:
		return WeightedScorer{}, nil
	case config.ScorerIDF:
		return IDFScorer{}, nil
	default:
		return nil, fmt.Errorf("unknown scorer: %s (valid options: overlap, weighted, idf)", name)
	}
}

// OverlapScorer weighs every distinct keyword equally: the score is the
// fraction of query keywords present in the chunk.
type OverlapScorer struct{}

// Name implements Scorer.
func (OverlapScorer) Name() string { return config.ScorerOverlap }

// Weights implements Scorer.
func (OverlapScorer) Weights(query map[string]int, _ CorpusStats) map[string]float64 {
	w := make(map[string]float64, len(query))
	for kw := range query {
		w[kw] = 1
	}
	return w
}

// WeightedScorer weighs each keyword by how often it occurs in the query,
// so "fox fox dog" cares twice as much about fox.
type WeightedScorer struct{}

// Name implements Scorer.
func (WeightedScorer) Name() string { return config.ScorerWeighted }

// Weights implements Scorer.
func (WeightedScorer) Weights(query map[string]int, _ CorpusStats) map[string]float64 {
	w := make(map[string]float64, len(query))
	for kw, n := range query {
		w[kw] = float64(n)
	}
	return w
}

// IDFScorer weighs each keyword by its smoothed inverse chunk frequency,
// ln(1 + (N+1)/(df+1)), so rare keywords dominate. The smoothing keeps
// weights finite and positive for unseen keywords and empty corpora.
type IDFScorer struct{}

// Name implements Scorer.
func (IDFScorer) Name() string { return config.ScorerIDF }

// Weights implements Scorer.
func (IDFScorer) Weights(query map[string]int, corpus CorpusStats) map[string]float64 {
	n := float64(corpus.ChunkCount())
	w := make(map[string]float64, len(query))
	for kw := range query {
		df := float64(corpus.DocumentFrequency(kw))
		w[kw] = math.Log(1 + (n+1)/(df+1))
	}
	return w
}
