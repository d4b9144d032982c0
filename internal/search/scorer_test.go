package search

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCorpus struct {
	n  int
	df map[string]int
}

func (f fakeCorpus) ChunkCount() int { return f.n }
func (f fakeCorpus) DocumentFrequency(kw string) int { return f.df[kw] }

func TestNewScorer(t *testing.T) {
	for _, name := range []string{"", "overlap", "weighted", "idf"} {
		s, err := NewScorer(name)
		require.NoError(t, err)
		if name != "" {
			assert.Equal(t, name, s.Name())
		}
	}
	_, err := NewScorer("cosine")
	assert.Error(t, err)
}

func TestIDFScorer_WeightsArePositiveAndFinite(t *testing.T) {
	// Given: an empty corpus and a corpus where the keyword is everywhere
	tests := []struct {
		name   string
		corpus fakeCorpus
	}{
		{"empty corpus", fakeCorpus{}},
		{"unseen keyword", fakeCorpus{n: 10}},
		{"ubiquitous keyword", fakeCorpus{n: 10, df: map[string]int{"kw": 10}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := IDFScorer{}.Weights(map[string]int{"kw": 1}, tt.corpus)
			assert.Greater(t, w["kw"], 0.0)
			assert.False(t, math.IsInf(w["kw"], 0))
		})
	}
}

func TestIDFScorer_RareOutweighsCommon(t *testing.T) {
	corpus := fakeCorpus{n: 100, df: map[string]int{"rare": 1, "common": 90}}

	w := IDFScorer{}.Weights(map[string]int{"rare": 1, "common": 1}, corpus)

	assert.Greater(t, w["rare"], w["common"])
}

func TestIDFScorer_SmoothedWeight(t *testing.T) {
	corpus := fakeCorpus{n: 9, df: map[string]int{"kw": 4}}

	w := IDFScorer{}.Weights(map[string]int{"kw": 1, "unseen": 1}, corpus)

	assert.InDelta(t, math.Log(3), w["kw"], 1e-12)
	assert.InDelta(t, math.Log(11), w["unseen"], 1e-12)
}

func TestWeightedScorer_UsesQueryCounts(t *testing.T) {
	w := WeightedScorer{}.Weights(map[string]int{"fox": 3, "dog": 1}, nil)
	assert.Equal(t, map[string]float64{"fox": 3, "dog": 1}, w)
}
