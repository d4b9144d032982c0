package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	raerrors "github.com/Aman-CERP/minirag/internal/errors"
)

// expectedCount is ceil((L-O)/(C-O)) for L > O, and 1 for 0 < L <= C.
func expectedCount(l, c, o int) int {
	switch {
	case l == 0:
		return 0
	case l <= c:
		return 1
	default:
		step := c - o
		return (l - o + step - 1) / step
	}
}

func TestNew_RejectsInvalidGeometry(t *testing.T) {
	tests := []struct {
		name          string
		size, overlap int
	}{
		{"overlap equals size", 10, 10},
		{"overlap exceeds size", 10, 11},
		{"zero size", 0, 0},
		{"negative overlap", 10, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.size, tt.overlap)

			require.Error(t, err)
			assert.Nil(t, c)
			assert.True(t, raerrors.IsConfiguration(err))
			assert.Equal(t, raerrors.ErrCodeChunkingConfig, raerrors.GetCode(err))
		})
	}
}

func TestChunk_EmptyTextYieldsNoChunks(t *testing.T) {
	c, err := New(20, 5)
	require.NoError(t, err)

	assert.Empty(t, c.Chunk("doc", ""))
}

func TestChunk_QuickBrownFox(t *testing.T) {
	// Given: the reference sentence, size 20, overlap 5
	c, err := New(20, 5)
	require.NoError(t, err)
	text := "The quick brown fox jumps over the lazy dog"

	// When: chunking
	chunks := c.Chunk("doc1", text)

	// Then: three windows advancing by 15
	require.Len(t, chunks, 3)
	assert.Equal(t, "The quick brown fox ", chunks[0].Text)
	assert.Equal(t, "fox jumps over the l", chunks[1].Text)
	assert.Equal(t, "the lazy dog", chunks[2].Text)
	assert.Equal(t, 30, chunks[2].StartOffset)
	assert.Equal(t, 43, chunks[2].EndOffset)
	assert.Equal(t, "doc1-00000001", chunks[1].ID)
	assert.Equal(t, "doc1", chunks[1].DocumentID)
}

func TestChunk_CoverageAndCount(t *testing.T) {
	geometries := [][2]int{{1, 0}, {2, 1}, {5, 0}, {7, 3}, {20, 5}, {100, 99}}
	base := "Lorem ipsum dolor sit amet, consectetur adipiscing elit; ünïcödé ✓ 日本語."

	for _, g := range geometries {
		c, err := New(g[0], g[1])
		require.NoError(t, err)

		for l := 0; l <= len([]rune(base)); l++ {
			text := string([]rune(base)[:l])

			chunks := c.Chunk("d", text)

			require.Len(t, chunks, expectedCount(l, g[0], g[1]), "size=%d overlap=%d len=%d", g[0], g[1], l)
			assert.Equal(t, text, Reconstruct(chunks))
			for i, ch := range chunks {
				assert.LessOrEqual(t, ch.Len(), g[0])
				assert.GreaterOrEqual(t, ch.Len(), 1)
				if i > 0 {
					// consecutive windows overlap by exactly the configured amount
					assert.Equal(t, g[1], chunks[i-1].EndOffset-ch.StartOffset)
				}
			}
		}
	}
}

func TestChunk_IsDeterministic(t *testing.T) {
	c, err := New(DefaultChunkSize, DefaultOverlap)
	require.NoError(t, err)
	text := strings.Repeat("alpha beta gamma delta ", 400)

	a := c.Chunk("doc", text)
	b := c.Chunk("doc", text)

	assert.Equal(t, a, b)
}

func TestMatches_DetectsGeometryChange(t *testing.T) {
	old, err := New(20, 5)
	require.NoError(t, err)
	current, err := New(30, 10)
	require.NoError(t, err)
	text := strings.Repeat("x", 95)

	chunks := old.Chunk("doc", text)

	assert.True(t, old.Matches(chunks, 95))
	assert.False(t, current.Matches(chunks, 95))
	assert.False(t, old.Matches(chunks[:2], 95))
}

func TestID_SortsByPosition(t *testing.T) {
	assert.Less(t, ID("doc", 2), ID("doc", 10))
}
