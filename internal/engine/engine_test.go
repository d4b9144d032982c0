package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/minirag/internal/config"
	raerrors "github.com/Aman-CERP/minirag/internal/errors"
	"github.com/Aman-CERP/minirag/internal/telemetry"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Storage.DataDir = t.TempDir()
	cfg.Chunking.ChunkSize = 50
	cfg.Chunking.ChunkOverlap = 10
	return cfg
}

func TestOpen_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Chunking.ChunkOverlap = cfg.Chunking.ChunkSize

	_, err := Open(context.Background(), cfg, Options{})

	assert.True(t, raerrors.IsConfiguration(err))
}

func TestOpen_WiresComponents(t *testing.T) {
	// Given
	cfg := testConfig(t)

	// When
	e, err := Open(context.Background(), cfg, Options{})
	require.NoError(t, err)
	defer e.Close()

	// Then: every component is ready and telemetry is persisted
	assert.NotNil(t, e.Store)
	assert.NotNil(t, e.Retriever)
	assert.NotNil(t, e.Ingester)
	assert.NotNil(t, e.Metrics)
	assert.NotNil(t, e.Stats)
	assert.NotNil(t, e.Logger())
	_, err = os.Stat(filepath.Join(cfg.Storage.DataDir, telemetry.DBFileName))
	assert.NoError(t, err)
}

func TestEngine_UploadQueryStats(t *testing.T) {
	cfg := testConfig(t)
	cfg.Search.SimilarityThreshold = 0.5
	e, err := Open(context.Background(), cfg, Options{DisableTelemetryStore: true})
	require.NoError(t, err)
	defer e.Close()
	ctx := context.Background()

	res, err := e.Ingester.UploadText(ctx, "fox.txt", "The quick brown fox jumps over the lazy dog.")
	require.NoError(t, err)

	qr, err := e.Retriever.Search(ctx, e.Retriever.NewQuery("lazy dog"))
	require.NoError(t, err)
	require.NotEmpty(t, qr.Sources)
	assert.Equal(t, res.DocumentID, qr.Sources[0].DocumentID)

	s := e.Stats.Stats(ctx)
	assert.Equal(t, 1, s.TotalDocuments)
	assert.Equal(t, res.ChunksCreated, s.TotalChunks)
	assert.Equal(t, "healthy", s.SystemStatus)
	require.NotNil(t, s.Queries)
	assert.Equal(t, int64(1), s.Queries.TotalQueries)
}

func TestEngine_ReopenKeepsDocuments(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	e, err := Open(ctx, cfg, Options{})
	require.NoError(t, err)
	_, err = e.Ingester.UploadText(ctx, "a.md", "persisted across restarts")
	require.NoError(t, err)
	require.NoError(t, e.Close())

	reopened, err := Open(ctx, cfg, Options{})
	require.NoError(t, err)
	defer reopened.Close()

	docs := reopened.Store.List()
	require.Len(t, docs, 1)
	assert.Equal(t, "a.md", docs[0].Filename)
}

func TestOpen_SecondEngineOnSameDirIsLocked(t *testing.T) {
	cfg := testConfig(t)
	e, err := Open(context.Background(), cfg, Options{DisableTelemetryStore: true})
	require.NoError(t, err)
	defer e.Close()

	_, err = Open(context.Background(), cfg, Options{DisableTelemetryStore: true})

	assert.Equal(t, raerrors.ErrCodeStorageLocked, raerrors.GetCode(err))
}
