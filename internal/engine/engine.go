// Package engine wires the store, retriever, ingester and stats together
// from one configuration. The CLI, the daemon and the MCP server all run
// on an Engine.
package engine

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/Aman-CERP/minirag/internal/config"
	"github.com/Aman-CERP/minirag/internal/ingest"
	"github.com/Aman-CERP/minirag/internal/search"
	"github.com/Aman-CERP/minirag/internal/stats"
	"github.com/Aman-CERP/minirag/internal/store"
	"github.com/Aman-CERP/minirag/internal/telemetry"
)

// Engine owns every long-lived component for one data directory.
type Engine struct {
	Config    *config.Config
	Store     *store.DocumentStore
	Retriever *search.Retriever
	Ingester  *ingest.Ingester
	Metrics   *telemetry.QueryMetrics
	Stats     *stats.Aggregator

	logger *slog.Logger
}

// Options tunes Open.
type Options struct {
	Logger *slog.Logger

	// DisableTelemetryStore keeps query metrics in memory only.
	DisableTelemetryStore bool
}

// Open builds an engine from cfg. The returned engine holds the data
// directory lock until Close.
func Open(ctx context.Context, cfg *config.Config, opts Options) (*Engine, error) {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	storeOpts := store.OptionsFromConfig(cfg)
	storeOpts.Logger = logger
	st, err := store.Open(ctx, storeOpts)
	if err != nil {
		return nil, err
	}

	var tstore telemetry.Store
	if !opts.DisableTelemetryStore {
		ts, err := telemetry.OpenSQLiteStore(filepath.Join(cfg.Storage.DataDir, telemetry.DBFileName))
		if err != nil {
			// Telemetry is advisory; run without persistence.
			logger.Warn("telemetry_store_unavailable", slog.String("error", err.Error()))
		} else {
			tstore = ts
		}
	}
	metrics, err := telemetry.NewQueryMetrics(tstore, telemetry.DefaultConfig())
	if err != nil {
		logger.Warn("telemetry_load_failed", slog.String("error", err.Error()))
		if tstore != nil {
			_ = tstore.Close()
		}
		metrics, err = telemetry.NewQueryMetrics(nil, telemetry.DefaultConfig())
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("create query metrics: %w", err)
		}
	}

	retriever, err := search.NewRetriever(st, search.ConfigFrom(cfg),
		search.WithMetrics(metrics),
		search.WithLogger(logger))
	if err != nil {
		_ = metrics.Close()
		_ = st.Close()
		return nil, err
	}

	return &Engine{
		Config:    cfg,
		Store:     st,
		Retriever: retriever,
		Ingester: ingest.New(st, cfg.Upload,
			ingest.WithWorkers(cfg.Performance.IngestWorkers),
			ingest.WithLogger(logger)),
		Metrics: metrics,
		Stats:   stats.NewAggregator(st, metrics),
		logger:  logger,
	}, nil
}

// Logger returns the engine's logger.
func (e *Engine) Logger() *slog.Logger {
	return e.logger
}

// Close flushes telemetry and closes the store.
func (e *Engine) Close() error {
	var errs []error
	if err := e.Metrics.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close metrics: %w", err))
	}
	if err := e.Store.Close(); err != nil {
		errs = append(errs, err)
	}
	return stderrors.Join(errs...)
}
