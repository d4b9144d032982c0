package cmd

import (
	"context"
	"log/slog"

	"github.com/Aman-CERP/minirag/internal/config"
	"github.com/Aman-CERP/minirag/internal/daemon"
	"github.com/Aman-CERP/minirag/internal/engine"
	"github.com/Aman-CERP/minirag/internal/ingest"
)

// backend is the set of operations the document commands need. Both a
// daemon client and a locally opened engine provide it.
type backend interface {
	Upload(ctx context.Context, p daemon.UploadParams) (*daemon.UploadResult, error)
	Query(ctx context.Context, p daemon.QueryParams) (*daemon.QueryResult, error)
	List(ctx context.Context) (*daemon.ListResult, error)
	Get(ctx context.Context, id string) (*daemon.DocumentResult, error)
	Delete(ctx context.Context, id string) (*daemon.DeleteResult, error)
	Stats(ctx context.Context) (*daemon.StatsResult, error)
	Rebuild(ctx context.Context) (*daemon.RebuildResult, error)
}

var (
	_ backend = (*daemon.Client)(nil)
	_ backend = (*localBackend)(nil)
)

// localBackend runs requests on an engine owned by this process.
type localBackend struct {
	*daemon.EngineHandler
	engine *engine.Engine
}

// UploadMany ingests paths with the engine's worker pool.
func (b *localBackend) UploadMany(ctx context.Context, paths []string, progress ingest.ProgressFunc) []ingest.Result {
	return b.engine.Ingester.UploadMany(ctx, paths, progress)
}

// batchUploader is implemented by backends that ingest files in parallel.
type batchUploader interface {
	UploadMany(ctx context.Context, paths []string, progress ingest.ProgressFunc) []ingest.Result
}

// openBackend returns the running daemon's client, or opens the engine for
// the configured data directory. The returned close func is never nil.
func (o *globalOptions) openBackend(ctx context.Context) (backend, *config.Config, func() error, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}

	if !o.noDaemon {
		client := daemon.NewClient(daemon.ConfigFrom(cfg))
		if client.IsRunning() {
			o.log().Debug("using_daemon", slog.String("socket", cfg.Server.SocketPath))
			return client, cfg, func() error { return nil }, nil
		}
	}

	e, err := o.openEngine(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	return &localBackend{EngineHandler: daemon.NewEngineHandler(e), engine: e}, cfg, e.Close, nil
}

// openEngine opens the engine with the CLI's logger.
func (o *globalOptions) openEngine(ctx context.Context, cfg *config.Config) (*engine.Engine, error) {
	o.log().Debug("opening_engine",
		slog.String("data_dir", cfg.Storage.DataDir),
		slog.String("backend", cfg.Storage.Backend))
	return engine.Open(ctx, cfg, engine.Options{Logger: o.log()})
}

// withBackend opens a backend, runs fn and closes the backend.
func (o *globalOptions) withBackend(ctx context.Context, fn func(b backend, cfg *config.Config) error) (err error) {
	b, cfg, closeFn, err := o.openBackend(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeFn(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(b, cfg)
}
