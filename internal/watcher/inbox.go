package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/time/rate"

	"github.com/Aman-CERP/minirag/internal/config"
	raerrors "github.com/Aman-CERP/minirag/internal/errors"
	"github.com/Aman-CERP/minirag/internal/ingest"
	"github.com/Aman-CERP/minirag/internal/store"
)

// Uploader ingests one file from disk.
type Uploader interface {
	UploadFile(ctx context.Context, path string) (*ingest.Result, error)
}

// Store is the part of the document store the inbox reconciles against.
type Store interface {
	FindBySource(path string) []string
	Delete(ctx context.Context, id string) (*store.Document, error)
}

// Outcome reports how one debounced event was handled.
type Outcome struct {
	Path      string
	Operation Operation
	Result    *ingest.Result
	// Removed holds the ids of documents deleted or replaced.
	Removed []string
	Err     error
}

// Options configures an Inbox.
type Options struct {
	// DebounceWindow is the quiet period before a burst of events is handled.
	// Default: 500ms
	DebounceWindow time.Duration

	// UploadsPerSecond and Burst throttle ingestion so a bulk copy into the
	// inbox cannot monopolize the store's writer lock.
	UploadsPerSecond float64
	Burst            int

	// Retry applies to transient storage failures only.
	Retry raerrors.RetryConfig

	// Accept filters file names; nil accepts everything not hidden.
	Accept func(name string) bool

	// OnOutcome, when set, is called for every handled event.
	OnOutcome func(Outcome)

	Logger *slog.Logger
}

// DefaultOptions returns the default inbox options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:   500 * time.Millisecond,
		UploadsPerSecond: 4,
		Burst:            4,
		Retry:            raerrors.DefaultRetryConfig(),
	}
}

// OptionsFromConfig applies performance.watch_debounce to the defaults.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	opts := DefaultOptions()
	if cfg.Performance.WatchDebounce != "" {
		d, err := time.ParseDuration(cfg.Performance.WatchDebounce)
		if err != nil || d < 0 {
			return opts, raerrors.ConfigurationError("invalid performance.watch_debounce", err).
				WithDetail("value", cfg.Performance.WatchDebounce)
		}
		opts.DebounceWindow = d
	}
	return opts, nil
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.DebounceWindow == 0 {
		o.DebounceWindow = defaults.DebounceWindow
	}
	if o.UploadsPerSecond <= 0 {
		o.UploadsPerSecond = defaults.UploadsPerSecond
	}
	if o.Burst <= 0 {
		o.Burst = defaults.Burst
	}
	if o.Retry.Multiplier == 0 {
		o.Retry = defaults.Retry
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Inbox mirrors a directory into a document store.
type Inbox struct {
	dir      string
	uploader Uploader
	store    Store
	opts     Options
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// NewInbox creates an inbox for dir.
func NewInbox(dir string, uploader Uploader, st Store, opts Options) (*Inbox, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve absolute path: %w", err)
	}
	opts = opts.WithDefaults()
	return &Inbox{
		dir:      abs,
		uploader: uploader,
		store:    st,
		opts:     opts,
		limiter:  rate.NewLimiter(rate.Limit(opts.UploadsPerSecond), opts.Burst),
		logger:   opts.Logger,
	}, nil
}

// Dir returns the absolute inbox path.
func (b *Inbox) Dir() string {
	return b.dir
}

// Sync uploads every file already in the inbox that the store has not seen.
func (b *Inbox) Sync(ctx context.Context) ([]Outcome, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, fmt.Errorf("read inbox: %w", err)
	}

	var events []FileEvent
	for _, e := range entries {
		path := filepath.Join(b.dir, e.Name())
		if e.IsDir() || !b.accepts(path) {
			continue
		}
		if len(b.store.FindBySource(path)) > 0 {
			continue
		}
		events = append(events, FileEvent{Path: path, Operation: OpCreate, Timestamp: time.Now()})
	}
	return b.Handle(ctx, events), nil
}

func (b *Inbox) accepts(path string) bool {
	if ignoredName(path) {
		return false
	}
	return b.opts.Accept == nil || b.opts.Accept(path)
}

// Run syncs the inbox and then handles file events until ctx is cancelled.
func (b *Inbox) Run(ctx context.Context) error {
	w, err := NewDirWatcher(b.dir, b.opts.DebounceWindow, b.opts.Accept)
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	if _, err := b.Sync(ctx); err != nil {
		return err
	}

	go func() { _ = w.Start(ctx) }()

	b.logger.Info("inbox_watching", slog.String("dir", b.dir),
		slog.Duration("debounce", b.opts.DebounceWindow))

	for {
		select {
		case <-ctx.Done():
			return nil
		case batch, ok := <-w.Events():
			if !ok {
				return nil
			}
			b.Handle(ctx, batch)
		case err := <-w.Errors():
			b.logger.Warn("inbox_watch_error", slog.String("error", err.Error()))
		}
	}
}

// Handle applies a batch of events in order and returns one outcome per
// event. A failed event does not stop the rest of the batch.
func (b *Inbox) Handle(ctx context.Context, events []FileEvent) []Outcome {
	sorted := make([]FileEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	out := make([]Outcome, 0, len(sorted))
	for _, ev := range sorted {
		if ctx.Err() != nil {
			break
		}
		var o Outcome
		switch ev.Operation {
		case OpDelete:
			o = b.remove(ctx, ev.Path)
		default:
			o = b.upload(ctx, ev.Path)
		}
		o.Operation = ev.Operation
		b.report(o)
		out = append(out, o)
	}
	return out
}

// upload ingests path and then drops any earlier upload of the same file,
// so a failed re-upload leaves the previous version searchable.
func (b *Inbox) upload(ctx context.Context, path string) Outcome {
	o := Outcome{Path: path}
	previous := b.store.FindBySource(path)

	if err := b.limiter.Wait(ctx); err != nil {
		o.Err = err
		return o
	}

	res, err := raerrors.RetryWithResult(ctx, b.opts.Retry, func() (*ingest.Result, error) {
		return b.uploader.UploadFile(ctx, path)
	})
	if err != nil {
		o.Err = err
		return o
	}
	o.Result = res

	for _, id := range previous {
		err := raerrors.Retry(ctx, b.opts.Retry, func() error {
			_, err := b.store.Delete(ctx, id)
			if raerrors.IsNotFound(err) {
				return nil
			}
			return err
		})
		if err != nil {
			o.Err = err
			return o
		}
		o.Removed = append(o.Removed, id)
	}
	return o
}

func (b *Inbox) remove(ctx context.Context, path string) Outcome {
	o := Outcome{Path: path}
	var errs []error
	for _, id := range b.store.FindBySource(path) {
		if _, err := b.store.Delete(ctx, id); err != nil && !raerrors.IsNotFound(err) {
			errs = append(errs, err)
			continue
		}
		o.Removed = append(o.Removed, id)
	}
	o.Err = errors.Join(errs...)
	return o
}

func (b *Inbox) report(o Outcome) {
	attrs := []any{
		slog.String("path", o.Path),
		slog.String("operation", o.Operation.String()),
		slog.Int("removed", len(o.Removed)),
	}
	if o.Result != nil {
		attrs = append(attrs,
			slog.String("document_id", o.Result.DocumentID),
			slog.Int("chunks", o.Result.ChunksCreated))
	}
	if o.Err != nil {
		b.logger.Warn("inbox_event_failed", append(attrs, raerrors.FormatForLog(o.Err)...)...)
	} else {
		b.logger.Info("inbox_event_handled", attrs...)
	}

	if b.opts.OnOutcome != nil {
		b.opts.OnOutcome(o)
	}
}
