package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Operation represents a file system operation type.
type Operation int

const (
	// OpCreate indicates a new file appeared in the inbox.
	OpCreate Operation = iota
	// OpModify indicates an existing file was rewritten.
	OpModify
	// OpDelete indicates a file was removed or moved out of the inbox.
	OpDelete
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// FileEvent represents a file system event.
type FileEvent struct {
	// Path is the absolute path of the file.
	Path      string
	Operation Operation
	Timestamp time.Time
}

// scratchSuffixes mark partial downloads and editor swap files.
var scratchSuffixes = []string{"~", ".tmp", ".swp", ".swx", ".part", ".crdownload"}

// ignoredName reports files that are never documents, whatever the
// extension filter says.
func ignoredName(name string) bool {
	base := filepath.Base(name)
	if base == "" || strings.HasPrefix(base, ".") {
		return true
	}
	lower := strings.ToLower(base)
	for _, s := range scratchSuffixes {
		if strings.HasSuffix(lower, s) {
			return true
		}
	}
	return false
}

// translate maps an fsnotify event onto the inbox operations. A rename is
// reported by fsnotify on the old name; the new name arrives as a separate
// create, so the old name is treated as deleted.
func translate(event fsnotify.Event) (Operation, bool) {
	switch {
	case event.Has(fsnotify.Create):
		return OpCreate, true
	case event.Has(fsnotify.Write):
		return OpModify, true
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return OpDelete, true
	default:
		// Chmod
		return 0, false
	}
}

// DirWatcher watches a single directory and emits debounced batches of
// file events.
type DirWatcher struct {
	dir       string
	accept    func(name string) bool
	fsw       *fsnotify.Watcher
	debouncer *Debouncer
	errors    chan error
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// NewDirWatcher creates a watcher for dir. accept filters file names;
// nil accepts every file that is not hidden or scratch.
func NewDirWatcher(dir string, window time.Duration, accept func(name string) bool) (*DirWatcher, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve absolute path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat inbox: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("inbox %s is not a directory", abs)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(abs); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", abs, err)
	}

	if accept == nil {
		accept = func(string) bool { return true }
	}
	return &DirWatcher{
		dir:       abs,
		accept:    accept,
		fsw:       fsw,
		debouncer: NewDebouncer(window),
		errors:    make(chan error, 16),
		stopCh:    make(chan struct{}),
	}, nil
}

// Dir returns the absolute path being watched.
func (w *DirWatcher) Dir() string {
	return w.dir
}

// Start forwards fsnotify events into the debouncer until Stop is called
// or ctx is cancelled.
func (w *DirWatcher) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.emitError(err)
		}
	}
}

func (w *DirWatcher) handle(event fsnotify.Event) {
	if ignoredName(event.Name) || !w.accept(event.Name) {
		return
	}
	op, ok := translate(event)
	if !ok {
		return
	}
	if op != OpDelete {
		info, err := os.Stat(event.Name)
		if err != nil || info.IsDir() {
			return
		}
	}
	w.debouncer.Add(FileEvent{
		Path:      event.Name,
		Operation: op,
		Timestamp: time.Now(),
	})
}

// emitError is non-blocking; errors are dropped when nobody is listening.
func (w *DirWatcher) emitError(err error) {
	select {
	case w.errors <- err:
	default:
	}
}

// Events returns debounced batches, closed by Stop.
func (w *DirWatcher) Events() <-chan []FileEvent {
	return w.debouncer.Output()
}

// Errors returns non-fatal watcher errors.
func (w *DirWatcher) Errors() <-chan error {
	return w.errors
}

// Stop releases the fsnotify watcher. Safe to call multiple times.
func (w *DirWatcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.debouncer.Stop()
		err = w.fsw.Close()
	})
	return err
}
