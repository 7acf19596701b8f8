// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period used when Config.Debounce is not positive.
const DefaultDebounce = 250 * time.Millisecond

var (
	// ErrInvalidPattern is the sentinel error wrapped by InvalidPatternError.
	ErrInvalidPattern = errors.New("invalid watch pattern")
	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("watcher already running")

	// Partially written archives and editor leftovers never trigger.
	defaultIgnores = []string{
		"**/.*",
		"**/*.tmp",
		"**/*~",
	}
)

type (
	// Config holds the parameters for a Watcher.
	Config struct {
		// Root is the directory watched recursively. It must exist.
		Root string
		// Patterns are doublestar globs relative to Root selecting the files
		// that trigger OnChange. Empty matches every non-ignored file.
		Patterns []string
		// Ignore extends the built-in ignore patterns.
		Ignore []string
		// Debounce is the quiet period after the last event before OnChange fires.
		Debounce time.Duration
		// OnChange receives the sorted, deduplicated paths (relative to Root,
		// slash-separated) that changed during the debounce window.
		OnChange func(ctx context.Context, changed []string) error
		// Logger records skipped callbacks and recoverable watcher errors.
		Logger *log.Logger
	}

	// Watcher monitors Root and fires a debounced callback. Run may be called
	// only once.
	Watcher struct {
		cfg      Config
		fsw      *fsnotify.Watcher
		root     string
		ignores  []string
		debounce time.Duration
		logger   *log.Logger
		started  atomic.Bool
	}

	// InvalidPatternError reports a glob doublestar cannot parse.
	InvalidPatternError struct {
		Pattern string
		Cause   error
	}
)

// Error implements the error interface for InvalidPatternError.
func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("invalid watch pattern %q: %v", e.Pattern, e.Cause)
}

// Unwrap returns ErrInvalidPattern and the parse failure.
func (e *InvalidPatternError) Unwrap() []error { return []error{ErrInvalidPattern, e.Cause} }

// New validates cfg and registers every non-ignored directory below Root.
func New(cfg Config) (*Watcher, error) {
	for _, pat := range slices.Concat(cfg.Patterns, cfg.Ignore) {
		if !doublestar.ValidatePattern(pat) {
			return nil, &InvalidPatternError{Pattern: pat, Cause: doublestar.ErrBadPattern}
		}
	}

	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve watch root: %w", err)
	}
	if info, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("failed to watch %s: %w", root, err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("failed to watch %s: not a directory", root)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		root:     root,
		ignores:  slices.Concat(defaultIgnores, cfg.Ignore),
		debounce: cfg.Debounce,
		logger:   cfg.Logger,
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}
	if w.logger == nil {
		w.logger = log.New(io.Discard)
	}

	if err := w.addTree(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Close releases a watcher that will not be run. Run releases it on return,
// so Close only matters when Run is never called; afterwards Run fails with
// ErrAlreadyRunning.
func (w *Watcher) Close() error {
	if !w.started.CompareAndSwap(false, true) {
		return nil
	}
	return w.fsw.Close()
}

// Run processes events until ctx is done. It returns nil on cancellation and
// an error when the underlying watcher breaks. OnChange never runs
// concurrently with itself; a window that closes while it is busy is retried
// after another debounce period.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
		busy    atomic.Bool
	)

	fire := func() {
		if ctx.Err() != nil {
			return
		}
		if !busy.CompareAndSwap(false, true) {
			w.logger.Debug("change callback still running, deferring")
			mu.Lock()
			timer.Reset(w.debounce)
			mu.Unlock()
			return
		}
		defer busy.Store(false)

		mu.Lock()
		changed := slices.Sorted(maps.Keys(pending))
		clear(pending)
		mu.Unlock()
		if len(changed) == 0 || w.cfg.OnChange == nil {
			return
		}
		if err := w.cfg.OnChange(ctx, changed); err != nil {
			w.logger.Warn("change callback failed", "err", err)
		}
	}

	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		if err := w.fsw.Close(); err != nil {
			w.logger.Warn("failed to close watcher", "err", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("fsnotify event channel closed")
			}
			if evt.Has(fsnotify.Create) {
				w.maybeAddTree(evt.Name)
			}
			rel, ok := w.relevant(evt.Name)
			if !ok {
				continue
			}
			mu.Lock()
			pending[rel] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("fsnotify error channel closed")
			}
			if isFatalFsnotifyError(err) {
				return fmt.Errorf("fatal fsnotify error: %w", err)
			}
			w.logger.Warn("fsnotify error", "err", err)
		}
	}
}

// relevant maps an event path to its Root-relative form, reporting whether it
// passes the ignore and match patterns.
func (w *Watcher) relevant(path string) (string, bool) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if w.ignored(rel) {
		return "", false
	}
	if len(w.cfg.Patterns) == 0 {
		return rel, true
	}
	return rel, matchAny(w.cfg.Patterns, rel)
}

func (w *Watcher) ignored(rel string) bool {
	return matchAny(w.ignores, rel)
}

// addTree watches dir and every non-ignored directory below it. Unreadable
// directories are skipped with a warning.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("skipping unreadable path", "path", path, "err", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if rel, relErr := filepath.Rel(w.root, path); relErr == nil && rel != "." && w.ignored(filepath.ToSlash(rel)) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

// maybeAddTree extends the watch to a directory created after startup, such
// as the version directory of a freshly installed artifact.
func (w *Watcher) maybeAddTree(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	if err := w.addTree(path); err != nil {
		w.logger.Warn("failed to watch new directory", "path", path, "err", err)
	}
}

func matchAny(patterns []string, rel string) bool {
	for _, pat := range patterns {
		if ok, err := doublestar.Match(pat, rel); err == nil && ok {
			return true
		}
	}
	return false
}
