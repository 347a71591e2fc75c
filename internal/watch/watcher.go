// Package watch rebuilds a source tree when its files change.
//
// Events are debounced: a burst of writes (an editor saving through a temp
// file, a branch checkout) results in a single rebuild that receives every
// changed path.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period before a rebuild fires.
const DefaultDebounce = 500 * time.Millisecond

var defaultIgnores = []string{
	"**/.git/**",
	"**/.luaweave/**",
	"**/*.swp",
	"**/*.swo",
	"**/*~",
	"**/.DS_Store",
}

// Config holds watcher parameters.
type Config struct {
	// Root is the source tree to watch.
	Root string
	// Extension restricts events to source files; empty accepts every file.
	Extension string
	// Ignore holds extra doublestar patterns, relative to Root.
	Ignore []string
	// Debounce defaults to DefaultDebounce.
	Debounce time.Duration
	// OnChange receives the changed paths, relative to Root and sorted.
	OnChange func(ctx context.Context, changed []string) error
	Logger   *slog.Logger
}

// Watcher watches a source tree. Run must be called exactly once.
type Watcher struct {
	cfg      Config
	fsw      *fsnotify.Watcher
	root     string
	ignores  []string
	debounce time.Duration
	logger   *slog.Logger
	started  atomic.Bool
}

// New creates a watcher and registers every non-ignored directory under
// cfg.Root.
func New(cfg Config) (*Watcher, error) {
	if cfg.Root == "" {
		return nil, errors.New("watch: root is required")
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve root: %w", err)
	}

	for _, pat := range cfg.Ignore {
		if !doublestar.ValidatePattern(pat) {
			return nil, fmt.Errorf("watch: invalid ignore pattern %q", pat)
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		root:     root,
		ignores:  append(slices.Clone(defaultIgnores), cfg.Ignore...),
		debounce: debounce,
		logger:   logger,
	}

	if err := w.addDirectories(); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run processes events until ctx is cancelled. It returns nil on
// cancellation and an error when the underlying watcher breaks.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return errors.New("watch: Run called more than once")
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
		running atomic.Bool
	)

	// A rebuild still running when the timer fires is not overlapped; the
	// timer is re-armed so the pending paths are picked up afterwards.
	fire := func() {
		if ctx.Err() != nil {
			return
		}
		if !running.CompareAndSwap(false, true) {
			w.logger.Debug("rebuild in progress, deferring")
			mu.Lock()
			if timer != nil {
				timer.Reset(w.debounce)
			}
			mu.Unlock()
			return
		}
		defer running.Store(false)

		mu.Lock()
		if len(pending) == 0 {
			mu.Unlock()
			return
		}
		changed := slices.Sorted(maps.Keys(pending))
		clear(pending)
		mu.Unlock()

		w.logger.Info("sources changed", "files", len(changed))
		if w.cfg.OnChange != nil {
			if err := w.cfg.OnChange(ctx, changed); err != nil {
				w.logger.Error("rebuild failed", "error", err)
			}
		}
	}

	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		if err := w.fsw.Close(); err != nil {
			w.logger.Warn("failed to close watcher", "error", err)
		}
	}()

	w.logger.Info("watching", "root", w.root, "debounce", w.debounce)

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: event channel closed")
			}

			rel, err := filepath.Rel(w.root, evt.Name)
			if err != nil {
				rel = evt.Name
			}
			if w.isIgnored(rel) {
				continue
			}
			if evt.Has(fsnotify.Create) && w.maybeAddDir(evt.Name) {
				continue
			}
			if !w.isSource(rel) {
				continue
			}

			mu.Lock()
			pending[filepath.ToSlash(rel)] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: error channel closed")
			}
			if isFatal(err) {
				return fmt.Errorf("watch: %w", err)
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) addDirectories() error {
	err := filepath.WalkDir(w.root, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			w.logger.Warn("skipping inaccessible path", "path", path, "error", walkErr)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(w.root, path)
		if err != nil {
			return nil //nolint:nilerr // path outside root
		}
		if w.isIgnored(rel) || w.isIgnored(rel+"/") {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch: add directory %q: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("watch: walk %s: %w", w.root, err)
	}
	return nil
}

// maybeAddDir registers a newly created directory and reports whether path
// was one.
func (w *Watcher) maybeAddDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}
	rel, err := filepath.Rel(w.root, path)
	if err != nil || w.isIgnored(rel+"/") {
		return true
	}
	if err := w.fsw.Add(path); err != nil {
		w.logger.Warn("failed to watch new directory", "path", path, "error", err)
	}
	return true
}

func (w *Watcher) isIgnored(rel string) bool {
	normalized := filepath.ToSlash(rel)
	for _, pat := range w.ignores {
		if ok, err := doublestar.Match(pat, normalized); err == nil && ok {
			return true
		}
	}
	return false
}

func (w *Watcher) isSource(rel string) bool {
	return w.cfg.Extension == "" || strings.HasSuffix(rel, w.cfg.Extension)
}

// isFatal reports resource exhaustion, after which inotify stops delivering
// events.
func isFatal(err error) bool {
	return errors.Is(err, syscall.ENOSPC) ||
		errors.Is(err, syscall.EMFILE) ||
		errors.Is(err, syscall.ENFILE)
}
