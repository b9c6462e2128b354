package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/sitepipe/internal/globs"
	"git.home.luguber.info/inful/sitepipe/internal/logfields"
	"git.home.luguber.info/inful/sitepipe/internal/metrics"
)

// TaskFunc runs task in response to a change at path (project-relative).
type TaskFunc func(ctx context.Context, task, path string)

// Watcher watches a project tree and dispatches matching changes to tasks.
type Watcher struct {
	root     string
	table    *Table
	run      TaskFunc
	skipDirs map[string]bool
	ignore   *globs.Set
	debounce time.Duration
	recorder metrics.Recorder
	logger   *slog.Logger

	mu         sync.Mutex
	debouncers map[string]*Debouncer
	wg         sync.WaitGroup
}

// Option customizes a Watcher.
type Option func(*Watcher)

// WithDebounce collapses bursts per task into one run after d of quiet. Zero disables it.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithSkipDirs excludes project-relative directories (such as the generated site) from watching.
func WithSkipDirs(dirs ...string) Option {
	return func(w *Watcher) {
		for _, d := range dirs {
			if d == "" {
				continue
			}
			w.skipDirs[filepath.Clean(filepath.Join(w.root, filepath.FromSlash(d)))] = true
		}
	}
}

// WithIgnore drops events whose relative path matches set.
func WithIgnore(set *globs.Set) Option {
	return func(w *Watcher) { w.ignore = set }
}

// WithRecorder counts triggers per task.
func WithRecorder(r metrics.Recorder) Option {
	return func(w *Watcher) {
		if r != nil {
			w.recorder = r
		}
	}
}

// WithLogger sets the watcher's logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// New returns a watcher over root dispatching matches from table to run.
func New(root string, table *Table, run TaskFunc, opts ...Option) *Watcher {
	w := &Watcher{
		root:       filepath.Clean(root),
		table:      table,
		run:        run,
		skipDirs:   map[string]bool{},
		recorder:   metrics.NoopRecorder{},
		logger:     slog.Default(),
		debouncers: map[string]*Debouncer{},
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Run watches until ctx is cancelled, then waits for in-flight tasks.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	defer func() { _ = fw.Close() }()
	if err := w.addDirsRecursive(fw, w.root); err != nil {
		return err
	}
	w.logger.Info("Watching for changes", logfields.Path(w.root), slog.Int("rules", len(w.table.rules)))

	defer w.wait()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, fw, ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", logfields.Error(err))
		}
	}
}

func (w *Watcher) wait() {
	w.mu.Lock()
	for _, d := range w.debouncers {
		d.Stop()
	}
	w.mu.Unlock()
	w.wg.Wait()
}

// handleEvent adds new directories to fw and dispatches relevant changes.
func (w *Watcher) handleEvent(ctx context.Context, fw *fsnotify.Watcher, ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return
	}
	if ev.Has(fsnotify.Create) && fw != nil {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			if w.skipped(ev.Name) {
				return
			}
			_ = w.addDirsRecursive(fw, ev.Name)
		}
	}
	w.Dispatch(ctx, ev.Name)
}

// Dispatch triggers the tasks mapped to the changed file at path (absolute or root-relative).
// It returns the tasks it scheduled.
func (w *Watcher) Dispatch(ctx context.Context, path string) []string {
	if shouldIgnoreEvent(path) {
		return nil
	}
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(w.root, abs)
	}
	if w.skipped(filepath.Dir(abs)) {
		return nil
	}
	rel, err := filepath.Rel(w.root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return nil
	}
	rel = filepath.ToSlash(rel)
	if w.ignore != nil && w.ignore.Match(rel) {
		return nil
	}
	tasks := w.table.Tasks(rel)
	for _, task := range tasks {
		w.logger.Info("File change detected", logfields.Path(rel), logfields.Task(task))
		w.recorder.IncWatchTrigger(task)
		w.schedule(ctx, task, rel)
	}
	return tasks
}

func (w *Watcher) schedule(ctx context.Context, task, rel string) {
	if w.debounce <= 0 {
		w.goRun(ctx, task, rel)
		return
	}
	w.mu.Lock()
	d, ok := w.debouncers[task]
	if !ok {
		d = NewDebouncer(w.debounce, func(path string) { w.goRun(ctx, task, path) })
		w.debouncers[task] = d
	}
	w.mu.Unlock()
	d.Trigger(rel)
}

func (w *Watcher) goRun(ctx context.Context, task, rel string) {
	if ctx.Err() != nil {
		return
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx, task, rel)
	}()
}

// skipped reports whether dir is hidden or inside a skipped directory.
func (w *Watcher) skipped(dir string) bool {
	dir = filepath.Clean(dir)
	for dir != w.root && strings.HasPrefix(dir, w.root) {
		if w.skipDirs[dir] || strings.HasPrefix(filepath.Base(dir), ".") {
			return true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return false
}

func (w *Watcher) addDirsRecursive(fw *fsnotify.Watcher, root string) error {
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.skipped(path) {
			return filepath.SkipDir
		}
		if err := fw.Add(path); err != nil {
			w.logger.Warn("watch add failed", logfields.Path(path), logfields.Error(err))
		}
		return nil
	})
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("watch %s: %w", root, err)
	}
	return nil
}

// shouldIgnoreEvent reports editor temp and swap files.
func shouldIgnoreEvent(path string) bool {
	base := filepath.Base(path)
	switch {
	case base == ".DS_Store" || base == "Thumbs.db":
		return true
	case strings.HasSuffix(base, "~"),
		strings.HasSuffix(base, ".swp"),
		strings.HasSuffix(base, ".swx"),
		strings.HasPrefix(base, ".#"),
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#"):
		return true
	}
	return false
}
