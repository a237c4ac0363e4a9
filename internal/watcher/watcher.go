// Package watcher enqueues finished recordings as the camera writes them.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"nayancam/internal/drive"
	"nayancam/internal/fs"
)

// DefaultSettle is how long a file must go without writes before it is
// treated as a finished recording.
const DefaultSettle = 2 * time.Second

// Enqueuer adds a recording to the upload queue. *drive.Service satisfies it.
type Enqueuer interface {
	EnqueueVideo(ctx context.Context, path string) (*drive.Video, error)
}

// Watcher follows a recordings directory tree.
type Watcher struct {
	filter   *fs.RecordingFilter
	queue    Enqueuer
	logger   drive.Logger
	reporter drive.CrashReporter
	settle   time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
	wg      sync.WaitGroup
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithSettle overrides DefaultSettle.
func WithSettle(d time.Duration) Option { return func(w *Watcher) { w.settle = d } }

// WithReporter forwards enqueue failures to r.
func WithReporter(r drive.CrashReporter) Option { return func(w *Watcher) { w.reporter = r } }

func New(filter *fs.RecordingFilter, queue Enqueuer, logger drive.Logger, opts ...Option) *Watcher {
	w := &Watcher{
		filter:   filter,
		queue:    queue,
		logger:   logger,
		reporter: drive.NopReporter{},
		settle:   DefaultSettle,
		pending:  make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = drive.NewNopLogger()
	}
	return w
}

// Sweep enqueues every recording already present and returns the count.
func (w *Watcher) Sweep(ctx context.Context) (int, error) {
	paths, err := w.filter.Scan()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if w.enqueue(ctx, p) {
			n++
		}
	}
	return n, nil
}

// Run sweeps the directory, then watches it until ctx is cancelled.
// It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	root := w.filter.Root()
	if err := os.MkdirAll(root, 0755); err != nil {
		return fmt.Errorf("creating recordings dir: %w", err)
	}
	if err := w.addTree(fw, root); err != nil {
		return err
	}

	n, err := w.Sweep(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("initial sweep: %w", err)
	}
	w.logger.Info("watching recordings", "dir", root, "existing", n)

	defer w.stopPending()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, fw, event)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.report("recording watch error", err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, fw *fsnotify.Watcher, event fsnotify.Event) {
	switch {
	case event.Has(fsnotify.Create):
		info, err := os.Lstat(event.Name)
		if err != nil {
			return
		}
		if info.IsDir() {
			if w.ignoredDir(event.Name) {
				return
			}
			if err := w.addTree(fw, event.Name); err != nil {
				w.report("watching new directory", err)
			}
			return
		}
		w.schedule(ctx, event.Name)
	case event.Has(fsnotify.Write):
		w.schedule(ctx, event.Name)
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.cancel(event.Name)
	}
}

func (w *Watcher) ignoredDir(dir string) bool {
	return strings.HasPrefix(filepath.Base(dir), ".")
}

// schedule (re)starts the settle timer for path.
func (w *Watcher) schedule(ctx context.Context, path string) {
	if !w.filter.Accept(path) {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok && t.Stop() {
		t.Reset(w.settle)
		return
	}

	// A timer that already fired is left to finish; it only clears its own entry.
	var t *time.Timer
	w.wg.Add(1)
	t = time.AfterFunc(w.settle, func() {
		defer w.wg.Done()
		w.mu.Lock()
		if w.pending[path] == t {
			delete(w.pending, path)
		}
		w.mu.Unlock()
		if ctx.Err() == nil {
			w.enqueue(ctx, path)
		}
	})
	w.pending[path] = t
}

func (w *Watcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok && t.Stop() {
		delete(w.pending, path)
		w.wg.Done()
	}
}

func (w *Watcher) stopPending() {
	w.mu.Lock()
	for path, t := range w.pending {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *Watcher) enqueue(ctx context.Context, path string) bool {
	abs, _, err := w.filter.Resolve(path)
	if err != nil {
		w.logger.Debug("skipping file", "path", path, "error", err)
		return false
	}
	v, err := w.queue.EnqueueVideo(ctx, abs)
	if err != nil {
		w.report("enqueue failed", fmt.Errorf("enqueueing %s: %w", abs, err))
		return false
	}
	w.logger.Debug("recording queued", "name", v.VideoName, "status", v.UploadStatus)
	return true
}

func (w *Watcher) addTree(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && w.ignoredDir(p) {
			return filepath.SkipDir
		}
		if err := fw.Add(p); err != nil {
			return fmt.Errorf("watching %s: %w", p, err)
		}
		return nil
	})
}

func (w *Watcher) report(msg string, err error) {
	w.logger.Warn(msg, "error", err)
	w.reporter.RecordException(err)
}
