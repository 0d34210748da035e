package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports changes of storage files. It watches the parent
// directories, because editors replace storage.json atomically and SQLite
// writes through -wal and -journal side files.
type Watcher struct {
	fs      *fsnotify.Watcher
	targets map[string][]string // dir -> watched file base names
	notify  *debouncer
	logger  *slog.Logger

	closeOnce sync.Once
}

// NewWatcher watches the given storage files and calls notify once changes
// have been quiet for debounce. Files whose directory does not exist yet are
// skipped.
func NewWatcher(files []string, debounce time.Duration, notify func(), logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &Watcher{
		fs:      fsw,
		targets: make(map[string][]string),
		notify:  newDebouncer(debounce, notify),
		logger:  logger,
	}

	for _, file := range files {
		dir := filepath.Dir(file)
		if _, watched := w.targets[dir]; !watched {
			if err := fsw.Add(dir); err != nil {
				logger.Debug("not watching storage directory", "dir", dir, "error", err)
				continue
			}
		}
		w.targets[dir] = append(w.targets[dir], filepath.Base(file))
	}

	return w, nil
}

// Watching returns the number of watched directories.
func (w *Watcher) Watching() int {
	return len(w.targets)
}

// Run forwards relevant events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if w.relevant(event) {
				w.logger.Debug("storage changed", "path", event.Name, "op", event.Op.String())
				w.notify.Trigger()
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				// Events were lost; reload to be safe.
				w.notify.Trigger()
			}
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	bases, ok := w.targets[filepath.Dir(event.Name)]
	if !ok {
		return false
	}
	name := filepath.Base(event.Name)
	for _, base := range bases {
		if strings.HasPrefix(name, base) {
			return true
		}
	}
	return false
}

// Close stops watching. Safe to call multiple times.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		w.notify.Stop()
		err = w.fs.Close()
	})
	return err
}

// debouncer calls fn once triggers have been quiet for window.
type debouncer struct {
	window time.Duration
	fn     func()

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

func newDebouncer(window time.Duration, fn func()) *debouncer {
	return &debouncer{window: window, fn: fn}
}

// Trigger (re)starts the quiet period.
func (d *debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.fire)
}

func (d *debouncer) fire() {
	d.mu.Lock()
	stopped := d.stopped
	d.mu.Unlock()

	if !stopped {
		d.fn()
	}
}

// Stop cancels a pending call.
func (d *debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}
