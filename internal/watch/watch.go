// Package watch provides a daemon mode that re-runs the import whenever one
// of the input files changes.
//
// The daemon watches the parent directories of the input files because most
// editors and spreadsheet exporters replace files by rename, which drops an
// inotify watch placed on the file itself. Rapid successive writes are
// debounced into a single re-import.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// SyncFunc runs one import over the current state of the input files.
type SyncFunc func(ctx context.Context) error

// Config holds daemon tuning knobs.
type Config struct {
	// DebounceInterval is how long a file must stay quiet before a
	// re-import is triggered. Batches rapid successive saves.
	DebounceInterval time.Duration

	Logger *zap.Logger
}

// DefaultConfig returns the production defaults.
func DefaultConfig() *Config {
	return &Config{
		DebounceInterval: 2 * time.Second,
		Logger:           zap.NewNop(),
	}
}

// Daemon watches input files and triggers re-imports.
type Daemon struct {
	paths  map[string]struct{}
	sync   SyncFunc
	config *Config

	watcher *fsnotify.Watcher

	changeQueueMu sync.Mutex
	changeQueue   map[string]time.Time

	wg sync.WaitGroup
}

// New creates a daemon watching the given files. Paths are resolved to
// absolute form so rename-replace events can be matched back to them.
func New(paths []string, syncFn SyncFunc, config *Config) (*Daemon, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no files to watch")
	}
	if syncFn == nil {
		return nil, fmt.Errorf("sync function cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	d := &Daemon{
		paths:       make(map[string]struct{}, len(paths)),
		sync:        syncFn,
		config:      config,
		watcher:     watcher,
		changeQueue: make(map[string]time.Time),
	}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			_ = watcher.Close()
			return nil, fmt.Errorf("failed to resolve path %q: %w", p, err)
		}
		d.paths[abs] = struct{}{}
	}
	return d, nil
}

// Start performs an initial import, then watches until ctx is cancelled.
// Failed re-imports are logged and the daemon keeps watching; only failures
// to establish the watch itself are fatal.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Info("starting watch daemon",
		zap.Int("files", len(d.paths)),
		zap.Duration("debounce", d.config.DebounceInterval))

	if err := d.sync(ctx); err != nil {
		return fmt.Errorf("initial import failed: %w", err)
	}

	dirs := make(map[string]struct{})
	for path := range d.paths {
		dirs[filepath.Dir(path)] = struct{}{}
	}
	for dir := range dirs {
		if err := d.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch directory %q: %w", dir, err)
		}
		d.config.Logger.Info("watching directory", zap.String("dir", dir))
	}

	d.wg.Add(2)
	go d.watchFileEvents(ctx)
	go d.processChangeQueue(ctx)

	<-ctx.Done()
	return d.stop()
}

func (d *Daemon) stop() error {
	d.config.Logger.Info("stopping watch daemon")
	if err := d.watcher.Close(); err != nil {
		d.config.Logger.Warn("failed to close watcher", zap.Error(err))
	}
	d.wg.Wait()
	return nil
}

// watchFileEvents queues change events for watched files.
func (d *Daemon) watchFileEvents(ctx context.Context) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			if _, watched := d.paths[abs]; !watched {
				continue
			}
			d.config.Logger.Info("input file changed",
				zap.String("file", abs), zap.String("op", event.Op.String()))
			d.queueChange(abs)

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.config.Logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (d *Daemon) queueChange(path string) {
	d.changeQueueMu.Lock()
	defer d.changeQueueMu.Unlock()
	d.changeQueue[path] = time.Now()
}

// processChangeQueue periodically drains aged changes and triggers one
// re-import for the whole batch.
func (d *Daemon) processChangeQueue(ctx context.Context) {
	defer d.wg.Done()

	tick := d.config.DebounceInterval / 2
	if tick <= 0 {
		tick = time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if d.drainAgedChanges() {
				d.runImport(ctx)
			}
		}
	}
}

// drainAgedChanges reports whether any queued change has been quiet for the
// debounce interval, clearing the queue when so. Changes younger than the
// interval stay queued for the next tick.
func (d *Daemon) drainAgedChanges() bool {
	d.changeQueueMu.Lock()
	defer d.changeQueueMu.Unlock()

	now := time.Now()
	aged := false
	for path, queuedAt := range d.changeQueue {
		if now.Sub(queuedAt) >= d.config.DebounceInterval {
			delete(d.changeQueue, path)
			aged = true
		}
	}
	return aged
}

func (d *Daemon) runImport(ctx context.Context) {
	d.config.Logger.Info("re-running import")
	if err := d.sync(ctx); err != nil {
		d.config.Logger.Error("import failed, continuing to watch", zap.Error(err))
		return
	}
	d.config.Logger.Info("import finished")
}
