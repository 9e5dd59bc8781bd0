// Package watcher re-indexes the active source document when it changes on disk.
package watcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// Watcher watches the currently indexed source file and invokes a callback
// when it is rewritten. The target can change as new documents are indexed;
// the watcher follows along via SetTarget.
type Watcher struct {
	onChange func(path string)
	debounce time.Duration
	logger   *zap.Logger

	mu       sync.Mutex
	target   string // cleaned absolute path of the watched file
	watchDir string // directory currently registered with fsnotify
	timer    *time.Timer
	watcher  *fsnotify.Watcher
	started  bool
	done     chan struct{}
	stopOnce sync.Once
}

// NewWatcher creates a watcher. onChange is called with the target path after
// a debounced write to it.
func NewWatcher(onChange func(path string), logger *zap.Logger) *Watcher {
	return &Watcher{
		onChange: onChange,
		debounce: defaultDebounce,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start begins watching. It runs until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watcher = fsw
	w.started = true
	w.mu.Unlock()

	go w.run(ctx)
	return nil
}

// SetTarget switches the watched file. Watching the containing directory
// rather than the file itself survives editors that replace files on save.
func (w *Watcher) SetTarget(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	abs = filepath.Clean(abs)
	dir := filepath.Dir(abs)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher == nil {
		w.target = abs
		w.watchDir = dir
		return nil
	}
	if w.watchDir != "" && w.watchDir != dir {
		_ = w.watcher.Remove(w.watchDir)
		w.watchDir = ""
	}
	if w.watchDir != dir {
		if err := w.watcher.Add(dir); err != nil {
			return err
		}
		w.watchDir = dir
	}
	w.target = abs
	w.logger.Debug("watcher target set", zap.String("path", abs))
	return nil
}

// Target returns the currently watched file, if any.
func (w *Watcher) Target() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.target
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Debug("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	w.mu.Lock()
	target := w.target
	w.mu.Unlock()

	if target == "" || filepath.Clean(ev.Name) != target {
		return
	}
	if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", ev.Name))
	w.scheduleChange(target)
}

func (w *Watcher) scheduleChange(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.logger.Debug("watcher re-indexing target (debounced)", zap.String("path", path))
		if w.onChange != nil {
			w.onChange(path)
		}
	})
}

// Stop stops the watcher and releases resources.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
