package admission

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultReloadDelay batches bursts of writes (editors often save twice).
const DefaultReloadDelay = 300 * time.Millisecond

// Reloader is satisfied by *Engine.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Watcher reloads policies when .rego files under a directory change.
type Watcher struct {
	dir      string
	target   Reloader
	delay    time.Duration
	watcher  *fsnotify.Watcher
	onReload func(error)

	mu    sync.Mutex
	timer *time.Timer

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher watches dir and every directory below it. onReload, if set,
// is called after each reload attempt.
func NewWatcher(dir string, target Reloader, onReload func(error)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	w := &Watcher{dir: dir, target: target, delay: DefaultReloadDelay, watcher: fw, onReload: onReload}
	if err := w.addRecursive(dir); err != nil {
		_ = fw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := w.watcher.Add(path); err != nil {
				return fmt.Errorf("watch %s: %w", path, err)
			}
		}
		return nil
	})
}

// Start runs the event loop until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.loop(ctx)
}

// Stop ends the event loop and releases the watcher.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	_ = w.watcher.Close()
	w.wg.Wait()

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(ctx, event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("policy watch error", "dir", w.dir, "error", err)
		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.addRecursive(event.Name)
			w.schedule(ctx)
			return
		}
	}
	if !isPolicyFile(event.Name) || event.Op == fsnotify.Chmod {
		return
	}
	w.schedule(ctx)
}

func (w *Watcher) schedule(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.delay, func() {
		if ctx.Err() != nil {
			return
		}
		err := w.target.Reload(ctx)
		if err != nil {
			slog.Error("policy reload failed, keeping previous policies", "dir", w.dir, "error", err)
		} else {
			slog.Info("policies reloaded", "dir", w.dir)
		}
		if w.onReload != nil {
			w.onReload(err)
		}
	})
}

func isPolicyFile(path string) bool {
	return strings.HasSuffix(path, ".rego") && !strings.HasSuffix(path, "_test.rego")
}
