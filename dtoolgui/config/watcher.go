package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	internal "github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a Store when its file is edited by another process
// (e.g. the dtool command line tools) and announces the change.
type Watcher struct {
	store    *Store
	watcher  *fsnotify.Watcher
	debounce time.Duration
	errors   chan error
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewWatcher creates a watcher for store's file. Events within debounce are coalesced.
func NewWatcher(store *Store, debounce time.Duration) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}

	return &Watcher{
		store:    store,
		watcher:  fsWatcher,
		debounce: debounce,
		errors:   make(chan error, 10),
	}, nil
}

// Start watches the directory holding the config file; editors often replace files
// instead of writing them in place, so watching the file itself would lose track.
func (w *Watcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.store.Path())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.watchLoop()

	slog.Info("Config watcher started", "path", w.store.Path())
	return nil
}

// Errors returns reload and watch errors
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Stop ends the watch loop and releases the fsnotify handle
func (w *Watcher) Stop() error {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	return w.watcher.Close()
}

func (w *Watcher) watchLoop() {
	defer w.wg.Done()

	target := filepath.Clean(w.store.Path())
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-w.ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.reportError(fmt.Errorf("config watcher: %w", err))
		}
	}
}

func (w *Watcher) reload() {
	changed, err := w.store.Reload()
	if err != nil {
		w.reportError(err)
		return
	}
	if !changed {
		return
	}
	slog.Info("Config file changed on disk", "path", w.store.Path())
	w.store.Broker().Publish(Event{Topic: internal.ConfigChangedTopic, Source: "external"})
}

func (w *Watcher) reportError(err error) {
	slog.Warn("Config watcher error", "error", err)
	select {
	case w.errors <- err:
	default:
	}
}
