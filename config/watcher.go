package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/wolflogic/wolfmem/pkg/logger"
)

// Watcher re-reads the config file when it changes on disk and hands
// the fresh Config to registered callbacks. Editors and deploy tools
// often replace the file with a rename, which surfaces as a Create
// event, so both Write and Create trigger a reload. Events are
// debounced to coalesce the bursts most editors produce.
type Watcher struct {
	mu        sync.RWMutex
	fs        *fsnotify.Watcher
	loader    *Loader
	path      string
	callbacks []func(*Config)
	debounce  time.Duration
	log       logger.Logger
	stopCh    chan struct{}
	running   bool
}

// WatcherOption adjusts a Watcher at construction.
type WatcherOption func(*Watcher)

// WithDebounce overrides the event debounce window.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithWatcherLogger sets the logger used for reload outcomes.
func WithWatcherLogger(log logger.Logger) WatcherOption {
	return func(w *Watcher) {
		w.log = log
	}
}

// NewWatcher builds a watcher over the given config file. The loader
// is reused for every reload so defaults and env overrides apply the
// same way they did at startup.
func NewWatcher(configPath string, loader *Loader, opts ...WatcherOption) (*Watcher, error) {
	if configPath == "" {
		return nil, fmt.Errorf("config path is required for watching")
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		fs:       fs,
		loader:   loader,
		path:     configPath,
		debounce: 500 * time.Millisecond,
		log:      logger.Global(),
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// OnChange registers a callback invoked with each successfully
// reloaded Config. Register before calling Watch.
func (w *Watcher) OnChange(cb func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

// Watch blocks monitoring the config file until the context is
// canceled or Stop is called.
func (w *Watcher) Watch(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher is already running")
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	if err := w.fs.Add(w.path); err != nil {
		return fmt.Errorf("watch config file %s: %w", w.path, err)
	}
	w.log.Info("watching config file", "path", w.path)

	var pending *time.Timer
	defer func() {
		if pending != nil {
			pending.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-w.stopCh:
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(w.debounce, w.reload)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("config watch error", "error", err)
		}
	}
}

// reload re-parses the file and fans the result out. A file that no
// longer loads is reported and otherwise ignored; the running config
// stays in effect.
func (w *Watcher) reload() {
	cfg, err := w.loader.Load(w.path, nil)
	if err != nil {
		w.log.Warn("config reload failed", "path", w.path, "error", err)
		return
	}

	w.mu.RLock()
	callbacks := make([]func(*Config), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.RUnlock()

	w.log.Info("config reloaded", "path", w.path)
	for _, cb := range callbacks {
		w.invoke(cb, cfg)
	}
}

// invoke shields the watch loop from a panicking callback.
func (w *Watcher) invoke(cb func(*Config), cfg *Config) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("config callback panicked", "panic", r)
		}
	}()
	cb(cfg)
}

// Stop terminates Watch and releases the fsnotify handle.
func (w *Watcher) Stop() error {
	close(w.stopCh)
	return w.fs.Close()
}

// IsRunning reports whether Watch is active.
func (w *Watcher) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// Reloadable is the slice of Config that takes effect without a
// restart: logging and the poll cadences of the long-running loops.
// Everything else (listen addresses, store DSNs, directory layout)
// still needs a process restart.
type Reloadable struct {
	LogLevel           string
	LogFormat          string
	IntakePollInterval time.Duration
	StenoPollInterval  time.Duration
}

// ExtractReloadable pulls the hot-reloadable values out of a Config.
func ExtractReloadable(cfg *Config) Reloadable {
	return Reloadable{
		LogLevel:           cfg.Log.Level,
		LogFormat:          cfg.Log.Format,
		IntakePollInterval: cfg.Intake.PollInterval,
		StenoPollInterval:  cfg.Steno.PollInterval,
	}
}

// Changed reports whether any hot-reloadable value differs.
func (r Reloadable) Changed(other Reloadable) bool {
	return r != other
}
