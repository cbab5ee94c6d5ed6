// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// =============================================================================
// SETTINGS FILE WATCHER
// =============================================================================

// DefaultWatchDebounce is how long the watcher waits after the last event
// before reloading.
const DefaultWatchDebounce = 200 * time.Millisecond

// Watcher reloads a Store when its backing file is edited outside the
// process. Only the file backend has a file worth watching.
type Watcher struct {
	store    *Store
	path     string
	debounce time.Duration
	logger   *log.Logger

	mu      sync.Mutex
	pending time.Time
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets the quiet period before a reload.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithWatcherLogger sets the watcher logger.
func WithWatcherLogger(l *log.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWatcher creates a watcher for the settings file at path.
func NewWatcher(store *Store, path string, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		store:    store,
		path:     filepath.Clean(path),
		debounce: DefaultWatchDebounce,
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches until ctx is cancelled. The parent directory is watched
// because atomic saves replace the file rather than writing to it.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.mu.Lock()
				w.pending = time.Now()
				w.mu.Unlock()
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Printf("SETTINGS_WATCH_ERROR | path=%s err=%v", w.path, err)

		case <-ticker.C:
			w.flush()
		}
	}
}

// flush reloads the store once the debounce window has passed.
func (w *Watcher) flush() {
	w.mu.Lock()
	if w.pending.IsZero() || time.Since(w.pending) < w.debounce {
		w.mu.Unlock()
		return
	}
	w.pending = time.Time{}
	w.mu.Unlock()

	if w.store.Reload() {
		w.logger.Printf("SETTINGS_FILE_CHANGED | path=%s", w.path)
	}
}
