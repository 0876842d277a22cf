/*-------------------------------------------------------------------------
 *
 * pgEdge SQL Gateway
 *
 * Copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package auth

import (
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"pgedge-sql-gateway/internal/logging"
)

// DebounceInterval is how long the watcher waits after the last change
// before reloading
const DebounceInterval = 100 * time.Millisecond

// FileWatcher watches a file for changes and triggers a reload callback
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	filePath string
	reloadFn func() error
	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
	started  atomic.Bool
}

// NewFileWatcher creates a watcher for filePath. The containing directory
// is watched, since editors often replace files rather than write them.
func NewFileWatcher(filePath string, reloadFn func() error) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to resolve %s: %w", filePath, err)
	}

	dir := filepath.Dir(absPath)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}

	return &FileWatcher{
		watcher:  watcher,
		filePath: absPath,
		reloadFn: reloadFn,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}, nil
}

// Start begins watching for file changes
func (fw *FileWatcher) Start() {
	if fw.started.CompareAndSwap(false, true) {
		go fw.watch()
	}
}

// Stop stops watching and waits for the watch loop to exit. It is safe
// to call more than once.
func (fw *FileWatcher) Stop() {
	fw.stopOnce.Do(func() {
		close(fw.done)
		fw.watcher.Close()
	})
	if fw.started.Load() {
		<-fw.stopped
	}
}

func (fw *FileWatcher) watch() {
	defer close(fw.stopped)

	var (
		mu     sync.Mutex
		timer  *time.Timer
		reload = func() {
			if err := fw.reloadFn(); err != nil {
				logging.Error("file_reload_failed", "path", fw.filePath, "error", err)
				return
			}
			logging.Debug("file_reloaded", "path", fw.filePath)
		}
	)
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != fw.filePath {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				mu.Lock()
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(DebounceInterval, reload)
				mu.Unlock()
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			logging.Warn("file_watcher_error", "path", fw.filePath, "error", err)

		case <-fw.done:
			return
		}
	}
}
