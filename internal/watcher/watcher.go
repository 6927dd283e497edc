// Package watcher reports debounced changes to files below a set of root
// directories. misud uses it to reload representation rules when their
// YAML files are edited.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/misu-units/misu/internal/logger"
)

var log = logger.ForComponent("watcher")

// Reloader receives each debounced batch of relevant changes.
type Reloader interface {
	Reload(ctx context.Context, batch Batch) error
}

type ReloadFunc func(ctx context.Context, batch Batch) error

func (f ReloadFunc) Reload(ctx context.Context, batch Batch) error {
	return f(ctx, batch)
}

type Watcher struct {
	config      WatcherConfig
	fsWatcher   *fsnotify.Watcher
	fsWatcherMu sync.Mutex
	debouncer   *Debouncer
	reloader    Reloader
	roots       []string
	mu          sync.RWMutex
	running     bool
	ctx         context.Context
	cancel      context.CancelFunc
}

func New(config WatcherConfig, reloader Reloader) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		config:    config,
		fsWatcher: fsWatcher,
		reloader:  reloader,
		ctx:       context.Background(),
	}

	w.debouncer = NewDebouncer(config.DebounceWindow, config.MaxBatchSize, w.onFlush)

	return w, nil
}

func (w *Watcher) addToWatcher(path string) error {
	w.fsWatcherMu.Lock()
	defer w.fsWatcherMu.Unlock()
	return w.fsWatcher.Add(path)
}

func (w *Watcher) removeFromWatcher(path string) {
	w.fsWatcherMu.Lock()
	defer w.fsWatcherMu.Unlock()
	w.fsWatcher.Remove(path)
}

// AddRoot watches path and every directory below it that is not ignored.
func (w *Watcher) AddRoot(path string) error {
	path = filepath.Clean(path)
	log.Info("adding root to watch", "path", path)

	if err := w.addToWatcher(path); err != nil {
		return err
	}

	w.mu.Lock()
	w.roots = append(w.roots, path)
	w.mu.Unlock()

	return w.walkAndAdd(path)
}

func (w *Watcher) walkAndAdd(path string) error {
	entries, err := os.ReadDir(path)
	if err != nil {
		log.Debug("failed to read directory", "path", path, "error", err)
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		fullPath := filepath.Join(path, entry.Name())
		if w.shouldIgnore(fullPath) {
			continue
		}
		if err := w.addToWatcher(fullPath); err != nil {
			log.Debug("failed to watch directory", "path", fullPath, "error", err)
			continue
		}
		log.Debug("watching directory", "path", fullPath)
		w.walkAndAdd(fullPath)
	}

	return nil
}

func (w *Watcher) RemoveRoot(path string) error {
	path = filepath.Clean(path)
	w.removeFromWatcher(path)

	w.mu.Lock()
	defer w.mu.Unlock()

	for i, root := range w.roots {
		if root == path {
			w.roots = append(w.roots[:i], w.roots[i+1:]...)
			break
		}
	}

	return nil
}

func (w *Watcher) Roots() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]string(nil), w.roots...)
}

func (w *Watcher) Start(ctx context.Context) error {
	log.Info("starting file watcher")

	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}

	w.running = true
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	go w.handleEvents()

	return nil
}

func (w *Watcher) handleEvents() {
	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}

			log.Debug("file event", "path", event.Name, "op", event.Op.String())

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if !w.shouldIgnore(event.Name) {
						if err := w.addToWatcher(event.Name); err == nil {
							w.walkAndAdd(event.Name)
						}
					}
					continue
				}
			}

			if fileEvent := w.convertEvent(event); fileEvent != nil {
				w.debouncer.Add(*fileEvent)
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) convertEvent(event fsnotify.Event) *FileEvent {
	if w.shouldIgnore(event.Name) || !w.matches(event.Name) {
		return nil
	}

	var eventType EventType

	switch {
	case event.Has(fsnotify.Create):
		eventType = EventCreate
	case event.Has(fsnotify.Write):
		eventType = EventModify
	case event.Has(fsnotify.Remove):
		eventType = EventDelete
	case event.Has(fsnotify.Rename):
		eventType = EventRename
	default:
		return nil
	}

	return &FileEvent{
		Path:      event.Name,
		Type:      eventType,
		Timestamp: time.Now(),
	}
}

func (w *Watcher) onFlush(events []FileEvent) {
	batch := NewBatch(events)
	if batch.Empty() || w.reloader == nil {
		return
	}

	log.Info("reloading", "changed", len(batch.Changed), "removed", len(batch.Removed))

	w.mu.RLock()
	ctx := w.ctx
	w.mu.RUnlock()

	if err := w.reloader.Reload(ctx, batch); err != nil {
		log.Error("reload failed", "error", err)
	}
}

// relative returns path relative to the root containing it, with forward
// slashes, for matching against patterns.
func (w *Watcher) relative(path string) string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	for _, root := range w.roots {
		rel, err := filepath.Rel(root, path)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.Base(path)
}

func (w *Watcher) matches(path string) bool {
	if len(w.config.Patterns) == 0 {
		return true
	}
	rel := w.relative(path)
	for _, pattern := range w.config.Patterns {
		if match, _ := doublestar.Match(pattern, rel); match {
			return true
		}
	}
	return false
}

func (w *Watcher) shouldIgnore(path string) bool {
	basename := filepath.Base(path)

	if !w.config.WatchHidden && strings.HasPrefix(basename, ".") {
		return true
	}

	rel := w.relative(path)
	for _, pattern := range w.config.IgnorePatterns {
		if match, _ := doublestar.Match(pattern, rel); match {
			return true
		}
	}

	return false
}

func (w *Watcher) Stop() error {
	log.Info("stopping file watcher")

	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return w.closeFS()
	}

	w.running = false
	w.cancel()
	w.mu.Unlock()

	w.debouncer.Stop()

	return w.closeFS()
}

func (w *Watcher) closeFS() error {
	w.fsWatcherMu.Lock()
	defer w.fsWatcherMu.Unlock()
	return w.fsWatcher.Close()
}
