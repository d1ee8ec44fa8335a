package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// walkDirsForWatch visits root and every non-ignored subdirectory,
// calling fn on each.
func walkDirsForWatch(root string, fn func(dir string) error) error {
	if err := fn(root); err != nil {
		return err
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if IsIgnoredDir(e.Name()) {
			continue
		}
		if err := walkDirsForWatch(filepath.Join(root, e.Name()), fn); err != nil {
			return err
		}
	}
	return nil
}

// ChangeWatcher notifies the engine when a tree's filesystem changes so
// it can schedule a re-index without waiting for the next timer tick.
// The platform filesystem watcher is an external collaborator per the
// core's scope; this interface lets the engine depend on an abstraction
// while this package ships the one concrete, non-platform-specific
// implementation built on fsnotify.
type ChangeWatcher interface {
	Watch(ctx context.Context, root string, onChange func()) error
	Close() error
}

// FSNotifyWatcher adapts fsnotify.Watcher's recursive-directory-add
// idiom into the ChangeWatcher interface, debouncing nothing itself —
// callers are expected to coalesce bursts (the engine's scheduler does,
// by treating "change pending" as a sticky flag consumed by the next
// sync tick).
type FSNotifyWatcher struct {
	watcher *fsnotify.Watcher
	logger  *slog.Logger
}

// NewFSNotifyWatcher creates a ready-to-use watcher.
func NewFSNotifyWatcher(logger *slog.Logger) (*FSNotifyWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	return &FSNotifyWatcher{watcher: w, logger: logger}, nil
}

// Watch adds root and every subdirectory (ignored ones excluded) to the
// watch set and invokes onChange once per batch of filesystem events
// until ctx is cancelled.
func (w *FSNotifyWatcher) Watch(ctx context.Context, root string, onChange func()) error {
	if err := w.addTreeRecursive(root); err != nil {
		return fmt.Errorf("watch %s: %w", root, err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
					if event.Op&fsnotify.Create != 0 {
						if err := w.addTreeRecursive(event.Name); err != nil {
							w.logger.Debug("watch: could not add new path", "path", event.Name, "error", err)
						}
					}
					onChange()
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Warn("fsnotify error", "error", err)
			}
		}
	}()
	return nil
}

func (w *FSNotifyWatcher) addTreeRecursive(root string) error {
	return walkDirsForWatch(root, func(dir string) error {
		return w.watcher.Add(dir)
	})
}

// Close releases the underlying OS watch handles.
func (w *FSNotifyWatcher) Close() error {
	return w.watcher.Close()
}
