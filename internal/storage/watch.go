package storage

import (
	"context"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// ChangeCallback is invoked for every externally-modified document.
// kind is "updated" or "deleted"; key is the document key.
type ChangeCallback func(kind, key string)

// Watch starts an fsnotify watcher on the data directory and reports
// document changes until ctx is cancelled. It is how edits made by another
// process (or another instance sharing the same data directory) propagate
// into a running engine. Atomic Set goes through a dot-prefixed temp file
// and lands as a rename, so our own writes surface as single events on the
// final document path.
func Watch(ctx context.Context, fs *FS, logger *slog.Logger, cb ChangeCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(fs.Root()); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", fs.Root()))

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher: stopped")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			key := KeyFromPath(ev.Name)
			if key == "" {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0:
				// Rename is how atomic writes land.
				if _, getErr := fs.Get(key); getErr != nil {
					continue
				}
				logger.Debug("watcher: document changed", slog.String("key", key))
				if cb != nil {
					cb("updated", key)
				}

			case ev.Op&fsnotify.Remove != 0:
				logger.Debug("watcher: document removed", slog.String("key", key))
				if cb != nil {
					cb("deleted", key)
				}
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
