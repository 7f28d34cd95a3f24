// Package watch reloads the knowledge base when its backing file is
// changed by another process.
package watch

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period before a reload.
const DefaultDebounce = 200 * time.Millisecond

// Reloader re-reads persisted state. changed reports whether memory was replaced.
type Reloader interface {
	Reload(ctx context.Context) (changed bool, err error)
}

// Watch observes the directory holding path and calls r.Reload after each
// burst of changes to that file. Writes made by the store itself are
// recognized by Reload and ignored. onReload, if non-nil, runs after every
// reload that replaced the collection. Watch blocks until ctx is cancelled.
func Watch(ctx context.Context, path string, r Reloader, logger *slog.Logger, onReload func()) error {
	return watch(ctx, path, r, logger, DefaultDebounce, onReload)
}

func watch(ctx context.Context, path string, r Reloader, logger *slog.Logger, debounce time.Duration, onReload func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Atomic saves replace the file, so watch its directory.
	dir, name := filepath.Split(filepath.Clean(path))
	if dir == "" {
		dir = "."
	}
	if err := w.Add(dir); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("path", path))

	var timer *time.Timer
	var timerCh <-chan time.Time

	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			timerCh = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			changed, err := r.Reload(ctx)
			if err != nil {
				logger.Warn("watcher: reload failed, keeping current collection",
					slog.String("path", path),
					slog.String("error", err.Error()))
				continue
			}
			if changed {
				logger.Info("watcher: collection reloaded", slog.String("path", path))
				if onReload != nil {
					onReload()
				}
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != name {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				schedule()
			} else if ev.Op&fsnotify.Remove != 0 {
				logger.Warn("watcher: file removed externally; collection kept in memory",
					slog.String("path", path))
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
