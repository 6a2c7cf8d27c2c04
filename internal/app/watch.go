package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/specialistvlad/stagecheck/internal/ctxlog"
	"github.com/specialistvlad/stagecheck/internal/engine"
	"github.com/specialistvlad/stagecheck/internal/fsutil"
)

// watch validates once, then again after every settled burst of changes to
// .hcl files below the route path. Failed passes are logged and the loop
// keeps going.
func (a *App) watch(ctx context.Context) (*engine.Report, error) {
	logger := ctxlog.FromContext(ctx)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	dirs, err := fsutil.FindDirs(a.config.RoutePath)
	if err != nil {
		return nil, fmt.Errorf("failed to scan route path: %w", err)
	}
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	logger.Info("👀 Watching route description for changes.", "dirs", len(dirs))

	last, err := a.RunOnce(ctx)
	if err != nil {
		logger.Error("Validation pass failed.", "error", err)
	}

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			logger.Debug("Watch mode stopped.")
			return last, nil

		case event, ok := <-watcher.Events:
			if !ok {
				return last, nil
			}
			if event.Op&fsnotify.Create != 0 {
				// New directories need their own watch.
				if sub, err := fsutil.FindDirs(event.Name); err == nil && sub[0] != filepath.Dir(event.Name) {
					for _, dir := range sub {
						_ = watcher.Add(dir)
					}
				}
			}
			if filepath.Ext(event.Name) != ".hcl" && event.Op&(fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			logger.Debug("Route description changed.", "file", event.Name, "op", event.Op.String())
			debounce = time.After(a.config.WatchDelay)

		case err, ok := <-watcher.Errors:
			if !ok {
				return last, nil
			}
			logger.Error("File watcher error.", "error", err)

		case <-debounce:
			debounce = nil
			report, err := a.RunOnce(ctx)
			if err != nil {
				logger.Error("Validation pass failed.", "error", err)
				continue
			}
			last = report
		}
	}
}
