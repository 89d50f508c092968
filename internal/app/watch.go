package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/neox5/statbox/internal/config"
)

// Watch reloads the pipeline whenever the config file at path changes,
// until ctx is done. Invalid configs are logged and leave the running
// pipeline in place.
func (a *App) Watch(ctx context.Context, path string) error {
	path = filepath.Clean(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// editors replace files, so watch the directory
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}
	slog.Info("watching config", "path", path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			slog.Debug("config changed", "path", path, "op", ev.Op.String())
			a.reloadFile(path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("config watcher error", "error", err)
		}
	}
}

func (a *App) reloadFile(path string) {
	cfg, err := config.Load(path)
	if err != nil {
		slog.Warn("ignoring config change", "path", path, "error", err)
		return
	}
	if err := a.Reload(cfg); err != nil {
		slog.Warn("failed to reload config", "path", path, "error", err)
	}
}
