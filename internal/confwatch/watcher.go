// Package confwatch watches the configuration file and applies runtime
// adjustments without a restart. Only the log level is hot-reloadable;
// everything else requires a process restart.
package confwatch

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadFunc re-reads the config file and returns the log level to apply.
type ReloadFunc func(path string) (slog.Level, error)

// Watch monitors configPath until ctx is cancelled, calling reload after
// each write and applying the returned level to levelVar. Editors often
// replace files via rename, so the parent directory is watched and events
// are filtered to the config file itself. Writes are debounced because a
// single save can produce several events.
func Watch(ctx context.Context, configPath string, levelVar *slog.LevelVar, reload ReloadFunc, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir := filepath.Dir(configPath)
	if err := w.Add(dir); err != nil {
		return err
	}

	logger.Info("config watcher: started", slog.String("path", configPath))

	var debounce *time.Timer
	var debounceCh <-chan time.Time

	schedule := func() {
		if debounce == nil {
			debounce = time.NewTimer(200 * time.Millisecond)
			debounceCh = debounce.C
		} else {
			debounce.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			logger.Info("config watcher: stopped")
			return nil

		case <-debounceCh:
			level, err := reload(configPath)
			if err != nil {
				logger.Warn("config watcher: reload failed", slog.String("error", err.Error()))
				continue
			}
			if level != levelVar.Level() {
				logger.Info("config watcher: log level changed",
					slog.String("from", levelVar.Level().String()),
					slog.String("to", level.String()))
				levelVar.Set(level)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(configPath) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				schedule()
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher: error", slog.String("error", err.Error()))
		}
	}
}
