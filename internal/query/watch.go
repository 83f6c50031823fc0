package query

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 200 * time.Millisecond

// ReloadCallback is called after the engine reloaded a changed document.
type ReloadCallback func(available bool)

// Watch reloads the engine whenever the registry file changes and calls cb
// afterwards. The parent directory is watched because the build replaces the
// file by rename. Watch blocks until ctx is cancelled.
func (e *Engine) Watch(ctx context.Context, cb ReloadCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir := filepath.Dir(e.path)
	name := filepath.Base(e.path)
	if err := w.Add(dir); err != nil {
		return err
	}
	e.logger.Info("registry watcher: started", slog.String("path", e.path))

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("registry watcher: stopped")
			return nil

		case <-fire:
			fire = nil
			available := e.Reload()
			e.logger.Info("registry watcher: reloaded", slog.Bool("available", available))
			if cb != nil {
				cb(available)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != name {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Reset(reloadDebounce)
			}
			fire = timer.C

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			e.logger.Error("registry watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
