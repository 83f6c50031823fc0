package builder

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/codeintel/internal/storage"
)

// DebounceInterval is the quiet period after the last change before a rebuild.
const DebounceInterval = 500 * time.Millisecond

// RebuildCallback is called after every watcher-driven rebuild attempt.
type RebuildCallback func(rep *Report, err error)

// Watch watches every existing group base directory and re-runs Run after a
// burst of changes settles. Failed rebuilds are logged and watching continues.
// It returns when ctx is cancelled.
func Watch(ctx context.Context, opts Options, cb RebuildCallback) error {
	opts.defaults()
	if opts.Root == "" {
		return errors.New("builder: watch needs an absolute repository root")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	watched := 0
	for _, g := range opts.Groups {
		dir := filepath.Join(opts.Root, filepath.FromSlash(g.BasePath))
		if info, statErr := os.Stat(dir); statErr != nil || !info.IsDir() {
			opts.Logger.Debug("watch: base dir missing", slog.String("path", g.BasePath))
			continue
		}
		if err := addDirsRecursive(w, dir); err != nil {
			return err
		}
		watched++
	}
	registryAbs := filepath.Join(opts.Root, filepath.FromSlash(opts.RegistryPath))

	opts.Logger.Info("watch: started", slog.String("root", opts.Root), slog.Int("groups", watched))

	var timer *time.Timer
	var fire <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(DebounceInterval)
			fire = timer.C
		} else {
			timer.Reset(DebounceInterval)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			opts.Logger.Info("watch: stopped")
			return nil

		case <-fire:
			rep, runErr := Run(ctx, opts)
			if runErr != nil {
				if ctx.Err() != nil {
					continue
				}
				opts.Logger.Error("watch: rebuild failed", slog.String("error", runErr.Error()))
			}
			if cb != nil {
				cb(rep, runErr)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Name == registryAbs || strings.HasPrefix(filepath.Base(ev.Name), storage.TempPrefix) {
				continue
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						opts.Logger.Warn("watch: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
				}
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			opts.Logger.Debug("watch: change", slog.String("path", ev.Name), slog.String("op", ev.Op.String()))
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			opts.Logger.Error("watch: error", slog.String("error", watchErr.Error()))
		}
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
