package biography

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 200 * time.Millisecond

// Watch invalidates the cache whenever a candidate file is written, created,
// removed or renamed. It blocks until ctx is cancelled. Candidate directories
// that do not exist are skipped.
func (l *Loader) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	targets := make(map[string]struct{}, len(l.paths))
	dirs := make(map[string]struct{})
	for _, p := range l.paths {
		abs, absErr := filepath.Abs(p)
		if absErr != nil {
			continue
		}
		targets[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}

	watched := 0
	for dir := range dirs {
		if info, statErr := os.Stat(dir); statErr != nil || !info.IsDir() {
			continue
		}
		if addErr := w.Add(dir); addErr != nil {
			l.logger.Warn("biography: watch dir failed", slog.String("dir", dir), slog.String("error", addErr.Error()))
			continue
		}
		watched++
	}
	l.logger.Info("biography: watcher started", slog.Int("dirs", watched))

	var debounce *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			l.logger.Info("biography: watcher stopped")
			return nil

		case <-fire:
			fire = nil
			l.Invalidate()
			l.logger.Debug("biography: invalidated")

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if _, hit := targets[filepath.Clean(ev.Name)]; !hit {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(watchDebounce)
			} else {
				debounce.Reset(watchDebounce)
			}
			fire = debounce.C

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			l.logger.Error("biography: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}
