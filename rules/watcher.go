package rules

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce is how long to wait for more changes before invalidating.
const watchDebounce = 500 * time.Millisecond

// Watcher invalidates a YAMLRepository when rule files change on disk so that
// long-running processes pick up rule edits without a restart.
type Watcher struct {
	repo    *YAMLRepository
	dir     string
	watcher *fsnotify.Watcher
	logger  *slog.Logger
}

// NewWatcher creates a watcher over the repository's rules directory.
func NewWatcher(repo *YAMLRepository, dir string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, err
	}
	return &Watcher{repo: repo, dir: dir, watcher: fw, logger: logger}, nil
}

// Run processes file events until the context is cancelled. Changes are
// debounced so a burst of writes triggers a single reload.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !isRuleFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debug("rule file changed", slog.String("path", event.Name), slog.String("op", event.Op.String()))
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
				timerC = timer.C
			} else {
				timer.Reset(watchDebounce)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			w.repo.Invalidate()
			w.logger.Info("rule library reloaded", slog.String("dir", w.dir))

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("rule watcher error", slog.String("error", err.Error()))
		}
	}
}

// isRuleFile reports whether the path looks like a YAML rule file.
func isRuleFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
