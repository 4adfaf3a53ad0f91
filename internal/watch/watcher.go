// Package watch keeps a scan result current by rescanning when the watched
// tree changes on disk.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/eihwaz/internal/scanner"
)

// debounceDelay coalesces event bursts (editors write-then-rename, build
// tools touch whole directories) into one rescan.
const debounceDelay = 200 * time.Millisecond

// RescanCallback is called with each fresh scan result after a change.
type RescanCallback func(res scanner.Result)

// Watcher rescans a root whenever its contents change.
type Watcher struct {
	logger  *slog.Logger
	scanner *scanner.Scanner
	opts    scanner.Options
}

// New creates a watcher around an existing scanner. The scanner's cache is
// invalidated before every rescan so results always reflect disk.
func New(logger *slog.Logger, s *scanner.Scanner, opts scanner.Options) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{logger: logger, scanner: s, opts: opts}
}

// Run watches root until ctx is cancelled. It performs one initial scan,
// then a debounced rescan after each change, delivering every result to cb.
//
// Directories created at runtime are added to the watch list. Events for
// entries the scanner would ignore anyway (dot-directories such as .git)
// still trigger a rescan only if they pass a cheap name filter.
func (w *Watcher) Run(ctx context.Context, root string, cb RescanCallback) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := addDirsRecursive(fw, abs); err != nil {
		return err
	}

	w.logger.Info("watcher: started", slog.String("root", abs))

	if res := w.scanner.Scan(ctx, abs, w.opts); cb != nil {
		cb(res)
	}

	var rescanTimer *time.Timer
	var rescanCh <-chan time.Time

	scheduleRescan := func() {
		if rescanTimer == nil {
			rescanTimer = time.NewTimer(debounceDelay)
			rescanCh = rescanTimer.C
		} else {
			rescanTimer.Reset(debounceDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if rescanTimer != nil {
				rescanTimer.Stop()
			}
			w.logger.Info("watcher: stopped")
			return nil

		case <-rescanCh:
			w.scanner.InvalidatePath(abs)
			res := w.scanner.Scan(ctx, abs, w.opts)
			w.logger.Debug("watcher: rescanned",
				slog.Int("files", res.Stats.Files),
				slog.Int("directories", res.Stats.Directories))
			if cb != nil {
				cb(res)
			}

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}

			if noisy(ev.Name) {
				continue
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(fw, ev.Name); addErr != nil {
						w.logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					} else {
						w.logger.Debug("watcher: watching new dir", slog.String("path", ev.Name))
					}
				}
			}

			scheduleRescan()

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// noisy filters event paths inside directories a scan skips by default, so
// VCS and build churn does not cause rescans.
func noisy(path string) bool {
	base := filepath.Base(path)
	if base == ".git" || base == "node_modules" || base == "__pycache__" {
		return true
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		switch part {
		case ".git", "node_modules", "__pycache__", ".idea", ".vscode":
			return true
		}
	}
	return false
}

// addDirsRecursive adds root and all its subdirectories to the watcher,
// skipping the same noisy directories.
func addDirsRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && noisy(path) {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}
