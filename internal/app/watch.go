package app

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// WatchDir indexes dir, then indexes it again whenever a supported file
// under it is written, created, renamed or removed. Bursts of events are
// collapsed into one run after debounce (2s when zero). onIndex, if set,
// receives the stats of every run. Returns when ctx is done.
func (a *App) WatchDir(ctx context.Context, dir, namespace string, debounce time.Duration, onIndex func(IndexStats)) error {
	if debounce <= 0 {
		debounce = 2 * time.Second
	}

	root, err := filepath.Abs(dir)
	if err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := watchTree(w, root); err != nil {
		return err
	}

	log := a.logger.WithContext(ctx).With(zap.String("dir", root))

	run := func() error {
		stats, err := a.IndexDir(ctx, root, namespace)
		if err != nil {
			return err
		}
		if onIndex != nil {
			onIndex(stats)
		}
		return nil
	}
	if err := run(); err != nil {
		return err
	}
	log.Info("watching for changes", zap.Duration("debounce", debounce))

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := watchTree(w, event.Name); err != nil {
						log.Warn("failed to watch directory", zap.String("path", event.Name), zap.Error(err))
					}
					timer.Reset(debounce)
					continue
				}
			}
			if event.Has(fsnotify.Chmod) || !a.extractors.Supports(event.Name) {
				continue
			}
			timer.Reset(debounce)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("watcher error", zap.Error(err))

		case <-timer.C:
			if err := run(); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				log.Warn("re-index failed", zap.Error(err))
			}
		}
	}
}

// watchTree adds dir and every non-hidden directory below it.
func watchTree(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
