package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// IndexStats summarizes one IndexDir run.
type IndexStats struct {
	Indexed int `json:"indexed"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
	Removed int `json:"removed"`
}

// IndexDir ingests every supported file under dir into namespace. Files
// whose size and modification time match the registry are skipped; a file
// that changed replaces its previous version, and documents indexed from
// files that no longer exist are removed. Identical files share one
// document, which is dropped with the last of them. Failures are logged and
// counted, and only a canceled context stops the walk.
func (a *App) IndexDir(ctx context.Context, dir, namespace string) (IndexStats, error) {
	var stats IndexStats
	namespace = a.namespace(namespace)
	log := a.logger.WithContext(ctx).With(zap.String("dir", dir), zap.String("namespace", namespace))

	root, err := filepath.Abs(dir)
	if err != nil {
		return stats, err
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || !a.extractors.Supports(path) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		prev, known := a.registry.File(path)
		if known && prev.Namespace == namespace && prev.Size == info.Size() && prev.ModTime.Equal(info.ModTime()) {
			if _, ok := a.registry.Get(prev.ID); ok {
				stats.Skipped++
				return nil
			}
		}

		data, err := os.ReadFile(path)
		if err != nil {
			log.Warn("failed to read file", zap.String("path", path), zap.Error(err))
			stats.Failed++
			return nil
		}

		res, err := a.IngestDocument(ctx, IngestRequest{
			FileName:  filepath.Base(path),
			Data:      data,
			Namespace: namespace,
			Path:      path,
			ModTime:   info.ModTime(),
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("failed to index file", zap.String("path", path), zap.Error(err))
			stats.Failed++
			return nil
		}

		if err := a.registry.PutFile(path, IndexedFile{
			ID:        res.Document.ID,
			Namespace: namespace,
			Size:      info.Size(),
			ModTime:   info.ModTime(),
		}); err != nil {
			return fmt.Errorf("failed to update registry: %w", err)
		}

		if known && prev.ID != res.Document.ID && a.registry.FileCount(prev.ID) == 0 {
			if err := a.DeleteDocument(ctx, prev.ID); err != nil && !errors.Is(err, ErrNotFound) {
				log.Warn("failed to drop previous version", zap.String("path", path), zap.Error(err))
			}
		}

		stats.Indexed++
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("indexing %s: %w", dir, err)
	}

	for path, f := range a.registry.Files() {
		if f.Namespace != namespace || !strings.HasPrefix(path, root+string(filepath.Separator)) {
			continue
		}
		if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := a.registry.RemoveFile(path); err != nil {
			log.Warn("failed to forget removed file", zap.String("path", path), zap.Error(err))
			continue
		}
		if a.registry.FileCount(f.ID) == 0 {
			if err := a.DeleteDocument(ctx, f.ID); err != nil && !errors.Is(err, ErrNotFound) {
				log.Warn("failed to drop removed file", zap.String("path", path), zap.Error(err))
				continue
			}
		}
		stats.Removed++
	}

	log.Info("directory indexed",
		zap.Int("indexed", stats.Indexed),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
		zap.Int("removed", stats.Removed))

	return stats, nil
}
