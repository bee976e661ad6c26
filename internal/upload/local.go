package upload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"compliance_checker/internal/logger"

	"go.uber.org/zap"
)

// LocalStore writes uploads into a directory.
type LocalStore struct {
	dir    string
	logger *logger.Logger
}

// NewLocalStore creates dir if needed.
func NewLocalStore(dir string, lgr *logger.Logger) (*LocalStore, error) {
	if lgr == nil {
		lgr = logger.L()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &LocalStore{dir: dir, logger: lgr.Named("upload")}, nil
}

func (s *LocalStore) Name() string { return "local" }

func (s *LocalStore) Save(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, ObjectName(name))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to save upload: %w", err)
	}

	s.logger.Info("upload saved",
		zap.String("path", path),
		zap.String("content_type", contentType),
		zap.Int("size", len(data)))

	return path, nil
}

// Remove ignores files that are already gone. Locations outside the upload
// directory are refused.
func (s *LocalStore) Remove(ctx context.Context, location string) error {
	dir, err := filepath.Abs(s.dir)
	if err != nil {
		return err
	}
	path, err := filepath.Abs(location)
	if err != nil {
		return err
	}
	if filepath.Dir(path) != dir {
		return fmt.Errorf("refusing to remove %s: outside upload directory", location)
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove upload: %w", err)
	}
	return nil
}
