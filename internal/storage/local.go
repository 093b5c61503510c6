package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/formbench/formbench/internal/config"
	"github.com/formbench/formbench/internal/support/logger"
)

// localStore implements Store on the local filesystem. Objects live under
// BaseDir/Bucket/objectName.
type localStore struct {
	baseDir string
	bucket  string
}

var _ Store = (*localStore)(nil)

// NewLocalStore creates a local filesystem store, creating the base
// directory if it does not exist.
func NewLocalStore(cfg config.StorageConfig) (Store, error) {
	if cfg.BaseDir == "" {
		return nil, fmt.Errorf("local storage: base_dir must be specified in configuration")
	}
	info, err := os.Stat(cfg.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(cfg.BaseDir, 0755); err != nil {
				return nil, fmt.Errorf("local storage: failed to create base_dir '%s': %w", cfg.BaseDir, err)
			}
		} else {
			return nil, fmt.Errorf("local storage: failed to stat base_dir '%s': %w", cfg.BaseDir, err)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("local storage: base_dir '%s' is not a directory", cfg.BaseDir)
	}

	return &localStore{baseDir: cfg.BaseDir, bucket: cfg.Bucket}, nil
}

func (s *localStore) Upload(ctx context.Context, objectName string, data io.Reader, contentType string) error {
	fullPath, err := s.resolvePath(objectName)
	if err != nil {
		return fmt.Errorf("failed to resolve path for upload: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory for '%s': %w", fullPath, err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("failed to create file '%s': %w", fullPath, err)
	}
	defer file.Close()

	if _, err := io.Copy(file, data); err != nil {
		return fmt.Errorf("failed to write data to file '%s': %w", fullPath, err)
	}
	logger.Debugf("Uploaded object '%s' (local store).", objectName)
	return nil
}

func (s *localStore) Download(ctx context.Context, objectName string) (io.ReadCloser, error) {
	fullPath, err := s.resolvePath(objectName)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path for download: %w", err)
	}
	file, err := os.Open(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open object '%s': %w", objectName, err)
	}
	return file, nil
}

func (s *localStore) Delete(ctx context.Context, objectName string) error {
	fullPath, err := s.resolvePath(objectName)
	if err != nil {
		return fmt.Errorf("failed to resolve path for delete: %w", err)
	}
	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			logger.Warnf("Attempted to delete non-existent object '%s' (local store).", objectName)
			return nil
		}
		return fmt.Errorf("failed to delete object '%s': %w", objectName, err)
	}
	return nil
}

func (s *localStore) List(ctx context.Context, prefix string, fn func(objectName string) error) error {
	root := filepath.Join(s.baseDir, s.bucket)
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		objectName, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		objectName = strings.ReplaceAll(objectName, "\\", "/")
		if prefix != "" && !strings.HasPrefix(objectName, prefix) {
			return nil
		}
		return fn(objectName)
	})
	if err != nil {
		return fmt.Errorf("failed to list objects with prefix '%s': %w", prefix, err)
	}
	return nil
}

func (s *localStore) Close() error {
	return nil
}

// resolvePath resolves the full path of an object and verifies it does not
// escape the base directory.
func (s *localStore) resolvePath(objectName string) (string, error) {
	objectName = NormalizeObjectName(objectName)
	fullPath := filepath.Join(s.baseDir, s.bucket, objectName)

	absBase, err := filepath.Abs(filepath.Join(s.baseDir, s.bucket))
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path for base dir: %w", err)
	}
	absFull, err := filepath.Abs(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path for '%s': %w", fullPath, err)
	}
	if !strings.HasPrefix(absFull, absBase) {
		return "", fmt.Errorf("resolved path '%s' is outside of base dir", fullPath)
	}
	return fullPath, nil
}
