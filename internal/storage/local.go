package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/chartmuseum/storage"
)

// LocalClient stores objects below a directory using chartmuseum's filesystem backend.
type LocalClient struct {
	root    string
	backend storage.Backend
}

// NewLocalClient roots the store at dir.
func NewLocalClient(dir string) (*LocalClient, error) {
	if dir == "" {
		return nil, fmt.Errorf("local storage directory must be provided")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed creating storage directory %s: %w", dir, err)
	}
	return &LocalClient{root: dir, backend: storage.NewLocalFilesystemBackend(dir)}, nil
}

// ListObjects walks the tree below prefix, matching keys by string prefix like an object store.
// The filesystem backend only lists one directory level, so nested keys are walked here.
func (c *LocalClient) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	prefix = strings.Trim(filepath.ToSlash(prefix), "/")

	start := c.root
	if prefix != "" {
		start = filepath.Join(c.root, filepath.FromSlash(prefix))
		if info, err := os.Stat(start); err != nil || !info.IsDir() {
			start = filepath.Dir(start)
		}
	}

	results := make([]ObjectInfo, 0)
	err := filepath.WalkDir(start, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(c.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}

		info, err := entry.Info()
		if err != nil {
			return err
		}
		results = append(results, ObjectInfo{Key: key, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("local list failed: %w", err)
	}
	return results, nil
}

func (c *LocalClient) DownloadObject(ctx context.Context, key, destPath string) error {
	object, err := c.backend.GetObject(key)
	if err != nil {
		return fmt.Errorf("local download %s failed: %w", key, err)
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("failed creating directory for %s: %w", destPath, err)
	}
	return os.WriteFile(destPath, object.Content, 0o644)
}

func (c *LocalClient) UploadObject(ctx context.Context, key string, data []byte) error {
	if err := c.backend.PutObject(key, data); err != nil {
		return fmt.Errorf("local upload failed: %w", err)
	}
	return nil
}

var _ ObjectStorage = (*LocalClient)(nil)
