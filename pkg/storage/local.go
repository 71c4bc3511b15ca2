package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/imgsync/imgsync/pkg/errors"
)

// Local serves images from a directory tree on disk.
type Local struct {
	root string
}

// NewLocal creates a Local store rooted at root.
func NewLocal(root string) (*Local, error) {
	if root == "" {
		return nil, fmt.Errorf("images root is required")
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.Wrap(err, "failed to stat images root")
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("images root is not a directory: %s", root)
	}
	return &Local{root: root}, nil
}

func (l *Local) List(ctx context.Context, dir string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(l.root, dir))
	if os.IsNotExist(err) {
		slog.Debug("local_dir_missing", "dir", dir)
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to list image directory")
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	return filterImages(names), nil
}

func (l *Local) Read(ctx context.Context, dir, name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(l.root, dir, name))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read image")
	}
	return data, nil
}
