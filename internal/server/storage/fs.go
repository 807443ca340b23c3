package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/imagehost/internal/common"
	"github.com/dmitrijs2005/imagehost/internal/filex"
)

// FSStore keeps objects as files under a root directory.
type FSStore struct {
	root string
}

func NewFSStore(root string) (*FSStore, error) {
	dir, err := filex.EnsureDir(root)
	if err != nil {
		return nil, err
	}
	return &FSStore{root: dir}, nil
}

func (s *FSStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	path, err := filex.SafeJoin(s.root, key)
	if err != nil {
		return err
	}
	return filex.WriteFileAtomic(path, func(f *os.File) error {
		_, err := io.Copy(f, r)
		return err
	})
}

func (s *FSStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	path, err := filex.SafeJoin(s.root, key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("open %s: %w", key, err)
	}
	return f, nil
}

func (s *FSStore) Delete(_ context.Context, key string) error {
	path, err := filex.SafeJoin(s.root, key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

func (s *FSStore) DeletePrefix(_ context.Context, prefix string) error {
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		if strings.HasPrefix(filepath.ToSlash(rel), prefix) {
			if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete prefix %s: %w", prefix, err)
	}
	return nil
}
