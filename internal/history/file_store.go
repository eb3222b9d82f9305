package history

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/soundforge/studio/internal/model"
	"github.com/spf13/afero"
)

// FileStore keeps the snapshot in a single JSON file. Saves write a temp
// file in the same directory and rename it over the target.
type FileStore struct {
	fs   afero.Fs
	path string
}

func NewFileStore(fs afero.Fs, path string) *FileStore {
	return &FileStore{fs: fs, path: path}
}

func (s *FileStore) Load(ctx context.Context) ([]model.MusicAsset, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("file: failed to read %s: %w", s.path, err)
	}
	assets, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("file: %s: %w", s.path, err)
	}
	return assets, nil
}

func (s *FileStore) Save(ctx context.Context, assets []model.MusicAsset) error {
	data, err := encode(assets)
	if err != nil {
		return fmt.Errorf("file: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("file: failed to create %s: %w", dir, err)
	}

	tmp, err := afero.TempFile(s.fs, dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("file: failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return fmt.Errorf("file: failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return fmt.Errorf("file: failed to sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("file: failed to close %s: %w", tmpName, err)
	}
	if err := s.fs.Rename(tmpName, s.path); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("file: failed to replace %s: %w", s.path, err)
	}
	return nil
}
