package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileName is the collection file kept in the data directory.
const FileName = "tasks.json"

// FileBackend keeps the collection in one JSON file. Writes go to a temp
// file in the same directory which is then renamed over the target.
type FileBackend struct {
	path string
}

// NewFileBackend returns a backend for <dataDir>/tasks.json, creating the
// directory if needed.
func NewFileBackend(dataDir string) (*FileBackend, error) {
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileBackend{path: filepath.Join(dataDir, FileName)}, nil
}

func (b *FileBackend) Location() string { return b.path }

func (b *FileBackend) Read(_ context.Context) ([]byte, error) {
	return os.ReadFile(b.path)
}

func (b *FileBackend) Write(_ context.Context, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(b.path), "."+FileName+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, b.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return syncDir(filepath.Dir(b.path))
}

// syncDir flushes a directory so a rename inside it survives a crash.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}

func (b *FileBackend) Close() error { return nil }
