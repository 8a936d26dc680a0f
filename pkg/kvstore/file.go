package kvstore

import (
	"context"
	"errors"
	"os"
	"regexp"

	"github.com/edunotas/edunotas-api/pkg/storage"
)

var safeKey = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// FileStore keeps one <key>.json file per document.
type FileStore struct {
	fs *storage.LocalStorage
}

// NewFileStore stores documents under dir.
func NewFileStore(dir string) (*FileStore, error) {
	fs, err := storage.NewLocalStorage(dir)
	if err != nil {
		return nil, err
	}
	return &FileStore{fs: fs}, nil
}

func fileName(key string) string {
	return safeKey.ReplaceAllString(key, "_") + ".json"
}

// Get reads the document file.
func (s *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	data, err := s.fs.Read(fileName(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

// Put replaces the document file atomically.
func (s *FileStore) Put(_ context.Context, key string, value []byte) error {
	_, err := s.fs.Save(fileName(key), value)
	return err
}

// Ping always succeeds once the directory exists.
func (s *FileStore) Ping(context.Context) error { return nil }

// Name identifies the driver.
func (s *FileStore) Name() string { return "file" }
