package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
)

// FileStateStore keeps one file per owner key under a directory, the way a
// local wallet keeps its per-application storage.
type FileStateStore struct{ dir string }

func NewFileStateStore(dir string) *FileStateStore {
	_ = os.MkdirAll(dir, 0700)
	return &FileStateStore{dir: dir}
}

func (f *FileStateStore) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(f.dir, hex.EncodeToString(sum[:16])+".blob")
}

func (f *FileStateStore) Get(_ context.Context, key string) (string, bool, error) {
	b, err := os.ReadFile(f.path(key))
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(b), true, nil
}

func (f *FileStateStore) Put(_ context.Context, key, value string) error {
	return os.WriteFile(f.path(key), []byte(value), 0600)
}

func (f *FileStateStore) Delete(_ context.Context, key string) error {
	err := os.Remove(f.path(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
