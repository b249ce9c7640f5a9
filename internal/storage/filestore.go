package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// FileStore persists keys as one JSON document per key under a base directory.
type FileStore struct {
	basePath string
	mu       sync.Mutex
}

func NewFileStore(basePath string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Join(basePath, "tmp"), 0700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &FileStore{basePath: basePath}, nil
}

func (fs *FileStore) BasePath() string {
	return fs.basePath
}

func (fs *FileStore) path(id string) (string, error) {
	// only canonical UUIDs map to files, which keeps IDs out of other directories
	parsed, err := uuid.Parse(id)
	if err != nil || parsed.String() != id {
		return "", fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return filepath.Join(fs.basePath, id+".json"), nil
}

// Save writes key to a temporary file and renames it into place.
func (fs *FileStore) Save(key *StoredKey) error {
	finalPath, err := fs.path(key.ID)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(key, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode key: %w", err)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Join(fs.basePath, "tmp"), key.ID+"_*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tmp.Name()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write key file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tempPath)
		return err
	}

	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to move key file: %w", err)
	}
	return nil
}

func (fs *FileStore) Load(id string) (*StoredKey, error) {
	p, err := fs.path(id)
	if err != nil {
		return nil, err
	}
	return ReadKeyFile(p)
}

// ReadKeyFile decodes a key document written by FileStore.
func ReadKeyFile(path string) (*StoredKey, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, filepath.Base(path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	var key StoredKey
	if err := json.Unmarshal(data, &key); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	return &key, nil
}

// List returns every stored key, oldest first.
func (fs *FileStore) List() ([]*StoredKey, error) {
	entries, err := os.ReadDir(fs.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read storage directory: %w", err)
	}

	var keys []*StoredKey
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		key, err := ReadKeyFile(filepath.Join(fs.basePath, entry.Name()))
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	sortByCreation(keys)
	return keys, nil
}

func (fs *FileStore) Delete(id string) error {
	p, err := fs.path(id)
	if err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.Remove(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return fmt.Errorf("failed to delete key file: %w", err)
	}
	return nil
}
