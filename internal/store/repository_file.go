package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"chatbank/pkg/banktypes"
)

// storageBlob is the persisted layout: a single blob keyed by StorageKey,
// matching the original client's storage shape.
type storageBlob struct {
	Sessions []*banktypes.Session `json:"sessions"`
}

// StorageKey is the logical key under which the session collection lives.
const StorageKey = "chatbank_social_v1"

// FileRepository persists the session collection as one JSON file.
type FileRepository struct {
	path string
}

// NewFileRepository creates a file-backed repository at path. Parent
// directories are created on first save.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{path: path}
}

// Load reads the session collection. A missing file is an empty collection.
func (r *FileRepository) Load() ([]*banktypes.Session, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session store: %w", err)
	}

	var blob storageBlob
	if err := json.Unmarshal(data, &blob); err != nil {
		return nil, fmt.Errorf("session store corrupt: %w", err)
	}
	return blob.Sessions, nil
}

// Save writes the collection via a temp file and rename, so an abrupt
// termination leaves the previous consistent state in place.
func (r *FileRepository) Save(sessions []*banktypes.Session) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0750); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	data, err := json.MarshalIndent(storageBlob{Sessions: sessions}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize sessions: %w", err)
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write session store: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("failed to replace session store: %w", err)
	}
	return nil
}
