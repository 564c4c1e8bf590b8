package store

import (
	"encoding/json"
	"sync"

	"chatbank/pkg/banktypes"
)

// MemoryRepository keeps the session collection in process memory. Used by
// tests and as a fallback when no storage path is usable.
type MemoryRepository struct {
	mu   sync.Mutex
	blob []byte

	// FailSave, when set, makes Save return its error. Tests use it to
	// exercise the log-and-swallow persistence path.
	FailSave error
	// Corrupt, when set, makes Load return unparseable state.
	Corrupt bool

	SaveCount int
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

// Load round-trips through JSON so stored sessions are as decoupled from the
// caller as a real storage medium would make them.
func (r *MemoryRepository) Load() ([]*banktypes.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Corrupt {
		var blob storageBlob
		return nil, json.Unmarshal([]byte("{not json"), &blob)
	}
	if r.blob == nil {
		return nil, nil
	}
	var blob storageBlob
	if err := json.Unmarshal(r.blob, &blob); err != nil {
		return nil, err
	}
	return blob.Sessions, nil
}

// Save serializes and retains the collection.
func (r *MemoryRepository) Save(sessions []*banktypes.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailSave != nil {
		return r.FailSave
	}
	data, err := json.Marshal(storageBlob{Sessions: sessions})
	if err != nil {
		return err
	}
	r.blob = data
	r.SaveCount++
	return nil
}
