package filterstate

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// StateStore is a durable key-value slot for serialized filter state.
type StateStore interface {
	// Save overwrites the slot.
	Save(data []byte) error

	// Load returns the slot's contents. A missing slot returns (nil, nil).
	Load() ([]byte, error)
}

// FileStore persists filter state to a single file. Writes go through a
// temp file plus rename so a crash mid-write cannot leave a torn state.
type FileStore struct {
	path string
}

var _ StateStore = (*FileStore)(nil)

// NewFileStore returns a [FileStore] backed by path. The parent directory
// must exist.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Save implements [StateStore].
func (f *FileStore) Save(data []byte) error {
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("filterstate: write %q: %w", tmp, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("filterstate: rename %q: %w", f.path, err)
	}
	return nil
}

// Load implements [StateStore].
func (f *FileStore) Load() ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("filterstate: read %q: %w", f.path, err)
	}
	return data, nil
}

// Path returns the backing file path.
func (f *FileStore) Path() string { return filepath.Clean(f.path) }

// MemStore is an in-memory [StateStore] for tests.
type MemStore struct {
	mu   sync.Mutex
	data []byte
}

var _ StateStore = (*MemStore)(nil)

// Save implements [StateStore].
func (m *MemStore) Save(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), data...)
	return nil
}

// Load implements [StateStore].
func (m *MemStore) Load() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, nil
	}
	return append([]byte(nil), m.data...), nil
}
