package photo

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound is returned when a photo ID does not exist in the library.
var ErrNotFound = errors.New("photo: not found")

// ErrDuplicateID is returned when adding a photo whose ID already exists.
var ErrDuplicateID = errors.New("photo: duplicate id")

// Library is a thread-safe, in-memory photo collection.
// It is suitable for single-process use and testing.
// The zero value is ready to use.
type Library struct {
	mu     sync.RWMutex
	photos map[ID]Photo
	order  []ID // insertion order, used for stable listing
}

// NewLibrary returns an initialised [Library].
func NewLibrary() *Library {
	return &Library{
		photos: make(map[ID]Photo),
	}
}

// Add inserts a photo into the library. When the photo has no ID, a random
// one is generated. Returns the stored photo (with its final ID).
func (l *Library) Add(p Photo) (Photo, error) {
	if p.ID == "" {
		id, err := generateID()
		if err != nil {
			return Photo{}, fmt.Errorf("photo: generate id: %w", err)
		}
		p.ID = ID(id)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.photos == nil {
		l.photos = make(map[ID]Photo)
	}

	if _, exists := l.photos[p.ID]; exists {
		return Photo{}, ErrDuplicateID
	}

	l.photos[p.ID] = p
	l.order = append(l.order, p.ID)
	return p, nil
}

// Get returns the photo with the given ID, or [ErrNotFound].
func (l *Library) Get(id ID) (Photo, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	p, ok := l.photos[id]
	if !ok {
		return Photo{}, ErrNotFound
	}
	return p, nil
}

// Exists reports whether the given ID is present in the library.
func (l *Library) Exists(id ID) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.photos[id]
	return ok
}

// Remove deletes the photo with the given ID, or returns [ErrNotFound].
func (l *Library) Remove(id ID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.photos[id]; !ok {
		return ErrNotFound
	}

	delete(l.photos, id)
	for i, oid := range l.order {
		if oid == id {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	return nil
}

// List returns a snapshot of all photos in insertion order. The returned
// slice is owned by the caller; later library mutations do not affect it.
func (l *Library) List() []Photo {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Photo, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.photos[id])
	}
	return out
}

// Count returns the number of photos in the library.
func (l *Library) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.photos)
}

// BulkImport adds photos one at a time and returns the count of successfully
// added photos along with the first error encountered.
func (l *Library) BulkImport(photos []Photo) (int, error) {
	count := 0
	for _, p := range photos {
		if _, err := l.Add(p); err != nil {
			return count, fmt.Errorf("photo: bulk import at index %d (file %q): %w", count, p.Filename, err)
		}
		count++
	}
	return count, nil
}

// generateID produces a random 16-byte hex string using crypto/rand.
// The resulting string is 32 hex characters and is statistically unique.
func generateID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
