package photostore

import (
	"context"
	"slices"
	"sync"

	"github.com/lumapix/lumapix/internal/photo"
)

// Memory is a [Store] backed by process memory. It keeps tags, ratings,
// albums, and deletion state in maps and performs no I/O, which makes it the
// default backend for local single-user setups.
type Memory struct {
	mu      sync.Mutex
	tags    map[photo.ID][]string
	ratings map[photo.ID]int
	albums  map[string][]photo.ID
	deleted map[photo.ID]bool
	shared  map[photo.ID][]string
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		tags:    map[photo.ID][]string{},
		ratings: map[photo.ID]int{},
		albums:  map[string][]photo.ID{},
		deleted: map[photo.ID]bool{},
		shared:  map[photo.ID][]string{},
	}
}

// Download implements [Store]. There is nothing to transfer for an in-memory
// collection, so it only honours cancellation.
func (m *Memory) Download(ctx context.Context, ids []photo.ID, format string) error {
	return ctx.Err()
}

// AddTags implements [Store].
func (m *Memory) AddTags(ctx context.Context, id photo.ID, tags []string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := slices.Clone(m.tags[id])
	merged := slices.Clone(m.tags[id])
	for _, t := range tags {
		if !slices.Contains(merged, t) {
			merged = append(merged, t)
		}
	}
	m.tags[id] = merged
	return prev, nil
}

// SetTags implements [Store].
func (m *Memory) SetTags(ctx context.Context, id photo.ID, tags []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tags[id] = slices.Clone(tags)
	return nil
}

// CreateAlbum implements [Store].
func (m *Memory) CreateAlbum(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.albums[name]; !ok {
		m.albums[name] = nil
	}
	return nil
}

// AddToAlbum implements [Store].
func (m *Memory) AddToAlbum(ctx context.Context, album string, id photo.ID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ids, ok := m.albums[album]
	if !ok {
		return ErrUnknownAlbum
	}
	if !slices.Contains(ids, id) {
		m.albums[album] = append(ids, id)
	}
	return nil
}

// RemoveFromAlbum implements [Store].
func (m *Memory) RemoveFromAlbum(ctx context.Context, album string, id photo.ID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ids, ok := m.albums[album]
	if !ok {
		return ErrUnknownAlbum
	}
	if i := slices.Index(ids, id); i >= 0 {
		m.albums[album] = slices.Delete(ids, i, i+1)
	}
	return nil
}

// ExportMetadata implements [Store].
func (m *Memory) ExportMetadata(ctx context.Context, id photo.ID, format string) error {
	return ctx.Err()
}

// Analyze implements [Store].
func (m *Memory) Analyze(ctx context.Context, id photo.ID) error {
	return ctx.Err()
}

// Delete implements [Store].
func (m *Memory) Delete(ctx context.Context, id photo.ID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted[id] = true
	return nil
}

// SetRating implements [Store].
func (m *Memory) SetRating(ctx context.Context, id photo.ID, rating int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if rating < 0 || rating > 5 {
		return 0, ErrInvalidRating
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.ratings[id]
	if rating == 0 {
		delete(m.ratings, id)
	} else {
		m.ratings[id] = rating
	}
	return prev, nil
}

// Share implements [Store].
func (m *Memory) Share(ctx context.Context, id photo.ID, destination string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shared[id] = append(m.shared[id], destination)
	return nil
}
