package photostore

import (
	"context"
	"slices"
	"sync"

	"github.com/lumapix/lumapix/internal/photo"
)

// Call records one store invocation for test assertions.
type Call struct {
	// Op is the operation name, e.g. "delete" or "add_tags".
	Op string

	// Photo is the photo the call targeted. Empty for selection-wide
	// operations such as "download" and "create_album".
	Photo photo.ID
}

// MockStore is an in-memory [Store] with scriptable failures, intended for
// tests. Failures can be scripted per photo or per operation; every call is
// recorded and can be inspected afterwards.
type MockStore struct {
	mu          sync.Mutex
	tags        map[photo.ID][]string
	ratings     map[photo.ID]int
	albums      map[string][]photo.ID
	deleted     map[photo.ID]bool
	shared      map[photo.ID][]string
	photoFails  map[photo.ID]error
	opFails     map[string]error
	failureOnce map[photo.ID]int
	calls       []Call
}

var _ Store = (*MockStore)(nil)

// NewMockStore returns an empty MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		tags:        map[photo.ID][]string{},
		ratings:     map[photo.ID]int{},
		albums:      map[string][]photo.ID{},
		deleted:     map[photo.ID]bool{},
		shared:      map[photo.ID][]string{},
		photoFails:  map[photo.ID]error{},
		opFails:     map[string]error{},
		failureOnce: map[photo.ID]int{},
	}
}

// FailPhoto scripts err for every subsequent operation targeting id.
func (m *MockStore) FailPhoto(id photo.ID, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.photoFails[id] = err
}

// FailPhotoTimes scripts err for the next n operations targeting id; later
// calls succeed. Useful for exercising retry behavior.
func (m *MockStore) FailPhotoTimes(id photo.ID, err error, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.photoFails[id] = err
	m.failureOnce[id] = n
}

// FailOp scripts err for every subsequent call of the named operation.
func (m *MockStore) FailOp(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opFails[op] = err
}

// Calls returns a copy of the recorded call log.
func (m *MockStore) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

// CallCount returns how many recorded calls used the named operation.
func (m *MockStore) CallCount(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Tags returns the current tag set of a photo.
func (m *MockStore) Tags(id photo.ID) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.tags[id])
}

// SeedTags sets a photo's tag set without recording a call.
func (m *MockStore) SeedTags(id photo.ID, tags []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tags[id] = slices.Clone(tags)
}

// Rating returns the current rating of a photo, 0 if unrated.
func (m *MockStore) Rating(id photo.ID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ratings[id]
}

// SeedRating sets a photo's rating without recording a call.
func (m *MockStore) SeedRating(id photo.ID, rating int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ratings[id] = rating
}

// Deleted reports whether a photo has been deleted.
func (m *MockStore) Deleted(id photo.ID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleted[id]
}

// AlbumPhotos returns the photos currently in an album and whether the
// album exists.
func (m *MockStore) AlbumPhotos(name string) ([]photo.ID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids, ok := m.albums[name]
	return slices.Clone(ids), ok
}

// record appends to the call log and resolves any scripted failure.
// Must be called with m.mu held.
func (m *MockStore) record(ctx context.Context, op string, id photo.ID) error {
	m.calls = append(m.calls, Call{Op: op, Photo: id})
	if err := ctx.Err(); err != nil {
		return err
	}
	if err, ok := m.opFails[op]; ok {
		return err
	}
	if err, ok := m.photoFails[id]; ok && id != "" {
		if n, limited := m.failureOnce[id]; limited {
			if n <= 0 {
				delete(m.photoFails, id)
				delete(m.failureOnce, id)
				return nil
			}
			m.failureOnce[id] = n - 1
		}
		return err
	}
	return nil
}

// Download implements [Store].
func (m *MockStore) Download(ctx context.Context, ids []photo.ID, format string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if err, ok := m.photoFails[id]; ok {
			m.calls = append(m.calls, Call{Op: "download"})
			return err
		}
	}
	return m.record(ctx, "download", "")
}

// AddTags implements [Store].
func (m *MockStore) AddTags(ctx context.Context, id photo.ID, tags []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(ctx, "add_tags", id); err != nil {
		return nil, err
	}
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
func (m *MockStore) SetTags(ctx context.Context, id photo.ID, tags []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(ctx, "set_tags", id); err != nil {
		return err
	}
	m.tags[id] = slices.Clone(tags)
	return nil
}

// CreateAlbum implements [Store].
func (m *MockStore) CreateAlbum(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(ctx, "create_album", ""); err != nil {
		return err
	}
	if _, ok := m.albums[name]; !ok {
		m.albums[name] = nil
	}
	return nil
}

// AddToAlbum implements [Store].
func (m *MockStore) AddToAlbum(ctx context.Context, album string, id photo.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(ctx, "add_to_album", id); err != nil {
		return err
	}
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
func (m *MockStore) RemoveFromAlbum(ctx context.Context, album string, id photo.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(ctx, "remove_from_album", id); err != nil {
		return err
	}
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
func (m *MockStore) ExportMetadata(ctx context.Context, id photo.ID, format string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record(ctx, "export_metadata", id)
}

// Analyze implements [Store].
func (m *MockStore) Analyze(ctx context.Context, id photo.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record(ctx, "analyze", id)
}

// Delete implements [Store].
func (m *MockStore) Delete(ctx context.Context, id photo.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(ctx, "delete", id); err != nil {
		return err
	}
	m.deleted[id] = true
	return nil
}

// SetRating implements [Store].
func (m *MockStore) SetRating(ctx context.Context, id photo.ID, rating int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(ctx, "set_rating", id); err != nil {
		return 0, err
	}
	if rating < 0 || rating > 5 {
		return 0, ErrInvalidRating
	}
	prev := m.ratings[id]
	if rating == 0 {
		delete(m.ratings, id)
	} else {
		m.ratings[id] = rating
	}
	return prev, nil
}

// Share implements [Store].
func (m *MockStore) Share(ctx context.Context, id photo.ID, destination string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(ctx, "share", id); err != nil {
		return err
	}
	m.shared[id] = append(m.shared[id], destination)
	return nil
}
