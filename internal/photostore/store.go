// Package photostore defines the storage backend that bulk operations run
// against.
//
// [Store] is the per-photo mutation surface. Backends that can fail
// intermittently wrap errors in [TransientError] so that callers can decide
// whether a retry is worthwhile; [Guarded] adds a circuit breaker in front of
// any Store so a failing backend is bypassed instead of hammered.
//
// All types are safe for concurrent use.
package photostore

import (
	"context"
	"errors"
	"fmt"

	"github.com/lumapix/lumapix/internal/photo"
)

// ErrUnknownPhoto is returned when an operation names a photo the backend
// does not hold.
var ErrUnknownPhoto = errors.New("photostore: unknown photo")

// ErrUnknownAlbum is returned when photos are added to or removed from an
// album that was never created.
var ErrUnknownAlbum = errors.New("photostore: unknown album")

// ErrInvalidRating is returned by SetRating for ratings outside 0..5.
var ErrInvalidRating = errors.New("photostore: rating must be between 0 and 5")

// Store is the backend surface bulk operations execute against.
//
// Mutations that can be undone return the previous value so callers can
// build rollback data. Implementations must be safe for concurrent use.
type Store interface {
	// Download packages the given photos in the requested format
	// (e.g. "zip", "folder", "originals").
	Download(ctx context.Context, ids []photo.ID, format string) error

	// AddTags merges tags into a photo's tag set and returns the tag set
	// as it was before the call.
	AddTags(ctx context.Context, id photo.ID, tags []string) (prev []string, err error)

	// SetTags replaces a photo's tag set wholesale.
	SetTags(ctx context.Context, id photo.ID, tags []string) error

	// CreateAlbum creates an empty album. Creating an album that already
	// exists is a no-op.
	CreateAlbum(ctx context.Context, name string) error

	// AddToAlbum adds a photo to an existing album.
	AddToAlbum(ctx context.Context, album string, id photo.ID) error

	// RemoveFromAlbum removes a photo from an album.
	RemoveFromAlbum(ctx context.Context, album string, id photo.ID) error

	// ExportMetadata writes a photo's metadata in the requested format.
	ExportMetadata(ctx context.Context, id photo.ID, format string) error

	// Analyze re-runs content analysis for a photo.
	Analyze(ctx context.Context, id photo.ID) error

	// Delete permanently removes a photo.
	Delete(ctx context.Context, id photo.ID) error

	// SetRating sets a photo's star rating (1..5) and returns the previous
	// rating, 0 if the photo was unrated. A rating of 0 clears the rating.
	SetRating(ctx context.Context, id photo.ID, rating int) (prev int, err error)

	// Share publishes a photo to the named destination.
	Share(ctx context.Context, id photo.ID, destination string) error
}

// TransientError marks a failure that may succeed on retry, such as a
// timeout or a momentarily unreachable backend.
type TransientError struct {
	// Op is the store operation that failed.
	Op string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *TransientError) Error() string {
	return fmt.Sprintf("photostore: transient %s failure: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is, or wraps, a [TransientError].
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
