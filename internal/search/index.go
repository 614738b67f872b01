// Package search implements the photo index and the fuzzy ranking engine.
//
// The index is an immutable [Snapshot] held behind an atomic pointer: every
// rebuild or single-photo update constructs a fresh snapshot and swaps the
// pointer wholesale, so in-flight searches against the old snapshot are never
// corrupted and no locks are needed on the read path.
//
// The [Engine] scores photos against [Criteria] with fuzzy string matching
// (Jaro-Winkler and normalized Levenshtein via matchr), combines per-category
// scores into one weighted relevance value, and returns results sorted by
// relevance with a per-phase timing breakdown.
package search

import (
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/lumapix/lumapix/internal/photo"
)

// Field names a searchable per-photo text field.
type Field string

const (
	FieldKeywords Field = "keywords"
	FieldObjects  Field = "objects"
	FieldScenes   Field = "scenes"
	FieldLocation Field = "location"
	FieldCamera   Field = "camera"
	FieldFileType Field = "file_type"
)

// searchFields lists every indexed field, in diagnostic output order.
var searchFields = []Field{
	FieldKeywords, FieldObjects, FieldScenes, FieldLocation, FieldCamera, FieldFileType,
}

// indexedPhoto is one photo with its pre-lowered searchable field values.
type indexedPhoto struct {
	photo  photo.Photo
	fields map[Field][]string
}

// Snapshot is an immutable searchable representation of a photo collection.
// Snapshots are never mutated after construction; see [Index].
type Snapshot struct {
	photos      []indexedPhoto
	builtAt     time.Time
	cardinality map[Field]int
}

// BuildSnapshot indexes photos into a fresh [Snapshot]. Photo order is
// preserved, which keeps result ordering stable for equal scores.
func BuildSnapshot(photos []photo.Photo) *Snapshot {
	s := &Snapshot{
		photos:      make([]indexedPhoto, 0, len(photos)),
		builtAt:     time.Now(),
		cardinality: make(map[Field]int, len(searchFields)),
	}
	seen := make(map[Field]map[string]struct{}, len(searchFields))
	for _, f := range searchFields {
		seen[f] = make(map[string]struct{})
	}

	for _, p := range photos {
		ip := indexedPhoto{photo: p, fields: make(map[Field][]string, len(searchFields))}
		ip.fields[FieldKeywords] = lowerAll(p.Metadata.Keywords)
		ip.fields[FieldObjects] = lowerAll(p.Metadata.Objects)
		ip.fields[FieldScenes] = lowerAll(p.Metadata.Scenes)
		if p.Metadata.Location != "" {
			ip.fields[FieldLocation] = []string{strings.ToLower(p.Metadata.Location)}
		}
		if p.Metadata.Camera != "" {
			ip.fields[FieldCamera] = []string{strings.ToLower(p.Metadata.Camera)}
		}
		if ext := fileType(p.Filename); ext != "" {
			ip.fields[FieldFileType] = []string{ext}
		}
		for f, values := range ip.fields {
			for _, v := range values {
				seen[f][v] = struct{}{}
			}
		}
		s.photos = append(s.photos, ip)
	}

	for _, f := range searchFields {
		s.cardinality[f] = len(seen[f])
	}
	return s
}

// Count returns the number of indexed photos.
func (s *Snapshot) Count() int {
	if s == nil {
		return 0
	}
	return len(s.photos)
}

// BuiltAt returns the snapshot construction time.
func (s *Snapshot) BuiltAt() time.Time { return s.builtAt }

// FieldCardinality returns the number of distinct values indexed for f.
// Intended for diagnostics.
func (s *Snapshot) FieldCardinality(f Field) int {
	if s == nil {
		return 0
	}
	return s.cardinality[f]
}

// Photos returns the indexed photos in index order.
func (s *Snapshot) Photos() []photo.Photo {
	if s == nil {
		return nil
	}
	out := make([]photo.Photo, len(s.photos))
	for i, ip := range s.photos {
		out[i] = ip.photo
	}
	return out
}

// Index holds the current [Snapshot] behind an atomic pointer. Mutation is
// copy-on-write: [Index.Rebuild] and [Index.Update] construct a new snapshot
// and replace the pointer atomically, so concurrent readers always observe a
// complete snapshot. Index is safe for concurrent use.
type Index struct {
	snap atomic.Pointer[Snapshot]
}

// NewIndex returns an empty [Index]. Until the first Rebuild, Snapshot
// returns nil and searches produce empty results.
func NewIndex() *Index {
	return &Index{}
}

// Snapshot returns the current snapshot, or nil when nothing has been
// indexed yet.
func (ix *Index) Snapshot() *Snapshot {
	return ix.snap.Load()
}

// Rebuild indexes photos from scratch and atomically publishes the result.
func (ix *Index) Rebuild(photos []photo.Photo) *Snapshot {
	s := BuildSnapshot(photos)
	ix.snap.Store(s)
	return s
}

// Update publishes a new snapshot with p added, or replaced when a photo
// with the same ID is already indexed. In-flight reads against the previous
// snapshot are unaffected.
func (ix *Index) Update(p photo.Photo) *Snapshot {
	old := ix.snap.Load()

	var photos []photo.Photo
	if old != nil {
		photos = old.Photos()
	}
	replaced := false
	for i := range photos {
		if photos[i].ID == p.ID {
			photos[i] = p
			replaced = true
			break
		}
	}
	if !replaced {
		photos = append(photos, p)
	}

	s := BuildSnapshot(photos)
	ix.snap.Store(s)
	return s
}

// lowerAll lowercases every string in values.
func lowerAll(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(v)
	}
	return out
}

// fileType derives the lowercase file type from a filename extension,
// mapping common aliases to their canonical form.
func fileType(filename string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	switch ext {
	case "jpeg":
		return "jpg"
	case "dng":
		return "raw"
	case "mp4", "mov":
		return "video"
	}
	return ext
}
