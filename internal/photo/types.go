// Package photo defines the photo collection model consumed by the query
// pipeline and provides an in-memory [Library] store.
//
// Photos arrive fully annotated: the metadata record (keywords, objects,
// scenes, confidence) is produced by an external AI metadata service before
// a photo ever reaches this process. The core pipeline only reads photo
// metadata and never mutates it.
//
// Supported input formats:
//   - Native YAML library files ([LoadLibraryFile], [LoadLibraryFromReader])
//
// All store operations are safe for concurrent use.
package photo

import "time"

// ID uniquely identifies a photo within a collection.
type ID string

// Photo is a single item in the collection. The Metadata field is owned by
// the external metadata service; the pipeline treats it as read-only.
type Photo struct {
	// ID is a unique identifier. Auto-generated if empty during import.
	ID ID `yaml:"id" json:"id"`

	// Filename is the photo's original file name (e.g., "IMG_2041.jpg").
	Filename string `yaml:"filename" json:"filename"`

	// Metadata is the AI-generated semantic annotation record.
	Metadata Metadata `yaml:"metadata" json:"metadata"`
}

// Metadata is the semantic annotation record attached to every photo by the
// external metadata-generation service.
type Metadata struct {
	// Keywords are free-form descriptive labels (e.g., "sunset", "family").
	Keywords []string `yaml:"keywords" json:"keywords"`

	// Objects are detected physical objects (e.g., "dog", "bicycle").
	Objects []string `yaml:"objects" json:"objects"`

	// Scenes are detected scene categories (e.g., "beach", "forest").
	Scenes []string `yaml:"scenes" json:"scenes"`

	// Location is a human-readable place name, when known.
	Location string `yaml:"location,omitempty" json:"location,omitempty"`

	// Camera is the device model that took the photo, when known.
	Camera string `yaml:"camera,omitempty" json:"camera,omitempty"`

	// TakenAt is the capture timestamp.
	TakenAt time.Time `yaml:"taken_at" json:"taken_at"`

	// Confidence is the metadata service's overall annotation confidence
	// in [0, 1].
	Confidence float64 `yaml:"confidence" json:"confidence"`
}

// Tags is shorthand for the photo's keyword list.
func (p Photo) Tags() []string {
	return p.Metadata.Keywords
}
