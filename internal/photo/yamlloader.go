package photo

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LibraryFile is the top-level structure of a photo library YAML file.
//
// Example:
//
//	library:
//	  name: "Summer 2025"
//	photos:
//	  - filename: "IMG_2041.jpg"
//	    metadata:
//	      keywords: [sunset, beach]
//	      scenes: [beach]
//	      location: "Lisbon"
//	      confidence: 0.92
type LibraryFile struct {
	Library LibraryMeta `yaml:"library"`
	Photos  []Photo     `yaml:"photos"`
}

// LibraryMeta holds top-level metadata for a photo library file.
type LibraryMeta struct {
	// Name is the library's display name.
	Name string `yaml:"name"`

	// Description is a free-text summary of the library.
	Description string `yaml:"description"`
}

// LoadLibraryFile reads and parses a photo library YAML file from disk.
// Returns a descriptive error if the file cannot be opened or parsed.
func LoadLibraryFile(path string) (*LibraryFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("photo: open library file %q: %w", path, err)
	}
	defer f.Close()

	lf, err := LoadLibraryFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("photo: parse library file %q: %w", path, err)
	}
	return lf, nil
}

// LoadLibraryFromReader parses library YAML from an [io.Reader].
// The reader is consumed entirely; the caller is responsible for closing it.
func LoadLibraryFromReader(r io.Reader) (*LibraryFile, error) {
	var lf LibraryFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true) // reject unknown top-level keys to catch typos
	if err := dec.Decode(&lf); err != nil {
		return nil, fmt.Errorf("photo: decode library yaml: %w", err)
	}
	return &lf, nil
}

// ImportLibrary imports all photos from a parsed [LibraryFile] into lib.
// Returns the number of photos successfully imported.
// An error from the library aborts the import and returns the count so far.
func ImportLibrary(lib *Library, file *LibraryFile) (int, error) {
	if file == nil {
		return 0, fmt.Errorf("photo: library file must not be nil")
	}
	n, err := lib.BulkImport(file.Photos)
	if err != nil {
		return n, fmt.Errorf("photo: import library %q: %w", file.Library.Name, err)
	}
	return n, nil
}
