// Package filterstate holds the structured filter criteria composed by the
// user and debounces their propagation to the search engine.
//
// The [Controller] owns the mutable [FilterState] exclusively. Rapid
// successive [Controller.SetFilters] calls within the debounce window
// collapse into one downstream notification carrying only the most recent
// state; [Controller.Clear] bypasses the debounce and fires immediately.
// State may be persisted to a [StateStore] on every committed change and is
// restored on construction; corrupt persisted state is discarded silently.
package filterstate

import (
	"github.com/lumapix/lumapix/internal/search"
)

// Semantic filters match against keywords, objects, and scenes.
type Semantic struct {
	Objects []string `yaml:"objects,omitempty" json:"objects,omitempty"`
	Scenes  []string `yaml:"scenes,omitempty" json:"scenes,omitempty"`
}

// Coordinates is a geographic point.
type Coordinates struct {
	Lat float64 `yaml:"lat" json:"lat"`
	Lng float64 `yaml:"lng" json:"lng"`
}

// Spatial filters match against photo location.
type Spatial struct {
	Location    string       `yaml:"location,omitempty" json:"location,omitempty"`
	Coordinates *Coordinates `yaml:"coordinates,omitempty" json:"coordinates,omitempty"`
}

// Temporal filters restrict capture time.
type Temporal struct {
	DateRange *search.DateRange `yaml:"date_range,omitempty" json:"dateRange,omitempty"`
}

// People filters match against detected person names.
type People struct {
	Names []string `yaml:"names,omitempty" json:"names,omitempty"`
}

// Technical filters match against camera and file type.
type Technical struct {
	Camera   string `yaml:"camera,omitempty" json:"camera,omitempty"`
	FileType string `yaml:"file_type,omitempty" json:"fileType,omitempty"`
}

// FilterState is the full set of structured filter criteria. The combination
// mode is a single global flag applied uniformly across all populated
// categories; it lives on the [Controller], not here.
type FilterState struct {
	Semantic  Semantic  `yaml:"semantic" json:"semantic"`
	Spatial   Spatial   `yaml:"spatial" json:"spatial"`
	Temporal  Temporal  `yaml:"temporal" json:"temporal"`
	People    People    `yaml:"people" json:"people"`
	Technical Technical `yaml:"technical" json:"technical"`
}

// IsEmpty reports whether no filter category is populated.
func (s FilterState) IsEmpty() bool {
	return len(s.Semantic.Objects) == 0 &&
		len(s.Semantic.Scenes) == 0 &&
		s.Spatial.Location == "" &&
		s.Spatial.Coordinates == nil &&
		s.Temporal.DateRange == nil &&
		len(s.People.Names) == 0 &&
		s.Technical.Camera == "" &&
		s.Technical.FileType == ""
}

// Clone returns a deep copy of s.
func (s FilterState) Clone() FilterState {
	out := s
	out.Semantic.Objects = append([]string(nil), s.Semantic.Objects...)
	out.Semantic.Scenes = append([]string(nil), s.Semantic.Scenes...)
	out.People.Names = append([]string(nil), s.People.Names...)
	if s.Spatial.Coordinates != nil {
		c := *s.Spatial.Coordinates
		out.Spatial.Coordinates = &c
	}
	if s.Temporal.DateRange != nil {
		r := *s.Temporal.DateRange
		out.Temporal.DateRange = &r
	}
	return out
}

// Criteria reduces the filter state to engine criteria under the given
// combination mode.
func (s FilterState) Criteria(mode search.CombineMode) search.Criteria {
	c := search.Criteria{Mode: mode}
	c.Semantic = append(c.Semantic, s.Semantic.Objects...)
	c.Semantic = append(c.Semantic, s.Semantic.Scenes...)
	if s.Spatial.Location != "" {
		c.Spatial = append(c.Spatial, s.Spatial.Location)
	}
	if s.Temporal.DateRange != nil {
		r := *s.Temporal.DateRange
		c.Temporal = &r
	}
	c.People = append(c.People, s.People.Names...)
	if s.Technical.Camera != "" {
		c.Technical = append(c.Technical, s.Technical.Camera)
	}
	if s.Technical.FileType != "" {
		c.Technical = append(c.Technical, s.Technical.FileType)
	}
	return c
}

// Patch is a partial filter update: nil fields leave the corresponding
// category untouched, non-nil fields replace it wholesale.
type Patch struct {
	Semantic  *Semantic
	Spatial   *Spatial
	Temporal  *Temporal
	People    *People
	Technical *Technical
}

// apply merges p into s, returning the updated state.
func (p Patch) apply(s FilterState) FilterState {
	if p.Semantic != nil {
		s.Semantic = *p.Semantic
	}
	if p.Spatial != nil {
		s.Spatial = *p.Spatial
	}
	if p.Temporal != nil {
		s.Temporal = *p.Temporal
	}
	if p.People != nil {
		s.People = *p.People
	}
	if p.Technical != nil {
		s.Technical = *p.Technical
	}
	return s
}
