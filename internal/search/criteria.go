package search

import (
	"strings"
	"time"

	"github.com/lumapix/lumapix/internal/query"
)

// CombineMode selects how multiple populated filter categories combine.
type CombineMode string

const (
	// ModeAND requires a nonzero match in every populated category.
	ModeAND CombineMode = "AND"

	// ModeOR requires a nonzero match in at least one populated category.
	ModeOR CombineMode = "OR"
)

// IsValid reports whether m is a recognised combination mode.
func (m CombineMode) IsValid() bool {
	return m == ModeAND || m == ModeOR
}

// Category names one filter criterion group. Categories map onto indexed
// fields: semantic covers keywords/objects/scenes, spatial covers location,
// technical covers camera and file type, and temporal is a capture-time
// range predicate.
type Category string

const (
	CategorySemantic  Category = "semantic"
	CategorySpatial   Category = "spatial"
	CategoryTemporal  Category = "temporal"
	CategoryPeople    Category = "people"
	CategoryTechnical Category = "technical"
)

// DateRange is an inclusive capture-time range.
type DateRange struct {
	From time.Time `yaml:"from" json:"from"`
	To   time.Time `yaml:"to" json:"to"`
}

// Contains reports whether t falls within the range. A zero From or To
// leaves that side unbounded.
func (r DateRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(endOfDay(r.To)) {
		return false
	}
	return true
}

// endOfDay pushes a day-granular bound to the last nanosecond of that day so
// inclusive ranges behave as users expect.
func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}

// Criteria is the engine's unified search input. Both the filter-state
// controller and the natural-language parser reduce to this form.
type Criteria struct {
	// Semantic terms are matched against keywords, objects, and scenes.
	Semantic []string

	// Spatial terms are matched against the location field.
	Spatial []string

	// People terms are matched against keywords and objects (person names
	// surface there in the metadata service's output).
	People []string

	// Technical terms are matched against camera and file type.
	Technical []string

	// Temporal restricts capture time. Nil means unrestricted.
	Temporal *DateRange

	// Mode selects AND/OR combination across populated categories.
	// Defaults to OR when empty.
	Mode CombineMode

	// Query is the original query text, echoed into the result.
	Query string
}

// populated returns the categories carrying at least one criterion,
// in stable order.
func (c Criteria) populated() []Category {
	var out []Category
	if len(c.Semantic) > 0 {
		out = append(out, CategorySemantic)
	}
	if len(c.Spatial) > 0 {
		out = append(out, CategorySpatial)
	}
	if c.Temporal != nil {
		out = append(out, CategoryTemporal)
	}
	if len(c.People) > 0 {
		out = append(out, CategoryPeople)
	}
	if len(c.Technical) > 0 {
		out = append(out, CategoryTechnical)
	}
	return out
}

// IsEmpty reports whether no category is populated.
func (c Criteria) IsEmpty() bool {
	return len(c.populated()) == 0
}

// CriteriaFromQuery reduces a parsed [query.SemanticQuery] to engine
// criteria. Natural-language queries default to OR combination: a query
// naming a place and a subject should surface photos matching either, ranked
// by how many categories they hit.
func CriteriaFromQuery(q *query.SemanticQuery) Criteria {
	c := Criteria{
		Mode:  ModeOR,
		Query: q.OriginalQuery,
	}
	for _, e := range q.Entities {
		value := strings.ToLower(e.Value)
		if e.NormalizedValue != "" {
			value = strings.ToLower(e.NormalizedValue)
		}
		switch e.Type {
		case query.EntityKeyword, query.EntityColor:
			c.Semantic = append(c.Semantic, value)
		case query.EntityLocation:
			c.Spatial = append(c.Spatial, value)
		case query.EntityPerson:
			c.People = append(c.People, value)
		case query.EntityCamera, query.EntityFileType:
			c.Technical = append(c.Technical, value)
		case query.EntityDate:
			if day, err := time.Parse("2006-01-02", value); err == nil {
				c.Temporal = &DateRange{From: day, To: day}
			}
		case query.EntityDateRange:
			if r, ok := parseRange(value); ok {
				c.Temporal = &r
			}
		}
	}
	return c
}

// parseRange parses the "YYYY-MM-DD..YYYY-MM-DD" form produced by the
// query package's date-range normalization.
func parseRange(v string) (DateRange, bool) {
	parts := strings.SplitN(v, "..", 2)
	if len(parts) != 2 {
		return DateRange{}, false
	}
	from, err1 := time.Parse("2006-01-02", parts[0])
	to, err2 := time.Parse("2006-01-02", parts[1])
	if err1 != nil || err2 != nil {
		return DateRange{}, false
	}
	return DateRange{From: from, To: to}, true
}
