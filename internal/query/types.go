// Package query implements the natural-language query parser: entity
// extraction and intent classification over free-text photo queries.
//
// Parsing is fully deterministic — the same text against the same registered
// matcher and rule set always yields the same result, and no network calls
// are made. Entities are extracted by an ordered, explicitly prioritized
// list of matchers implementing the common [Matcher] interface; overlapping
// matches are resolved by priority, the losing span being discarded
// entirely. Intents are resolved by [IntentRule] patterns that may require
// specific entity types to be present.
package query

// EntityType classifies an extracted entity.
type EntityType string

const (
	EntityDate       EntityType = "date"
	EntityDateRange  EntityType = "date_range"
	EntityKeyword    EntityType = "keyword"
	EntityLocation   EntityType = "location"
	EntityPerson     EntityType = "person"
	EntityColor      EntityType = "color"
	EntityCamera     EntityType = "camera"
	EntityFileType   EntityType = "file_type"
	EntityAlbum      EntityType = "album"
	EntityActionType EntityType = "action_type"
)

// IsValid reports whether t is a recognised entity type.
func (t EntityType) IsValid() bool {
	switch t {
	case EntityDate, EntityDateRange, EntityKeyword, EntityLocation,
		EntityPerson, EntityColor, EntityCamera, EntityFileType,
		EntityAlbum, EntityActionType:
		return true
	}
	return false
}

// IntentType classifies the purpose of a natural-language input.
type IntentType string

const (
	IntentSearch        IntentType = "search"
	IntentFilter        IntentType = "filter"
	IntentCreate        IntentType = "create"
	IntentBulkOperation IntentType = "bulk_operation"
	IntentUnknown       IntentType = "unknown"
)

// IsValid reports whether i is a recognised intent type.
func (i IntentType) IsValid() bool {
	switch i {
	case IntentSearch, IntentFilter, IntentCreate, IntentBulkOperation, IntentUnknown:
		return true
	}
	return false
}

// Span marks the byte range [Start, End) of a match within the normalized
// input text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// overlaps reports whether s and o share at least one byte.
func (s Span) overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}

// Entity is a typed, spanned value extracted from natural-language text.
// Entities are produced fresh on every parse call and are never persisted.
type Entity struct {
	// Type classifies the entity.
	Type EntityType `json:"type"`

	// Value is the matched text exactly as it appears in the normalized input.
	Value string `json:"value"`

	// NormalizedValue is a canonical form of Value when one exists
	// (e.g., an ISO date for a spelled-out date). Empty when Value is
	// already canonical.
	NormalizedValue string `json:"normalizedValue,omitempty"`

	// Confidence is the matcher's confidence in [0, 1]. Exact matches
	// (e.g., an ISO date) score 1.0; fuzzy or inferred matches score lower.
	Confidence float64 `json:"confidence"`

	// Span locates the match within the normalized input.
	Span Span `json:"span"`
}

// SemanticQuery is the result of one parse invocation. It is ephemeral:
// callers consume it and throw it away.
type SemanticQuery struct {
	// Intent is the winning intent classification.
	Intent IntentType `json:"intent"`

	// Entities are all extracted entities after overlap resolution, in
	// span order.
	Entities []Entity `json:"entities"`

	// Confidence is the winning intent's score in [0, 1].
	Confidence float64 `json:"confidence"`

	// Parameters are derived key-value pairs usable directly as search
	// criteria (e.g., "location", "keywords", "date_range").
	Parameters map[string]any `json:"parameters"`

	// SuggestedActions names the next-best candidate intents when the
	// winning intent's confidence is low.
	SuggestedActions []string `json:"suggestedActions,omitempty"`

	// OriginalQuery is the caller's text before normalization.
	OriginalQuery string `json:"originalQuery"`

	// NeedsClarification is set when Confidence fell below the parser's
	// clarification threshold.
	NeedsClarification bool `json:"needsClarification,omitempty"`

	// ClarificationQuestions are template questions for the winning intent,
	// populated only when NeedsClarification is set.
	ClarificationQuestions []string `json:"clarificationQuestions,omitempty"`
}

// EntitiesOfType returns all entities of the given type, in span order.
func (q *SemanticQuery) EntitiesOfType(t EntityType) []Entity {
	var out []Entity
	for _, e := range q.Entities {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
