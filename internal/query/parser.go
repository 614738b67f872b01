package query

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

// defaultClarificationThreshold is the intent confidence below which the
// parser asks for clarification instead of acting.
const defaultClarificationThreshold = 0.5

// IntentRule describes how one intent is recognised.
//
// A rule scores an input by testing its Pattern against the normalized text
// and checking that every RequiredEntities type was extracted. A rule whose
// required entities are missing is disqualified regardless of its pattern.
type IntentRule struct {
	// Intent is the intent this rule produces.
	Intent IntentType

	// Pattern is tested against the normalized text. A nil pattern always
	// matches (useful for fallback rules that rely on entities only).
	Pattern *regexp.Regexp

	// RequiredEntities lists entity types that must be present for this rule
	// to qualify.
	RequiredEntities []EntityType

	// BaseConfidence is the score awarded when Pattern matches. Entity
	// support adds a small boost on top (0.05 per distinct supporting type,
	// capped at 1.0).
	BaseConfidence float64

	// FallbackConfidence is the score awarded when Pattern does not match
	// (or is nil) but all required entities are present. Zero disqualifies
	// pattern misses entirely.
	FallbackConfidence float64

	// SupportingEntities lists entity types that boost this rule's score
	// when present.
	SupportingEntities []EntityType

	// Priority breaks score ties. Higher wins; remaining ties go to the
	// rule registered first.
	Priority int
}

// clarificationTemplates holds the per-intent questions emitted when the
// winning confidence is below the clarification threshold.
var clarificationTemplates = map[IntentType][]string{
	IntentSearch: {
		"What should the photos contain (people, places, objects)?",
		"Roughly when were the photos taken?",
	},
	IntentFilter: {
		"Which filter do you want to apply (date, location, camera, file type)?",
	},
	IntentCreate: {
		"What should the new album be called?",
	},
	IntentBulkOperation: {
		"Which operation do you want to run on the selection?",
		"Should it apply to all photos or only the current selection?",
	},
	IntentUnknown: {
		"Try describing what you want to find, or which action to run on a selection.",
	},
}

// DefaultIntentRules returns the built-in intent rule set.
func DefaultIntentRules() []IntentRule {
	return []IntentRule{
		{
			Intent:             IntentBulkOperation,
			Pattern:            regexp.MustCompile(`\b(?:download|delete|remove|tag|label|export|analyz|analys|share|rate)\w*\b`),
			RequiredEntities:   []EntityType{EntityActionType},
			BaseConfidence:     0.85,
			SupportingEntities: []EntityType{EntityFileType, EntityAlbum},
			Priority:           40,
		},
		{
			Intent:             IntentCreate,
			Pattern:            regexp.MustCompile(`\b(?:create|make|new|start)\b.*\balbum\b`),
			BaseConfidence:     0.85,
			SupportingEntities: []EntityType{EntityAlbum},
			Priority:           30,
		},
		{
			Intent:             IntentFilter,
			Pattern:            regexp.MustCompile(`\b(?:filter|only|just|between|before|after|taken)\b`),
			BaseConfidence:     0.75,
			FallbackConfidence: 0.55,
			RequiredEntities:   nil,
			SupportingEntities: []EntityType{EntityDate, EntityDateRange, EntityCamera, EntityFileType, EntityLocation},
			Priority:           20,
		},
		{
			Intent:             IntentSearch,
			Pattern:            regexp.MustCompile(`\b(?:find|show|search|look|photos?|pictures?|pics?)\b`),
			BaseConfidence:     0.75,
			FallbackConfidence: 0.6,
			RequiredEntities:   []EntityType{},
			SupportingEntities: []EntityType{EntityKeyword, EntityLocation, EntityPerson, EntityColor},
			Priority:           10,
		},
	}
}

// Option is a functional option for configuring a [Parser].
type Option func(*Parser)

// WithClarificationThreshold sets the intent confidence below which parses
// are flagged for clarification. Default: 0.5.
func WithClarificationThreshold(threshold float64) Option {
	return func(p *Parser) {
		p.threshold = threshold
	}
}

// WithMatchers replaces the default matcher set. Matchers run in the order
// given; overlap resolution uses their declared priorities.
func WithMatchers(matchers ...Matcher) Option {
	return func(p *Parser) {
		p.matchers = matchers
		p.replaced = true
	}
}

// WithExtraMatchers appends matchers to the matcher set.
func WithExtraMatchers(matchers ...Matcher) Option {
	return func(p *Parser) {
		p.extra = append(p.extra, matchers...)
	}
}

// WithIntentRules replaces the intent rule set.
func WithIntentRules(rules ...IntentRule) Option {
	return func(p *Parser) {
		p.rules = rules
	}
}

// WithNow sets the clock the default matchers use to resolve relative
// dates. Intended for tests. Has no effect on a set installed via
// [WithMatchers], which brings its own clock.
func WithNow(now func() time.Time) Option {
	return func(p *Parser) {
		p.now = now
	}
}

// Parser turns free text into a [SemanticQuery]. It is read-only after
// construction and safe for concurrent use.
type Parser struct {
	matchers  []Matcher
	extra     []Matcher
	replaced  bool
	now       func() time.Time
	rules     []IntentRule
	threshold float64
}

// New returns a [Parser] with the default matchers and intent rules.
func New(opts ...Option) *Parser {
	p := &Parser{
		rules:     DefaultIntentRules(),
		threshold: defaultClarificationThreshold,
	}
	for _, o := range opts {
		o(p)
	}
	if !p.replaced {
		p.matchers = DefaultMatchers(p.now)
	}
	p.matchers = append(p.matchers, p.extra...)
	return p
}

// Parse classifies text and extracts its entities. It never returns nil.
//
// Empty or whitespace-only input yields intent [IntentUnknown] with
// confidence 0 and no entities.
func (p *Parser) Parse(text string) *SemanticQuery {
	q := &SemanticQuery{
		Intent:        IntentUnknown,
		OriginalQuery: text,
		Parameters:    map[string]any{},
	}

	normalized := Normalize(text)
	if normalized == "" {
		return q
	}

	q.Entities = p.ExtractEntities(normalized)
	q.Parameters = parametersFromEntities(q.Entities)

	type candidate struct {
		intent   IntentType
		score    float64
		priority int
		order    int
	}
	var candidates []candidate

	for i, rule := range p.rules {
		if !hasRequired(q.Entities, rule.RequiredEntities) {
			continue
		}
		score := 0.0
		if rule.Pattern != nil && rule.Pattern.MatchString(normalized) {
			score = rule.BaseConfidence
		} else if rule.Pattern == nil {
			score = rule.BaseConfidence
		} else {
			score = rule.FallbackConfidence
		}
		if score == 0 {
			continue
		}
		score += supportBoost(q.Entities, rule.SupportingEntities)
		if score > 1.0 {
			score = 1.0
		}
		candidates = append(candidates, candidate{
			intent:   rule.Intent,
			score:    score,
			priority: rule.Priority,
			order:    i,
		})
	}

	if len(candidates) == 0 {
		q.NeedsClarification = true
		q.ClarificationQuestions = clarificationTemplates[IntentUnknown]
		return q
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		if candidates[i].priority != candidates[j].priority {
			return candidates[i].priority > candidates[j].priority
		}
		return candidates[i].order < candidates[j].order
	})

	q.Intent = candidates[0].intent
	q.Confidence = candidates[0].score

	if q.Confidence < p.threshold {
		q.NeedsClarification = true
		q.ClarificationQuestions = clarificationTemplates[q.Intent]
		for _, c := range candidates[1:] {
			q.SuggestedActions = append(q.SuggestedActions, string(c.intent))
			if len(q.SuggestedActions) == 2 {
				break
			}
		}
	}

	return q
}

// ExtractEntities runs every registered matcher against the (already
// normalized) text and resolves overlapping spans by matcher priority.
// The result is sorted by span start.
//
// ExtractEntities is exported so the bulk-command parser can share the
// extraction step without re-implementing the matcher table.
func (p *Parser) ExtractEntities(normalized string) []Entity {
	type scored struct {
		Entity
		priority int
	}
	var all []scored
	for _, m := range p.matchers {
		for _, e := range m.Match(normalized) {
			all = append(all, scored{Entity: e, priority: m.Priority()})
		}
	}

	// Higher priority first; the loser of any overlap is discarded entirely.
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].priority > all[j].priority
	})

	var kept []scored
	for _, c := range all {
		conflict := false
		for _, k := range kept {
			if c.Span.overlaps(k.Span) {
				conflict = true
				break
			}
		}
		if !conflict {
			kept = append(kept, c)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Span.Start < kept[j].Span.Start
	})

	entities := make([]Entity, len(kept))
	for i, k := range kept {
		entities[i] = k.Entity
	}
	return entities
}

// Normalize lowercases text, trims surrounding whitespace, and collapses
// internal runs of whitespace to single spaces.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// hasRequired reports whether every type in required appears in entities.
func hasRequired(entities []Entity, required []EntityType) bool {
	for _, rt := range required {
		found := false
		for _, e := range entities {
			if e.Type == rt {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// supportBoost awards 0.05 per distinct supporting entity type present,
// capped at 0.15.
func supportBoost(entities []Entity, supporting []EntityType) float64 {
	present := make(map[EntityType]struct{})
	for _, e := range entities {
		present[e.Type] = struct{}{}
	}
	boost := 0.0
	for _, t := range supporting {
		if _, ok := present[t]; ok {
			boost += 0.05
		}
	}
	if boost > 0.15 {
		boost = 0.15
	}
	return boost
}

// parametersFromEntities derives flat search parameters from the extracted
// entity list. Values use the normalized form when one exists.
func parametersFromEntities(entities []Entity) map[string]any {
	params := map[string]any{}
	var keywords []string
	for _, e := range entities {
		value := e.Value
		if e.NormalizedValue != "" {
			value = e.NormalizedValue
		}
		switch e.Type {
		case EntityKeyword, EntityColor:
			keywords = append(keywords, value)
		case EntityLocation:
			params["location"] = value
		case EntityPerson:
			params["person"] = value
		case EntityCamera:
			params["camera"] = value
		case EntityFileType:
			params["file_type"] = value
		case EntityDate:
			params["date"] = value
		case EntityDateRange:
			params["date_range"] = value
		case EntityAlbum:
			params["album"] = value
		case EntityActionType:
			params["action"] = value
		}
	}
	if len(keywords) > 0 {
		params["keywords"] = keywords
	}
	return params
}
