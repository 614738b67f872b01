package query

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Matcher extracts entities of a single type from normalized text.
//
// Matchers are registered with an explicit priority. When two matchers
// produce overlapping spans, the higher-priority match wins and the losing
// span is discarded entirely — never partially consumed.
type Matcher interface {
	// Type is the entity type this matcher produces.
	Type() EntityType

	// Priority orders matchers for overlap resolution. Higher wins.
	Priority() int

	// Match returns all entities found in text. text is already normalized
	// (lowercase, trimmed, single-spaced).
	Match(text string) []Entity
}

// ─────────────────────────────────────────────────────────────────────────────
// Regex matcher
// ─────────────────────────────────────────────────────────────────────────────

// RegexMatcher extracts entities using a compiled regular expression.
// When Group is non-zero, the entity value and span come from that capture
// group instead of the whole match.
type RegexMatcher struct {
	EntityType EntityType
	Prio       int
	Confidence float64
	Regex      *regexp.Regexp
	Group      int

	// Normalize, when non-nil, derives the canonical value from the raw
	// match. Returning "" leaves NormalizedValue empty.
	Normalize func(value string) string
}

var _ Matcher = (*RegexMatcher)(nil)

func (m *RegexMatcher) Type() EntityType { return m.EntityType }
func (m *RegexMatcher) Priority() int    { return m.Prio }

// Match implements [Matcher].
func (m *RegexMatcher) Match(text string) []Entity {
	idxs := m.Regex.FindAllStringSubmatchIndex(text, -1)
	if idxs == nil {
		return nil
	}

	entities := make([]Entity, 0, len(idxs))
	for _, loc := range idxs {
		start, end := loc[0], loc[1]
		if m.Group > 0 && 2*m.Group+1 < len(loc) && loc[2*m.Group] >= 0 {
			start, end = loc[2*m.Group], loc[2*m.Group+1]
		}
		value := text[start:end]
		e := Entity{
			Type:       m.EntityType,
			Value:      value,
			Confidence: m.Confidence,
			Span:       Span{Start: start, End: end},
		}
		if m.Normalize != nil {
			e.NormalizedValue = m.Normalize(value)
		}
		entities = append(entities, e)
	}
	return entities
}

// ─────────────────────────────────────────────────────────────────────────────
// Table matcher
// ─────────────────────────────────────────────────────────────────────────────

// TableMatcher extracts entities from a fixed vocabulary of known terms.
// Terms are matched on word boundaries; multi-word terms are supported and
// take precedence over shorter terms at the same position.
type TableMatcher struct {
	entityType EntityType
	prio       int
	confidence float64
	re         *regexp.Regexp

	// canonical maps a matched term to its canonical form. Terms mapping to
	// themselves produce an empty NormalizedValue.
	canonical map[string]string
}

var _ Matcher = (*TableMatcher)(nil)

// NewTableMatcher builds a [TableMatcher] for the given vocabulary.
// terms maps each recognisable surface form to its canonical value; use the
// same string on both sides when no normalization is needed.
func NewTableMatcher(t EntityType, priority int, confidence float64, terms map[string]string) *TableMatcher {
	surfaces := make([]string, 0, len(terms))
	for s := range terms {
		surfaces = append(surfaces, s)
	}
	// Longest-first so the regex alternation prefers multi-word terms.
	sort.Slice(surfaces, func(i, j int) bool {
		if len(surfaces[i]) != len(surfaces[j]) {
			return len(surfaces[i]) > len(surfaces[j])
		}
		return surfaces[i] < surfaces[j]
	})
	escaped := make([]string, len(surfaces))
	for i, s := range surfaces {
		escaped[i] = regexp.QuoteMeta(s)
	}
	re := regexp.MustCompile(`\b(?:` + strings.Join(escaped, "|") + `)\b`)

	return &TableMatcher{
		entityType: t,
		prio:       priority,
		confidence: confidence,
		re:         re,
		canonical:  terms,
	}
}

func (m *TableMatcher) Type() EntityType { return m.entityType }
func (m *TableMatcher) Priority() int    { return m.prio }

// Match implements [Matcher].
func (m *TableMatcher) Match(text string) []Entity {
	idxs := m.re.FindAllStringIndex(text, -1)
	if idxs == nil {
		return nil
	}
	entities := make([]Entity, 0, len(idxs))
	for _, loc := range idxs {
		value := text[loc[0]:loc[1]]
		e := Entity{
			Type:       m.entityType,
			Value:      value,
			Confidence: m.confidence,
			Span:       Span{Start: loc[0], End: loc[1]},
		}
		if canon := m.canonical[value]; canon != "" && canon != value {
			e.NormalizedValue = canon
		}
		entities = append(entities, e)
	}
	return entities
}

// ─────────────────────────────────────────────────────────────────────────────
// Relative date matcher
// ─────────────────────────────────────────────────────────────────────────────

// RelativeDateMatcher resolves phrases like "yesterday" or "last week" into
// concrete date ranges anchored at a caller-supplied clock. The clock is
// injectable so parses are deterministic in tests.
type RelativeDateMatcher struct {
	prio int
	now  func() time.Time
	re   *regexp.Regexp
}

var _ Matcher = (*RelativeDateMatcher)(nil)

var relativeDateRe = regexp.MustCompile(
	`\b(?:yesterday|today|last week|this week|last month|this month|last year|this year)\b`)

// NewRelativeDateMatcher returns a matcher anchored at now. When now is nil,
// [time.Now] is used.
func NewRelativeDateMatcher(priority int, now func() time.Time) *RelativeDateMatcher {
	if now == nil {
		now = time.Now
	}
	return &RelativeDateMatcher{prio: priority, now: now, re: relativeDateRe}
}

func (m *RelativeDateMatcher) Type() EntityType { return EntityDateRange }
func (m *RelativeDateMatcher) Priority() int    { return m.prio }

// Match implements [Matcher].
func (m *RelativeDateMatcher) Match(text string) []Entity {
	idxs := m.re.FindAllStringIndex(text, -1)
	if idxs == nil {
		return nil
	}
	entities := make([]Entity, 0, len(idxs))
	for _, loc := range idxs {
		value := text[loc[0]:loc[1]]
		from, to := resolveRelativeRange(value, m.now())
		entities = append(entities, Entity{
			Type:            EntityDateRange,
			Value:           value,
			NormalizedValue: formatRange(from, to),
			Confidence:      0.9,
			Span:            Span{Start: loc[0], End: loc[1]},
		})
	}
	return entities
}

// resolveRelativeRange maps a relative-date phrase to an inclusive [from, to]
// day range anchored at now. Weeks start on Monday.
func resolveRelativeRange(phrase string, now time.Time) (from, to time.Time) {
	day := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	}
	today := day(now)

	switch phrase {
	case "today":
		return today, today
	case "yesterday":
		y := today.AddDate(0, 0, -1)
		return y, y
	case "this week":
		monday := today.AddDate(0, 0, -mondayOffset(today))
		return monday, today
	case "last week":
		monday := today.AddDate(0, 0, -mondayOffset(today)-7)
		return monday, monday.AddDate(0, 0, 6)
	case "this month":
		first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
		return first, today
	case "last month":
		first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location()).AddDate(0, -1, 0)
		return first, first.AddDate(0, 1, -1)
	case "this year":
		first := time.Date(today.Year(), 1, 1, 0, 0, 0, 0, today.Location())
		return first, today
	case "last year":
		first := time.Date(today.Year()-1, 1, 1, 0, 0, 0, 0, today.Location())
		return first, time.Date(today.Year()-1, 12, 31, 0, 0, 0, 0, today.Location())
	}
	return today, today
}

// mondayOffset returns the number of days since the most recent Monday.
func mondayOffset(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 { // Sunday
		return 6
	}
	return wd - 1
}

// formatRange renders an inclusive day range as "YYYY-MM-DD..YYYY-MM-DD".
func formatRange(from, to time.Time) string {
	return fmt.Sprintf("%s..%s", from.Format("2006-01-02"), to.Format("2006-01-02"))
}

// ─────────────────────────────────────────────────────────────────────────────
// Keyword matcher
// ─────────────────────────────────────────────────────────────────────────────

// KeywordMatcher is the lowest-priority fallback: every word token that is
// not a stopword becomes a keyword entity. Tokens covered by a higher-
// priority entity are discarded during overlap resolution.
type KeywordMatcher struct {
	prio      int
	stopwords map[string]struct{}
}

var _ Matcher = (*KeywordMatcher)(nil)

// defaultStopwords are filler words that carry no search value on their own.
var defaultStopwords = []string{
	"a", "all", "an", "and", "any", "are", "as", "at", "by", "find", "for",
	"from", "give", "in", "is", "it", "me", "my", "near", "new", "of", "on",
	"or", "photo", "photos", "pic", "pics", "picture", "pictures", "please",
	"select", "selected", "show", "search", "some", "taken", "that", "the",
	"them", "these", "this", "those", "to", "with",
}

// NewKeywordMatcher returns a keyword matcher with the default stopword set
// plus any extra stopwords supplied.
func NewKeywordMatcher(priority int, extraStopwords ...string) *KeywordMatcher {
	sw := make(map[string]struct{}, len(defaultStopwords)+len(extraStopwords))
	for _, w := range defaultStopwords {
		sw[w] = struct{}{}
	}
	for _, w := range extraStopwords {
		sw[strings.ToLower(w)] = struct{}{}
	}
	return &KeywordMatcher{prio: priority, stopwords: sw}
}

func (m *KeywordMatcher) Type() EntityType { return EntityKeyword }
func (m *KeywordMatcher) Priority() int    { return m.prio }

var wordRe = regexp.MustCompile(`[a-z0-9]+`)

// Match implements [Matcher].
func (m *KeywordMatcher) Match(text string) []Entity {
	idxs := wordRe.FindAllStringIndex(text, -1)
	var entities []Entity
	for _, loc := range idxs {
		word := text[loc[0]:loc[1]]
		if _, stop := m.stopwords[word]; stop {
			continue
		}
		entities = append(entities, Entity{
			Type:       EntityKeyword,
			Value:      word,
			Confidence: 0.8,
			Span:       Span{Start: loc[0], End: loc[1]},
		})
	}
	return entities
}

// ─────────────────────────────────────────────────────────────────────────────
// Default matcher set
// ─────────────────────────────────────────────────────────────────────────────

// isoDate parses "2006-01-02"; slashDate parses "1/2/2006" (month first).
func normalizeSlashDate(v string) string {
	t, err := time.Parse("1/2/2006", v)
	if err != nil {
		return ""
	}
	return t.Format("2006-01-02")
}

// monthsByName maps lowercase month names to their [time.Month].
var monthsByName = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June,
	"july": time.July, "august": time.August, "september": time.September,
	"october": time.October, "november": time.November, "december": time.December,
}

// normalizeMonthYear turns "december 2024" into the month's day range.
func normalizeMonthYear(v string) string {
	fields := strings.Fields(v)
	if len(fields) != 2 {
		return ""
	}
	month, ok := monthsByName[fields[0]]
	if !ok {
		return ""
	}
	var year int
	if _, err := fmt.Sscanf(fields[1], "%d", &year); err != nil {
		return ""
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return formatRange(first, first.AddDate(0, 1, -1))
}

// DefaultMatchers returns the built-in ordered matcher set, anchored at the
// given clock for relative-date resolution. now may be nil.
//
// Priorities are spaced so callers can register their own matchers between
// the built-ins.
func DefaultMatchers(now func() time.Time) []Matcher {
	return []Matcher{
		&RegexMatcher{
			EntityType: EntityDate,
			Prio:       100,
			Confidence: 1.0,
			Regex:      regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
		},
		&RegexMatcher{
			EntityType: EntityDate,
			Prio:       95,
			Confidence: 1.0,
			Regex:      regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{4}\b`),
			Normalize:  normalizeSlashDate,
		},
		&RegexMatcher{
			EntityType: EntityDateRange,
			Prio:       90,
			Confidence: 0.95,
			Regex: regexp.MustCompile(
				`\b(?:january|february|march|april|may|june|july|august|september|october|november|december)\s+\d{4}\b`),
			Normalize: normalizeMonthYear,
		},
		NewRelativeDateMatcher(85, now),
		NewTableMatcher(EntityActionType, 80, 0.9, map[string]string{
			"download": "download",
			"delete":   "delete",
			"remove":   "delete",
			"tag":      "tag",
			"label":    "tag",
			"export":   "export_metadata",
			"analyze":  "analyze",
			"analyse":  "analyze",
			"share":    "share",
			"rate":     "rate",
		}),
		NewTableMatcher(EntityFileType, 75, 0.95, map[string]string{
			"jpg":    "jpg",
			"jpeg":   "jpg",
			"png":    "png",
			"heic":   "heic",
			"raw":    "raw",
			"dng":    "raw",
			"gif":    "gif",
			"tiff":   "tiff",
			"videos": "video",
			"video":  "video",
			"mp4":    "video",
		}),
		NewTableMatcher(EntityCamera, 70, 0.9, map[string]string{
			"iphone":    "iphone",
			"pixel":     "pixel",
			"canon":     "canon",
			"nikon":     "nikon",
			"sony":      "sony",
			"fujifilm":  "fujifilm",
			"fuji":      "fujifilm",
			"gopro":     "gopro",
			"drone":     "drone",
			"dslr":      "dslr",
			"mirrorless": "mirrorless",
		}),
		NewTableMatcher(EntityColor, 65, 0.85, map[string]string{
			"red": "red", "orange": "orange", "yellow": "yellow",
			"green": "green", "blue": "blue", "purple": "purple",
			"pink": "pink", "black": "black", "white": "white",
			"golden": "golden", "colorful": "colorful",
		}),
		&RegexMatcher{
			EntityType: EntityAlbum,
			Prio:       60,
			Confidence: 0.85,
			Regex:      regexp.MustCompile(`\balbum\s+(?:called\s+|named\s+)?"?([a-z0-9][a-z0-9 ]*?)"?(?:$|[,.!?])`),
			Group:      1,
		},
		&RegexMatcher{
			EntityType: EntityLocation,
			Prio:       50,
			Confidence: 0.7,
			Regex:      regexp.MustCompile(`\b(?:in|at|near)\s+([a-z][a-z]+(?:\s+[a-z][a-z]+)?)\b`),
			Group:      1,
		},
		&RegexMatcher{
			EntityType: EntityPerson,
			Prio:       45,
			Confidence: 0.6,
			Regex:      regexp.MustCompile(`\b(?:of|with)\s+([a-z][a-z]+)\b`),
			Group:      1,
		},
		NewKeywordMatcher(10),
	}
}
