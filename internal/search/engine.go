package search

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/antzucaro/matchr"
	"golang.org/x/sync/errgroup"

	"github.com/lumapix/lumapix/internal/photo"
)

const (
	// defaultSimilarityThreshold accepts matches down to roughly 60%
	// string similarity (about 40% dissimilarity tolerance).
	defaultSimilarityThreshold = 0.6

	// defaultMaxResults caps the ranked result list.
	defaultMaxResults = 50

	// defaultBudget is the wall-clock limit for the matching phase.
	defaultBudget = 3 * time.Second
)

// defaultWeights ranks semantic matches highest and technical matches
// lowest when combining per-category scores.
var defaultWeights = map[Category]float64{
	CategorySemantic:  1.0,
	CategoryPeople:    0.8,
	CategorySpatial:   0.7,
	CategoryTemporal:  0.6,
	CategoryTechnical: 0.4,
}

// categoryFields maps each criteria category to the indexed fields it is
// scored against. Temporal is absent: it is a time predicate, not a string
// match.
var categoryFields = map[Category][]Field{
	CategorySemantic:  {FieldKeywords, FieldObjects, FieldScenes},
	CategorySpatial:   {FieldLocation},
	CategoryPeople:    {FieldKeywords, FieldObjects},
	CategoryTechnical: {FieldCamera, FieldFileType},
}

// TimeoutError is returned when the matching phase exceeds the engine's
// performance budget. Partial ranked results are never returned.
type TimeoutError struct {
	Budget  time.Duration
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("search: matching exceeded budget of %s (elapsed %s)", e.Budget, e.Elapsed)
}

// RankedPhoto is a photo with its relevance metadata for one search.
type RankedPhoto struct {
	photo.Photo

	// RelevanceScore is the combined weighted match score in [0, 1].
	RelevanceScore float64 `json:"relevanceScore"`

	// MatchedCriteria names the criteria categories this photo matched.
	MatchedCriteria []string `json:"matchedCriteria"`

	// HighlightedFields maps field names to the indexed values that
	// triggered the match.
	HighlightedFields map[string][]string `json:"highlightedFields,omitempty"`
}

// Timing is the per-phase duration breakdown recorded for observability.
type Timing struct {
	IndexLookup time.Duration `json:"indexLookupTime"`
	FuzzyMatch  time.Duration `json:"fuzzyMatchTime"`
	Sorting     time.Duration `json:"sortingTime"`
}

// Metadata carries diagnostic information about one search execution.
type Metadata struct {
	Timing         Timing      `json:"timing"`
	CandidateCount int         `json:"candidateCount"`
	Mode           CombineMode `json:"combinationMode"`
}

// Result is one search's ranked output. Photos is ordered by RelevanceScore
// descending; equal scores keep their original index order.
type Result struct {
	Photos     []RankedPhoto `json:"photos"`
	TotalCount int           `json:"totalCount"`
	SearchTime time.Duration `json:"searchTime"`
	Query      string        `json:"query"`
	Metadata   Metadata      `json:"searchMetadata"`
}

// Option is a functional option for configuring an [Engine].
type Option func(*Engine)

// WithSimilarityThreshold sets the minimum fuzzy similarity for a term to
// count as matching a field value. Default: 0.6.
func WithSimilarityThreshold(threshold float64) Option {
	return func(e *Engine) { e.simThreshold = threshold }
}

// WithMaxResults caps the ranked result list. Default: 50.
func WithMaxResults(n int) Option {
	return func(e *Engine) { e.maxResults = n }
}

// WithBudget sets the wall-clock limit for the matching phase. Default: 3s.
func WithBudget(d time.Duration) Option {
	return func(e *Engine) { e.budget = d }
}

// WithWeights overrides the per-category combination weights. Categories
// absent from weights keep their defaults.
func WithWeights(weights map[Category]float64) Option {
	return func(e *Engine) {
		for c, w := range weights {
			e.weights[c] = w
		}
	}
}

// Engine executes fuzzy multi-field searches against a [Snapshot].
// It is stateless per call and safe for concurrent use; callers implement
// last-request-wins themselves using a request token.
type Engine struct {
	simThreshold float64
	weights      map[Category]float64
	maxResults   int
	budget       time.Duration
}

// New returns an [Engine] with the supplied options applied over defaults.
func New(opts ...Option) *Engine {
	e := &Engine{
		simThreshold: defaultSimilarityThreshold,
		weights:      make(map[Category]float64, len(defaultWeights)),
		maxResults:   defaultMaxResults,
		budget:       defaultBudget,
	}
	for c, w := range defaultWeights {
		e.weights[c] = w
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// candidate is one photo's intermediate score during matching.
type candidate struct {
	index       int
	score       float64
	matched     []string
	highlighted map[string][]string
	included    bool
}

// Search scores every indexed photo against crit and returns the ranked
// result. A nil or empty snapshot yields an empty result with TotalCount 0 —
// an empty collection is a valid state, not an error. When the matching
// phase exceeds the engine's budget, a [*TimeoutError] is returned and no
// partial ranking is surfaced.
func (e *Engine) Search(ctx context.Context, crit Criteria, snap *Snapshot) (*Result, error) {
	start := time.Now()

	mode := crit.Mode
	if !mode.IsValid() {
		mode = ModeOR
	}

	result := &Result{
		Photos: []RankedPhoto{},
		Query:  crit.Query,
		Metadata: Metadata{
			Mode: mode,
		},
	}

	populated := crit.populated()
	if snap.Count() == 0 || len(populated) == 0 {
		result.SearchTime = time.Since(start)
		return result, nil
	}

	candidates := snap.photos
	result.Metadata.CandidateCount = len(candidates)
	result.Metadata.Timing.IndexLookup = time.Since(start)

	// Matching phase: chunked fan-out across CPUs. Each worker writes only
	// its own slice range, so no mutex is needed. Workers abort as soon as
	// the budget or context expires.
	matchStart := time.Now()
	deadline := matchStart.Add(e.budget)

	scores := make([]candidate, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	workers := runtime.GOMAXPROCS(0)
	if workers > len(candidates) {
		workers = len(candidates)
	}
	chunk := (len(candidates) + workers - 1) / workers

	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > len(candidates) {
			hi = len(candidates)
		}
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				if time.Now().After(deadline) {
					return &TimeoutError{Budget: e.budget, Elapsed: time.Since(matchStart)}
				}
				scores[i] = e.scorePhoto(i, candidates[i], crit, populated, mode)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	result.Metadata.Timing.FuzzyMatch = time.Since(matchStart)

	// Ranking phase: drop excluded photos, stable-sort by score descending
	// (ties keep index order), truncate.
	sortStart := time.Now()
	ranked := make([]candidate, 0, len(scores))
	for _, c := range scores {
		if c.included {
			ranked = append(ranked, c)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	result.TotalCount = len(ranked)
	if len(ranked) > e.maxResults {
		ranked = ranked[:e.maxResults]
	}
	for _, c := range ranked {
		result.Photos = append(result.Photos, RankedPhoto{
			Photo:             candidates[c.index].photo,
			RelevanceScore:    c.score,
			MatchedCriteria:   c.matched,
			HighlightedFields: c.highlighted,
		})
	}
	result.Metadata.Timing.Sorting = time.Since(sortStart)
	result.SearchTime = time.Since(start)
	return result, nil
}

// scorePhoto evaluates one photo against every populated category and
// decides inclusion under the combination mode. A photo with zero matching
// categories is always excluded — never scored 0 and kept.
func (e *Engine) scorePhoto(index int, ip indexedPhoto, crit Criteria, populated []Category, mode CombineMode) candidate {
	c := candidate{index: index, highlighted: map[string][]string{}}

	var weighted, totalWeight float64
	matchedCount := 0

	for _, cat := range populated {
		var score float64
		switch cat {
		case CategoryTemporal:
			if crit.Temporal.Contains(ip.photo.Metadata.TakenAt) {
				score = 1.0
			}
		default:
			score = e.scoreCategory(ip, termsFor(crit, cat), categoryFields[cat], c.highlighted)
		}

		weight := e.weights[cat]
		weighted += weight * score
		totalWeight += weight
		if score > 0 {
			matchedCount++
			c.matched = append(c.matched, string(cat))
		}
	}

	switch mode {
	case ModeAND:
		c.included = matchedCount == len(populated)
	default:
		c.included = matchedCount > 0
	}
	if !c.included || totalWeight == 0 {
		return candidate{index: index}
	}

	c.score = weighted / totalWeight
	if len(c.highlighted) == 0 {
		c.highlighted = nil
	}
	return c
}

// termsFor returns the criterion terms for a string-matched category.
func termsFor(crit Criteria, cat Category) []string {
	switch cat {
	case CategorySemantic:
		return crit.Semantic
	case CategorySpatial:
		return crit.Spatial
	case CategoryPeople:
		return crit.People
	case CategoryTechnical:
		return crit.Technical
	}
	return nil
}

// scoreCategory scores terms against the given fields of one photo. The
// category score is the mean of per-term best-match scores, so a category
// where every term matches exactly scores 1.0. Matching field values are
// appended to highlighted.
func (e *Engine) scoreCategory(ip indexedPhoto, terms []string, fields []Field, highlighted map[string][]string) float64 {
	if len(terms) == 0 {
		return 0
	}

	var sum float64
	for _, term := range terms {
		best := 0.0
		var bestField Field
		var bestValue string
		for _, f := range fields {
			for _, value := range ip.fields[f] {
				if sim := e.similarity(term, value); sim > best {
					best = sim
					bestField = f
					bestValue = value
				}
			}
		}
		if best >= e.simThreshold {
			sum += best
			highlighted[string(bestField)] = appendUnique(highlighted[string(bestField)], bestValue)
		}
	}
	return sum / float64(len(terms))
}

// similarity computes the fuzzy match score of term against value: 1.0 for
// an exact match, otherwise the best of Jaro-Winkler and normalized
// Levenshtein similarity, with a floor of 0.9 for whole-substring
// containment of terms of three or more characters.
func (e *Engine) similarity(term, value string) float64 {
	if term == value {
		return 1.0
	}

	score := matchr.JaroWinkler(term, value, false)

	maxLen := len(term)
	if len(value) > maxLen {
		maxLen = len(value)
	}
	if maxLen > 0 {
		lev := 1.0 - float64(matchr.Levenshtein(term, value))/float64(maxLen)
		if lev > score {
			score = lev
		}
	}

	if len(term) >= 3 && strings.Contains(value, term) && score < 0.9 {
		score = 0.9
	}
	return score
}

// appendUnique appends v to values unless already present.
func appendUnique(values []string, v string) []string {
	for _, existing := range values {
		if existing == v {
			return values
		}
	}
	return append(values, v)
}
