package command

import (
	"sort"

	"github.com/antzucaro/matchr"

	"github.com/lumapix/lumapix/internal/query"
)

// defaultExecuteThreshold is the confidence below which a descriptor is not
// executable and carries suggestions instead of parameters.
const defaultExecuteThreshold = 0.7

// maxSuggestions caps the nearest-template suggestion list.
const maxSuggestions = 3

// Option is a functional option for configuring a [Parser].
type Option func(*Parser)

// WithExecuteThreshold sets the confidence required for an executable
// descriptor. Default: 0.7.
func WithExecuteThreshold(threshold float64) Option {
	return func(p *Parser) { p.threshold = threshold }
}

// WithEntityParser sets the query parser whose entity-extraction step is
// shared. Default: a fresh [query.New].
func WithEntityParser(qp *query.Parser) Option {
	return func(p *Parser) { p.entities = qp }
}

// Parser maps bulk-action sentences to [Operation] descriptors. It is
// read-only after construction and safe for concurrent use.
type Parser struct {
	entities  *query.Parser
	templates []template
	threshold float64
}

// New returns a [Parser] with the built-in command templates.
func New(opts ...Option) *Parser {
	p := &Parser{
		templates: defaultTemplates(),
		threshold: defaultExecuteThreshold,
	}
	for _, o := range opts {
		o(p)
	}
	if p.entities == nil {
		p.entities = query.New()
	}
	return p
}

// Threshold returns the executable-confidence threshold.
func (p *Parser) Threshold() float64 { return p.threshold }

// ParseCommand maps text to an operation descriptor. ctx may be nil.
//
// Parsing the identical sentence with the same context always yields an
// identical {Type, Parameters} pair. When no template matches with usable
// confidence, the descriptor's Type is [TypeUnknown], its Confidence is the
// best nearest-template similarity scaled down, and Suggestions lists the
// closest known command phrasings. Context only ever populates
// SuggestedParameters — it never silently injects values into the
// Parameters of a high-confidence parse.
func (p *Parser) ParseCommand(text string, ctx *Context) Operation {
	op := Operation{
		Type:       TypeUnknown,
		Parameters: map[string]any{},
	}

	normalized := query.Normalize(text)
	if normalized == "" {
		op.Suggestions = p.nearestPhrases("")
		return op
	}

	ents := p.entities.ExtractEntities(normalized)

	// First template whose pattern matches wins; the set is ordered by
	// precedence and each type appears once, so this is deterministic.
	for _, tpl := range p.templates {
		if !tpl.pattern.MatchString(normalized) {
			continue
		}
		op.Type = tpl.opType
		op.Confidence = tpl.confidence
		if params := tpl.extract(normalized, ents); params != nil {
			op.Parameters = params
		}
		break
	}

	if op.Type == TypeUnknown {
		// Nothing matched: score the sentence against the canonical
		// phrases and return disambiguation suggestions.
		best := 0.0
		for _, tpl := range p.templates {
			if sim := matchr.JaroWinkler(normalized, tpl.phrase, false); sim > best {
				best = sim
			}
		}
		op.Confidence = best * 0.6 // similarity alone is weak evidence
		op.Suggestions = p.nearestPhrases(normalized)
		p.suggestFromContext(&op, ctx)
		return op
	}

	if op.Confidence < p.threshold {
		// Recognised but not confidently: strip parameters so the caller
		// cannot execute a guess, and offer the nearest phrasings.
		op.Parameters = map[string]any{}
		op.Suggestions = p.nearestPhrases(normalized)
		p.suggestFromContext(&op, ctx)
		return op
	}

	p.suggestMissingFromContext(&op, ctx)
	return op
}

// nearestPhrases ranks the canonical template phrases by Jaro-Winkler
// similarity to text and returns the closest few.
func (p *Parser) nearestPhrases(text string) []string {
	type ranked struct {
		phrase string
		score  float64
	}
	rs := make([]ranked, 0, len(p.templates))
	for _, tpl := range p.templates {
		rs = append(rs, ranked{phrase: tpl.phrase, score: matchr.JaroWinkler(text, tpl.phrase, false)})
	}
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].score > rs[j].score })

	n := maxSuggestions
	if n > len(rs) {
		n = len(rs)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = rs[i].phrase
	}
	return out
}

// suggestFromContext proposes context-derived parameter candidates on a
// low-confidence descriptor.
func (p *Parser) suggestFromContext(op *Operation, ctx *Context) {
	if ctx == nil {
		return
	}
	suggested := map[string]any{}
	if len(ctx.LastKeywords) > 0 {
		suggested["tags"] = append([]string(nil), ctx.LastKeywords...)
	}
	if ctx.LastLocation != "" {
		suggested["location_tag"] = ctx.LastLocation
	}
	if len(suggested) > 0 {
		op.SuggestedParameters = suggested
	}
}

// suggestMissingFromContext fills SuggestedParameters for a high-confidence
// parse only when an expected parameter is missing. The Parameters map is
// never touched.
func (p *Parser) suggestMissingFromContext(op *Operation, ctx *Context) {
	if ctx == nil {
		return
	}
	switch op.Type {
	case TypeTag:
		if _, ok := op.Parameters["tags"]; ok {
			return
		}
		p.suggestFromContext(op, ctx)
	case TypeAlbumCreate:
		if _, ok := op.Parameters["album"]; ok {
			return
		}
		if ctx.LastLocation != "" {
			op.SuggestedParameters = map[string]any{"album": ctx.LastLocation}
		}
	}
}
