package command

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/lumapix/lumapix/internal/query"
)

// template pairs an operation type with the pattern that recognises it, a
// canonical phrase used for suggestion ranking, and a parameter extractor.
type template struct {
	// opType is the operation this template produces.
	opType Type

	// pattern recognises the command in normalized text.
	pattern *regexp.Regexp

	// phrase is the canonical phrasing shown in suggestions and used for
	// nearest-template ranking of unrecognised input.
	phrase string

	// confidence is the score awarded when pattern matches.
	confidence float64

	// extract derives operation parameters from the normalized text and
	// the extracted entities. May return nil.
	extract func(text string, ents []query.Entity) map[string]any
}

var (
	formatRe = regexp.MustCompile(`\bas\s+(?:a\s+)?(zip|archive|folder|originals?|json|csv|yaml)\b`)
	tagsRe   = regexp.MustCompile(`\b(?:tag|label)\b.*?\b(?:as|with)\s+(.+)$`)
	ratingRe = regexp.MustCompile(`\b([1-5])\s*stars?\b`)
	shareRe  = regexp.MustCompile(`\bshare\b.*?\b(?:to|on|via)\s+([a-z]+)\b`)
)

// extractTarget reports which photos a command names: an explicit selection
// beats a blanket "all".
func extractTarget(text string) string {
	if strings.Contains(text, "selected") || strings.Contains(text, "these") || strings.Contains(text, "them") {
		return "selected"
	}
	if strings.Contains(text, "all") || strings.Contains(text, "everything") {
		return "all"
	}
	return ""
}

// splitList splits a free-text enumeration ("beach, summer and family")
// into trimmed items.
func splitList(s string) []string {
	s = strings.ReplaceAll(s, " and ", ",")
	parts := strings.Split(s, ",")
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// albumNameFrom pulls the album name from an extracted album entity.
func albumNameFrom(ents []query.Entity) string {
	for _, e := range ents {
		if e.Type == query.EntityAlbum {
			if e.NormalizedValue != "" {
				return e.NormalizedValue
			}
			return e.Value
		}
	}
	return ""
}

// defaultTemplates returns the built-in command template set, in match
// precedence order.
func defaultTemplates() []template {
	return []template{
		{
			opType:     TypeDelete,
			pattern:    regexp.MustCompile(`\b(?:delete|remove|trash)\b`),
			phrase:     "delete selected photos",
			confidence: 0.9,
			extract: func(text string, _ []query.Entity) map[string]any {
				params := map[string]any{}
				if target := extractTarget(text); target != "" {
					params["target"] = target
				}
				return params
			},
		},
		{
			opType:     TypeDownload,
			pattern:    regexp.MustCompile(`\bdownload\b`),
			phrase:     "download selected photos as zip",
			confidence: 0.9,
			extract: func(text string, _ []query.Entity) map[string]any {
				params := map[string]any{}
				if m := formatRe.FindStringSubmatch(text); m != nil {
					format := m[1]
					if format == "archive" {
						format = "zip"
					}
					params["format"] = format
				}
				if target := extractTarget(text); target != "" {
					params["target"] = target
				}
				return params
			},
		},
		{
			opType:     TypeTag,
			pattern:    regexp.MustCompile(`\b(?:tag|label)\b`),
			phrase:     "tag selected photos as favorites",
			confidence: 0.85,
			extract: func(text string, _ []query.Entity) map[string]any {
				params := map[string]any{}
				if m := tagsRe.FindStringSubmatch(text); m != nil {
					params["tags"] = splitList(m[1])
				}
				if target := extractTarget(text); target != "" {
					params["target"] = target
				}
				return params
			},
		},
		{
			opType:     TypeAlbumCreate,
			pattern:    regexp.MustCompile(`\b(?:create|make|new)\b.*\balbum\b|\badd\b.*\bto\b.*\balbum\b`),
			phrase:     "create an album from the selection",
			confidence: 0.85,
			extract: func(_ string, ents []query.Entity) map[string]any {
				params := map[string]any{}
				if name := albumNameFrom(ents); name != "" {
					params["album"] = name
				}
				return params
			},
		},
		{
			opType:     TypeExportMetadata,
			pattern:    regexp.MustCompile(`\bexport\b`),
			phrase:     "export metadata as json",
			confidence: 0.85,
			extract: func(text string, _ []query.Entity) map[string]any {
				params := map[string]any{"format": "json"}
				if m := formatRe.FindStringSubmatch(text); m != nil {
					params["format"] = m[1]
				}
				return params
			},
		},
		{
			opType:     TypeAnalyze,
			pattern:    regexp.MustCompile(`\b(?:analyze|analyse|reanalyze|reanalyse)\b`),
			phrase:     "analyze selected photos",
			confidence: 0.85,
			extract: func(text string, _ []query.Entity) map[string]any {
				params := map[string]any{}
				if target := extractTarget(text); target != "" {
					params["target"] = target
				}
				return params
			},
		},
		{
			opType:     TypeRate,
			pattern:    regexp.MustCompile(`\brate\b`),
			phrase:     "rate selected photos 5 stars",
			confidence: 0.85,
			extract: func(text string, _ []query.Entity) map[string]any {
				params := map[string]any{}
				if m := ratingRe.FindStringSubmatch(text); m != nil {
					rating, _ := strconv.Atoi(m[1])
					params["rating"] = rating
				}
				return params
			},
		},
		{
			opType:     TypeShare,
			pattern:    regexp.MustCompile(`\bshare\b`),
			phrase:     "share selected photos",
			confidence: 0.8,
			extract: func(text string, _ []query.Entity) map[string]any {
				params := map[string]any{}
				if m := shareRe.FindStringSubmatch(text); m != nil {
					params["destination"] = m[1]
				}
				return params
			},
		},
	}
}
