// Package command maps a natural-language bulk-action sentence onto a
// structured [Operation] descriptor from a closed set of operation types.
//
// The parser shares the entity-extraction step with the query package and
// ranks sentence similarity against known command templates with matchr.
// Low-confidence parses (below 0.7 by default) return a descriptor with a
// non-empty Suggestions list instead of executable parameters — callers must
// not execute such a descriptor without further disambiguation.
package command

import "github.com/lumapix/lumapix/internal/photo"

// Type is one of the closed set of bulk operation types.
type Type string

const (
	TypeDownload       Type = "download"
	TypeTag            Type = "tag"
	TypeAlbumCreate    Type = "album_create"
	TypeExportMetadata Type = "export_metadata"
	TypeAnalyze        Type = "analyze"
	TypeDelete         Type = "delete"
	TypeRate           Type = "rate"
	TypeShare          Type = "share"
	TypeUnknown        Type = "unknown"
)

// IsValid reports whether t is an executable operation type.
func (t Type) IsValid() bool {
	switch t {
	case TypeDownload, TypeTag, TypeAlbumCreate, TypeExportMetadata,
		TypeAnalyze, TypeDelete, TypeRate, TypeShare:
		return true
	}
	return false
}

// Destructive reports whether executing t discards data and therefore
// requires confirmation regardless of selection size.
func (t Type) Destructive() bool {
	return t == TypeDelete
}

// Reversible reports whether t records enough information during execution
// to invert itself afterwards.
func (t Type) Reversible() bool {
	switch t {
	case TypeTag, TypeRate, TypeAlbumCreate:
		return true
	}
	return false
}

// Operation is the structured descriptor the parser materializes from one
// user sentence.
type Operation struct {
	// Type is the classified operation, or [TypeUnknown] when no template
	// matched with usable confidence.
	Type Type `json:"type"`

	// Parameters are the extracted operation parameters (e.g., format,
	// target, tags). Empty for low-confidence parses.
	Parameters map[string]any `json:"parameters"`

	// Confidence is the parse confidence in [0, 1].
	Confidence float64 `json:"confidence"`

	// Suggestions lists the nearest-matching known command phrasings when
	// Confidence is below the parser's threshold.
	Suggestions []string `json:"suggestions,omitempty"`

	// SuggestedParameters carries context-derived parameter candidates
	// (e.g., the last-searched location as a tag). They are suggestions
	// only: the caller decides whether to adopt them. Never populated for a
	// high-confidence parse whose parameters are already complete.
	SuggestedParameters map[string]any `json:"suggestedParameters,omitempty"`

	// TargetPhotos is the photo selection the operation applies to. The
	// parser leaves it empty; callers fill it from their selection.
	TargetPhotos []photo.ID `json:"targetPhotos,omitempty"`
}

// Executable reports whether the descriptor may be handed to the executor
// without further disambiguation.
func (o Operation) Executable(threshold float64) bool {
	return o.Type.IsValid() && o.Confidence >= threshold
}

// Context carries prior-interaction hints that may bias suggested parameter
// values. It never injects parameters into a high-confidence parse.
type Context struct {
	// LastLocation is the location of the most recent search, if any.
	LastLocation string

	// LastKeywords are the keywords of the most recent search, if any.
	LastKeywords []string
}
