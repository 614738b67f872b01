package command_test

import (
	"reflect"
	"testing"

	"github.com/lumapix/lumapix/internal/command"
)

func TestParseCommand_DownloadAsZip(t *testing.T) {
	t.Parallel()

	p := command.New()
	op := p.ParseCommand("download all selected photos as zip", nil)

	if op.Type != command.TypeDownload {
		t.Fatalf("type=%q, want download", op.Type)
	}
	if op.Confidence < 0.7 {
		t.Errorf("confidence=%f, want >= 0.7", op.Confidence)
	}
	if op.Parameters["format"] != "zip" {
		t.Errorf("format=%v, want zip", op.Parameters["format"])
	}
	if op.Parameters["target"] != "selected" {
		t.Errorf("target=%v, want selected", op.Parameters["target"])
	}
	if !op.Executable(p.Threshold()) {
		t.Error("descriptor not executable, want executable")
	}
}

func TestParseCommand_AmbiguousSentence(t *testing.T) {
	t.Parallel()

	p := command.New()
	op := p.ParseCommand("do something with these photos", nil)

	if op.Confidence >= 0.5 {
		t.Errorf("confidence=%f, want < 0.5 for an unrecognised command", op.Confidence)
	}
	if len(op.Suggestions) == 0 {
		t.Fatal("suggestions empty, want nearest command templates")
	}
	if op.Executable(p.Threshold()) {
		t.Error("ambiguous descriptor reported executable")
	}
	if len(op.Parameters) != 0 {
		t.Errorf("parameters=%v, want empty for ambiguous parse", op.Parameters)
	}
}

func TestParseCommand_TagWithList(t *testing.T) {
	t.Parallel()

	p := command.New()
	op := p.ParseCommand("tag these photos as beach, summer and family", nil)

	if op.Type != command.TypeTag {
		t.Fatalf("type=%q, want tag", op.Type)
	}
	tags, ok := op.Parameters["tags"].([]string)
	if !ok {
		t.Fatalf("tags=%v (%T), want []string", op.Parameters["tags"], op.Parameters["tags"])
	}
	want := []string{"beach", "summer", "family"}
	if !reflect.DeepEqual(tags, want) {
		t.Errorf("tags=%v, want %v", tags, want)
	}
}

func TestParseCommand_DeleteIsDestructive(t *testing.T) {
	t.Parallel()

	p := command.New()
	op := p.ParseCommand("delete all blurry photos", nil)

	if op.Type != command.TypeDelete {
		t.Fatalf("type=%q, want delete", op.Type)
	}
	if !op.Type.Destructive() {
		t.Error("delete not marked destructive")
	}
	if op.Type.Reversible() {
		t.Error("delete marked reversible, want irreversible")
	}
}

func TestParseCommand_RateExtractsStars(t *testing.T) {
	t.Parallel()

	p := command.New()
	op := p.ParseCommand("rate these 5 stars", nil)

	if op.Type != command.TypeRate {
		t.Fatalf("type=%q, want rate", op.Type)
	}
	if op.Parameters["rating"] != 5 {
		t.Errorf("rating=%v, want 5", op.Parameters["rating"])
	}
}

func TestParseCommand_AlbumNameFromEntities(t *testing.T) {
	t.Parallel()

	p := command.New()
	op := p.ParseCommand(`create an album called "summer trip"`, nil)

	if op.Type != command.TypeAlbumCreate {
		t.Fatalf("type=%q, want album_create", op.Type)
	}
	if op.Parameters["album"] != "summer trip" {
		t.Errorf("album=%v, want %q", op.Parameters["album"], "summer trip")
	}
}

func TestParseCommand_Idempotent(t *testing.T) {
	t.Parallel()

	p := command.New()
	ctx := &command.Context{LastLocation: "lisbon", LastKeywords: []string{"beach"}}
	text := "tag selected photos with holiday"

	first := p.ParseCommand(text, ctx)
	for i := 0; i < 5; i++ {
		again := p.ParseCommand(text, ctx)
		if again.Type != first.Type {
			t.Fatalf("parse %d: type=%q, want %q", i, again.Type, first.Type)
		}
		if !reflect.DeepEqual(again.Parameters, first.Parameters) {
			t.Fatalf("parse %d: parameters=%v, want %v", i, again.Parameters, first.Parameters)
		}
	}
}

func TestParseCommand_ContextBiasesOnlySuggestions(t *testing.T) {
	t.Parallel()

	p := command.New()
	ctx := &command.Context{LastLocation: "lisbon", LastKeywords: []string{"beach", "sunset"}}

	// High-confidence parse with complete parameters: context must not
	// touch Parameters or SuggestedParameters.
	complete := p.ParseCommand("tag these photos as holiday", ctx)
	if complete.Confidence < p.Threshold() {
		t.Fatalf("confidence=%f, want >= threshold", complete.Confidence)
	}
	if _, injected := complete.Parameters["location_tag"]; injected {
		t.Error("context injected a parameter into a high-confidence parse")
	}
	if complete.SuggestedParameters != nil {
		t.Errorf("suggestedParameters=%v, want none when tags are explicit", complete.SuggestedParameters)
	}

	// High-confidence tag parse with no tags named: context may suggest,
	// but Parameters stays as parsed.
	incomplete := p.ParseCommand("tag selected photos", ctx)
	if incomplete.Type != command.TypeTag {
		t.Fatalf("type=%q, want tag", incomplete.Type)
	}
	if _, injected := incomplete.Parameters["tags"]; injected {
		t.Error("context injected tags into Parameters")
	}
	if incomplete.SuggestedParameters == nil {
		t.Fatal("suggestedParameters empty, want context-derived candidates")
	}
	if got, ok := incomplete.SuggestedParameters["tags"].([]string); !ok || len(got) != 2 {
		t.Errorf("suggested tags=%v, want last-search keywords", incomplete.SuggestedParameters["tags"])
	}
}

func TestParseCommand_EmptyText(t *testing.T) {
	t.Parallel()

	p := command.New()
	op := p.ParseCommand("   ", nil)

	if op.Type != command.TypeUnknown {
		t.Errorf("type=%q, want unknown", op.Type)
	}
	if op.Confidence != 0 {
		t.Errorf("confidence=%f, want 0", op.Confidence)
	}
	if len(op.Suggestions) == 0 {
		t.Error("suggestions empty, want the known command templates")
	}
}
