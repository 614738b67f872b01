package search_test

import (
	"testing"

	"github.com/lumapix/lumapix/internal/photo"
	"github.com/lumapix/lumapix/internal/search"
)

func TestBuildSnapshot_Cardinalities(t *testing.T) {
	t.Parallel()

	snap := search.BuildSnapshot(testPhotos())

	if snap.Count() != 3 {
		t.Fatalf("Count=%d, want 3", snap.Count())
	}
	// p1 and p2 share no keywords; five distinct keyword values total
	// (sunset, beach, mountain, hiking, city, night) = 6.
	if got := snap.FieldCardinality(search.FieldKeywords); got != 6 {
		t.Errorf("keywords cardinality=%d, want 6", got)
	}
	if got := snap.FieldCardinality(search.FieldLocation); got != 3 {
		t.Errorf("location cardinality=%d, want 3", got)
	}
	// Two jpg files map to one file type plus one png.
	if got := snap.FieldCardinality(search.FieldFileType); got != 2 {
		t.Errorf("file_type cardinality=%d, want 2", got)
	}
}

func TestIndex_EmptyUntilRebuild(t *testing.T) {
	t.Parallel()

	ix := search.NewIndex()
	if snap := ix.Snapshot(); snap != nil {
		t.Fatalf("fresh index snapshot=%v, want nil", snap)
	}

	ix.Rebuild(testPhotos())
	if ix.Snapshot().Count() != 3 {
		t.Errorf("after rebuild Count=%d, want 3", ix.Snapshot().Count())
	}
}

func TestIndex_UpdateIsCopyOnWrite(t *testing.T) {
	t.Parallel()

	ix := search.NewIndex()
	ix.Rebuild(testPhotos())
	before := ix.Snapshot()

	ix.Update(photo.Photo{
		ID:       "p4",
		Filename: "IMG_0004.jpg",
		Metadata: photo.Metadata{Keywords: []string{"dog"}},
	})

	// The old snapshot is untouched; the new one carries the new photo.
	if before.Count() != 3 {
		t.Errorf("old snapshot Count=%d, want 3 (must stay immutable)", before.Count())
	}
	after := ix.Snapshot()
	if after.Count() != 4 {
		t.Errorf("new snapshot Count=%d, want 4", after.Count())
	}
	if before == after {
		t.Error("Update did not publish a new snapshot")
	}
}

func TestIndex_UpdateReplacesExistingPhoto(t *testing.T) {
	t.Parallel()

	ix := search.NewIndex()
	ix.Rebuild(testPhotos())

	changed := testPhotos()[0]
	changed.Metadata.Keywords = []string{"storm"}
	ix.Update(changed)

	snap := ix.Snapshot()
	if snap.Count() != 3 {
		t.Fatalf("Count=%d, want 3 (replace, not append)", snap.Count())
	}
	for _, p := range snap.Photos() {
		if p.ID == "p1" && (len(p.Metadata.Keywords) != 1 || p.Metadata.Keywords[0] != "storm") {
			t.Errorf("p1 keywords=%v, want [storm]", p.Metadata.Keywords)
		}
	}
}
