package search_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lumapix/lumapix/internal/photo"
	"github.com/lumapix/lumapix/internal/query"
	"github.com/lumapix/lumapix/internal/search"
)

// testPhotos builds a small fixture collection with distinct metadata.
func testPhotos() []photo.Photo {
	return []photo.Photo{
		{
			ID:       "p1",
			Filename: "IMG_0001.jpg",
			Metadata: photo.Metadata{
				Keywords:   []string{"sunset", "beach"},
				Scenes:     []string{"beach"},
				Location:   "Lisbon",
				Camera:     "iPhone",
				TakenAt:    time.Date(2026, 8, 20, 19, 30, 0, 0, time.UTC),
				Confidence: 0.92,
			},
		},
		{
			ID:       "p2",
			Filename: "IMG_0002.jpg",
			Metadata: photo.Metadata{
				Keywords:   []string{"mountain", "hiking"},
				Objects:    []string{"tent"},
				Scenes:     []string{"forest"},
				Location:   "Alps",
				Camera:     "Canon",
				TakenAt:    time.Date(2026, 7, 2, 9, 0, 0, 0, time.UTC),
				Confidence: 0.88,
			},
		},
		{
			ID:       "p3",
			Filename: "IMG_0003.png",
			Metadata: photo.Metadata{
				Keywords:   []string{"city", "night"},
				Scenes:     []string{"urban"},
				Location:   "Tokyo",
				TakenAt:    time.Date(2026, 8, 25, 22, 0, 0, 0, time.UTC),
				Confidence: 0.75,
			},
		},
	}
}

func TestSearch_SunsetBeachScenario(t *testing.T) {
	t.Parallel()

	snap := search.BuildSnapshot(testPhotos())
	engine := search.New()
	parser := query.New()

	crit := search.CriteriaFromQuery(parser.Parse("sunset beach photos"))
	result, err := engine.Search(context.Background(), crit, snap)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if len(result.Photos) == 0 {
		t.Fatal("no results, want the sunset/beach photo")
	}
	top := result.Photos[0]
	if top.ID != "p1" {
		t.Fatalf("top result=%s, want p1", top.ID)
	}
	if top.RelevanceScore < 0.8 {
		t.Errorf("relevanceScore=%f, want >= 0.8", top.RelevanceScore)
	}
	if len(top.MatchedCriteria) == 0 {
		t.Error("matchedCriteria is empty")
	}
	if len(top.HighlightedFields["keywords"]) == 0 {
		t.Errorf("highlightedFields=%v, want keywords highlighted", top.HighlightedFields)
	}
}

func TestSearch_ScoresNonIncreasing(t *testing.T) {
	t.Parallel()

	snap := search.BuildSnapshot(testPhotos())
	engine := search.New()

	result, err := engine.Search(context.Background(), search.Criteria{
		Semantic: []string{"sunset", "city"},
		Mode:     search.ModeOR,
	}, snap)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for i := 1; i < len(result.Photos); i++ {
		if result.Photos[i].RelevanceScore > result.Photos[i-1].RelevanceScore {
			t.Fatalf("scores increase at %d: %f > %f",
				i, result.Photos[i].RelevanceScore, result.Photos[i-1].RelevanceScore)
		}
	}
}

func TestSearch_NoZeroScoreInclusions(t *testing.T) {
	t.Parallel()

	snap := search.BuildSnapshot(testPhotos())
	engine := search.New()

	result, err := engine.Search(context.Background(), search.Criteria{
		Semantic: []string{"sunset"},
		Mode:     search.ModeOR,
	}, snap)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, p := range result.Photos {
		if p.RelevanceScore <= 0 {
			t.Errorf("photo %s included with score %f, want > 0", p.ID, p.RelevanceScore)
		}
		if len(p.MatchedCriteria) == 0 {
			t.Errorf("photo %s included without matched criteria", p.ID)
		}
	}
	// Only p1 carries "sunset"; fuzzy matching must not drag in the others.
	if result.TotalCount != 1 {
		t.Errorf("totalCount=%d, want 1", result.TotalCount)
	}
}

func TestSearch_CombinationModes(t *testing.T) {
	t.Parallel()

	snap := search.BuildSnapshot(testPhotos())
	engine := search.New()

	// p1 is a beach photo in Lisbon; p3 matches neither "beach" nor "lisbon".
	crit := search.Criteria{
		Semantic: []string{"beach"},
		Spatial:  []string{"tokyo"},
	}

	crit.Mode = search.ModeAND
	and, err := engine.Search(context.Background(), crit, snap)
	if err != nil {
		t.Fatalf("Search AND: %v", err)
	}
	// No photo is both a beach photo and in Tokyo.
	if and.TotalCount != 0 {
		t.Errorf("AND totalCount=%d, want 0: %+v", and.TotalCount, and.Photos)
	}

	crit.Mode = search.ModeOR
	or, err := engine.Search(context.Background(), crit, snap)
	if err != nil {
		t.Fatalf("Search OR: %v", err)
	}
	// p1 matches semantically, p3 spatially.
	if or.TotalCount != 2 {
		t.Fatalf("OR totalCount=%d, want 2: %+v", or.TotalCount, or.Photos)
	}
	for _, p := range or.Photos {
		if len(p.MatchedCriteria) == 0 {
			t.Errorf("OR photo %s has no matched criteria", p.ID)
		}
	}
}

func TestSearch_TemporalFilter(t *testing.T) {
	t.Parallel()

	snap := search.BuildSnapshot(testPhotos())
	engine := search.New()

	result, err := engine.Search(context.Background(), search.Criteria{
		Temporal: &search.DateRange{
			From: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
			To:   time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
		},
		Mode: search.ModeAND,
	}, snap)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result.TotalCount != 2 {
		t.Fatalf("totalCount=%d, want 2 (p1 and p3 are from August)", result.TotalCount)
	}
}

func TestSearch_FuzzyTypoTolerance(t *testing.T) {
	t.Parallel()

	snap := search.BuildSnapshot(testPhotos())
	engine := search.New()

	// "sunst" is a transposition-ish typo of "sunset".
	result, err := engine.Search(context.Background(), search.Criteria{
		Semantic: []string{"sunst"},
		Mode:     search.ModeOR,
	}, snap)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result.TotalCount == 0 {
		t.Fatal("typo query matched nothing, want fuzzy match on sunset")
	}
	if result.Photos[0].ID != "p1" {
		t.Errorf("top result=%s, want p1", result.Photos[0].ID)
	}
}

func TestSearch_EmptySnapshot(t *testing.T) {
	t.Parallel()

	engine := search.New()

	for name, snap := range map[string]*search.Snapshot{
		"nil":   nil,
		"empty": search.BuildSnapshot(nil),
	} {
		result, err := engine.Search(context.Background(), search.Criteria{
			Semantic: []string{"sunset"},
		}, snap)
		if err != nil {
			t.Fatalf("%s snapshot: unexpected error %v", name, err)
		}
		if result.TotalCount != 0 || len(result.Photos) != 0 {
			t.Errorf("%s snapshot: got %d results, want empty", name, result.TotalCount)
		}
	}
}

func TestSearch_BudgetExceeded(t *testing.T) {
	t.Parallel()

	// Enough photos that at least one budget check runs after the deadline.
	var photos []photo.Photo
	for i := 0; i < 200; i++ {
		photos = append(photos, photo.Photo{
			ID:       photo.ID(fmt.Sprintf("p%d", i)),
			Filename: "x.jpg",
			Metadata: photo.Metadata{Keywords: []string{"sunset", "beach", "holiday"}},
		})
	}
	snap := search.BuildSnapshot(photos)
	engine := search.New(search.WithBudget(time.Nanosecond))

	_, err := engine.Search(context.Background(), search.Criteria{
		Semantic: []string{"sunset"},
		Mode:     search.ModeOR,
	}, snap)

	var te *search.TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("err=%v, want *TimeoutError", err)
	}
}

func TestSearch_MaxResultsTruncation(t *testing.T) {
	t.Parallel()

	var photos []photo.Photo
	for i := 0; i < 30; i++ {
		photos = append(photos, photo.Photo{
			ID:       photo.ID(fmt.Sprintf("p%d", i)),
			Filename: "x.jpg",
			Metadata: photo.Metadata{Keywords: []string{"sunset"}},
		})
	}
	snap := search.BuildSnapshot(photos)
	engine := search.New(search.WithMaxResults(10))

	result, err := engine.Search(context.Background(), search.Criteria{
		Semantic: []string{"sunset"},
	}, snap)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(result.Photos) != 10 {
		t.Errorf("len(photos)=%d, want 10", len(result.Photos))
	}
	if result.TotalCount != 30 {
		t.Errorf("totalCount=%d, want 30 (pre-truncation)", result.TotalCount)
	}
	// Equal scores: original index order must be preserved (stable sort).
	for i, p := range result.Photos {
		if want := photo.ID(fmt.Sprintf("p%d", i)); p.ID != want {
			t.Fatalf("photos[%d]=%s, want %s (stable tie order)", i, p.ID, want)
		}
	}
}

func TestSearch_TimingBreakdownRecorded(t *testing.T) {
	t.Parallel()

	snap := search.BuildSnapshot(testPhotos())
	engine := search.New()

	result, err := engine.Search(context.Background(), search.Criteria{
		Semantic: []string{"sunset"},
	}, snap)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result.SearchTime <= 0 {
		t.Error("SearchTime not recorded")
	}
	if result.Metadata.CandidateCount != 3 {
		t.Errorf("candidateCount=%d, want 3", result.Metadata.CandidateCount)
	}
}
