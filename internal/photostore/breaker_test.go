package photostore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lumapix/lumapix/internal/photo"
	"github.com/lumapix/lumapix/internal/photostore"
)

// manualClock is a stepping time source for breaker tests.
type manualClock struct {
	now time.Time
}

func (c *manualClock) Now() time.Time          { return c.now }
func (c *manualClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestBreaker(clock *manualClock) *photostore.Breaker {
	return photostore.NewBreaker(photostore.BreakerConfig{
		Name:        "test",
		TripAfter:   3,
		Cooldown:    time.Minute,
		ProbeBudget: 2,
		Clock:       clock.Now,
	})
}

func TestBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	clock := &manualClock{now: time.Now()}
	b := newTestBreaker(clock)
	boom := errors.New("backend down")

	for i := 0; i < 3; i++ {
		if err := b.Do(func() error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("call %d: err=%v, want scripted failure", i, err)
		}
	}
	if got := b.State(); got != photostore.BreakerOpen {
		t.Fatalf("state=%v, want open", got)
	}

	// Open breaker rejects without calling the backend.
	called := false
	err := b.Do(func() error { called = true; return nil })
	if !errors.Is(err, photostore.ErrBackendUnavailable) {
		t.Errorf("err=%v, want ErrBackendUnavailable", err)
	}
	if called {
		t.Error("backend called while breaker open")
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	t.Parallel()

	clock := &manualClock{now: time.Now()}
	b := newTestBreaker(clock)
	boom := errors.New("flaky")

	b.Do(func() error { return boom })
	b.Do(func() error { return boom })
	b.Do(func() error { return nil })
	b.Do(func() error { return boom })
	b.Do(func() error { return boom })

	if got := b.State(); got != photostore.BreakerClosed {
		t.Errorf("state=%v, want closed after interleaved success", got)
	}
}

func TestBreaker_ClosesAfterSuccessfulProbes(t *testing.T) {
	t.Parallel()

	clock := &manualClock{now: time.Now()}
	b := newTestBreaker(clock)
	boom := errors.New("backend down")

	for i := 0; i < 3; i++ {
		b.Do(func() error { return boom })
	}
	clock.Advance(time.Minute)
	if got := b.State(); got != photostore.BreakerHalfOpen {
		t.Fatalf("state=%v, want half-open after cooldown", got)
	}

	for i := 0; i < 2; i++ {
		if err := b.Do(func() error { return nil }); err != nil {
			t.Fatalf("probe %d: err=%v, want nil", i, err)
		}
	}
	if got := b.State(); got != photostore.BreakerClosed {
		t.Errorf("state=%v, want closed after successful probes", got)
	}
}

func TestBreaker_ReopensOnProbeFailure(t *testing.T) {
	t.Parallel()

	clock := &manualClock{now: time.Now()}
	b := newTestBreaker(clock)
	boom := errors.New("backend down")

	for i := 0; i < 3; i++ {
		b.Do(func() error { return boom })
	}
	clock.Advance(time.Minute)

	if err := b.Do(func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("probe err=%v, want scripted failure", err)
	}
	if got := b.State(); got != photostore.BreakerOpen {
		t.Errorf("state=%v, want open after failed probe", got)
	}
	if err := b.Do(func() error { return nil }); !errors.Is(err, photostore.ErrBackendUnavailable) {
		t.Errorf("err=%v, want ErrBackendUnavailable before next cooldown", err)
	}
}

func TestGuarded_PassesThroughAndTrips(t *testing.T) {
	t.Parallel()

	store := photostore.NewMockStore()
	store.FailPhoto("bad", &photostore.TransientError{Op: "delete", Err: errors.New("io timeout")})
	clock := &manualClock{now: time.Now()}
	g := photostore.Guard(store, newTestBreaker(clock))
	ctx := context.Background()

	if err := g.Delete(ctx, "ok"); err != nil {
		t.Fatalf("Delete(ok) err=%v", err)
	}
	if !store.Deleted("ok") {
		t.Error("delete did not reach the backend")
	}

	for i := 0; i < 3; i++ {
		if err := g.Delete(ctx, "bad"); !photostore.IsTransient(err) {
			t.Fatalf("call %d: err=%v, want transient", i, err)
		}
	}
	if err := g.Delete(ctx, "ok"); !errors.Is(err, photostore.ErrBackendUnavailable) {
		t.Errorf("err=%v, want ErrBackendUnavailable once tripped", err)
	}
	if got := store.CallCount("delete"); got != 4 {
		t.Errorf("backend delete calls=%d, want 4", got)
	}
}

func TestGuarded_AddTagsReturnsPrevious(t *testing.T) {
	t.Parallel()

	store := photostore.NewMockStore()
	store.SeedTags("p1", []string{"beach"})
	g := photostore.Guard(store, nil)

	prev, err := g.AddTags(context.Background(), "p1", []string{"sunset"})
	if err != nil {
		t.Fatalf("AddTags err=%v", err)
	}
	if len(prev) != 1 || prev[0] != "beach" {
		t.Errorf("prev=%v, want [beach]", prev)
	}
	if got := store.Tags("p1"); len(got) != 2 {
		t.Errorf("tags=%v, want beach+sunset", got)
	}
}

func TestMockStore_RatingRoundTrip(t *testing.T) {
	t.Parallel()

	store := photostore.NewMockStore()
	ctx := context.Background()

	prev, err := store.SetRating(ctx, "p1", 4)
	if err != nil || prev != 0 {
		t.Fatalf("SetRating=(%d,%v), want (0,nil)", prev, err)
	}
	prev, err = store.SetRating(ctx, "p1", 5)
	if err != nil || prev != 4 {
		t.Fatalf("SetRating=(%d,%v), want (4,nil)", prev, err)
	}
	// 0 clears the rating, restoring the unrated state.
	if _, err = store.SetRating(ctx, "p1", 0); err != nil {
		t.Fatalf("SetRating(0) err=%v", err)
	}
	if got := store.Rating("p1"); got != 0 {
		t.Errorf("rating=%d, want cleared", got)
	}
	if _, err := store.SetRating(ctx, "p1", 6); !errors.Is(err, photostore.ErrInvalidRating) {
		t.Errorf("err=%v, want ErrInvalidRating", err)
	}
}

func TestMockStore_AlbumMembership(t *testing.T) {
	t.Parallel()

	store := photostore.NewMockStore()
	ctx := context.Background()

	if err := store.AddToAlbum(ctx, "trip", "p1"); !errors.Is(err, photostore.ErrUnknownAlbum) {
		t.Fatalf("err=%v, want ErrUnknownAlbum before creation", err)
	}
	if err := store.CreateAlbum(ctx, "trip"); err != nil {
		t.Fatalf("CreateAlbum err=%v", err)
	}
	for _, id := range []photo.ID{"p1", "p2", "p1"} {
		if err := store.AddToAlbum(ctx, "trip", id); err != nil {
			t.Fatalf("AddToAlbum(%s) err=%v", id, err)
		}
	}
	ids, ok := store.AlbumPhotos("trip")
	if !ok || len(ids) != 2 {
		t.Errorf("album=%v (exists=%t), want 2 unique members", ids, ok)
	}
	if err := store.RemoveFromAlbum(ctx, "trip", "p1"); err != nil {
		t.Fatalf("RemoveFromAlbum err=%v", err)
	}
	if ids, _ := store.AlbumPhotos("trip"); len(ids) != 1 || ids[0] != "p2" {
		t.Errorf("album=%v, want [p2]", ids)
	}
}

func TestMockStore_FailPhotoTimes(t *testing.T) {
	t.Parallel()

	store := photostore.NewMockStore()
	store.FailPhotoTimes("p1", &photostore.TransientError{Op: "analyze", Err: errors.New("busy")}, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := store.Analyze(ctx, "p1"); !photostore.IsTransient(err) {
			t.Fatalf("call %d: err=%v, want transient", i, err)
		}
	}
	if err := store.Analyze(ctx, "p1"); err != nil {
		t.Errorf("err=%v, want success after scripted failures", err)
	}
}
