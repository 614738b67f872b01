package filterstate_test

import (
	"reflect"
	"testing"
	"time"

	"github.com/lumapix/lumapix/internal/filterstate"
	"github.com/lumapix/lumapix/internal/search"
)

func TestDebounce_CollapsesRapidCalls(t *testing.T) {
	t.Parallel()

	sched := &filterstate.ManualScheduler{}
	c := filterstate.NewController(filterstate.WithTimerFactory(sched.Schedule))

	var calls int
	var last filterstate.FilterState
	c.Subscribe(func(s filterstate.FilterState, _ search.CombineMode) {
		calls++
		last = s
	})

	// Five rapid updates inside one window.
	for _, loc := range []string{"a", "b", "c", "d", "lisbon"} {
		c.SetFilters(filterstate.Patch{Spatial: &filterstate.Spatial{Location: loc}})
	}
	if calls != 0 {
		t.Fatalf("notified %d times before window elapsed, want 0", calls)
	}

	sched.FireAll()

	if calls != 1 {
		t.Fatalf("notified %d times, want exactly 1", calls)
	}
	if last.Spatial.Location != "lisbon" {
		t.Errorf("propagated location=%q, want the final state %q", last.Spatial.Location, "lisbon")
	}
}

func TestClear_BypassesDebounce(t *testing.T) {
	t.Parallel()

	sched := &filterstate.ManualScheduler{}
	c := filterstate.NewController(filterstate.WithTimerFactory(sched.Schedule))

	var calls int
	var last filterstate.FilterState
	c.Subscribe(func(s filterstate.FilterState, _ search.CombineMode) {
		calls++
		last = s
	})

	c.SetFilters(filterstate.Patch{Spatial: &filterstate.Spatial{Location: "lisbon"}})
	c.Clear()

	if calls != 1 {
		t.Fatalf("Clear notified %d times, want 1 immediate notification", calls)
	}
	if !last.IsEmpty() {
		t.Errorf("Clear propagated non-empty state: %+v", last)
	}

	// The pending debounced notification was superseded; firing the stale
	// timers must not deliver it.
	sched.FireAll()
	if calls != 1 {
		t.Errorf("stale debounce fired after Clear: %d notifications, want 1", calls)
	}
}

func TestToggleCombinationMode(t *testing.T) {
	t.Parallel()

	c := filterstate.NewController(filterstate.WithTimerFactory((&filterstate.ManualScheduler{}).Schedule))

	if _, mode := c.State(); mode != search.ModeAND {
		t.Fatalf("initial mode=%q, want AND", mode)
	}
	if got := c.ToggleCombinationMode(); got != search.ModeOR {
		t.Errorf("after toggle mode=%q, want OR", got)
	}
	if got := c.ToggleCombinationMode(); got != search.ModeAND {
		t.Errorf("after second toggle mode=%q, want AND", got)
	}
}

func TestUnsubscribe(t *testing.T) {
	t.Parallel()

	sched := &filterstate.ManualScheduler{}
	c := filterstate.NewController(filterstate.WithTimerFactory(sched.Schedule))

	var calls int
	unsub := c.Subscribe(func(filterstate.FilterState, search.CombineMode) { calls++ })
	unsub()

	c.SetFilters(filterstate.Patch{Spatial: &filterstate.Spatial{Location: "x"}})
	sched.FireAll()

	if calls != 0 {
		t.Errorf("unsubscribed listener called %d times, want 0", calls)
	}
}

func TestPersistence_RoundTrip(t *testing.T) {
	t.Parallel()

	store := &filterstate.MemStore{}
	sched := &filterstate.ManualScheduler{}

	want := filterstate.FilterState{
		Semantic: filterstate.Semantic{Objects: []string{"dog"}, Scenes: []string{"beach"}},
		Spatial:  filterstate.Spatial{Location: "Lisbon"},
		Temporal: filterstate.Temporal{DateRange: &search.DateRange{
			From: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
			To:   time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
		}},
		Technical: filterstate.Technical{Camera: "canon", FileType: "jpg"},
	}

	c := filterstate.NewController(
		filterstate.WithStore(store),
		filterstate.WithTimerFactory(sched.Schedule),
	)
	c.SetFilters(filterstate.Patch{
		Semantic:  &want.Semantic,
		Spatial:   &want.Spatial,
		Temporal:  &want.Temporal,
		Technical: &want.Technical,
	})
	c.ToggleCombinationMode() // persist OR

	// A fresh controller over the same store must restore the exact state.
	restored := filterstate.NewController(
		filterstate.WithStore(store),
		filterstate.WithTimerFactory(sched.Schedule),
	)
	state, mode := restored.State()

	if !reflect.DeepEqual(state, want) {
		t.Errorf("restored state:\n got %+v\nwant %+v", state, want)
	}
	if mode != search.ModeOR {
		t.Errorf("restored mode=%q, want OR", mode)
	}
}

func TestPersistence_CorruptStateDiscarded(t *testing.T) {
	t.Parallel()

	store := &filterstate.MemStore{}
	if err := store.Save([]byte("[not: valid: yaml")); err != nil {
		t.Fatal(err)
	}

	c := filterstate.NewController(filterstate.WithStore(store))
	state, mode := c.State()

	if !state.IsEmpty() {
		t.Errorf("corrupt store produced non-empty state: %+v", state)
	}
	if mode != search.ModeAND {
		t.Errorf("corrupt store changed mode: %q, want default AND", mode)
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	t.Parallel()

	path := t.TempDir() + "/filters.yaml"
	fs := filterstate.NewFileStore(path)

	if data, err := fs.Load(); err != nil || data != nil {
		t.Fatalf("Load on missing file: data=%v err=%v, want nil,nil", data, err)
	}
	if err := fs.Save([]byte("mode: AND\n")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := fs.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(data) != "mode: AND\n" {
		t.Errorf("Load=%q, want %q", data, "mode: AND\n")
	}
}

func TestCriteria_FromState(t *testing.T) {
	t.Parallel()

	s := filterstate.FilterState{
		Semantic:  filterstate.Semantic{Objects: []string{"dog"}},
		Spatial:   filterstate.Spatial{Location: "lisbon"},
		Technical: filterstate.Technical{Camera: "canon"},
	}
	crit := s.Criteria(search.ModeAND)

	if crit.Mode != search.ModeAND {
		t.Errorf("mode=%q, want AND", crit.Mode)
	}
	if len(crit.Semantic) != 1 || crit.Semantic[0] != "dog" {
		t.Errorf("semantic=%v, want [dog]", crit.Semantic)
	}
	if len(crit.Spatial) != 1 || len(crit.Technical) != 1 {
		t.Errorf("spatial=%v technical=%v, want one term each", crit.Spatial, crit.Technical)
	}
}
