package filterstate

import (
	"log/slog"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lumapix/lumapix/internal/search"
)

// defaultDebounceWindow is the quiet period after which a pending filter
// change propagates downstream.
const defaultDebounceWindow = 300 * time.Millisecond

// Listener receives the committed filter state and combination mode after a
// debounce window elapses (or immediately on Clear).
type Listener func(state FilterState, mode search.CombineMode)

// Option is a functional option for configuring a [Controller].
type Option func(*Controller)

// WithDebounceWindow sets the debounce window. Default: 300ms.
func WithDebounceWindow(d time.Duration) Option {
	return func(c *Controller) { c.window = d }
}

// WithTimerFactory replaces the debounce timer source. Intended for tests
// that drive the debounce deterministically (see [ManualScheduler]).
func WithTimerFactory(f TimerFactory) Option {
	return func(c *Controller) { c.newTimer = f }
}

// WithStore attaches a persistence slot. State is serialized on every
// committed change and restored during construction; unparseable persisted
// state is discarded silently and the controller starts empty.
func WithStore(s StateStore) Option {
	return func(c *Controller) { c.store = s }
}

// WithCombinationMode sets the initial combination mode. Default: AND.
// A restored persisted mode takes precedence.
func WithCombinationMode(m search.CombineMode) Option {
	return func(c *Controller) { c.mode = m }
}

// Controller owns the current [FilterState] and combination mode and
// debounces propagation to subscribers. All methods are safe for concurrent
// use.
type Controller struct {
	mu       sync.Mutex
	state    FilterState
	mode     search.CombineMode
	window   time.Duration
	newTimer TimerFactory
	pending  Timer
	subs     map[int]Listener
	nextSub  int
	store    StateStore
}

// persisted is the on-disk representation of controller state.
type persisted struct {
	State FilterState        `yaml:"state"`
	Mode  search.CombineMode `yaml:"mode"`
}

// NewController builds a [Controller], restoring persisted state when a
// store is configured. Corrupt persisted state falls back to the empty
// filter state.
func NewController(opts ...Option) *Controller {
	c := &Controller{
		mode:     search.ModeAND,
		window:   defaultDebounceWindow,
		newTimer: defaultTimerFactory,
		subs:     make(map[int]Listener),
	}
	for _, o := range opts {
		o(c)
	}
	c.restore()
	return c
}

// restore loads persisted state from the store, if any. Failures are logged
// and otherwise ignored: a broken persistence slot must never block startup.
func (c *Controller) restore() {
	if c.store == nil {
		return
	}
	data, err := c.store.Load()
	if err != nil || len(data) == 0 {
		return
	}
	var p persisted
	if err := yaml.Unmarshal(data, &p); err != nil {
		slog.Warn("filterstate: discarding corrupt persisted state", "error", err)
		return
	}
	c.state = p.State
	if p.Mode.IsValid() {
		c.mode = p.Mode
	}
}

// State returns a copy of the current filter state and the combination mode.
func (c *Controller) State() (FilterState, search.CombineMode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone(), c.mode
}

// Criteria reduces the current state to engine criteria.
func (c *Controller) Criteria() search.Criteria {
	state, mode := c.State()
	return state.Criteria(mode)
}

// Subscribe registers fn and returns its unsubscribe function.
func (c *Controller) Subscribe(fn Listener) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

// SetFilters merges p into the current state, persists the result, and
// schedules a debounced notification. Multiple calls within the window
// collapse into a single notification carrying only the final state;
// superseded intermediate states are never propagated.
func (c *Controller) SetFilters(p Patch) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = p.apply(c.state)
	c.persistLocked()
	c.scheduleLocked()
}

// ToggleCombinationMode flips AND/OR, persists, and schedules a debounced
// notification. It returns the new mode.
func (c *Controller) ToggleCombinationMode() search.CombineMode {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode == search.ModeAND {
		c.mode = search.ModeOR
	} else {
		c.mode = search.ModeAND
	}
	c.persistLocked()
	c.scheduleLocked()
	return c.mode
}

// Clear resets the filter state and notifies immediately, bypassing the
// debounce. Any pending debounced notification is cancelled — its state has
// been superseded.
func (c *Controller) Clear() {
	c.mu.Lock()
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
	c.state = FilterState{}
	c.persistLocked()
	state, mode, listeners := c.snapshotLocked()
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(state, mode)
	}
}

// Flush fires any pending debounced notification immediately. Useful on
// shutdown so a trailing change is not lost.
func (c *Controller) Flush() {
	c.mu.Lock()
	if c.pending == nil {
		c.mu.Unlock()
		return
	}
	c.pending.Stop()
	c.pending = nil
	state, mode, listeners := c.snapshotLocked()
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(state, mode)
	}
}

// scheduleLocked (re)arms the debounce timer. The previous pending timer,
// if any, is cancelled: only the last state before the window elapses is
// ever propagated.
func (c *Controller) scheduleLocked() {
	if c.pending != nil {
		c.pending.Stop()
	}
	c.pending = c.newTimer(c.window, c.fire)
}

// fire delivers the debounced notification.
func (c *Controller) fire() {
	c.mu.Lock()
	c.pending = nil
	state, mode, listeners := c.snapshotLocked()
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(state, mode)
	}
}

// snapshotLocked copies the state, mode, and listener list for delivery
// outside the lock.
func (c *Controller) snapshotLocked() (FilterState, search.CombineMode, []Listener) {
	listeners := make([]Listener, 0, len(c.subs))
	for _, fn := range c.subs {
		listeners = append(listeners, fn)
	}
	return c.state.Clone(), c.mode, listeners
}

// persistLocked serializes the committed state into the store, when one is
// configured. Persistence failures are logged, never surfaced: losing a
// saved filter set must not break filtering itself.
func (c *Controller) persistLocked() {
	if c.store == nil {
		return
	}
	data, err := yaml.Marshal(persisted{State: c.state, Mode: c.mode})
	if err != nil {
		slog.Warn("filterstate: marshal state", "error", err)
		return
	}
	if err := c.store.Save(data); err != nil {
		slog.Warn("filterstate: persist state", "error", err)
	}
}
