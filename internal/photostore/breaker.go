package photostore

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/lumapix/lumapix/internal/photo"
)

// ErrBackendUnavailable is returned by [Guarded] when the breaker is open
// and the cooldown has not yet elapsed. The backend is not called.
var ErrBackendUnavailable = errors.New("photostore: backend unavailable")

// BreakerState is the current operating mode of a [Breaker].
type BreakerState int

const (
	// BreakerClosed is the normal state; calls pass through.
	BreakerClosed BreakerState = iota

	// BreakerOpen rejects calls immediately until the cooldown elapses.
	BreakerOpen

	// BreakerHalfOpen lets a limited number of probe calls through to
	// decide whether the backend has recovered.
	BreakerHalfOpen
)

// String returns the human-readable name of the state.
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig holds tuning knobs for a [Breaker].
type BreakerConfig struct {
	// Name labels the breaker in log messages.
	Name string

	// TripAfter is the number of consecutive failures before the breaker
	// opens. Default: 5.
	TripAfter int

	// Cooldown is how long the breaker stays open before probing the
	// backend again. Default: 30s.
	Cooldown time.Duration

	// ProbeBudget is the number of half-open probe calls that must
	// succeed before the breaker closes. Default: 3.
	ProbeBudget int

	// Clock overrides the time source. Tests use this to step through
	// the cooldown without sleeping. Default: [time.Now].
	Clock func() time.Time
}

// Breaker is a three-state circuit breaker (closed, open, half-open)
// guarding calls into a photo backend. A run of consecutive failures trips
// it open; after the cooldown a handful of probe calls decide whether it
// closes again. Safe for concurrent use.
type Breaker struct {
	name        string
	tripAfter   int
	cooldown    time.Duration
	probeBudget int
	now         func() time.Time

	mu          sync.Mutex
	state       BreakerState
	failures    int
	openedAt    time.Time
	probes      int
	probeFailed bool
}

// NewBreaker creates a [Breaker]. Zero-value config fields get defaults.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.TripAfter <= 0 {
		cfg.TripAfter = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.ProbeBudget <= 0 {
		cfg.ProbeBudget = 3
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Breaker{
		name:        cfg.Name,
		tripAfter:   cfg.TripAfter,
		cooldown:    cfg.Cooldown,
		probeBudget: cfg.ProbeBudget,
		now:         cfg.Clock,
		state:       BreakerClosed,
	}
}

// Do runs fn if the breaker allows it. In the open state it returns
// [ErrBackendUnavailable] without calling fn.
func (b *Breaker) Do(fn func() error) error {
	b.mu.Lock()
	switch b.state {
	case BreakerOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			b.mu.Unlock()
			return ErrBackendUnavailable
		}
		b.state = BreakerHalfOpen
		b.probes = 0
		b.probeFailed = false
		slog.Info("store breaker probing backend", "name", b.name)

	case BreakerHalfOpen:
		if b.probes >= b.probeBudget {
			b.mu.Unlock()
			return ErrBackendUnavailable
		}
	}
	probing := b.state == BreakerHalfOpen
	if probing {
		b.probes++
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.onFailure(probing)
	} else {
		b.onSuccess(probing)
	}
	return err
}

// onFailure must be called with b.mu held.
func (b *Breaker) onFailure(probing bool) {
	b.openedAt = b.now()
	if probing {
		b.state = BreakerOpen
		b.failures = b.tripAfter
		b.probeFailed = true
		slog.Warn("store breaker re-opened", "name", b.name)
		return
	}
	b.failures++
	if b.failures >= b.tripAfter {
		b.state = BreakerOpen
		slog.Warn("store breaker opened",
			"name", b.name,
			"consecutive_failures", b.failures)
	}
}

// onSuccess must be called with b.mu held.
func (b *Breaker) onSuccess(probing bool) {
	if probing {
		if !b.probeFailed && b.probes >= b.probeBudget {
			b.state = BreakerClosed
			b.failures = 0
			slog.Info("store breaker closed", "name", b.name)
		}
		return
	}
	b.failures = 0
}

// State returns the breaker's state. An open breaker whose cooldown has
// elapsed reports half-open; the transition itself happens on the next Do.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen && b.now().Sub(b.openedAt) >= b.cooldown {
		return BreakerHalfOpen
	}
	return b.state
}

// Reset forces the breaker back to closed, clearing all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = BreakerClosed
	b.failures = 0
	b.probes = 0
	b.probeFailed = false
}

// Guarded wraps a [Store] so every call passes through a [Breaker].
type Guarded struct {
	inner   Store
	breaker *Breaker
}

var _ Store = (*Guarded)(nil)

// Guard wraps store with breaker. A nil breaker gets default settings.
func Guard(store Store, breaker *Breaker) *Guarded {
	if breaker == nil {
		breaker = NewBreaker(BreakerConfig{Name: "photostore"})
	}
	return &Guarded{inner: store, breaker: breaker}
}

// Breaker returns the wrapped breaker, e.g. for state inspection.
func (g *Guarded) Breaker() *Breaker { return g.breaker }

// Download implements [Store].
func (g *Guarded) Download(ctx context.Context, ids []photo.ID, format string) error {
	return g.breaker.Do(func() error { return g.inner.Download(ctx, ids, format) })
}

// AddTags implements [Store].
func (g *Guarded) AddTags(ctx context.Context, id photo.ID, tags []string) ([]string, error) {
	var prev []string
	err := g.breaker.Do(func() error {
		var err error
		prev, err = g.inner.AddTags(ctx, id, tags)
		return err
	})
	return prev, err
}

// SetTags implements [Store].
func (g *Guarded) SetTags(ctx context.Context, id photo.ID, tags []string) error {
	return g.breaker.Do(func() error { return g.inner.SetTags(ctx, id, tags) })
}

// CreateAlbum implements [Store].
func (g *Guarded) CreateAlbum(ctx context.Context, name string) error {
	return g.breaker.Do(func() error { return g.inner.CreateAlbum(ctx, name) })
}

// AddToAlbum implements [Store].
func (g *Guarded) AddToAlbum(ctx context.Context, album string, id photo.ID) error {
	return g.breaker.Do(func() error { return g.inner.AddToAlbum(ctx, album, id) })
}

// RemoveFromAlbum implements [Store].
func (g *Guarded) RemoveFromAlbum(ctx context.Context, album string, id photo.ID) error {
	return g.breaker.Do(func() error { return g.inner.RemoveFromAlbum(ctx, album, id) })
}

// ExportMetadata implements [Store].
func (g *Guarded) ExportMetadata(ctx context.Context, id photo.ID, format string) error {
	return g.breaker.Do(func() error { return g.inner.ExportMetadata(ctx, id, format) })
}

// Analyze implements [Store].
func (g *Guarded) Analyze(ctx context.Context, id photo.ID) error {
	return g.breaker.Do(func() error { return g.inner.Analyze(ctx, id) })
}

// Delete implements [Store].
func (g *Guarded) Delete(ctx context.Context, id photo.ID) error {
	return g.breaker.Do(func() error { return g.inner.Delete(ctx, id) })
}

// SetRating implements [Store].
func (g *Guarded) SetRating(ctx context.Context, id photo.ID, rating int) (int, error) {
	var prev int
	err := g.breaker.Do(func() error {
		var err error
		prev, err = g.inner.SetRating(ctx, id, rating)
		return err
	})
	return prev, err
}

// Share implements [Store].
func (g *Guarded) Share(ctx context.Context, id photo.ID, destination string) error {
	return g.breaker.Do(func() error { return g.inner.Share(ctx, id, destination) })
}
