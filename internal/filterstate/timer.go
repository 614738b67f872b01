package filterstate

import "time"

// Timer is a cancellable one-shot timer. It exists so tests can drive the
// debounce deterministically without sleeping.
type Timer interface {
	// Stop cancels the timer. It reports whether the cancellation happened
	// before the timer fired.
	Stop() bool
}

// TimerFactory schedules fn to run once after d and returns a handle to
// cancel it.
type TimerFactory func(d time.Duration, fn func()) Timer

// realTimer adapts [time.Timer] to the [Timer] interface.
type realTimer struct {
	t *time.Timer
}

func (r realTimer) Stop() bool { return r.t.Stop() }

// defaultTimerFactory schedules on the runtime timer heap via
// [time.AfterFunc].
func defaultTimerFactory(d time.Duration, fn func()) Timer {
	return realTimer{t: time.AfterFunc(d, fn)}
}

// ManualTimer is a [Timer] fired explicitly by tests.
type ManualTimer struct {
	fn      func()
	stopped bool
	fired   bool
}

// Stop implements [Timer].
func (m *ManualTimer) Stop() bool {
	if m.fired || m.stopped {
		return false
	}
	m.stopped = true
	return true
}

// Fire runs the scheduled function unless the timer was stopped. It is a
// no-op on repeat calls.
func (m *ManualTimer) Fire() {
	if m.stopped || m.fired {
		return
	}
	m.fired = true
	m.fn()
}

// ManualScheduler is a [TimerFactory] for tests: it records scheduled
// timers instead of arming real ones.
type ManualScheduler struct {
	Timers []*ManualTimer
}

// Schedule implements [TimerFactory] (use method value).
func (s *ManualScheduler) Schedule(_ time.Duration, fn func()) Timer {
	t := &ManualTimer{fn: fn}
	s.Timers = append(s.Timers, t)
	return t
}

// FireAll fires every pending timer in scheduling order.
func (s *ManualScheduler) FireAll() {
	for _, t := range s.Timers {
		t.Fire()
	}
}
