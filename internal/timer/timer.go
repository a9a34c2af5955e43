// Package timer provides a cooperative one-shot or periodic timer driven by
// a wrapping millisecond clock. Nothing fires on its own: the owner polls
// Process from its loop and acts on the result.
//
// Process must be called more often than the timer period, and the gap
// between a deadline and the call that observes it must stay below 2^31 ms.
// Neither condition is detected; violating them yields missed or early
// expirations.
package timer

// Timer is a polled deadline on a Clock. It is not safe for concurrent use.
type Timer struct {
	clock    Clock
	period   uint32
	periodic bool
	running  bool
	next     uint32
}

// New returns a stopped timer that expires periodMs after each Start.
// A periodic timer re-arms itself when Process observes an expiration.
func New(clock Clock, periodMs uint32, periodic bool) *Timer {
	return &Timer{
		clock:    clock,
		period:   periodMs,
		periodic: periodic,
	}
}

// Start arms the timer, or re-arms it if already running, with a deadline
// one period from now.
func (t *Timer) Start() {
	t.next = t.clock.Millis() + t.period
	t.running = true
}

// Stop disarms the timer.
func (t *Timer) Stop() {
	t.running = false
}

// Process reports whether the timer expired since the last call. On
// expiry a periodic timer restarts from the current clock reading, so late
// polling delays every following deadline; a one-shot timer stops.
func (t *Timer) Process() bool {
	if !t.running {
		return false
	}

	if !Due(t.clock.Millis(), t.next) {
		return false
	}

	if t.periodic {
		t.Start()
	} else {
		t.Stop()
	}

	return true
}

// IsRunning reports whether the timer is armed.
func (t *Timer) IsRunning() bool {
	return t.running
}

// Period returns the timer period in milliseconds.
func (t *Timer) Period() uint32 {
	return t.period
}

// IsPeriodic reports whether the timer re-arms on expiry.
func (t *Timer) IsPeriodic() bool {
	return t.periodic
}

// Due reports whether now is at or past deadline, treating the difference
// as signed so that a clock wrapping through zero compares correctly.
func Due(now, deadline uint32) bool {
	return int32(now-deadline) >= 0
}
