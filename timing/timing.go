// Package timing implements the controller's logical clock and the small
// timer primitives the phase state machine and call queue are built from.
// Nothing here reads the wall clock: a Clock only knows how many ticks of a
// fixed size have elapsed.
package timing

// Clock accumulates a fixed tick size into a monotonic control-time
// counter. It never consults wall-clock time; the caller decides when to
// call Advance.
type Clock struct {
	tickSize float64
	ticks    uint64
	time     float64
}

// NewClock creates a Clock with the given tick size in seconds.
func NewClock(tickSize float64) *Clock {
	if tickSize <= 0 {
		panic("timing: tick size must be positive")
	}
	return &Clock{tickSize: tickSize}
}

// TickSize is the fixed duration, in seconds, of one tick.
func (c *Clock) TickSize() float64 {
	return c.tickSize
}

// Advance moves the clock forward by one tick and returns the new control
// time.
func (c *Clock) Advance() float64 {
	c.ticks++
	c.time += c.tickSize
	return c.time
}

// Ticks is the number of ticks advanced so far.
func (c *Clock) Ticks() uint64 {
	return c.ticks
}

// ControlTime is the accumulated control time in seconds.
func (c *Clock) ControlTime() float64 {
	return c.time
}

// IntervalTimer is a countdown timer measured in seconds, decremented in
// fixed tick-size steps. It reports the tick on which it crosses zero.
type IntervalTimer struct {
	remaining float64
	loaded    float64
	fired     bool
}

// Load sets the timer to count down from d seconds. A freshly loaded
// timer always requires at least one Tick call to expire, even when d is
// 0 — the machine must dwell in a state for at least one tick before
// leaving it, matching the discrete-tick simulation model.
func (t *IntervalTimer) Load(d float64) {
	if d < 0 {
		d = 0
	}
	t.loaded = d
	t.remaining = d
	t.fired = false
}

// Tick decrements the timer by dt and reports whether it expired on this
// tick (crossed to zero or below). It reports expiry exactly once per
// Load.
func (t *IntervalTimer) Tick(dt float64) (expired bool) {
	// epsilon absorbs the drift of repeatedly subtracting a fractional
	// tick size, so 12.5s at 0.1s ticks expires on tick 125, not 126.
	const epsilon = 1e-9
	if t.fired {
		return false
	}
	t.remaining -= dt
	if t.remaining <= epsilon {
		t.remaining = 0
		t.fired = true
		return true
	}
	return false
}

// Remaining is the number of seconds left on the timer.
func (t *IntervalTimer) Remaining() float64 {
	return t.remaining
}

// Loaded is the value the timer was last Load-ed with.
func (t *IntervalTimer) Loaded() float64 {
	return t.loaded
}

// Expired reports whether the timer has already reached zero.
func (t *IntervalTimer) Expired() bool {
	return t.remaining <= 0
}

// UpCounter counts elapsed seconds, capped at a configured ceiling. It is
// used for the phase service timer, which must track cumulative GO+EXTEND
// time against max_go regardless of how many times EXTEND reloads the
// interval timer.
type UpCounter struct {
	elapsed float64
	cap     float64
}

// Reset zeroes the counter and sets its ceiling.
func (u *UpCounter) Reset(cap float64) {
	u.elapsed = 0
	u.cap = cap
}

// Tick advances the counter by dt, clamped to the configured cap, and
// reports whether the cap has been reached.
func (u *UpCounter) Tick(dt float64) (atCap bool) {
	u.elapsed += dt
	if u.elapsed >= u.cap {
		u.elapsed = u.cap
		return true
	}
	return false
}

// Elapsed is the accumulated seconds so far.
func (u *UpCounter) Elapsed() float64 {
	return u.elapsed
}

// HysteresisCounter counts consecutive occurrences of a condition and
// resets on the first non-occurrence. It is used for the controller's
// consecutive bus-failure / bus-recovery counters.
type HysteresisCounter struct {
	count     int
	threshold int
}

// NewHysteresisCounter creates a counter that trips once Hit has been
// called threshold consecutive times.
func NewHysteresisCounter(threshold int) *HysteresisCounter {
	return &HysteresisCounter{threshold: threshold}
}

// Hit records one occurrence and reports whether the threshold has now
// been reached.
func (h *HysteresisCounter) Hit() (tripped bool) {
	h.count++
	if h.count >= h.threshold {
		return true
	}
	return false
}

// Reset clears the counter back to zero.
func (h *HysteresisCounter) Reset() {
	h.count = 0
}

// Count is the number of consecutive hits recorded so far.
func (h *HysteresisCounter) Count() int {
	return h.count
}
