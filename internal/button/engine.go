package button

import (
	"sort"
	"time"
)

// holdWatch is one registered long-hold threshold. fired guards against
// repeat firing within a single press and is reset on every new press.
type holdWatch struct {
	threshold time.Duration
	cb        Callback
	fired     bool
}

// Engine tracks the debounced state of one input and derives press, release,
// long-hold and click-sequence events from it. The startTime is used for
// calculating uptime in heartbeat events.
type Engine struct {
	deb       debouncer
	activeLow bool

	pressed      bool
	pressStart   time.Time
	releaseStart time.Time
	wasPressed   bool
	wasReleased  bool

	onPress Callback
	holds   []holdWatch
	seqs    sequenceSet
	counts  EventCounts

	startTime     time.Time
	lastHeartbeat time.Time
}

// New creates an event engine with the given options.
func New(opts Options, startTime time.Time) *Engine {
	e := &Engine{
		deb:           debouncer{window: opts.DebounceWindow},
		activeLow:     opts.ActiveLow,
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
	if opts.AssumeReleased {
		e.deb.settled = true
		e.deb.stable = false
	}
	return e
}

// OnPress registers the single-press callback. It fires on the release that
// completes a press, never on the press itself: a press that never releases
// never fires it.
func (e *Engine) OnPress(cb Callback) {
	e.onPress = cb
}

// OnPressFor registers a long-hold callback that fires once the input has
// been continuously pressed for at least d. Repeatable with distinct
// durations; watches fire in ascending threshold order, at most once per
// press.
func (e *Engine) OnPressFor(d time.Duration, cb Callback) error {
	if d <= 0 {
		return ErrInvalidDuration
	}
	e.holds = append(e.holds, holdWatch{threshold: d, cb: cb})
	sort.SliceStable(e.holds, func(i, j int) bool {
		return e.holds[i].threshold < e.holds[j].threshold
	})
	return nil
}

// OnSequence registers a callback for count press-release pairs completed
// within a rolling window. Up to MaxSequences detectors may be registered;
// detectors are independent and evaluated in registration order.
func (e *Engine) OnSequence(count uint, window time.Duration, cb Callback) error {
	if count == 0 {
		return ErrInvalidCount
	}
	if window <= 0 {
		return ErrInvalidDuration
	}
	return e.seqs.add(count, window, cb)
}

// Sample processes one raw reading. now must be monotonically non-decreasing
// across Sample and Refresh calls. Returns whether the stable level changed
// on this call and the resulting pressed state. Satisfied callbacks run
// synchronously before Sample returns.
func (e *Engine) Sample(raw bool, now time.Time) (changed, pressed bool) {
	e.wasPressed = false
	e.wasReleased = false

	level := raw
	if e.activeLow {
		level = !raw
	}

	stableChanged, stable := e.deb.sample(level, now)
	if stableChanged {
		e.transition(stable, now)
	} else {
		e.evaluateHolds(now)
	}
	return stableChanged, e.pressed
}

// Refresh re-evaluates long-hold watches against now without consuming a
// sample. Hosts that sample from an asynchronous notification context must
// drive this from a polling context, since no new edge arrives while the
// input is held steady.
func (e *Engine) Refresh(now time.Time) {
	e.wasPressed = false
	e.wasReleased = false
	e.evaluateHolds(now)
}

func (e *Engine) transition(pressed bool, now time.Time) {
	if pressed {
		e.pressed = true
		e.pressStart = now
		e.wasPressed = true
		e.counts.Presses++
		for i := range e.holds {
			e.holds[i].fired = false
		}
		return
	}

	e.pressed = false
	e.releaseStart = now
	e.wasReleased = true
	e.counts.Releases++

	// A completed press-release pair is the single-press event, and a
	// click for every sequence detector.
	if e.onPress != nil {
		e.onPress()
	}
	e.counts.Sequences += e.seqs.click(now)
}

func (e *Engine) evaluateHolds(now time.Time) {
	if !e.pressed {
		return
	}
	held := now.Sub(e.pressStart)
	for i := range e.holds {
		w := &e.holds[i]
		if !w.fired && held >= w.threshold {
			w.fired = true
			e.counts.Holds++
			w.cb()
		}
	}
}

// IsPressed reports the current stable pressed state.
func (e *Engine) IsPressed() bool {
	return e.pressed
}

// IsReleased reports the current stable released state.
func (e *Engine) IsReleased() bool {
	return !e.pressed
}

// WasPressed reports whether the stable level changed to pressed during the
// most recent Sample call. Edge flags are cleared at the start of the next
// Sample or Refresh call, so callers must consume them before then.
func (e *Engine) WasPressed() bool {
	return e.wasPressed
}

// WasReleased reports whether the stable level changed to released during
// the most recent Sample call.
func (e *Engine) WasReleased() bool {
	return e.wasReleased
}

// PressedFor reports whether the input has been continuously pressed for at
// least d as of now.
func (e *Engine) PressedFor(d time.Duration, now time.Time) bool {
	return e.pressed && now.Sub(e.pressStart) >= d
}

// ReleasedFor reports whether the input has been continuously released for
// at least d as of now. Always false before the first confirmed release.
func (e *Engine) ReleasedFor(d time.Duration, now time.Time) bool {
	return !e.pressed && !e.releaseStart.IsZero() && now.Sub(e.releaseStart) >= d
}

// Ready reports whether a stable level has been confirmed.
func (e *Engine) Ready() bool {
	return e.deb.settled
}

// Counts returns a snapshot of event counts since startup.
func (e *Engine) Counts() EventCounts {
	return e.counts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since
// the last heartbeat (or startup). Returns nil if no stable level has been
// confirmed yet, if the interval has not elapsed, or if interval is <= 0
// (disabled).
func (e *Engine) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}
	if !e.deb.settled {
		return nil
	}
	if now.Sub(e.lastHeartbeat) < interval {
		return nil
	}

	e.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(e.startTime),
		Counts:    e.counts,
	}
}
