package button

import "time"

// debouncer converts a raw sample stream into a stable logical level using a
// restart-on-change policy: any contradicting sample inside the window
// restarts it, the window never accumulates across bounces.
type debouncer struct {
	window time.Duration

	lastRaw    bool
	lastChange time.Time
	stable     bool

	// primed is set once the first raw sample has been observed.
	primed bool
	// settled is set once stable holds a confirmed level. With
	// AssumeReleased it is set from construction.
	settled bool
}

// sample processes one raw reading. now must be monotonically non-decreasing
// across calls. Returns whether the stable level changed on this call and the
// current stable level.
func (d *debouncer) sample(raw bool, now time.Time) (changed, stable bool) {
	if !d.primed {
		d.primed = true
		d.lastRaw = raw
		d.lastChange = now
	} else if raw != d.lastRaw {
		// Restart the window.
		d.lastRaw = raw
		d.lastChange = now
	}

	if raw == d.lastRaw && now.Sub(d.lastChange) >= d.window {
		if !d.settled {
			// First confirmed level: no prior stable level to differ from.
			d.settled = true
			d.stable = raw
			return false, d.stable
		}
		if raw != d.stable {
			d.stable = raw
			return true, d.stable
		}
	}

	return false, d.stable
}
