//go:build !nosequence

package button

import "time"

// sequenceDetector tracks one registered click pattern: target press-release
// pairs within a rolling window.
type sequenceDetector struct {
	target uint
	window time.Duration
	cb     Callback

	count       uint
	windowStart time.Time
	active      bool
}

// click feeds one completed press-release pair into the detector. Returns
// whether the callback fired.
func (s *sequenceDetector) click(now time.Time) bool {
	if !s.active || now.Sub(s.windowStart) > s.window {
		// First click of a new window.
		s.active = true
		s.windowStart = now
		s.count = 1
	} else {
		s.count++
	}

	if s.count == s.target {
		s.count = 0
		s.active = false
		s.cb()
		return true
	}

	// Overshoot past target is not force-reset: detectors with different
	// targets are independent and keep accumulating until their own window
	// expires.
	return false
}

// sequenceSet is the bounded collection of sequence detectors for one engine.
type sequenceSet struct {
	det []sequenceDetector
}

func (s *sequenceSet) add(target uint, window time.Duration, cb Callback) error {
	if len(s.det) >= MaxSequences {
		return ErrTooManySequences
	}
	s.det = append(s.det, sequenceDetector{target: target, window: window, cb: cb})
	return nil
}

// click feeds one completed press-release pair into every detector, in
// registration order with no mutual suppression. Returns how many fired.
func (s *sequenceSet) click(now time.Time) int {
	fired := 0
	for i := range s.det {
		if s.det[i].click(now) {
			fired++
		}
	}
	return fired
}

func (s *sequenceSet) len() int {
	return len(s.det)
}
