//go:build nosequence

package button

import "time"

// sequenceSet is a zero-sized stand-in when sequence support is compiled
// out with the nosequence build tag.
type sequenceSet struct{}

func (s *sequenceSet) add(target uint, window time.Duration, cb Callback) error {
	return ErrNoSequences
}

func (s *sequenceSet) click(now time.Time) int {
	return 0
}

func (s *sequenceSet) len() int {
	return 0
}
