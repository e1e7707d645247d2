// Package input provides raw level sources with hardware abstraction.
// The GPIO implementation uses the Linux GPIO character device; the touch
// and virtual implementations synthesize a level without pin access, and
// the fake implementation allows testing without hardware.
package input

import (
	"errors"
	"fmt"
	"time"
)

// Source supplies the raw boolean level of one input on demand.
// The engine has no knowledge of how the level was obtained.
type Source interface {
	// Read returns the current raw level.
	Read() (bool, error)

	// Close releases any resources held by the source.
	Close() error
}

// Watcher is implemented by sources that can push level changes to the host
// instead of being polled. The callback runs on the source's notification
// context; hosts must hand the sample off to their own processing context.
type Watcher interface {
	// Watch registers the level-change callback. Only one watch may be
	// active at a time.
	Watch(fn func(level bool, at time.Time)) error

	// Unwatch removes the active callback.
	Unwatch() error
}

var (
	// ErrEventsUnsupported is returned when edge-event sourcing is requested
	// on a source that can only be polled. It is never silently degraded.
	ErrEventsUnsupported = errors.New("input: source does not support edge events")

	// ErrAlreadyWatching is returned by Watch when a callback is already
	// registered.
	ErrAlreadyWatching = errors.New("input: watch already active")

	// ErrNotWatching is returned by Unwatch when no callback is registered.
	ErrNotWatching = errors.New("input: no watch active")
)

// Watchable reports whether the source can push edge events.
func Watchable(s Source) bool {
	_, ok := s.(Watcher)
	return ok
}

// Pull selects the bias applied when requesting a hardware line. It is a
// hint consumed only by hardware sources.
type Pull int

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

// ParsePull converts a flag value into a Pull.
func ParsePull(s string) (Pull, error) {
	switch s {
	case "none":
		return PullNone, nil
	case "up":
		return PullUp, nil
	case "down":
		return PullDown, nil
	}
	return PullNone, fmt.Errorf("unknown pull mode %q (want up, down, or none)", s)
}

func (p Pull) String() string {
	switch p {
	case PullUp:
		return "up"
	case PullDown:
		return "down"
	}
	return "none"
}
