// Package button contains pure event-detection logic for a single debounced
// binary input. This package has NO external dependencies (no GPIO, MQTT, OS,
// or time.Sleep). Time is always injectable via time.Time parameters.
//
// The engine is not safe for concurrent use: at most one Sample or Refresh
// call may be in flight per Engine. Hosts mixing interrupt-driven sampling
// with a polling refresh must serialize the two externally.
package button

import (
	"errors"
	"time"
)

// Callback is invoked synchronously from within Sample or Refresh on the
// caller's stack. Bodies must be short and must not re-enter the engine.
type Callback func()

// MaxSequences bounds the number of sequence detectors per engine so memory
// use stays predictable on constrained targets.
const MaxSequences = 8

// Registration errors. Rejected registrations leave prior registrations intact.
var (
	ErrInvalidDuration  = errors.New("button: duration must be greater than zero")
	ErrInvalidCount     = errors.New("button: sequence count must be greater than zero")
	ErrTooManySequences = errors.New("button: too many sequence detectors registered")
	ErrNoSequences      = errors.New("button: sequence support compiled out")
)

// EventType represents a derived input event.
type EventType string

const (
	EventPress    EventType = "PRESS"
	EventRelease  EventType = "RELEASE"
	EventHold     EventType = "HOLD"
	EventSequence EventType = "SEQUENCE"
)

// Event represents a derived event to be published.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Pressed   bool          // stable state after the event
	Hold      time.Duration // HOLD only: the threshold that was crossed
	Count     uint          // SEQUENCE only: the click target that was reached
}

// Options configures an Engine at construction.
type Options struct {
	// DebounceWindow suppresses raw transitions shorter than this duration.
	// Zero disables debouncing: every raw change is immediately stable.
	DebounceWindow time.Duration

	// ActiveLow inverts the raw level: a low raw reading means pressed.
	ActiveLow bool

	// AssumeReleased defines the initial stable level as released. Without
	// it the stable level is undefined until the first confirmed sample,
	// and that first confirmation never reports a transition.
	AssumeReleased bool
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	Presses   int
	Releases  int
	Holds     int
	Sequences int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}
