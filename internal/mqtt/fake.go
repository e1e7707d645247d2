package mqtt

import (
	"github.com/sweeney/button-sensor/internal/button"
)

// FakePublisher is an in-memory Publisher that records everything it is
// asked to send, along with the exact payload bytes that would have gone
// over the wire. The zero value is ready to use.
type FakePublisher struct {
	Events         []button.Event
	Payloads       [][]byte
	SystemEvents   []SystemEvent
	SystemPayloads [][]byte

	// PublishError and PublishSystemError, when set, fail the respective
	// call without recording anything.
	PublishError       error
	PublishSystemError error

	// Closed reports whether Close was called.
	Closed bool

	// Connected is returned by IsConnected.
	Connected bool
}

// NewFakePublisher creates an empty FakePublisher.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// Publish records a button event and its wire payload.
func (f *FakePublisher) Publish(event button.Event) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatPayload(event)
	if err != nil {
		return err
	}
	f.Events = append(f.Events, event)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// PublishSystem records a system event and its wire payload.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)
	return nil
}

// Types returns the recorded button event types in publish order. Most
// loop tests only care about the event sequence, not the full events.
func (f *FakePublisher) Types() []button.EventType {
	types := make([]button.EventType, len(f.Events))
	for i, e := range f.Events {
		types[i] = e.Type
	}
	return types
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// IsConnected returns the value of Connected.
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// Reset restores the publisher to its initial empty state.
func (f *FakePublisher) Reset() {
	*f = FakePublisher{}
}
