package input

import (
	"sync"
	"time"
)

// VirtualSource is an input backed by an externally mutated boolean rather
// than a hardware read. It satisfies Watcher: Set pushes the new level to
// an attached watch, so virtual inputs work in both poll and event mode.
type VirtualSource struct {
	now func() time.Time

	mu    sync.Mutex
	level bool
	fn    func(level bool, at time.Time)
}

// NewVirtualSource creates a virtual input starting at level false.
// A nil clock defaults to time.Now.
func NewVirtualSource(now func() time.Time) *VirtualSource {
	if now == nil {
		now = time.Now
	}
	return &VirtualSource{now: now}
}

// Set updates the level. A change is pushed to the active watch callback,
// if any, synchronously on the caller's goroutine.
func (v *VirtualSource) Set(level bool) {
	v.mu.Lock()
	changed := level != v.level
	v.level = level
	fn := v.fn
	at := v.now()
	v.mu.Unlock()

	if changed && fn != nil {
		fn(level, at)
	}
}

// Read returns the current level.
func (v *VirtualSource) Read() (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.level, nil
}

// Watch registers fn to receive level changes made via Set.
func (v *VirtualSource) Watch(fn func(level bool, at time.Time)) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.fn != nil {
		return ErrAlreadyWatching
	}
	v.fn = fn
	return nil
}

// Unwatch removes the active callback.
func (v *VirtualSource) Unwatch() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.fn == nil {
		return ErrNotWatching
	}
	v.fn = nil
	return nil
}

// Close is a no-op.
func (v *VirtualSource) Close() error {
	return nil
}
