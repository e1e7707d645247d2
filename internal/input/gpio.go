//go:build linux

package input

import (
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// GPIOConfig describes the hardware line backing a GPIOSource.
type GPIOConfig struct {
	Chip      string // GPIO chip device name; defaults to "gpiochip0"
	Pin       int    // line offset
	Pull      Pull   // bias applied at request time
	ActiveLow bool   // invert the line at the hardware level
}

// GPIOSource reads a single GPIO line using the Linux GPIO character
// device. The line is requested with both-edge detection, so the source
// also satisfies Watcher and can push level changes.
type GPIOSource struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
	now  func() time.Time

	mu sync.Mutex
	fn func(level bool, at time.Time)
}

// NewGPIOSource requests the configured line as an input.
func NewGPIOSource(cfg GPIOConfig) (*GPIOSource, error) {
	chipName := cfg.Chip
	if chipName == "" {
		chipName = "gpiochip0"
	}

	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}

	s := &GPIOSource{chip: chip, now: time.Now}

	opts := []gpiocdev.LineReqOption{
		gpiocdev.AsInput,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(s.handleEvent),
	}
	switch cfg.Pull {
	case PullUp:
		opts = append(opts, gpiocdev.WithPullUp)
	case PullDown:
		opts = append(opts, gpiocdev.WithPullDown)
	default:
		opts = append(opts, gpiocdev.WithBiasDisabled)
	}
	if cfg.ActiveLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}

	line, err := chip.RequestLine(cfg.Pin, opts...)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request pin %d: %w", cfg.Pin, err)
	}
	s.line = line
	return s, nil
}

// Read returns the current logical level of the line.
func (s *GPIOSource) Read() (bool, error) {
	v, err := s.line.Value()
	if err != nil {
		return false, fmt.Errorf("read pin: %w", err)
	}
	return v != 0, nil
}

// Watch registers fn to receive edge events. The callback runs on the
// gpiocdev event goroutine.
func (s *GPIOSource) Watch(fn func(level bool, at time.Time)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fn != nil {
		return ErrAlreadyWatching
	}
	s.fn = fn
	return nil
}

// Unwatch removes the active callback. Edge detection stays armed on the
// line; events are simply dropped until the next Watch.
func (s *GPIOSource) Unwatch() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fn == nil {
		return ErrNotWatching
	}
	s.fn = nil
	return nil
}

func (s *GPIOSource) handleEvent(evt gpiocdev.LineEvent) {
	level := evt.Type == gpiocdev.LineEventRisingEdge
	at := s.now()

	s.mu.Lock()
	fn := s.fn
	s.mu.Unlock()

	if fn != nil {
		fn(level, at)
	}
}

// Close releases the line and chip. The line is reconfigured to a plain
// input first so external hardware sees a clean state across restarts.
func (s *GPIOSource) Close() error {
	var errs []error

	if s.line != nil {
		if err := s.line.Reconfigure(gpiocdev.AsInput); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pin: %w", err))
		}
		if err := s.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin: %w", err))
		}
	}
	if s.chip != nil {
		if err := s.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
