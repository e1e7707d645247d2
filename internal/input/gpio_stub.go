//go:build !linux

package input

import "errors"

// GPIOConfig describes the hardware line backing a GPIOSource.
type GPIOConfig struct {
	Chip      string
	Pin       int
	Pull      Pull
	ActiveLow bool
}

// GPIOSource is not available on non-Linux platforms.
type GPIOSource struct{}

// NewGPIOSource returns an error on non-Linux platforms.
func NewGPIOSource(cfg GPIOConfig) (*GPIOSource, error) {
	return nil, errors.New("input: gpio not supported on this platform (requires Linux)")
}

// Read is not implemented on non-Linux platforms.
func (s *GPIOSource) Read() (bool, error) {
	return false, errors.New("input: gpio not supported")
}

// Close is not implemented on non-Linux platforms.
func (s *GPIOSource) Close() error {
	return nil
}
