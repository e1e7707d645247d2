package input

import "fmt"

// ReadLevel reads the raw analog level of a capacitive touch sensor.
// How the value is obtained (ADC, I2C expander, vendor driver) is the
// caller's concern.
type ReadLevel func() (int, error)

// TouchSource derives a boolean level from an analog touch reading by
// comparing it against a fixed threshold. Touch sources cannot push edge
// events; they are poll-only.
type TouchSource struct {
	read      ReadLevel
	threshold int
}

// NewTouchSource creates a source that reports pressed when the analog
// reading is at or above threshold.
func NewTouchSource(read ReadLevel, threshold int) *TouchSource {
	return &TouchSource{read: read, threshold: threshold}
}

// Read samples the sensor and applies the threshold.
func (t *TouchSource) Read() (bool, error) {
	v, err := t.read()
	if err != nil {
		return false, fmt.Errorf("read touch level: %w", err)
	}
	return v >= t.threshold, nil
}

// Close is a no-op; the underlying reader owns any hardware resources.
func (t *TouchSource) Close() error {
	return nil
}
