package dht11

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotPresent indicates the sensor did not answer the wake handshake.
	ErrNotPresent = errors.New("sensor not present")
	// ErrTimeout indicates a wait exceeded its timing budget during the data
	// phase.
	ErrTimeout = errors.New("read timed out")
)

// SuspectBitError indicates a bit pulse whose width falls outside both
// classification bands.
type SuspectBitError struct {
	Duration time.Duration
}

func (e *SuspectBitError) Error() string {
	return fmt.Sprintf("suspect bit: %s pulse outside both classification bands", e.Duration)
}

// ChecksumMismatchError indicates a corrupted payload.
type ChecksumMismatchError struct {
	Expected uint8
	Actual   uint8
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatched (expected %#02x, found %#02x)", e.Expected, e.Actual)
}

// InvalidTemperatureError indicates a decoded temperature outside the
// sensor's physical range.
type InvalidTemperatureError struct {
	Value float64
}

func (e *InvalidTemperatureError) Error() string {
	return fmt.Sprintf("invalid temperature: expected -50≤x≤50°C, got %g°C", e.Value)
}

// InvalidHumidityError indicates a decoded humidity outside the sensor's
// physical range.
type InvalidHumidityError struct {
	Value float64
}

func (e *InvalidHumidityError) Error() string {
	return fmt.Sprintf("invalid humidity: expected 0≤x≤100%%, got %g%%", e.Value)
}
