package fan

import (
	"context"
	"fmt"
	"time"

	"github.com/openfanctl/pcfan-agent/pkg/hal"
	"github.com/openfanctl/pcfan-agent/pkg/util"
)

// DefaultSampleWindow is the tachometer sampling window.
const DefaultSampleWindow = 500 * time.Millisecond

// NotEnoughSamplesError indicates the sampling window saw too few tach
// edges to estimate a frequency.
type NotEnoughSamplesError struct {
	Count uint32
}

func (e *NotEnoughSamplesError) Error() string {
	return fmt.Sprintf("not enough samples: expected x≥2, got %d", e.Count)
}

// TachReader estimates fan rotation frequency by counting tachometer pulses
// over a fixed window.
type TachReader struct {
	counter hal.PulseCounter
	clock   util.Clock
	window  time.Duration
}

// NewTachReader creates a tach reader over the given pulse counter. A zero
// window selects DefaultSampleWindow.
func NewTachReader(counter hal.PulseCounter, clock util.Clock, window time.Duration) *TachReader {
	if window == 0 {
		window = DefaultSampleWindow
	}
	return &TachReader{counter: counter, clock: clock, window: window}
}

// Frequency samples the tachometer and returns the fan rotation frequency
// in Hz.
func (t *TachReader) Frequency(ctx context.Context) (float64, error) {
	if err := t.counter.Reset(); err != nil {
		return 0, fmt.Errorf("resetting pulse counter: %w", err)
	}
	if err := util.Sleep(ctx, t.clock, t.window); err != nil {
		return 0, err
	}
	count, err := t.counter.Count()
	if err != nil {
		return 0, fmt.Errorf("reading pulse counter: %w", err)
	}

	if count < 2 {
		return 0, &NotEnoughSamplesError{Count: count}
	}
	return (float64(count) / t.window.Seconds()) / PulsesPerRevolution, nil
}

// RPM samples the tachometer and returns the fan speed in revolutions per
// minute.
func (t *TachReader) RPM(ctx context.Context) (float64, error) {
	freq, err := t.Frequency(ctx)
	if err != nil {
		return 0, err
	}
	return freq * 60, nil
}
