// Package fan holds the numeric conversions between fan speed percentages,
// PWM register values and tachometer readings for 4-wire PWM fans.
package fan

import (
	"fmt"
	"math"
)

const (
	// PwmFrequencyHz is the target PWM frequency specified by Intel's
	// "4-Wire Pulse Width Modulation (PWM) Controlled Fans".
	PwmFrequencyHz = 25_000.0

	// PulsesPerRevolution is the tachometer convention for 4-wire fans.
	PulsesPerRevolution = 2.0
)

// InvalidPowerError indicates a fan power outside [0, 100] percent.
type InvalidPowerError struct {
	Value float64
}

func (e *InvalidPowerError) Error() string {
	return fmt.Sprintf("invalid fan power: expected 0≤x≤100%%, got %g%%", e.Value)
}

// Power is a validated fan power percentage. Invalid values cannot be
// constructed.
type Power struct {
	percent float64
}

// NewPower validates a percentage and returns it as a Power.
func NewPower(percent float64) (Power, error) {
	if percent < 0 || percent > 100 {
		return Power{}, &InvalidPowerError{Value: percent}
	}
	return Power{percent: percent}, nil
}

// Percent returns the power as a percentage.
func (p Power) Percent() float64 {
	return p.percent
}

// PwmConfig holds hardware PWM register values: the counter wrap ("top")
// and the compare level controlling the duty cycle. Compare never exceeds
// Top.
type PwmConfig struct {
	Top     uint16
	Compare uint16
}

// PwmConfig derives the register values for the given PWM counter clock:
// the period divides the clock down to the 25kHz fan control frequency and
// the compare level scales it by the power.
func (p Power) PwmConfig(clockHz float64) PwmConfig {
	top := math.Round(clockHz / PwmFrequencyHz)
	compare := math.Round(top * p.percent / 100)
	return PwmConfig{
		Top:     uint16(top),
		Compare: uint16(compare),
	}
}
