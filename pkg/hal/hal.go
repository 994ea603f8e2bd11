package hal

import (
	"context"
	"time"

	"tinygo.org/x/drivers"
)

// Level represents a logic level on a GPIO line.
type Level bool

const (
	Low  Level = false
	High Level = true
)

func (l Level) String() string {
	if l == High {
		return "high"
	}
	return "low"
}

// Line is a single switchable input/output GPIO line, as used by the DHT11
// sensor bus. Driving the line reconfigures it as an output; reading it
// reconfigures it as an input. Implementations must tolerate arbitrary
// interleavings of the two, the protocol driver re-asserts direction before
// every use.
type Line interface {
	// DriveLow configures the line as an output and pulls it low.
	DriveLow() error
	// DriveHigh configures the line as an output and pulls it high.
	DriveHigh() error
	// ReadLevel configures the line as an input and samples it.
	ReadLevel() (Level, error)
	// WaitForLevel blocks until the line reads the given level or the timeout
	// expires, reporting how long the wait took. A timeout is reported as
	// util.ErrWaitTimeout.
	WaitForLevel(ctx context.Context, level Level, timeout time.Duration) (time.Duration, error)
}

// PwmOutput drives a hardware PWM channel with explicit period/duty register
// values ("top" and "compare" in RP2040 terms).
type PwmOutput interface {
	SetPeriodAndDuty(top, compare uint16) error
}

// PulseCounter counts edges on the fan tachometer line. Reset and Count are
// only ever called from a single goroutine; implementations may count edges
// from an interrupt handler concurrently.
type PulseCounter interface {
	Reset() error
	Count() (uint32, error)
}

// FanControlHal aggregates the hardware capabilities of one fan controller
// board.
type FanControlHal interface {
	// SensorLine returns the DHT11 data line.
	SensorLine() Line
	// Fan returns the fan PWM output.
	Fan() PwmOutput
	// Tachometer returns the fan tachometer pulse counter.
	Tachometer() PulseCounter
	// I2C returns the bus the MCP9808 sensor sits on.
	I2C() (drivers.I2C, error)
	// PwmClockHz returns the clock frequency feeding the PWM counter.
	PwmClockHz() float64
	Close() error
}

// FanControlHalOpts configures the hardware abstraction layer.
type FanControlHalOpts struct {
	// SensorLinePin is the GPIO offset of the DHT11 data line.
	SensorLinePin int `mapstructure:"sensor_line_pin"`
	// TachPin is the GPIO offset of the fan tachometer input.
	TachPin int `mapstructure:"tach_pin"`
	// I2CDevice is the i2c-dev character device of the MCP9808 bus.
	I2CDevice string `mapstructure:"i2c_device"`
	// Simulated selects the simulated HAL, for development hosts without
	// fan hardware.
	Simulated bool `mapstructure:"simulated"`
}
