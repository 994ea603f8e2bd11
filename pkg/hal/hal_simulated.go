//go:build !tinygo

package hal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"tinygo.org/x/drivers"
)

// fails if simulatedHal does not implement FanControlHal
var _ FanControlHal = &SimulatedHal{}

// SimulatedHal implements FanControlHal without hardware. The sensor line
// replays the waveform of a fixed DHT11 frame (40.0% humidity, 21.5°C) so the
// protocol driver and decoder run end-to-end on a development host.
type SimulatedHal struct {
	logger *zap.Logger

	line *simulatedLine
	tach *simulatedTach
}

func NewSimulatedHal() *SimulatedHal {
	logger := zap.L().Named("hal").Named("simulated")
	logger.Warn("Using simulated hal")

	halKind.WithLabelValues("simulated").Set(1)

	return &SimulatedHal{
		logger: logger,
		line:   newSimulatedLine([5]byte{0x28, 0x00, 0x15, 0x05, 0x42}),
		tach:   &simulatedTach{},
	}
}

func (m *SimulatedHal) SensorLine() Line {
	return m.line
}

func (m *SimulatedHal) Fan() PwmOutput {
	return m
}

func (m *SimulatedHal) Tachometer() PulseCounter {
	return m.tach
}

func (m *SimulatedHal) I2C() (drivers.I2C, error) {
	return &simulatedI2C{}, nil
}

func (m *SimulatedHal) PwmClockHz() float64 {
	return 125_000_000
}

func (m *SimulatedHal) SetPeriodAndDuty(top, compare uint16) error {
	m.logger.Info("SetPeriodAndDuty", zap.Uint16("top", top), zap.Uint16("compare", compare))
	pwmTop.Set(float64(top))
	pwmCompare.Set(float64(compare))
	return nil
}

func (m *SimulatedHal) Close() error {
	return nil
}

// simulatedLine replays the DHT11 waveform for one fixed payload: two 80µs
// handshake transitions, then per bit a 50µs start marker and a pulse whose
// width encodes the bit value.
type simulatedLine struct {
	mu      sync.Mutex
	pattern []time.Duration
	pos     int
}

func newSimulatedLine(payload [5]byte) *simulatedLine {
	pattern := []time.Duration{
		80 * time.Microsecond, // ack
		80 * time.Microsecond, // ready
	}
	for _, b := range payload {
		for bit := 7; bit >= 0; bit-- {
			pattern = append(pattern, 50*time.Microsecond)
			if b&(1<<bit) != 0 {
				pattern = append(pattern, 70*time.Microsecond)
			} else {
				pattern = append(pattern, 26*time.Microsecond)
			}
		}
	}
	return &simulatedLine{pattern: pattern}
}

func (l *simulatedLine) DriveLow() error {
	// Wake pulse starts a new read cycle
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pos = 0
	return nil
}

func (l *simulatedLine) DriveHigh() error {
	return nil
}

func (l *simulatedLine) ReadLevel() (Level, error) {
	return High, nil
}

func (l *simulatedLine) WaitForLevel(_ context.Context, _ Level, _ time.Duration) (time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	d := l.pattern[l.pos%len(l.pattern)]
	l.pos++
	return d, nil
}

// simulatedI2C answers MCP9808 register reads with a fixed 21.5°C part.
type simulatedI2C struct{}

func (b *simulatedI2C) Tx(_ uint16, w, r []byte) error {
	if len(w) != 1 || len(r) != 2 {
		return fmt.Errorf("unexpected transaction: write %d read %d", len(w), len(r))
	}
	switch w[0] {
	case 0x05: // temperature, 21.5°C in Q4
		r[0], r[1] = 0x01, 0x58
	case 0x06: // manufacturer ID
		r[0], r[1] = 0x00, 0x54
	case 0x07: // device ID + revision
		r[0], r[1] = 0x04, 0x00
	default:
		r[0], r[1] = 0x00, 0x00
	}
	return nil
}

// simulatedTach reports a constant 1200 RPM fan: 20 pulses per 500ms window
// at 2 pulses per revolution.
type simulatedTach struct{}

func (t *simulatedTach) Reset() error {
	return nil
}

func (t *simulatedTach) Count() (uint32, error) {
	return 20, nil
}
