package dht11

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openfanctl/pcfan-agent/pkg/hal"
	"github.com/openfanctl/pcfan-agent/pkg/util"
	"go.uber.org/zap"
)

// Protocol timing per datasheet § 5.2-5.3. Timeouts carry up to 20%
// tolerance over the nominal pulse widths.
const (
	wakeLowDuration  = 20 * time.Millisecond
	wakeHighDuration = 40 * time.Microsecond
	handshakeTimeout = 96 * time.Microsecond // ack/ready pulses, 80µs nominal
	bitStartTimeout  = 55 * time.Microsecond // start-of-transmission marker
	bitPulseTimeout  = 84 * time.Microsecond // data pulse, 70µs nominal for a 1

	// Pulse width classification bands: ~26-30µs encodes a 0, ~70µs a 1.
	zeroPulseMin = 18 * time.Microsecond
	zeroPulseMax = 36 * time.Microsecond
	onePulseMin  = 56 * time.Microsecond
)

// state tracks the protocol state machine position.
type state int

const (
	stateIdle state = iota
	stateWake
	stateAwaitAck
	stateAwaitReady
	stateReadBit
	stateDone
)

func (s state) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateWake:
		return "wake"
	case stateAwaitAck:
		return "await_ack"
	case stateAwaitReady:
		return "await_ready"
	case stateReadBit:
		return "read_bit"
	case stateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Driver reads the DHT11 over its single-wire bus. It owns the line for the
// duration of one Read; calls must not overlap.
type Driver struct {
	line   hal.Line
	clock  util.Clock
	logger *zap.Logger
	st     state
}

// New creates a DHT11 driver on the given line. The clock paces the wake
// pulse; pass util.RealClock{} outside of tests.
func New(line hal.Line, clock util.Clock) *Driver {
	return &Driver{
		line:   line,
		clock:  clock,
		logger: zap.L().Named("dht11"),
		st:     stateIdle,
	}
}

// Connect wakes the sensor and performs the presence handshake. A sensor
// that does not answer within the timing budget reports ErrNotPresent.
func (d *Driver) Connect(ctx context.Context) error {
	d.st = stateWake
	if err := d.wake(ctx); err != nil {
		d.st = stateIdle
		return err
	}

	// The sensor acknowledges by pulling the line high, then signals ready
	// by pulling it low again, ~80µs each.
	d.st = stateAwaitAck
	if _, err := d.line.WaitForLevel(ctx, hal.High, handshakeTimeout); err != nil {
		d.st = stateIdle
		return handshakeError(err)
	}
	d.st = stateAwaitReady
	if _, err := d.line.WaitForLevel(ctx, hal.Low, handshakeTimeout); err != nil {
		d.st = stateIdle
		return handshakeError(err)
	}
	return nil
}

// ReadPayload connects to the sensor and acquires the raw 40-bit payload
// without decoding it.
func (d *Driver) ReadPayload(ctx context.Context) (Payload, error) {
	if err := d.Connect(ctx); err != nil {
		return Payload{}, err
	}

	var payload Payload
	d.st = stateReadBit
	for i := 0; i < 40; i++ {
		bit, err := d.readBit(ctx)
		if err != nil {
			d.st = stateIdle
			return Payload{}, err
		}
		if bit {
			payload[i/8] |= 1 << (7 - i%8)
		}
	}
	d.st = stateDone

	d.logger.Debug("payload acquired",
		zap.String("payload", fmt.Sprintf("%#02x", payload)))
	return payload, nil
}

// Read connects to the sensor, acquires the 40-bit payload and decodes it.
func (d *Driver) Read(ctx context.Context) (Reading, error) {
	payload, err := d.ReadPayload(ctx)
	if err != nil {
		return Reading{}, err
	}

	reading, err := Decode(payload)
	d.st = stateIdle
	return reading, err
}

// wake requests a measurement: line low for ~20ms, then high for ~40µs.
func (d *Driver) wake(ctx context.Context) error {
	if err := d.line.DriveLow(); err != nil {
		return fmt.Errorf("driving line low: %w", err)
	}
	if err := util.Sleep(ctx, d.clock, wakeLowDuration); err != nil {
		return err
	}
	if err := d.line.DriveHigh(); err != nil {
		return fmt.Errorf("driving line high: %w", err)
	}
	return util.Sleep(ctx, d.clock, wakeHighDuration)
}

// readBit waits for the start-of-transmission marker, then classifies the
// bit by how long the line stays high.
func (d *Driver) readBit(ctx context.Context) (bool, error) {
	if _, err := d.line.WaitForLevel(ctx, hal.High, bitStartTimeout); err != nil {
		return false, dataError(err)
	}
	elapsed, err := d.line.WaitForLevel(ctx, hal.Low, bitPulseTimeout)
	if err != nil {
		return false, dataError(err)
	}

	switch {
	case elapsed >= zeroPulseMin && elapsed <= zeroPulseMax:
		return false, nil
	case elapsed >= onePulseMin:
		return true, nil
	default:
		return false, &SuspectBitError{Duration: elapsed}
	}
}

// handshakeError maps a wait failure during the handshake: an expired
// timeout means nothing is connected.
func handshakeError(err error) error {
	if errors.Is(err, util.ErrWaitTimeout) {
		return ErrNotPresent
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("hardware error: %w", err)
}

// dataError maps a wait failure during the data phase.
func dataError(err error) error {
	if errors.Is(err, util.ErrWaitTimeout) {
		return ErrTimeout
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("hardware error: %w", err)
}
