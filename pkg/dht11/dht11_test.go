package dht11_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openfanctl/pcfan-agent/pkg/dht11"
	"github.com/openfanctl/pcfan-agent/pkg/hal"
	"github.com/openfanctl/pcfan-agent/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// immediateClock satisfies util.Clock without real delays.
type immediateClock struct{}

func (immediateClock) Now() time.Time {
	return time.Now()
}

func (immediateClock) After(time.Duration) <-chan time.Time {
	c := make(chan time.Time, 1)
	c <- time.Now()
	return c
}

type waitResult struct {
	elapsed time.Duration
	err     error
}

// scriptLine replays a scripted sequence of wait results, standing in for
// the sensor waveform.
type scriptLine struct {
	waits    []waitResult
	pos      int
	driveErr error
}

func (l *scriptLine) DriveLow() error {
	return l.driveErr
}

func (l *scriptLine) DriveHigh() error {
	return l.driveErr
}

func (l *scriptLine) ReadLevel() (hal.Level, error) {
	return hal.High, nil
}

func (l *scriptLine) WaitForLevel(_ context.Context, _ hal.Level, _ time.Duration) (time.Duration, error) {
	if l.pos >= len(l.waits) {
		return 0, util.ErrWaitTimeout
	}
	r := l.waits[l.pos]
	l.pos++
	return r.elapsed, r.err
}

// waveform builds the wait sequence for a full frame: handshake, then a
// start marker and data pulse per bit.
func waveform(payload dht11.Payload) []waitResult {
	waits := []waitResult{
		{elapsed: 80 * time.Microsecond}, // ack
		{elapsed: 80 * time.Microsecond}, // ready
	}
	for _, b := range payload {
		for bit := 7; bit >= 0; bit-- {
			waits = append(waits, waitResult{elapsed: 50 * time.Microsecond})
			pulse := 26 * time.Microsecond
			if b&(1<<bit) != 0 {
				pulse = 70 * time.Microsecond
			}
			waits = append(waits, waitResult{elapsed: pulse})
		}
	}
	return waits
}

func TestDriver_Read(t *testing.T) {
	t.Parallel()

	line := &scriptLine{waits: waveform(dht11.Payload{0x27, 0x03, 0x14, 0x08, 0x46})}
	driver := dht11.New(line, immediateClock{})

	reading, err := driver.Read(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 39.3, reading.Humidity, 1e-9)
	assert.InDelta(t, 20.8, reading.Temperature, 1e-9)
}

func TestDriver_NotPresent(t *testing.T) {
	t.Parallel()

	// No response to the wake pulse at all.
	line := &scriptLine{waits: []waitResult{{err: util.ErrWaitTimeout}}}
	driver := dht11.New(line, immediateClock{})

	err := driver.Connect(context.Background())
	require.ErrorIs(t, err, dht11.ErrNotPresent)
}

func TestDriver_NotPresentOnMissingReady(t *testing.T) {
	t.Parallel()

	// Ack seen, ready transition never arrives.
	line := &scriptLine{waits: []waitResult{
		{elapsed: 80 * time.Microsecond},
		{err: util.ErrWaitTimeout},
	}}
	driver := dht11.New(line, immediateClock{})

	err := driver.Connect(context.Background())
	require.ErrorIs(t, err, dht11.ErrNotPresent)
}

func TestDriver_TimeoutDuringData(t *testing.T) {
	t.Parallel()

	waits := waveform(dht11.Payload{0x27, 0x03, 0x14, 0x08, 0x46})
	// Truncate mid-payload: the next wait times out.
	line := &scriptLine{waits: waits[:17]}
	driver := dht11.New(line, immediateClock{})

	_, err := driver.Read(context.Background())
	require.ErrorIs(t, err, dht11.ErrTimeout)
}

func TestDriver_SuspectBit(t *testing.T) {
	t.Parallel()

	// A 45µs pulse falls between the 0 and 1 bands.
	line := &scriptLine{waits: []waitResult{
		{elapsed: 80 * time.Microsecond},
		{elapsed: 80 * time.Microsecond},
		{elapsed: 50 * time.Microsecond},
		{elapsed: 45 * time.Microsecond},
	}}
	driver := dht11.New(line, immediateClock{})

	_, err := driver.Read(context.Background())
	var suspect *dht11.SuspectBitError
	require.ErrorAs(t, err, &suspect)
	assert.Equal(t, 45*time.Microsecond, suspect.Duration)
}

func TestDriver_HardwareErrorWrapped(t *testing.T) {
	t.Parallel()

	lineErr := errors.New("gpio request failed")
	line := &scriptLine{driveErr: lineErr}
	driver := dht11.New(line, immediateClock{})

	err := driver.Connect(context.Background())
	require.ErrorIs(t, err, lineErr)
}

func TestDriver_ChecksumErrorFromCorruptedFrame(t *testing.T) {
	t.Parallel()

	line := &scriptLine{waits: waveform(dht11.Payload{0x27, 0x00, 0x14, 0x00, 0x00})}
	driver := dht11.New(line, immediateClock{})

	_, err := driver.Read(context.Background())
	var mismatch *dht11.ChecksumMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, uint8(0x3b), mismatch.Actual)
}
