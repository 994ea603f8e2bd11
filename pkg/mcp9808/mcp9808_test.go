package mcp9808_test

import (
	"errors"
	"testing"

	"github.com/openfanctl/pcfan-agent/pkg/mcp9808"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBus serves register reads from a fixed register map.
type fakeBus struct {
	registers map[uint8][2]byte
	err       error

	lastAddr uint16
}

func (b *fakeBus) Tx(addr uint16, w, r []byte) error {
	b.lastAddr = addr
	if b.err != nil {
		return b.err
	}
	if len(w) != 1 {
		return errors.New("unexpected register select")
	}
	payload, ok := b.registers[w[0]]
	if !ok {
		return errors.New("unknown register")
	}
	copy(r, payload[:])
	return nil
}

func TestDevice_Temperature(t *testing.T) {
	t.Parallel()

	bus := &fakeBus{registers: map[uint8][2]byte{
		mcp9808.RegTemperature: {0x01, 0x94},
	}}
	dev := mcp9808.New(bus)

	temp, err := dev.Temperature()
	require.NoError(t, err)
	assert.InDelta(t, 25.25, temp, 1e-9)
	assert.Equal(t, uint16(mcp9808.Address), bus.lastAddr)
}

func TestDevice_Present(t *testing.T) {
	t.Parallel()

	bus := &fakeBus{registers: map[uint8][2]byte{
		mcp9808.RegManufacturerID: {0x00, 0x54},
		mcp9808.RegDeviceID:       {0x04, 0x00},
	}}
	dev := mcp9808.New(bus)

	present, err := dev.Present()
	require.NoError(t, err)
	assert.True(t, present)
}

func TestDevice_PresentWrongPart(t *testing.T) {
	t.Parallel()

	bus := &fakeBus{registers: map[uint8][2]byte{
		mcp9808.RegManufacturerID: {0xbe, 0xef},
		mcp9808.RegDeviceID:       {0x04, 0x00},
	}}
	dev := mcp9808.New(bus)

	present, err := dev.Present()
	require.NoError(t, err)
	assert.False(t, present)
}

func TestDevice_BusErrorWrapped(t *testing.T) {
	t.Parallel()

	busErr := errors.New("i2c nack")
	dev := mcp9808.New(&fakeBus{err: busErr})

	_, err := dev.Temperature()
	require.ErrorIs(t, err, busErr)
}
