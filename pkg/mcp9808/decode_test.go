package mcp9808_test

import (
	"testing"

	"github.com/openfanctl/pcfan-agent/pkg/mcp9808"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTemperature(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  [2]byte
		want float64
	}{
		{"PositiveQuarterDegrees", [2]byte{0b0000_0001, 0b1001_0100}, 25.25},
		{"NegativeQuarterDegrees", [2]byte{0b0001_0001, 0b1001_0100}, -25.25},
		{"Zero", [2]byte{0x00, 0x00}, 0},
		{"OneSixteenth", [2]byte{0x00, 0x01}, 0.0625},
		{"AlertFlagsIgnored", [2]byte{0b1110_0001, 0b1001_0100}, 25.25},
		{"LowerBoundary", [2]byte{0x12, 0x80}, -40},  // sign + 640/16
		{"UpperBoundary", [2]byte{0x07, 0xd0}, 125},  // 2000/16
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := mcp9808.DecodeTemperature(tt.raw)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestDecodeTemperature_OutOfRange(t *testing.T) {
	t.Parallel()

	// Below -40°C
	_, err := mcp9808.DecodeTemperature([2]byte{0x12, 0x81})
	var invalid *mcp9808.InvalidTemperatureError
	require.ErrorAs(t, err, &invalid)
	assert.InDelta(t, -40.0625, invalid.Value, 1e-9)

	// Above 125°C
	_, err = mcp9808.DecodeTemperature([2]byte{0x07, 0xd1})
	require.ErrorAs(t, err, &invalid)
	assert.InDelta(t, 125.0625, invalid.Value, 1e-9)
}

func TestDecodeTemperature_Deterministic(t *testing.T) {
	t.Parallel()

	raw := [2]byte{0x01, 0x94}
	first, err := mcp9808.DecodeTemperature(raw)
	require.NoError(t, err)
	second, err := mcp9808.DecodeTemperature(raw)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDecodeManufacturerID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint16(0x0054), mcp9808.DecodeManufacturerID([2]byte{0x00, 0x54}))
	assert.Equal(t, uint16(0xbeef), mcp9808.DecodeManufacturerID([2]byte{0xbe, 0xef}))
}

func TestDecodeDeviceID(t *testing.T) {
	t.Parallel()

	id, revision := mcp9808.DecodeDeviceID([2]byte{0x04, 0x01})
	assert.Equal(t, uint8(0x04), id)
	assert.Equal(t, uint8(0x01), revision)
}
