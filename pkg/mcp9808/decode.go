// Package mcp9808 is a driver for the MCP9808 I2C temperature sensor.
// Based on https://ww1.microchip.com/downloads/en/DeviceDoc/25095A.pdf
package mcp9808

import "fmt"

// InvalidTemperatureError indicates a decoded temperature outside the
// sensor's operating range.
type InvalidTemperatureError struct {
	Value float64
}

func (e *InvalidTemperatureError) Error() string {
	return fmt.Sprintf("invalid temperature: expected -40≤x≤125°C, got %g°C", e.Value)
}

// DecodeTemperature decodes the 16-bit big-endian ambient temperature
// register (datasheet § 5.1.3). Bit 3 from the MSB is the sign, bits 4-15
// hold the magnitude in Q4 fixed point (one LSB = 1/16°C). The top three
// bits are alert flags and ignored here.
func DecodeTemperature(raw [2]byte) (float64, error) {
	word := uint16(raw[0])<<8 | uint16(raw[1])

	value := float64(word&0x0fff) / 16
	if word&0x1000 != 0 {
		value = -value
	}

	if value < -40 || value > 125 {
		return 0, &InvalidTemperatureError{Value: value}
	}
	return value, nil
}

// DecodeManufacturerID decodes the manufacturer ID register: a raw
// big-endian unsigned value.
func DecodeManufacturerID(raw [2]byte) uint16 {
	return uint16(raw[0])<<8 | uint16(raw[1])
}

// DecodeDeviceID decodes the device ID register: device ID in the upper
// byte, silicon revision in the lower.
func DecodeDeviceID(raw [2]byte) (id, revision uint8) {
	return raw[0], raw[1]
}
