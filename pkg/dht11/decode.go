// Package dht11 drives the DHT11 temperature and humidity sensor over its
// single-wire bus and decodes its payloads.
//
// A DHT11 payload is encoded as follows, the most significant bit first:
//
//	 0                   1
//	 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|  Humidity int | Humidity frac |
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|    Temp int   |   Temp frac   |
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|    Checksum   |
//	+-+-+-+-+-+-+-+-+
//
// The integer bytes are sign-magnitude: the top bit is the sign, the
// remaining seven the magnitude. The fractional bytes hold decimal tenths.
// The checksum is the wrapping sum of the first four bytes.
//
// See the datasheet § 5:
// https://www.mouser.com/datasheet/2/758/DHT11-Technical-Data-Sheet-Translated-Version-1143054.pdf
package dht11

// Payload is a raw 40-bit DHT11 frame.
type Payload [5]byte

// Reading is a decoded DHT11 measurement.
type Reading struct {
	// Humidity in percent, 0 to 100.
	Humidity float64
	// Temperature in °C, -50 to 50.
	Temperature float64
}

// Decode validates and decodes a payload. It is a pure function: identical
// payloads always decode identically.
func Decode(p Payload) (Reading, error) {
	expected := p[4]
	actual := p[0] + p[1] + p[2] + p[3]
	if actual != expected {
		return Reading{}, &ChecksumMismatchError{Expected: expected, Actual: actual}
	}

	humidity := signMagnitude(p[0], p[1])
	temperature := signMagnitude(p[2], p[3])

	if humidity < 0 || humidity > 100 {
		return Reading{}, &InvalidHumidityError{Value: humidity}
	}
	if temperature < -50 || temperature > 50 {
		return Reading{}, &InvalidTemperatureError{Value: temperature}
	}

	return Reading{Humidity: humidity, Temperature: temperature}, nil
}

// signMagnitude converts an integer/fractional byte pair to a float. The
// integer byte is sign-magnitude, the fractional byte holds decimal tenths.
func signMagnitude(integer, frac byte) float64 {
	value := float64(integer&0x7f) + float64(frac)/10
	if integer&0x80 != 0 {
		return -value
	}
	return value
}
