package probe

import "math"

// float24 packs a value with 0.1 precision into a signed 24-bit
// two's-complement integer. Out-of-range values are clamped.

const (
	float24Max = 0x7fffff
	float24Min = -0x800000
)

func float32To24Bit(val float32) [3]uint8 {
	scaled := int32(math.Round(float64(val) * 10))
	if scaled > float24Max {
		scaled = float24Max
	}
	if scaled < float24Min {
		scaled = float24Min
	}
	tmp := uint32(scaled) & 0xffffff
	return [3]uint8{
		uint8((tmp >> 16) & 0xff),
		uint8((tmp >> 8) & 0xff),
		uint8(tmp & 0xff),
	}
}

func float32From24Bit(data [3]uint8) float32 {
	tmp := uint32(data[0])<<16 | uint32(data[1])<<8 | uint32(data[2])
	// Sign-extend from 24 to 32 bits
	if tmp&0x800000 != 0 {
		tmp |= 0xff000000
	}
	return float32(int32(tmp)) / 10
}
