// Package proto implements the framed point-to-point protocol spoken over
// the serial link between the agent and the sensor probe.
//
// Every packet is a command byte plus six data bytes, followed by an XOR
// checksum, wrapped in SOF/EOF framing. Payload bytes colliding with the
// framing bytes are escaped.
package proto

import (
	"context"
	"errors"
	"io"
)

var (
	ErrChecksumMismatch   = errors.New("checksum mismatch")
	ErrInvalidFramingByte = errors.New("invalid framing byte")
)

const (
	SOF = 0x7E // Start of Frame
	ESC = 0x7D // Escape character
	XOR = 0x20 // XOR value for escaping
	EOF = 0x7F // End of Frame
)

// DataLen is the fixed payload size of a packet.
const DataLen = 6

// frameLen is the unescaped length of a full frame:
// SOF + command + data + checksum + EOF.
const frameLen = 1 + 1 + DataLen + 1 + 1

// Command represents the command byte.
type Command uint8

// Data represents the six data bytes.
type Data [DataLen]uint8

// Packet represents a serial packet with command and data.
type Packet struct {
	Command Command
	Data    Data
}

// Checksum calculates the checksum for a packet.
func (packet *Packet) Checksum() uint8 {
	crc := uint8(packet.Command)
	for _, d := range packet.Data {
		crc ^= d
	}
	return crc
}

// WritePacket writes a packet to an io.Writer with escaping.
func WritePacket(_ context.Context, w io.Writer, packet Packet) error {
	payload := make([]uint8, 0, frameLen)
	payload = append(payload, uint8(packet.Command))
	payload = append(payload, packet.Data[:]...)
	payload = append(payload, packet.Checksum())

	frame := []uint8{SOF}
	for _, b := range payload {
		if b == SOF || b == EOF || b == ESC {
			frame = append(frame, ESC, b^XOR)
		} else {
			frame = append(frame, b)
		}
	}
	frame = append(frame, EOF)

	_, err := w.Write(frame)
	return err
}

// ReadPacket reads a packet from an io.Reader with escaping. It blocks and
// drops invalid bytes until a valid frame is received.
func ReadPacket(ctx context.Context, r io.Reader) (Packet, error) {
	buffer := make([]uint8, 0, frameLen)

	started := false
	escaped := false

	for {
		// Check if context is done before reading
		select {
		case <-ctx.Done():
			return Packet{}, ctx.Err()
		default:
		}

		b := make([]uint8, 1)
		if _, err := r.Read(b); err != nil {
			return Packet{}, err
		}

		if b[0] == SOF && !started {
			started = true
		} else if !started {
			continue
		}

		if escaped {
			buffer = append(buffer, b[0]^XOR)
			escaped = false
			continue
		}
		if b[0] == ESC {
			escaped = true
			continue
		}
		buffer = append(buffer, b[0])

		if b[0] == EOF {
			if len(buffer) == frameLen {
				break
			}
			// Garbage frame; resync on the next SOF
			buffer = buffer[:0]
			started = false
		}
	}

	if buffer[0] != SOF || buffer[frameLen-1] != EOF {
		return Packet{}, ErrInvalidFramingByte
	}

	pkt := Packet{Command: Command(buffer[1])}
	copy(pkt.Data[:], buffer[2:2+DataLen])

	if buffer[2+DataLen] != pkt.Checksum() {
		return Packet{}, ErrChecksumMismatch
	}

	return pkt, nil
}
