package probe

import (
	"errors"

	"github.com/openfanctl/pcfan-agent/pkg/dht11"
	"github.com/openfanctl/pcfan-agent/pkg/probe/proto"
)

// Baudrate of the serial link between the agent and the probe.
const Baudrate = 115200

const (
	// Agent -> probe
	CmdSetFanPower proto.Command = 0x01

	// Probe -> agent, sent in regular intervals
	NotifySensorReading proto.Command = 0xa1
	NotifyFanRPM        proto.Command = 0xa2
	NotifyRawPayload    proto.Command = 0xa3
)

var ErrInvalidCommand = errors.New("invalid command")

type PacketGenerator interface {
	Packet() proto.Packet
}

// SetFanPowerPacket is sent from the agent to the probe to set the fan power
// in percent.
type SetFanPowerPacket struct {
	Percent float32
}

func (p *SetFanPowerPacket) Packet() proto.Packet {
	enc := float32To24Bit(p.Percent)
	return proto.Packet{
		Command: CmdSetFanPower,
		Data:    proto.Data{enc[0], enc[1], enc[2], 0, 0, 0},
	}
}

func (p *SetFanPowerPacket) FromPacket(packet proto.Packet) error {
	if packet.Command != CmdSetFanPower {
		return ErrInvalidCommand
	}
	p.Percent = float32From24Bit([3]uint8{packet.Data[0], packet.Data[1], packet.Data[2]})
	return nil
}

// SensorReadingPacket is sent from the probe to the agent to report the
// latest decoded temperature and humidity.
type SensorReadingPacket struct {
	Temperature float32
	Humidity    float32
}

func (p *SensorReadingPacket) Packet() proto.Packet {
	temp := float32To24Bit(p.Temperature)
	hum := float32To24Bit(p.Humidity)
	return proto.Packet{
		Command: NotifySensorReading,
		Data:    proto.Data{temp[0], temp[1], temp[2], hum[0], hum[1], hum[2]},
	}
}

func (p *SensorReadingPacket) FromPacket(packet proto.Packet) error {
	if packet.Command != NotifySensorReading {
		return ErrInvalidCommand
	}
	p.Temperature = float32From24Bit([3]uint8{packet.Data[0], packet.Data[1], packet.Data[2]})
	p.Humidity = float32From24Bit([3]uint8{packet.Data[3], packet.Data[4], packet.Data[5]})
	return nil
}

// FanRPMPacket is sent from the probe to the agent to report the current fan
// speed in RPM.
type FanRPMPacket struct {
	RPM float32
}

func (p *FanRPMPacket) Packet() proto.Packet {
	enc := float32To24Bit(p.RPM)
	return proto.Packet{
		Command: NotifyFanRPM,
		Data:    proto.Data{enc[0], enc[1], enc[2], 0, 0, 0},
	}
}

func (p *FanRPMPacket) FromPacket(packet proto.Packet) error {
	if packet.Command != NotifyFanRPM {
		return ErrInvalidCommand
	}
	p.RPM = float32From24Bit([3]uint8{packet.Data[0], packet.Data[1], packet.Data[2]})
	return nil
}

// RawPayloadPacket is sent from the probe to the agent to expose the raw
// sensor payload for diagnostics. The sixth data byte is unused.
type RawPayloadPacket struct {
	Payload dht11.Payload
}

func (p *RawPayloadPacket) Packet() proto.Packet {
	return proto.Packet{
		Command: NotifyRawPayload,
		Data:    proto.Data{p.Payload[0], p.Payload[1], p.Payload[2], p.Payload[3], p.Payload[4], 0},
	}
}

func (p *RawPayloadPacket) FromPacket(packet proto.Packet) error {
	if packet.Command != NotifyRawPayload {
		return ErrInvalidCommand
	}
	copy(p.Payload[:], packet.Data[:len(p.Payload)])
	return nil
}
