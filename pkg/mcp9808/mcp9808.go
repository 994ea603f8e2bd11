package mcp9808

import (
	"fmt"

	"tinygo.org/x/drivers"
)

const (
	// Address is the default I2C address for the MCP9808
	Address = 0x18

	// Register pointer values, datasheet § 5.1
	RegTemperature    = 0x05
	RegManufacturerID = 0x06
	RegDeviceID       = 0x07

	// ManufacturerID is the value the manufacturer ID register reads on a
	// genuine part.
	ManufacturerID = 0x0054
	// DeviceID is the value the device ID field reads on a genuine part.
	DeviceID = 0x04
)

// Device is an MCP9808 on an I2C bus.
type Device struct {
	Address uint16
	bus     drivers.I2C
}

// New creates an MCP9808 driver on the given bus at the default address.
// The bus must already be configured.
func New(bus drivers.I2C) *Device {
	return &Device{bus: bus, Address: Address}
}

// readRegister selects a register and reads its 16-bit payload.
func (d *Device) readRegister(reg uint8) ([2]byte, error) {
	buf := make([]byte, 2)
	if err := d.bus.Tx(d.Address, []byte{reg}, buf); err != nil {
		return [2]byte{}, fmt.Errorf("reading register %#02x: %w", reg, err)
	}
	return [2]byte{buf[0], buf[1]}, nil
}

// Temperature returns the ambient temperature in °C.
func (d *Device) Temperature() (float64, error) {
	raw, err := d.readRegister(RegTemperature)
	if err != nil {
		return 0, err
	}
	return DecodeTemperature(raw)
}

// ManufacturerID returns the raw manufacturer ID register value.
func (d *Device) ManufacturerID() (uint16, error) {
	raw, err := d.readRegister(RegManufacturerID)
	if err != nil {
		return 0, err
	}
	return DecodeManufacturerID(raw), nil
}

// DeviceID returns the device ID and silicon revision.
func (d *Device) DeviceID() (id, revision uint8, err error) {
	raw, err := d.readRegister(RegDeviceID)
	if err != nil {
		return 0, 0, err
	}
	id, revision = DecodeDeviceID(raw)
	return id, revision, nil
}

// Present reports whether a genuine MCP9808 answers on the bus, comparing
// the identification registers against the datasheet constants.
func (d *Device) Present() (bool, error) {
	manufacturer, err := d.ManufacturerID()
	if err != nil {
		return false, err
	}
	id, _, err := d.DeviceID()
	if err != nil {
		return false, err
	}
	return manufacturer == ManufacturerID && id == DeviceID, nil
}
