package agent

import (
	"context"
	"fmt"

	"github.com/openfanctl/pcfan-agent/pkg/dht11"
	"github.com/openfanctl/pcfan-agent/pkg/fan"
	"github.com/openfanctl/pcfan-agent/pkg/hal"
	"github.com/openfanctl/pcfan-agent/pkg/mcp9808"
	"github.com/openfanctl/pcfan-agent/pkg/probe"
	"github.com/openfanctl/pcfan-agent/pkg/util"
)

// SensorReading is one ambient measurement.
type SensorReading struct {
	// Temperature in °C
	Temperature float64
	// Humidity in percent relative humidity; only valid if HasHumidity is set
	Humidity    float64
	HasHumidity bool
}

// Sensor provides ambient readings for the control loop.
type Sensor interface {
	Read(ctx context.Context) (SensorReading, error)
}

// dht11Sensor reads the single-wire sensor on the HAL's sensor line.
type dht11Sensor struct {
	driver *dht11.Driver
}

func newDHT11Sensor(controlHal hal.FanControlHal, clock util.Clock) *dht11Sensor {
	return &dht11Sensor{driver: dht11.New(controlHal.SensorLine(), clock)}
}

func (s *dht11Sensor) Read(ctx context.Context) (SensorReading, error) {
	reading, err := s.driver.Read(ctx)
	if err != nil {
		return SensorReading{}, err
	}
	return SensorReading{
		Temperature: reading.Temperature,
		Humidity:    reading.Humidity,
		HasHumidity: true,
	}, nil
}

// mcp9808Sensor reads the I2C temperature sensor on the HAL's bus.
type mcp9808Sensor struct {
	device *mcp9808.Device
}

func newMCP9808Sensor(controlHal hal.FanControlHal) (*mcp9808Sensor, error) {
	bus, err := controlHal.I2C()
	if err != nil {
		return nil, err
	}

	device := mcp9808.New(bus)
	present, err := device.Present()
	if err != nil {
		return nil, fmt.Errorf("identifying mcp9808: %w", err)
	}
	if !present {
		return nil, fmt.Errorf("no mcp9808 found at address %#02x", device.Address)
	}
	return &mcp9808Sensor{device: device}, nil
}

func (s *mcp9808Sensor) Read(_ context.Context) (SensorReading, error) {
	temperature, err := s.device.Temperature()
	if err != nil {
		return SensorReading{}, err
	}
	return SensorReading{Temperature: temperature}, nil
}

// probeSensor reads the telemetry cached by the serial probe client.
type probeSensor struct {
	client *probe.Client
}

func (s *probeSensor) Read(_ context.Context) (SensorReading, error) {
	reading, err := s.client.Reading()
	if err != nil {
		return SensorReading{}, err
	}
	return SensorReading{
		Temperature: reading.Temperature,
		Humidity:    reading.Humidity,
		HasHumidity: true,
	}, nil
}

// fanWriter drives the fan and reads back its speed, either through the
// local HAL or forwarded over the probe link.
type fanWriter interface {
	SetPower(ctx context.Context, power fan.Power) error
	RPM(ctx context.Context) (float64, error)
}

type localFan struct {
	controlHal hal.FanControlHal
	tach       *fan.TachReader
}

func newLocalFan(controlHal hal.FanControlHal, clock util.Clock) *localFan {
	return &localFan{
		controlHal: controlHal,
		tach:       fan.NewTachReader(controlHal.Tachometer(), clock, 0),
	}
}

func (f *localFan) SetPower(_ context.Context, power fan.Power) error {
	cfg := power.PwmConfig(f.controlHal.PwmClockHz())
	return f.controlHal.Fan().SetPeriodAndDuty(cfg.Top, cfg.Compare)
}

func (f *localFan) RPM(ctx context.Context) (float64, error) {
	return f.tach.RPM(ctx)
}

type probeFan struct {
	client *probe.Client
}

func (f *probeFan) SetPower(ctx context.Context, power fan.Power) error {
	return f.client.SetFanPower(ctx, power)
}

func (f *probeFan) RPM(_ context.Context) (float64, error) {
	return f.client.FanRPM()
}
