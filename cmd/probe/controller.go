//go:build tinygo

package main

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"
	"tinygo.org/x/drivers"

	"github.com/openfanctl/pcfan-agent/pkg/dht11"
	"github.com/openfanctl/pcfan-agent/pkg/fan"
	"github.com/openfanctl/pcfan-agent/pkg/hal"
	"github.com/openfanctl/pcfan-agent/pkg/mcp9808"
	"github.com/openfanctl/pcfan-agent/pkg/probe"
	"github.com/openfanctl/pcfan-agent/pkg/probe/proto"
)

type Controller struct {
	UART drivers.UART

	Climate *dht11.Driver
	// Precision is the optional MCP9808; when present its temperature
	// overrides the DHT11's in the reported readings
	Precision *mcp9808.Device

	Fan        hal.PwmOutput
	Tach       *fan.TachReader
	PwmClockHz float64

	DefaultFanPower float64
}

func (c *Controller) Run(parentCtx context.Context) error {
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	if err := c.applyPower(c.DefaultFanPower); err != nil {
		return err
	}

	group := errgroup.Group{}

	println("Starting command listener")
	group.Go(func() error {
		defer cancel()
		return c.listenCommands(ctx)
	})

	println("Starting telemetry reporter")
	group.Go(func() error {
		defer cancel()
		return c.telemetryReporter(ctx)
	})

	return group.Wait()
}

// listenCommands reads packets from the UART and applies fan power commands.
func (c *Controller) listenCommands(ctx context.Context) error {
	var pkt probe.SetFanPowerPacket
	for {
		raw, err := proto.ReadPacket(ctx, c.UART)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			println(err.Error())
			continue
		}
		if raw.Command != probe.CmdSetFanPower {
			println("ignoring unknown command", raw.Command)
			continue
		}
		if err := pkt.FromPacket(raw); err != nil {
			println(err.Error())
			continue
		}
		if err := c.applyPower(float64(pkt.Percent)); err != nil {
			println(err.Error())
		}
	}
}

func (c *Controller) applyPower(percent float64) error {
	power, err := fan.NewPower(percent)
	if err != nil {
		return err
	}
	cfg := power.PwmConfig(c.PwmClockHz)
	return c.Fan.SetPeriodAndDuty(cfg.Top, cfg.Compare)
}

// telemetryReporter periodically reads the sensors and notifies the agent.
func (c *Controller) telemetryReporter(ctx context.Context) error {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		c.reportClimate(ctx)
		c.reportFanRPM(ctx)
	}
}

func (c *Controller) reportClimate(ctx context.Context) {
	payload, err := c.Climate.ReadPayload(ctx)
	if err != nil {
		println("dht11 read failed:", err.Error())
		return
	}

	raw := probe.RawPayloadPacket{Payload: payload}
	if err := proto.WritePacket(ctx, c.UART, raw.Packet()); err != nil {
		println(err.Error())
	}

	reading, err := dht11.Decode(payload)
	if err != nil {
		println("dht11 decode failed:", err.Error())
		return
	}

	sensorReading := probe.SensorReadingPacket{
		Temperature: float32(reading.Temperature),
		Humidity:    float32(reading.Humidity),
	}
	if c.Precision != nil {
		if temperature, err := c.Precision.Temperature(); err == nil {
			sensorReading.Temperature = float32(temperature)
		} else {
			println("mcp9808 read failed:", err.Error())
		}
	}
	if err := proto.WritePacket(ctx, c.UART, sensorReading.Packet()); err != nil {
		println(err.Error())
	}
}

func (c *Controller) reportFanRPM(ctx context.Context) {
	rpm, err := c.Tach.RPM(ctx)
	if err != nil {
		var notEnough *fan.NotEnoughSamplesError
		if !errors.As(err, &notEnough) {
			println("tach read failed:", err.Error())
		}
		return
	}

	pkt := probe.FanRPMPacket{RPM: float32(rpm)}
	if err := proto.WritePacket(ctx, c.UART, pkt.Packet()); err != nil {
		println(err.Error())
	}
}
