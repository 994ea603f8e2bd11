// Package probe implements the agent side of the serial link to the sensor
// probe: a small microcontroller carrying the climate sensor and the fan
// header when the host has no usable GPIO of its own.
package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.bug.st/serial"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/openfanctl/pcfan-agent/pkg/dht11"
	"github.com/openfanctl/pcfan-agent/pkg/fan"
	"github.com/openfanctl/pcfan-agent/pkg/log"
	"github.com/openfanctl/pcfan-agent/pkg/probe/proto"
)

// ErrNoTelemetry indicates the probe has not reported the requested value
// since the client connected.
var ErrNoTelemetry = errors.New("no telemetry received from probe yet")

// Client caches the latest telemetry notified by the probe and forwards fan
// power commands to it. Run must be active for the accessors to observe
// fresh data.
type Client struct {
	port      io.ReadWriteCloser
	closeOnce sync.Once
	closeErr  error

	writeMu sync.Mutex

	mu      sync.RWMutex
	reading *dht11.Reading
	rpm     *float64
	payload *dht11.Payload
}

// Dial opens the serial port the probe is attached to.
func Dial(portName string) (*Client, error) {
	port, err := serial.Open(portName, &serial.Mode{BaudRate: Baudrate})
	if err != nil {
		return nil, fmt.Errorf("opening serial port %s: %w", portName, err)
	}
	return NewClient(port), nil
}

// NewClient wraps an already-open probe connection.
func NewClient(port io.ReadWriteCloser) *Client {
	return &Client{port: port}
}

// Run consumes telemetry notifications until the context is cancelled or the
// link fails.
func (c *Client) Run(ctx context.Context) error {
	logger := log.FromContext(ctx).Named("probe")

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		// Closing the port unblocks the pending ReadPacket
		<-ctx.Done()
		return c.Close()
	})

	eg.Go(func() error {
		for {
			pkt, err := proto.ReadPacket(ctx, c.port)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("reading packet: %w", err)
			}
			c.handlePacket(logger, pkt)
		}
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (c *Client) handlePacket(logger *zap.Logger, pkt proto.Packet) {
	switch pkt.Command {
	case NotifySensorReading:
		var sr SensorReadingPacket
		if err := sr.FromPacket(pkt); err != nil {
			logger.Warn("Dropping malformed sensor reading", zap.Error(err))
			return
		}
		reading := dht11.Reading{
			Temperature: float64(sr.Temperature),
			Humidity:    float64(sr.Humidity),
		}
		c.mu.Lock()
		c.reading = &reading
		c.mu.Unlock()
		logger.Debug("Sensor reading",
			zap.Float64("temperature", reading.Temperature),
			zap.Float64("humidity", reading.Humidity),
		)

	case NotifyFanRPM:
		var fr FanRPMPacket
		if err := fr.FromPacket(pkt); err != nil {
			logger.Warn("Dropping malformed fan RPM", zap.Error(err))
			return
		}
		rpm := float64(fr.RPM)
		c.mu.Lock()
		c.rpm = &rpm
		c.mu.Unlock()
		logger.Debug("Fan RPM", zap.Float64("rpm", rpm))

	case NotifyRawPayload:
		var rp RawPayloadPacket
		if err := rp.FromPacket(pkt); err != nil {
			logger.Warn("Dropping malformed raw payload", zap.Error(err))
			return
		}
		c.mu.Lock()
		c.payload = &rp.Payload
		c.mu.Unlock()

	default:
		logger.Warn("Unknown command", zap.Uint8("command", uint8(pkt.Command)))
	}
}

// SetFanPower forwards the desired fan power to the probe.
func (c *Client) SetFanPower(ctx context.Context, power fan.Power) error {
	pkt := SetFanPowerPacket{Percent: float32(power.Percent())}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return proto.WritePacket(ctx, c.port, pkt.Packet())
}

// Reading returns the latest temperature and humidity reported by the probe.
func (c *Client) Reading() (dht11.Reading, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.reading == nil {
		return dht11.Reading{}, ErrNoTelemetry
	}
	return *c.reading, nil
}

// Temperature returns the latest temperature reported by the probe.
func (c *Client) Temperature() (float64, error) {
	reading, err := c.Reading()
	if err != nil {
		return 0, err
	}
	return reading.Temperature, nil
}

// FanRPM returns the latest fan speed reported by the probe.
func (c *Client) FanRPM() (float64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.rpm == nil {
		return 0, ErrNoTelemetry
	}
	return *c.rpm, nil
}

// RawPayload returns the latest raw sensor payload reported by the probe.
func (c *Client) RawPayload() (dht11.Payload, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.payload == nil {
		return dht11.Payload{}, ErrNoTelemetry
	}
	return *c.payload, nil
}

// Close closes the underlying serial port. Safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.port.Close()
	})
	return c.closeErr
}
