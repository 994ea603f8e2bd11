// Package agent implements the fan control loop: read the ambient sensor,
// sample the fan curve and drive the fan, with a critical-temperature
// override on top.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/openfanctl/pcfan-agent/pkg/fan"
	"github.com/openfanctl/pcfan-agent/pkg/fancurve"
	"github.com/openfanctl/pcfan-agent/pkg/hal"
	"github.com/openfanctl/pcfan-agent/pkg/log"
	"github.com/openfanctl/pcfan-agent/pkg/probe"
	"github.com/openfanctl/pcfan-agent/pkg/util"
)

var (
	iterationCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pcfan_agent",
		Name:      "control_iterations_count",
		Help:      "Fan agent control loop statistics (started iterations)",
	})

	failureCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pcfan_agent",
		Name:      "control_failures_count",
		Help:      "Fan agent control loop statistics (failed iterations)",
	}, []string{"kind"})

	temperatureMetric = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pcfan_agent",
		Name:      "temperature_celsius",
		Help:      "Latest ambient temperature reading",
	})

	humidityMetric = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pcfan_agent",
		Name:      "humidity_percent",
		Help:      "Latest relative humidity reading (DHT11/probe sensors only)",
	})

	fanPowerMetric = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pcfan_agent",
		Name:      "fan_power_percent",
		Help:      "Fan power applied by the last control iteration",
	})

	fanRPMMetric = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pcfan_agent",
		Name:      "fan_speed_rpm",
		Help:      "Latest tachometer readback",
	})
)

const defaultTickInterval = 5 * time.Second

// Sensor kinds selectable via configuration.
const (
	SensorDHT11   = "dht11"
	SensorMCP9808 = "mcp9808"
	SensorProbe   = "probe"
)

// FanAgentConfig is the agent configuration, loaded via viper.
type FanAgentConfig struct {
	// Sensor selects the ambient sensor: dht11, mcp9808 or probe
	Sensor string `mapstructure:"sensor"`

	// TickInterval is the control loop period
	TickInterval time.Duration `mapstructure:"tick_interval"`

	// CriticalTemperatureThreshold pins the fan at 100% when reached (°C)
	CriticalTemperatureThreshold float64 `mapstructure:"critical_temperature_threshold"`

	// Curve is the temperature→speed calibration
	Curve []fancurve.Knot `mapstructure:"curve"`

	// ProbePort is the serial port of the probe board (sensor=probe)
	ProbePort string `mapstructure:"probe_port"`

	Hal hal.FanControlHalOpts `mapstructure:"hal"`
}

// FanAgent implements the core logic of the agent: it periodically reads the
// sensor and drives the fan along the configured curve.
type FanAgent interface {
	// Run dispatches the agent and blocks until the context is canceled or an
	// error occurs
	Run(ctx context.Context) error
	// SetFanPower overrides the curve with a fixed fan power in percent
	SetFanPower(_ context.Context, percent float64) error
	// ClearFanPowerOverride returns fan control to the curve
	ClearFanPowerOverride(_ context.Context) error
	// WaitForCriticalClear blocks until the critical state clears
	WaitForCriticalClear(ctx context.Context) error

	Close() error
}

type fanAgentImpl struct {
	opts  FanAgentConfig
	clock util.Clock
	state *criticalState

	curve  *fancurve.Curve
	sensor Sensor
	fan    fanWriter

	controlHal  hal.FanControlHal
	probeClient *probe.Client

	overrideMu sync.Mutex
	override   *fan.Power
}

func NewFanAgent(ctx context.Context, opts FanAgentConfig) (FanAgent, error) {
	curve, err := fancurve.New(opts.Curve)
	if err != nil {
		return nil, err
	}

	a := &fanAgentImpl{
		opts:  opts,
		clock: util.RealClock{},
		state: newCriticalState(),
		curve: curve,
	}

	switch opts.Sensor {
	case SensorProbe:
		client, err := probe.Dial(opts.ProbePort)
		if err != nil {
			return nil, err
		}
		a.probeClient = client
		a.sensor = &probeSensor{client: client}
		a.fan = &probeFan{client: client}

	case SensorDHT11:
		controlHal, err := hal.NewFanControlHal(ctx, opts.Hal)
		if err != nil {
			return nil, err
		}
		a.controlHal = controlHal
		a.sensor = newDHT11Sensor(controlHal, a.clock)
		a.fan = newLocalFan(controlHal, a.clock)

	case SensorMCP9808:
		controlHal, err := hal.NewFanControlHal(ctx, opts.Hal)
		if err != nil {
			return nil, err
		}
		a.controlHal = controlHal
		a.sensor, err = newMCP9808Sensor(controlHal)
		if err != nil {
			return nil, errors.Join(err, controlHal.Close())
		}
		a.fan = newLocalFan(controlHal, a.clock)

	default:
		return nil, fmt.Errorf("unknown sensor kind %q", opts.Sensor)
	}

	return a, nil
}

func (a *fanAgentImpl) Run(origCtx context.Context) error {
	var wg sync.WaitGroup
	ctx, cancelCtx := context.WithCancelCause(origCtx)
	defer cancelCtx(nil)
	defer a.cleanup(origCtx)

	log.FromContext(ctx).Info("Starting fan agent",
		zap.String("sensor", a.opts.Sensor),
		zap.Duration("tick_interval", a.tickInterval()),
	)

	// Run the probe telemetry loop, if the sensor sits behind the serial link
	if a.probeClient != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.FromContext(ctx).Info("Starting probe client")
			if err := a.probeClient.Run(ctx); err != nil && err != context.Canceled {
				log.FromContext(ctx).Error("Probe client failed", zap.Error(err))
				cancelCtx(err)
			}
		}()
	}

	// Run the control loop
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(a.tickInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			a.tick(ctx)
		}
	}()

	wg.Wait()
	return context.Cause(ctx)
}

func (a *fanAgentImpl) tickInterval() time.Duration {
	if a.opts.TickInterval <= 0 {
		return defaultTickInterval
	}
	return a.opts.TickInterval
}

// tick runs one control iteration. Errors abort the iteration only; they are
// logged and counted, never fatal.
func (a *fanAgentImpl) tick(ctx context.Context) {
	logger := log.FromContext(ctx)
	iterationCounter.Inc()

	reading, err := a.sensor.Read(ctx)
	if err != nil {
		failureCounter.WithLabelValues("sensor").Inc()
		logger.Warn("Sensor read failed, skipping iteration", zap.Error(err))
		return
	}
	temperatureMetric.Set(reading.Temperature)
	if reading.HasHumidity {
		humidityMetric.Set(reading.Humidity)
	}

	if changed := a.state.RegisterTemperature(reading.Temperature, a.opts.CriticalTemperatureThreshold); changed {
		if a.state.CriticalActive() {
			logger.Warn("Critical temperature reached, pinning fan at 100%",
				zap.Float64("temperature", reading.Temperature),
				zap.Float64("threshold", a.opts.CriticalTemperatureThreshold),
			)
		} else {
			logger.Info("Critical temperature cleared, fan back on curve",
				zap.Float64("temperature", reading.Temperature),
			)
		}
	}

	power := a.targetPower(reading.Temperature)
	if err := a.fan.SetPower(ctx, power); err != nil {
		failureCounter.WithLabelValues("fan").Inc()
		logger.Error("Setting fan power failed", zap.Error(err))
		return
	}
	fanPowerMetric.Set(power.Percent())

	rpm, err := a.fan.RPM(ctx)
	if err != nil {
		// RPM readback is best effort; a slow or stopped fan legitimately
		// yields too few tach edges
		failureCounter.WithLabelValues("tach").Inc()
		logger.Debug("Tachometer readback failed", zap.Error(err))
		return
	}
	fanRPMMetric.Set(rpm)

	logger.Debug("Control iteration done",
		zap.Float64("temperature", reading.Temperature),
		zap.Float64("power", power.Percent()),
		zap.Float64("rpm", rpm),
	)
}

// targetPower derives the fan power for a temperature: curve by default, a
// manual override when set, 100% while critical.
func (a *fanAgentImpl) targetPower(temperature float64) fan.Power {
	if a.state.CriticalActive() {
		power, _ := fan.NewPower(100)
		return power
	}

	a.overrideMu.Lock()
	override := a.override
	a.overrideMu.Unlock()
	if override != nil {
		return *override
	}

	// Curve samples are always within [0, 100], NewPower cannot fail here
	power, _ := fan.NewPower(a.curve.Sample(temperature))
	return power
}

func (a *fanAgentImpl) SetFanPower(_ context.Context, percent float64) error {
	if a.state.CriticalActive() {
		return errors.New("cannot override fan power while in a critical state")
	}
	power, err := fan.NewPower(percent)
	if err != nil {
		return err
	}

	a.overrideMu.Lock()
	a.override = &power
	a.overrideMu.Unlock()
	return nil
}

func (a *fanAgentImpl) ClearFanPowerOverride(_ context.Context) error {
	a.overrideMu.Lock()
	a.override = nil
	a.overrideMu.Unlock()
	return nil
}

func (a *fanAgentImpl) WaitForCriticalClear(ctx context.Context) error {
	return a.state.WaitForCriticalClear(ctx)
}

// cleanup restores safe settings before exiting. Ignores canceled context!
func (a *fanAgentImpl) cleanup(ctx context.Context) {
	log.FromContext(ctx).Info("Exiting, restoring safe settings")
	power, _ := fan.NewPower(100)
	if err := a.fan.SetPower(context.WithoutCancel(ctx), power); err != nil {
		log.FromContext(ctx).Error("Failed to set fan power to 100%", zap.Error(err))
	}
	if err := a.Close(); err != nil {
		log.FromContext(ctx).Error("Failed to close agent", zap.Error(err))
	}
}

func (a *fanAgentImpl) Close() error {
	var errs []error
	if a.controlHal != nil {
		errs = append(errs, a.controlHal.Close())
	}
	if a.probeClient != nil {
		errs = append(errs, a.probeClient.Close())
	}
	return errors.Join(errs...)
}
