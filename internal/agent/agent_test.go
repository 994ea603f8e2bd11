package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/openfanctl/pcfan-agent/pkg/fan"
	"github.com/openfanctl/pcfan-agent/pkg/fancurve"
	"github.com/openfanctl/pcfan-agent/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSensor struct {
	reading SensorReading
	err     error
}

func (s *fakeSensor) Read(context.Context) (SensorReading, error) {
	return s.reading, s.err
}

type fakeFan struct {
	powers []float64
	setErr error
	rpm    float64
	rpmErr error
}

func (f *fakeFan) SetPower(_ context.Context, power fan.Power) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.powers = append(f.powers, power.Percent())
	return nil
}

func (f *fakeFan) RPM(context.Context) (float64, error) {
	return f.rpm, f.rpmErr
}

func testAgent(t *testing.T, sensor Sensor, writer fanWriter) *fanAgentImpl {
	t.Helper()
	curve, err := fancurve.New([]fancurve.Knot{
		{Temperature: 20, Percent: 30},
		{Temperature: 65, Percent: 100},
	})
	require.NoError(t, err)

	return &fanAgentImpl{
		opts: FanAgentConfig{
			Sensor:                       SensorDHT11,
			CriticalTemperatureThreshold: 60,
		},
		clock:  util.RealClock{},
		state:  newCriticalState(),
		curve:  curve,
		sensor: sensor,
		fan:    writer,
	}
}

func TestTick_FollowsCurve(t *testing.T) {
	t.Parallel()

	writer := &fakeFan{rpm: 1200}
	a := testAgent(t, &fakeSensor{reading: SensorReading{Temperature: 25}}, writer)

	a.tick(context.Background())

	require.Len(t, writer.powers, 1)
	// Two knots interpolate linearly: 30% + (25-20)/(65-20)·70%
	assert.InDelta(t, 37.78, writer.powers[0], 0.01)
}

func TestTick_ClampsBelowCurve(t *testing.T) {
	t.Parallel()

	writer := &fakeFan{rpm: 600}
	a := testAgent(t, &fakeSensor{reading: SensorReading{Temperature: 5}}, writer)

	a.tick(context.Background())

	require.Len(t, writer.powers, 1)
	assert.InDelta(t, 30.0, writer.powers[0], 1e-9)
}

func TestTick_CriticalPinsFullPower(t *testing.T) {
	t.Parallel()

	writer := &fakeFan{rpm: 2400}
	a := testAgent(t, &fakeSensor{reading: SensorReading{Temperature: 75}}, writer)

	a.tick(context.Background())

	require.Len(t, writer.powers, 1)
	assert.InDelta(t, 100.0, writer.powers[0], 1e-9)

	// Overrides are rejected while critical
	assert.Error(t, a.SetFanPower(context.Background(), 20))
}

func TestTick_CriticalClears(t *testing.T) {
	t.Parallel()

	sensor := &fakeSensor{reading: SensorReading{Temperature: 75}}
	writer := &fakeFan{rpm: 2400}
	a := testAgent(t, sensor, writer)

	a.tick(context.Background())
	require.True(t, a.state.CriticalActive())

	sensor.reading.Temperature = 25
	a.tick(context.Background())
	require.False(t, a.state.CriticalActive())

	require.Len(t, writer.powers, 2)
	assert.InDelta(t, 100.0, writer.powers[0], 1e-9)
	assert.InDelta(t, 37.78, writer.powers[1], 0.01)
}

func TestTick_Override(t *testing.T) {
	t.Parallel()

	writer := &fakeFan{rpm: 900}
	a := testAgent(t, &fakeSensor{reading: SensorReading{Temperature: 25}}, writer)

	require.NoError(t, a.SetFanPower(context.Background(), 55))
	a.tick(context.Background())

	require.NoError(t, a.ClearFanPowerOverride(context.Background()))
	a.tick(context.Background())

	require.Len(t, writer.powers, 2)
	assert.InDelta(t, 55.0, writer.powers[0], 1e-9)
	assert.InDelta(t, 37.78, writer.powers[1], 0.01)
}

func TestSetFanPower_Invalid(t *testing.T) {
	t.Parallel()

	a := testAgent(t, &fakeSensor{}, &fakeFan{})

	var invalid *fan.InvalidPowerError
	assert.ErrorAs(t, a.SetFanPower(context.Background(), 130), &invalid)
}

func TestTick_SensorErrorSkipsIteration(t *testing.T) {
	t.Parallel()

	writer := &fakeFan{}
	a := testAgent(t, &fakeSensor{err: errors.New("sensor gone")}, writer)

	a.tick(context.Background())

	assert.Empty(t, writer.powers)
	assert.False(t, a.state.CriticalActive())
}

func TestTick_FanErrorAbortsIterationOnly(t *testing.T) {
	t.Parallel()

	writer := &fakeFan{setErr: errors.New("pwm gone")}
	a := testAgent(t, &fakeSensor{reading: SensorReading{Temperature: 25}}, writer)

	// Must not panic or latch any state
	a.tick(context.Background())
	assert.Empty(t, writer.powers)
}
