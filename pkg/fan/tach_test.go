package fan_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openfanctl/pcfan-agent/pkg/fan"
	"github.com/openfanctl/pcfan-agent/pkg/hal"
	"github.com/openfanctl/pcfan-agent/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func elapsedChan() chan time.Time {
	c := make(chan time.Time, 1)
	c <- time.Now()
	return c
}

func TestTachReader_Frequency(t *testing.T) {
	t.Parallel()

	counter := &hal.PulseCounterMock{}
	counter.On("Reset").Return(nil)
	counter.On("Count").Return(uint32(2), nil)

	clock := &util.MockClock{}
	clock.On("After", 500*time.Millisecond).Return(elapsedChan())

	reader := fan.NewTachReader(counter, clock, 0)
	freq, err := reader.Frequency(context.Background())
	require.NoError(t, err)

	// 2 pulses over 500ms at 2 pulses per revolution -> 2Hz
	assert.InDelta(t, 2.0, freq, 1e-9)
	counter.AssertExpectations(t)
}

func TestTachReader_RPM(t *testing.T) {
	t.Parallel()

	counter := &hal.PulseCounterMock{}
	counter.On("Reset").Return(nil)
	counter.On("Count").Return(uint32(20), nil)

	clock := &util.MockClock{}
	clock.On("After", 500*time.Millisecond).Return(elapsedChan())

	reader := fan.NewTachReader(counter, clock, 0)
	rpm, err := reader.RPM(context.Background())
	require.NoError(t, err)

	// 20 pulses over 500ms -> 20Hz rotation -> 1200 RPM
	assert.InDelta(t, 1200.0, rpm, 1e-9)
}

func TestTachReader_NotEnoughSamples(t *testing.T) {
	t.Parallel()

	for _, count := range []uint32{0, 1} {
		counter := &hal.PulseCounterMock{}
		counter.On("Reset").Return(nil)
		counter.On("Count").Return(count, nil)

		clock := &util.MockClock{}
		clock.On("After", 500*time.Millisecond).Return(elapsedChan())

		reader := fan.NewTachReader(counter, clock, 0)
		_, err := reader.Frequency(context.Background())

		var notEnough *fan.NotEnoughSamplesError
		require.ErrorAs(t, err, &notEnough)
		assert.Equal(t, count, notEnough.Count)
	}
}

func TestTachReader_CounterErrorWrapped(t *testing.T) {
	t.Parallel()

	counterErr := errors.New("line closed")
	counter := &hal.PulseCounterMock{}
	counter.On("Reset").Return(counterErr)

	clock := &util.MockClock{}

	reader := fan.NewTachReader(counter, clock, 0)
	_, err := reader.Frequency(context.Background())
	require.ErrorIs(t, err, counterErr)
}
