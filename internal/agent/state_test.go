package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCriticalState_Transitions(t *testing.T) {
	t.Parallel()

	state := newCriticalState()
	assert.False(t, state.CriticalActive())

	// Below threshold, nothing changes
	assert.False(t, state.RegisterTemperature(25, 60))
	assert.False(t, state.CriticalActive())

	// Crossing the threshold activates critical
	assert.True(t, state.RegisterTemperature(60, 60))
	assert.True(t, state.CriticalActive())

	// Staying above is not a change
	assert.False(t, state.RegisterTemperature(70, 60))
	assert.True(t, state.CriticalActive())

	// Falling below clears
	assert.True(t, state.RegisterTemperature(40, 60))
	assert.False(t, state.CriticalActive())
}

func TestCriticalState_WaitForCriticalClear(t *testing.T) {
	t.Parallel()

	state := newCriticalState()
	state.RegisterTemperature(80, 60)
	require.True(t, state.CriticalActive())

	cleared := make(chan error, 1)
	go func() {
		cleared <- state.WaitForCriticalClear(context.Background())
	}()

	state.RegisterTemperature(30, 60)

	select {
	case err := <-cleared:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("WaitForCriticalClear did not return after the state cleared")
	}
}

func TestCriticalState_WaitForCriticalClearContext(t *testing.T) {
	t.Parallel()

	state := newCriticalState()
	state.RegisterTemperature(80, 60)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, state.WaitForCriticalClear(ctx), context.Canceled)
}
