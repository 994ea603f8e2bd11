package fancurve_test

import (
	"testing"

	"github.com/openfanctl/pcfan-agent/pkg/fancurve"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurve_SampleClampsOutsideDomain(t *testing.T) {
	t.Parallel()

	curve, err := fancurve.New([]fancurve.Knot{
		{Temperature: 20, Percent: 30},
		{Temperature: 65, Percent: 100},
	})
	require.NoError(t, err)

	assert.Equal(t, curve.Sample(20), curve.Sample(0))
	assert.Equal(t, 30.0, curve.Sample(0))
	assert.Equal(t, curve.Sample(65), curve.Sample(100))
	assert.Equal(t, 100.0, curve.Sample(100))
}

func TestCurve_SampleMonotonic(t *testing.T) {
	t.Parallel()

	curve, err := fancurve.New([]fancurve.Knot{
		{Temperature: 20, Percent: 30},
		{Temperature: 65, Percent: 100},
	})
	require.NoError(t, err)

	prev := curve.Sample(20)
	for temp := 20.0; temp <= 65.0; temp += 0.25 {
		speed := curve.Sample(temp)
		assert.GreaterOrEqual(t, speed, prev, "curve must not decrease at %g°C", temp)
		assert.GreaterOrEqual(t, speed, 0.0)
		assert.LessOrEqual(t, speed, 100.0)
		prev = speed
	}
}

func TestCurve_TwoKnotsInterpolateLinearly(t *testing.T) {
	t.Parallel()

	curve, err := fancurve.New([]fancurve.Knot{
		{Temperature: 20, Percent: 30},
		{Temperature: 30, Percent: 60},
	})
	require.NoError(t, err)

	// With two knots the Hermite segment degenerates to the secant line.
	assert.InDelta(t, 45.0, curve.Sample(25), 1e-9)
	assert.InDelta(t, 37.5, curve.Sample(22.5), 1e-9)
}

func TestCurve_MultiKnotStaysInEnvelope(t *testing.T) {
	t.Parallel()

	curve, err := fancurve.New([]fancurve.Knot{
		{Temperature: 0, Percent: 0},
		{Temperature: 20, Percent: 30},
		{Temperature: 65, Percent: 100},
		{Temperature: 80, Percent: 100},
	})
	require.NoError(t, err)

	prev := curve.Sample(0)
	for temp := 0.0; temp <= 80.0; temp += 0.5 {
		speed := curve.Sample(temp)
		assert.GreaterOrEqual(t, speed, prev, "curve must not decrease at %g°C", temp)
		assert.LessOrEqual(t, speed, 100.0)
		prev = speed
	}
	assert.InDelta(t, 30.0, curve.Sample(20), 1e-9)
	assert.InDelta(t, 100.0, curve.Sample(65), 1e-9)
}

func TestNew_ConstructionErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		knots []fancurve.Knot
	}{
		{
			"TooFewKnots",
			[]fancurve.Knot{{Temperature: 20, Percent: 30}},
		},
		{
			"NonMonotonicTemperatures",
			[]fancurve.Knot{
				{Temperature: 30, Percent: 60},
				{Temperature: 20, Percent: 30},
			},
		},
		{
			"DuplicateKnot",
			[]fancurve.Knot{
				{Temperature: 20, Percent: 30},
				{Temperature: 20, Percent: 60},
			},
		},
		{
			"SpeedOutOfRange",
			[]fancurve.Knot{
				{Temperature: 20, Percent: 30},
				{Temperature: 30, Percent: 200},
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := fancurve.New(tt.knots)
			require.ErrorIs(t, err, fancurve.ErrInvalidCurve)
		})
	}
}
