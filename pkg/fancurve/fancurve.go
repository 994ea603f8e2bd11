// Package fancurve maps temperature to a target fan speed through a
// calibrated interpolating curve.
package fancurve

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrInvalidCurve indicates the calibration knots cannot form a curve. All
// construction failures wrap it.
var ErrInvalidCurve = errors.New("invalid fan curve")

// Knot is a single calibration point.
type Knot struct {
	// Temperature is the temperature to react to, in °C
	Temperature float64 `mapstructure:"temperature"`
	// Percent is the fan speed in percent
	Percent float64 `mapstructure:"percent"`
}

// Curve is an immutable clamped interpolating spline over the calibration
// knots. Between knots it follows a monotone cubic Hermite spline
// (Fritsch-Carlson tangents), so the output never overshoots the calibrated
// envelope; outside the knot domain it clamps to the boundary knot's speed.
type Curve struct {
	knots    []Knot
	tangents []float64
}

// New builds a curve from at least two knots with strictly increasing
// temperatures and speeds within [0, 100].
func New(knots []Knot) (*Curve, error) {
	if len(knots) < 2 {
		return nil, fmt.Errorf("%w: at least two knots required, got %d", ErrInvalidCurve, len(knots))
	}
	for i, k := range knots {
		if k.Percent < 0 || k.Percent > 100 {
			return nil, fmt.Errorf("%w: knot %d speed %g%% outside [0, 100]", ErrInvalidCurve, i, k.Percent)
		}
		if i == 0 {
			continue
		}
		if k.Temperature == knots[i-1].Temperature {
			return nil, fmt.Errorf("%w: duplicate knot temperature %g°C", ErrInvalidCurve, k.Temperature)
		}
		if k.Temperature < knots[i-1].Temperature {
			return nil, fmt.Errorf("%w: knot temperatures must be strictly increasing", ErrInvalidCurve)
		}
	}

	c := &Curve{
		knots:    append([]Knot(nil), knots...),
		tangents: tangents(knots),
	}
	return c, nil
}

// tangents computes Fritsch-Carlson tangents: start from secant averages,
// then limit them so each segment stays monotone.
func tangents(knots []Knot) []float64 {
	n := len(knots)
	secants := make([]float64, n-1)
	for i := range secants {
		secants[i] = (knots[i+1].Percent - knots[i].Percent) / (knots[i+1].Temperature - knots[i].Temperature)
	}

	m := make([]float64, n)
	m[0] = secants[0]
	m[n-1] = secants[n-2]
	for i := 1; i < n-1; i++ {
		if secants[i-1]*secants[i] <= 0 {
			m[i] = 0
		} else {
			m[i] = (secants[i-1] + secants[i]) / 2
		}
	}

	for i := 0; i < n-1; i++ {
		if secants[i] == 0 {
			m[i], m[i+1] = 0, 0
			continue
		}
		a := m[i] / secants[i]
		b := m[i+1] / secants[i]
		if s := a*a + b*b; s > 9 {
			tau := 3 / math.Sqrt(s)
			m[i] = tau * a * secants[i]
			m[i+1] = tau * b * secants[i]
		}
	}
	return m
}

// Sample evaluates the curve at the given temperature, in °C. The result is
// always within [0, 100]; temperatures outside the knot domain clamp to the
// boundary knot's speed.
func (c *Curve) Sample(temperature float64) float64 {
	first, last := c.knots[0], c.knots[len(c.knots)-1]
	if temperature <= first.Temperature {
		return first.Percent
	}
	if temperature >= last.Temperature {
		return last.Percent
	}

	// Find the segment containing the temperature
	i := sort.Search(len(c.knots)-1, func(i int) bool {
		return c.knots[i+1].Temperature >= temperature
	})

	k0, k1 := c.knots[i], c.knots[i+1]
	h := k1.Temperature - k0.Temperature
	t := (temperature - k0.Temperature) / h

	h00 := (1 + 2*t) * (1 - t) * (1 - t)
	h10 := t * (1 - t) * (1 - t)
	h01 := t * t * (3 - 2*t)
	h11 := t * t * (t - 1)

	value := h00*k0.Percent + h10*h*c.tangents[i] + h01*k1.Percent + h11*h*c.tangents[i+1]
	return math.Max(0, math.Min(100, value))
}
