package utils

import (
	"math"
)

// Mean calculates the arithmetic mean of a slice of float64 values.
// A running mean is used so that values near math.MaxFloat64 do not
// overflow to +Inf.
func Mean(values []float64) float64 {
	mean := 0.0
	for i, v := range values {
		mean += (v - mean) / float64(i+1)
	}
	return mean
}

// MaxOf returns the largest value of a non-empty slice, or 0 when empty
func MaxOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := values[0]
	for _, v := range values[1:] {
		m = math.Max(m, v)
	}
	return m
}

// Trapezoid integrates y over x with the trapezoidal rule.
// x and y must have the same length; fewer than two samples integrate to 0.
func Trapezoid(x, y []float64) float64 {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	area := 0.0
	for i := 0; i+1 < n; i++ {
		dt := x[i+1] - x[i]
		area += (y[i] + y[i+1]) / 2 * dt
	}
	return area
}

// IsFinite reports whether v is neither NaN nor infinite
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
