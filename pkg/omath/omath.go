// Package omath holds the small scalar helpers shared by the motion and
// scoring packages.
package omath

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Lerp interpolates between a and b. t is clamped to [0, 1].
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*Clamp(t, 0, 1)
}

// LerpUnclamped interpolates between a and b without clamping t.
func LerpUnclamped(a, b, t float64) float64 {
	return a + (b-a)*t
}

// InverseLerp returns where v sits between a and b, clamped to [0, 1].
// A degenerate range returns 0.
func InverseLerp(a, b, v float64) float64 {
	if a == b {
		return 0
	}
	return Clamp((v-a)/(b-a), 0, 1)
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Mean returns the arithmetic mean of nums, or 0 when empty.
func Mean(nums []float64) float64 {
	if len(nums) == 0 {
		return 0
	}
	return floats.Sum(nums) / float64(len(nums))
}

// Extent returns the min and max of nums. Empty input yields zeros.
func Extent(nums []float64) (lo, hi float64) {
	if len(nums) == 0 {
		return 0, 0
	}
	return floats.Min(nums), floats.Max(nums)
}

// Round will round a number to a given precision.
func Round(val float64, precision int) float64 {
	p := math.Pow10(precision)
	return math.Round(val*p) / p
}
