package physics

import "math"

// Clamp01 clamps f to [0, 1]. NaN clamps to 0.
func Clamp01(f float64) float64 {
	switch {
	case math.IsNaN(f), f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

// Clamp clamps f to [low, high]. NaN clamps to low.
func Clamp(f, low, high float64) float64 {
	switch {
	case math.IsNaN(f), f < low:
		return low
	case f > high:
		return high
	}
	return f
}

// Lerp interpolates between a and b with t clamped to [0, 1]
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*Clamp01(t)
}

// InverseLerp returns where value lies between a and b, clamped to [0, 1].
// A degenerate range returns 0.
func InverseLerp(a, b, value float64) float64 {
	if math.Abs(b-a) < Epsilon {
		return 0
	}
	return Clamp01((value - a) / (b - a))
}

// MoveTowards moves current toward target by at most maxDelta
func MoveTowards(current, target, maxDelta float64) float64 {
	if math.Abs(target-current) <= maxDelta {
		return target
	}
	if target > current {
		return current + maxDelta
	}
	return current - maxDelta
}

// SmoothStep is the cubic Hermite ease of t clamped to [0, 1]
func SmoothStep(t float64) float64 {
	t = Clamp01(t)
	return t * t * (3 - 2*t)
}

// Sign returns -1, 0 or 1
func Sign(f float64) float64 {
	switch {
	case f > 0:
		return 1
	case f < 0:
		return -1
	}
	return 0
}

// SafeDiv returns a/b, or 0 when b is too close to zero
func SafeDiv(a, b float64) float64 {
	if math.Abs(b) < Epsilon {
		return 0
	}
	return a / b
}
