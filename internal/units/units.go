// Package units provides the angle and range helpers shared by the setpoint
// integrator, the status snapshot and the settle monitors.
package units

import "math"

// Full turn and half turn, in degrees.
const (
	FullTurnDeg = 360.0
	HalfTurnDeg = 180.0
)

// WrapDegrees maps any finite angle into [-180, 180). The result equals
// ((deg+180) mod 360) - 180 with a non-negative modulus.
func WrapDegrees(deg float64) float64 {
	m := math.Mod(deg+HalfTurnDeg, FullTurnDeg)
	if m < 0 {
		m += FullTurnDeg
	}
	// A tiny negative remainder rounds up to a full turn.
	if m >= FullTurnDeg {
		m -= FullTurnDeg
	}
	return m - HalfTurnDeg
}

// AngleErrorDegrees returns the signed shortest rotation from measured to
// target in [-180, 180).
func AngleErrorDegrees(target, measured float64) float64 {
	return WrapDegrees(target - measured)
}

// ClampSymmetric limits v to [-limit, limit]. A negative limit is treated as
// its magnitude.
func ClampSymmetric(v, limit float64) float64 {
	limit = math.Abs(limit)
	return Clamp(v, -limit, limit)
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v > hi {
		return hi
	}
	if v < lo {
		return lo
	}
	return v
}

// IsFiniteNonNegative reports whether v is a usable limit or rate.
func IsFiniteNonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
