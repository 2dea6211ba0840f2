// pkg/physics/vector.go
package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Epsilon is the length below which a vector is treated as zero
const Epsilon = 1e-9

// World axes. The model faces -Z with +Y up and +X to the right.
var (
	WorldUp      = mgl64.Vec3{0, 1, 0}
	WorldDown    = mgl64.Vec3{0, -1, 0}
	ModelForward = mgl64.Vec3{0, 0, -1}
	ModelRight   = mgl64.Vec3{1, 0, 0}
	ModelUp      = mgl64.Vec3{0, 1, 0}
)

// IsFinite reports whether f is neither NaN nor infinite
func IsFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// IsFiniteVec reports whether every component of v is finite
func IsFiniteVec(v mgl64.Vec3) bool {
	return IsFinite(v[0]) && IsFinite(v[1]) && IsFinite(v[2])
}

// SafeNormalize returns a unit vector in the direction of v, or fallback when
// v is too short (or not finite) to have a direction.
func SafeNormalize(v, fallback mgl64.Vec3) mgl64.Vec3 {
	length := v.Len()
	if length < Epsilon || !IsFinite(length) {
		return fallback
	}
	return v.Mul(1 / length)
}

// ClampMagnitude scales v down so that its length does not exceed limit
func ClampMagnitude(v mgl64.Vec3, limit float64) mgl64.Vec3 {
	if limit <= 0 {
		return mgl64.Vec3{}
	}
	lengthSq := v.LenSqr()
	if lengthSq <= limit*limit {
		return v
	}
	return v.Mul(limit / math.Sqrt(lengthSq))
}

// LerpVec linearly interpolates between a and b without clamping t
func LerpVec(a, b mgl64.Vec3, t float64) mgl64.Vec3 {
	return a.Add(b.Sub(a).Mul(t))
}

// MoveTowardsVec moves current toward target by at most maxDelta
func MoveTowardsVec(current, target mgl64.Vec3, maxDelta float64) mgl64.Vec3 {
	diff := target.Sub(current)
	distance := diff.Len()
	if distance <= maxDelta || distance < Epsilon {
		return target
	}
	return current.Add(diff.Mul(maxDelta / distance))
}

// ProjectOnto returns the component of v along the unit vector axis
func ProjectOnto(v, axis mgl64.Vec3) mgl64.Vec3 {
	return axis.Mul(v.Dot(axis))
}

// Horizontal drops the vertical component of v
func Horizontal(v mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{v[0], 0, v[2]}
}

// AngleBetween returns the unsigned angle between a and b in degrees
func AngleBetween(a, b mgl64.Vec3) float64 {
	la, lb := a.Len(), b.Len()
	if la < Epsilon || lb < Epsilon {
		return 0
	}
	cos := mgl64.Clamp(a.Dot(b)/(la*lb), -1, 1)
	return mgl64.RadToDeg(math.Acos(cos))
}

// SignedAngle returns the angle in degrees that rotates from onto to about
// axis. The result is positive for a right-handed rotation about axis.
func SignedAngle(from, to, axis mgl64.Vec3) float64 {
	angle := math.Atan2(from.Cross(to).Dot(axis), from.Dot(to))
	if !IsFinite(angle) {
		return 0
	}
	return mgl64.RadToDeg(angle)
}
