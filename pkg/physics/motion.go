package physics

import "github.com/go-gl/mathgl/mgl64"

// Pose is a position plus orientation
type Pose struct {
	Position    mgl64.Vec3
	Orientation mgl64.Quat
}

// AdvancePosition moves position along velocity for deltaTime seconds. The
// second result is false (and position is returned unchanged) when the step
// would produce a non-finite position.
func AdvancePosition(position, velocity mgl64.Vec3, deltaTime float64) (mgl64.Vec3, bool) {
	if !IsFinite(deltaTime) || !IsFiniteVec(velocity) {
		return position, false
	}
	next := position.Add(velocity.Mul(deltaTime))
	if !IsFiniteVec(next) {
		return position, false
	}
	return next, true
}
