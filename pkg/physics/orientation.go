package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Forward returns the nose direction of an orientation
func Forward(q mgl64.Quat) mgl64.Vec3 {
	return q.Rotate(ModelForward)
}

// Right returns the right-wing direction of an orientation
func Right(q mgl64.Quat) mgl64.Vec3 {
	return q.Rotate(ModelRight)
}

// Up returns the canopy direction of an orientation
func Up(q mgl64.Quat) mgl64.Vec3 {
	return q.Rotate(ModelUp)
}

// IsFiniteQuat reports whether every component of q is finite
func IsFiniteQuat(q mgl64.Quat) bool {
	return IsFinite(q.W) && IsFiniteVec(q.V)
}

// SafeQuat normalizes q, falling back to fallback (or identity) when q is
// degenerate or contains NaN/Inf.
func SafeQuat(q, fallback mgl64.Quat) mgl64.Quat {
	if IsFiniteQuat(q) && q.Len() > Epsilon {
		return q.Normalize()
	}
	if IsFiniteQuat(fallback) && fallback.Len() > Epsilon {
		return fallback.Normalize()
	}
	return mgl64.QuatIdent()
}

// NoRollRight returns the horizontal right vector for a nose direction. When
// the nose points straight up or down there is no horizontal reference and
// fallback is returned.
func NoRollRight(forward, fallback mgl64.Vec3) mgl64.Vec3 {
	return SafeNormalize(forward.Cross(WorldUp), fallback)
}

// NoRollUp returns the up vector a wings-level orientation with the given nose
// direction would have.
func NoRollUp(forward, fallbackRight mgl64.Vec3) mgl64.Vec3 {
	right := NoRollRight(forward, fallbackRight)
	return SafeNormalize(right.Cross(forward), WorldUp)
}

// VisualRoll returns the bank of q in degrees, positive for a right roll
func VisualRoll(q mgl64.Quat) float64 {
	forward := Forward(q)
	up := Up(q)
	reference := NoRollUp(forward, Right(q))
	return SignedAngle(reference, up, forward)
}

// PitchDegrees returns the nose elevation in degrees, in [-90, 90]
func PitchDegrees(forward mgl64.Vec3) float64 {
	f := SafeNormalize(forward, ModelForward)
	return mgl64.RadToDeg(math.Asin(Clamp(f[1], -1, 1)))
}

// YawDegrees returns the compass heading in degrees, 0 along -Z and positive
// toward +X.
func YawDegrees(forward mgl64.Vec3) float64 {
	if math.Abs(forward[0]) < Epsilon && math.Abs(forward[2]) < Epsilon {
		return 0
	}
	return mgl64.RadToDeg(math.Atan2(forward[0], -forward[2]))
}

// HeadingQuat builds a wings-level orientation from a heading and an
// elevation, both in degrees.
func HeadingQuat(yawDeg, pitchDeg float64) mgl64.Quat {
	yaw := mgl64.QuatRotate(-mgl64.DegToRad(yawDeg), WorldUp)
	pitch := mgl64.QuatRotate(mgl64.DegToRad(pitchDeg), ModelRight)
	return yaw.Mul(pitch).Normalize()
}

// LookRotation returns the shortest-arc rotation of q that points its nose
// along direction.
func LookRotation(q mgl64.Quat, direction mgl64.Vec3) mgl64.Quat {
	dir := SafeNormalize(direction, Forward(q))
	arc := mgl64.QuatBetweenVectors(Forward(q), dir)
	return SafeQuat(arc.Mul(q), q)
}
