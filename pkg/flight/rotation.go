package flight

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/opd-ai/go-arcadeflight/pkg/physics"
)

// RotationResult is the orientation produced by one rotation step
type RotationResult struct {
	Orientation mgl64.Quat
	// Delta rotates the previous orientation onto Orientation
	Delta mgl64.Quat
	// BankInput is the smoothed bank control carried to the next tick
	BankInput float64
	// BankAngle is the bank in degrees the controller rolled toward
	BankAngle float64
	// Weathervane is the blend factor applied toward the velocity direction
	Weathervane float64
	Corrupted   bool
}

// Rotate evolves the orientation of state for dt seconds. The state's velocity
// must already be this tick's integrated velocity.
//
// Yaw turns about the world up axis and pitch about the wings-level lateral
// axis, composed as pitch * yaw * current so that neither couples into roll.
// Banking is then applied as a roll about the new nose axis, so it never
// changes heading. In a stall the result is blended toward the velocity
// direction when the nose strays outside the weathervane cone.
func Rotate(state FlightState, profile PerformanceProfile, tuning Tuning, control ControlSample, dt float64) RotationResult {
	current := physics.SafeQuat(state.Orientation, mgl64.QuatIdent())
	speed := state.Velocity.Len()
	if !physics.IsFinite(speed) {
		speed = 0
	}

	oriented := applyPitchYaw(current, state, profile, tuning, control, speed, dt)

	bankInput, bankAngle := bankTarget(state, profile, tuning, control, speed, dt)
	banked := rollTo(oriented, bankAngle)

	res := RotationResult{BankInput: bankInput, BankAngle: bankAngle}
	final := banked
	if state.StallInfluence > tuning.StallEpsilon {
		final, res.Weathervane = weathervane(banked, state.Velocity, state.StallInfluence, profile, tuning, dt)
	}

	if !physics.IsFiniteQuat(final) || final.Len() < physics.Epsilon {
		res.Corrupted = true
		final = current
		res.BankInput = state.LastBankInput
	}
	res.Orientation = final.Normalize()
	res.Delta = res.Orientation.Mul(current.Conjugate()).Normalize()
	return res
}

func applyPitchYaw(current mgl64.Quat, state FlightState, profile PerformanceProfile, tuning Tuning, control ControlSample, speed, dt float64) mgl64.Quat {
	authority := state.ControlMultiplier
	if !physics.IsFinite(authority) || authority <= 0 {
		authority = 1
	}
	turn := EffectiveTurnSpeed(profile, tuning, speed) * authority

	yawDeg := finiteOrZero(control.Yaw * turn * dt)
	pitchDeg := finiteOrZero(control.Pitch * turn * dt)

	// Positive yaw turns right, which is a negative rotation about +Y
	yaw := mgl64.QuatRotate(-mgl64.DegToRad(yawDeg), physics.WorldUp)
	afterYaw := yaw.Mul(current).Normalize()

	forward := physics.Forward(afterYaw)
	pitchDeg = limitPitch(physics.PitchDegrees(forward), pitchDeg, tuning.MaxPitch)
	lateral := physics.NoRollRight(forward, physics.SafeNormalize(physics.Right(afterYaw), physics.ModelRight))
	pitch := mgl64.QuatRotate(mgl64.DegToRad(pitchDeg), lateral)
	return pitch.Mul(afterYaw).Normalize()
}

// limitPitch trims delta so pitch does not move past ±limit. An attitude that
// is already beyond the limit may still move back toward level.
func limitPitch(pitch, delta, limit float64) float64 {
	if limit <= 0 || limit >= 90 {
		return delta
	}
	switch {
	case delta > 0 && pitch+delta > limit:
		return math.Max(0, limit-pitch)
	case delta < 0 && pitch+delta < -limit:
		return math.Min(0, -limit-pitch)
	}
	return delta
}

// bankTarget chooses the bank source, smooths it against the previous tick
// and converts it to an angle. Strafing owns the bank while it is active.
func bankTarget(state FlightState, profile PerformanceProfile, tuning Tuning, control ControlSample, speed, dt float64) (float64, float64) {
	target := control.Roll
	if math.Abs(control.Strafe) > tuning.StrafeDeadZone {
		target = -control.Strafe
	}

	rate := profile.BankSmoothing
	if rate <= 0 {
		rate = tuning.BankTransitionRate
	}
	previous := finiteOrZero(state.LastBankInput)
	input := physics.Clamp(physics.MoveTowards(previous, target, rate*dt), -1, 1)
	return input, input * BankLimit(profile, tuning, speed)
}

// rollTo rolls q about its own nose until its visual bank equals angle
func rollTo(q mgl64.Quat, angle float64) mgl64.Quat {
	forward := physics.Forward(q)
	delta := finiteOrZero(angle - physics.VisualRoll(q))
	if math.Abs(delta) < 1e-12 {
		return q
	}
	roll := mgl64.QuatRotate(mgl64.DegToRad(delta), physics.SafeNormalize(forward, physics.ModelForward))
	return roll.Mul(q).Normalize()
}

// weathervane blends q toward facing velocity when the two diverge by more
// than the freedom cone. Heavier craft resist the blend.
func weathervane(q mgl64.Quat, velocity mgl64.Vec3, influence float64, profile PerformanceProfile, tuning Tuning, dt float64) (mgl64.Quat, float64) {
	if velocity.Len() < physics.Epsilon || !physics.IsFiniteVec(velocity) {
		return q, 0
	}
	if physics.AngleBetween(physics.Forward(q), velocity) <= tuning.WeathervaneCone {
		return q, 0
	}
	blend := physics.SmoothStep(physics.Clamp01(influence/MassFactor(profile, tuning))) *
		physics.Clamp01(tuning.WeathervaneRate*dt)
	if blend <= 0 {
		return q, 0
	}
	target := physics.LookRotation(q, velocity)
	return mgl64.QuatSlerp(q, target, blend), blend
}

// Resteer carries velocity through the tick's rotation. Momentum follows the
// nose fully in normal flight and detaches from it as the stall deepens.
func Resteer(velocity mgl64.Vec3, delta mgl64.Quat, influence float64) mgl64.Vec3 {
	rotated := delta.Rotate(velocity)
	return physics.LerpVec(velocity, rotated, 1-physics.Clamp01(influence))
}

func finiteOrZero(f float64) float64 {
	if !physics.IsFinite(f) {
		return 0
	}
	return f
}
