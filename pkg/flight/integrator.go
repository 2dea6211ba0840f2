package flight

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/opd-ai/go-arcadeflight/pkg/physics"
)

// IntegrationResult is the velocity produced by one integrator step
type IntegrationResult struct {
	// Velocity is the persistent momentum carried into the next tick
	Velocity mgl64.Vec3
	// StrafeVelocity applies to this tick's position update only
	StrafeVelocity mgl64.Vec3
	// DriftCost is the sideways speed cancelled by drift correction
	DriftCost float64
	// StrafeBudget is the maneuver budget left for strafing
	StrafeBudget float64
	// SpeedLimit is the cap applied to Velocity this tick
	SpeedLimit float64
	Corrupted  bool
}

// Integrate evolves the velocity of state for dt seconds. The state's stall
// fields must already hold this tick's stall model output.
//
// Order: gravity, thrust, stall fallback, drag, braking, drift correction,
// strafe, speed clamp. Fallback replaces drag, braking and drift correction
// while stalled. A non-finite result is reported as Corrupted with the
// last-good velocity and no strafe so the caller can discard the movement.
func Integrate(state FlightState, profile PerformanceProfile, tuning Tuning, control ControlSample, dt float64) IntegrationResult {
	lastGood := state.LastGoodVelocity
	if !physics.IsFiniteVec(lastGood) {
		lastGood = mgl64.Vec3{}
	}
	v := state.Velocity
	if !physics.IsFiniteVec(v) {
		v = lastGood
	}

	q := physics.SafeQuat(state.Orientation, mgl64.QuatIdent())
	forward := physics.SafeNormalize(physics.Forward(q), physics.ModelForward)
	pitch := physics.PitchDegrees(forward)
	influence := physics.Clamp01(state.StallInfluence)

	v = applyGravity(v, tuning, influence, dt)
	v = v.Add(forward.Mul(profile.Acceleration * control.Throttle * dt))

	res := IntegrationResult{SpeedLimit: profile.MaxSpeed}
	if state.IsStalled {
		v, res.SpeedLimit = applyStallFallback(v, forward, pitch, state.DynamicStallThreshold, profile, tuning, dt)
	} else {
		v = applyDrag(v, profile, tuning, control.Throttle, dt)
		if control.Brake {
			v = applyBrake(v, forward, profile, tuning, dt)
		}
		v, res.DriftCost = applyDriftCorrection(v, forward, profile, tuning, dt)
	}

	res.StrafeBudget = AvailableStrafeBudget(profile, res.DriftCost)
	right := physics.NoRollRight(forward, physics.SafeNormalize(physics.Right(q), physics.ModelRight))
	res.StrafeVelocity = right.Mul(res.StrafeBudget * control.Strafe * math.Cos(mgl64.DegToRad(pitch)))

	if !state.IsStalled {
		v = physics.ClampMagnitude(v, profile.MaxSpeed)
	}

	if !physics.IsFiniteVec(v) || !physics.IsFiniteVec(res.StrafeVelocity) {
		return IntegrationResult{
			Velocity:   lastGood,
			SpeedLimit: res.SpeedLimit,
			Corrupted:  true,
		}
	}
	res.Velocity = v
	return res
}

// applyGravity pulls v down; a deeper stall makes the fall more dominant
func applyGravity(v mgl64.Vec3, tuning Tuning, influence, dt float64) mgl64.Vec3 {
	return v.Add(physics.WorldDown.Mul(tuning.Gravity * (1 + 2*influence) * dt))
}

// applyStallFallback steers v toward a blend of a falling and a gliding
// vector. A nose-down attitude favours the glide and raises the speed cap.
func applyStallFallback(v, forward mgl64.Vec3, pitch, threshold float64, profile PerformanceProfile, tuning Tuning, dt float64) (mgl64.Vec3, float64) {
	momentum := physics.Clamp01(0.5 - pitch/180)
	fall := physics.Horizontal(v).Add(physics.WorldDown.Mul(threshold * tuning.StallFallSpeedRatio))
	glide := forward.Mul(v.Len())
	target := physics.LerpVec(fall, glide, momentum)

	v = physics.MoveTowardsVec(v, target, 2*profile.Acceleration*dt)
	limit := profile.MaxSpeed * (1 + tuning.DiveSpeedBonus*physics.Clamp01(-pitch/90))
	return physics.ClampMagnitude(v, limit), limit
}

// applyDrag opposes v; full throttle cancels drag entirely. Drag never takes
// speed below the profile's MinSpeed.
func applyDrag(v mgl64.Vec3, profile PerformanceProfile, tuning Tuning, throttle, dt float64) mgl64.Vec3 {
	speed := v.Len()
	if speed < physics.Epsilon || speed <= profile.MinSpeed {
		return v
	}
	drag := tuning.DragCoefficient * (1 - throttle) * speed * dt
	newSpeed := math.Max(speed-drag, math.Max(profile.MinSpeed, 0))
	return v.Mul(newSpeed / speed)
}

// applyBrake removes forward speed only and never reverses it
func applyBrake(v, forward mgl64.Vec3, profile PerformanceProfile, tuning Tuning, dt float64) mgl64.Vec3 {
	fwd := v.Dot(forward)
	if fwd <= 0 {
		return v
	}
	reduced := math.Max(0, fwd-profile.Acceleration*tuning.BrakeFactor*dt)
	return v.Add(forward.Mul(reduced - fwd))
}

// applyDriftCorrection decays the sideways part of v and rescales the result
// back to the original speed. It returns the sideways speed cancelled.
func applyDriftCorrection(v, forward mgl64.Vec3, profile PerformanceProfile, tuning Tuning, dt float64) (mgl64.Vec3, float64) {
	speed := v.Len()
	if speed < physics.Epsilon {
		return v, 0
	}
	along := forward.Mul(v.Dot(forward))
	sideways := v.Sub(along)

	inertia := math.Max(profile.InertiaFactor, 0.1)
	rate := EffectiveTurnSpeed(profile, tuning, speed) * tuning.DriftCorrectionRate / inertia
	t := physics.Clamp01(rate * dt)

	corrected := along.Add(sideways.Mul(1 - t))
	cost := sideways.Len() * t
	return physics.SafeNormalize(corrected, forward).Mul(speed), cost
}
