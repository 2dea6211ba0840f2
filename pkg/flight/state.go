package flight

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/opd-ai/go-arcadeflight/pkg/physics"
)

// FlightState is the mutable core of one vehicle. Orientation is canonical;
// the pitch, yaw and bank fields are cached telemetry recomputed from it after
// every tick and are never read back as inputs.
type FlightState struct {
	Position    mgl64.Vec3
	Orientation mgl64.Quat
	// Velocity is the only field that carries momentum between ticks
	Velocity mgl64.Vec3

	CurrentPitch     float64
	CurrentYaw       float64
	CurrentBankAngle float64

	StallInfluence        float64
	IsStalled             bool
	StallLatched          bool
	DynamicStallThreshold float64
	ControlMultiplier     float64

	// LastBankInput is the smoothed bank control from the previous tick
	LastBankInput float64
	ForwardSpeed  float64
	// StrafeVelocity was applied to the last position update only
	StrafeVelocity   mgl64.Vec3
	LastGoodVelocity mgl64.Vec3
}

// NewFlightState seeds a state at pose moving along its nose at
// MaxSpeed*initialThrottle.
func NewFlightState(position mgl64.Vec3, orientation mgl64.Quat, profile PerformanceProfile, initialThrottle float64) FlightState {
	profile = profile.Sanitize()
	q := physics.SafeQuat(orientation, mgl64.QuatIdent())
	if !physics.IsFiniteVec(position) {
		position = mgl64.Vec3{}
	}
	v := physics.Forward(q).Mul(profile.MaxSpeed * ClampThrottle(initialThrottle))
	s := FlightState{
		Position:          position,
		Orientation:       q,
		Velocity:          v,
		LastGoodVelocity:  v,
		ControlMultiplier: 1,
	}
	s.settle(profile, DefaultTuning())
	return s
}

// Speed returns the magnitude of the persistent velocity
func (s FlightState) Speed() float64 {
	return finiteOrZero(s.Velocity.Len())
}

// sanitized returns a copy safe to feed into a tick: a broken orientation
// becomes identity, a broken velocity falls back to the last good one and a
// broken position to the origin.
func (s FlightState) sanitized() FlightState {
	s.Orientation = physics.SafeQuat(s.Orientation, mgl64.QuatIdent())
	if !physics.IsFiniteVec(s.LastGoodVelocity) {
		s.LastGoodVelocity = mgl64.Vec3{}
	}
	if !physics.IsFiniteVec(s.Velocity) {
		s.Velocity = s.LastGoodVelocity
	}
	if !physics.IsFiniteVec(s.Position) {
		s.Position = mgl64.Vec3{}
	}
	s.LastBankInput = physics.Clamp(finiteOrZero(s.LastBankInput), -1, 1)
	s.StallInfluence = physics.Clamp01(s.StallInfluence)
	return s
}

// applyStall copies a stall model result into the state
func (s *FlightState) applyStall(res StallResult) {
	s.StallInfluence = res.Influence
	s.IsStalled = res.Stalled
	s.StallLatched = res.Latched
	s.DynamicStallThreshold = res.Threshold
	s.ControlMultiplier = res.ControlMultiplier
}

// settle recomputes the stall fields and telemetry for the current pose
// without moving the vehicle. It runs after spawning, restoring or swapping
// the profile. No time passes, so influence can fall but not rise.
func (s *FlightState) settle(profile PerformanceProfile, tuning Tuning) {
	*s = s.sanitized()
	forward := physics.Forward(s.Orientation)
	s.applyStall(UpdateStall(*s, profile, tuning, s.Velocity.Dot(forward), 0))
	s.refreshTelemetry(profile, tuning)
}

// refreshTelemetry rebuilds the cached Euler angles from the orientation. The
// bank angle is clamped to the limit for the current speed so that the
// reported value never exceeds the banking envelope.
func (s *FlightState) refreshTelemetry(profile PerformanceProfile, tuning Tuning) {
	forward := physics.Forward(s.Orientation)
	s.CurrentPitch = finiteOrZero(physics.PitchDegrees(forward))
	s.CurrentYaw = finiteOrZero(physics.YawDegrees(forward))

	limit := BankLimit(profile, tuning, s.Speed())
	s.CurrentBankAngle = physics.Clamp(finiteOrZero(physics.VisualRoll(s.Orientation)), -limit, limit)
	s.ForwardSpeed = finiteOrZero(s.Velocity.Dot(forward))
}

// Snapshot is the persisted form of a FlightState: pose, momentum and the
// active profile identifier. Telemetry and stall memory are rebuilt on restore.
type Snapshot struct {
	Position    mgl64.Vec3 `json:"position" msgpack:"position"`
	Orientation mgl64.Quat `json:"orientation" msgpack:"orientation"`
	Velocity    mgl64.Vec3 `json:"velocity" msgpack:"velocity"`
	ProfileID   string     `json:"profileId" msgpack:"profile_id"`
}

// Snapshot captures s for persistence
func (s FlightState) Snapshot(profileID string) Snapshot {
	return Snapshot{
		Position:    s.Position,
		Orientation: s.Orientation,
		Velocity:    s.Velocity,
		ProfileID:   profileID,
	}
}

// FromSnapshot rebuilds a state from snap under profile. Non-finite values in
// the snapshot are replaced the same way a corrupted tick would replace them.
func FromSnapshot(snap Snapshot, profile PerformanceProfile, tuning Tuning) FlightState {
	profile = profile.Sanitize()
	tuning = tuning.Sanitize()
	s := FlightState{
		Position:          snap.Position,
		Orientation:       snap.Orientation,
		Velocity:          snap.Velocity,
		LastGoodVelocity:  snap.Velocity,
		ControlMultiplier: 1,
	}
	s.settle(profile, tuning)
	return s
}
