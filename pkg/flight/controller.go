package flight

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/opd-ai/go-arcadeflight/pkg/physics"
)

// Controller owns the flight state of a single vehicle. Inputs set through the
// mutators persist until changed and are consumed by every Tick.
//
// A Controller has exactly one owner and is not safe for concurrent use.
type Controller struct {
	state   FlightState
	profile PerformanceProfile
	tuning  Tuning
	control ControlSample
	enabled bool
	ticks   uint64
	last    TickReport
}

// NewController creates an enabled controller at pose moving at
// MaxSpeed*initialThrottle. A nil profile selects DefaultProfile.
func NewController(profile *PerformanceProfile, tuning Tuning, pose physics.Pose, initialThrottle float64) *Controller {
	c := &Controller{
		profile: resolveProfile(profile),
		tuning:  tuning.Sanitize(),
		enabled: true,
	}
	c.control.Throttle = ClampThrottle(initialThrottle)
	c.state = NewFlightState(pose.Position, pose.Orientation, c.profile, initialThrottle)
	c.state.settle(c.profile, c.tuning)
	return c
}

func resolveProfile(p *PerformanceProfile) PerformanceProfile {
	if p == nil {
		return DefaultProfile()
	}
	return p.Sanitize()
}

// Tick advances the vehicle by dt seconds. A disabled controller skips the
// whole tick and returns an empty report.
func (c *Controller) Tick(dt float64) TickReport {
	if !c.enabled {
		return TickReport{}
	}
	c.state, c.last = Advance(c.state, c.profile, c.tuning, c.control, dt)
	c.ticks++
	return c.last
}

// SetPitchInput sets the pitch axis, clamped to [-1, 1]
func (c *Controller) SetPitchInput(v float64) { c.control.Pitch = ClampAxis(v) }

// SetYawInput sets the yaw axis, clamped to [-1, 1]
func (c *Controller) SetYawInput(v float64) { c.control.Yaw = ClampAxis(v) }

// SetRollInput sets the roll axis, clamped to [-1, 1]
func (c *Controller) SetRollInput(v float64) { c.control.Roll = ClampAxis(v) }

// SetStrafeInput sets the strafe axis, clamped to [-1, 1]
func (c *Controller) SetStrafeInput(v float64) { c.control.Strafe = ClampAxis(v) }

// SetThrottle sets the throttle, clamped to [0, 1]
func (c *Controller) SetThrottle(v float64) { c.control.Throttle = ClampThrottle(v) }

// SetBrake engages or releases the brake
func (c *Controller) SetBrake(on bool) { c.control.Brake = on }

// SetControl replaces every input at once
func (c *Controller) SetControl(sample ControlSample) { c.control = sample.Clamped() }

func (c *Controller) PitchInput() float64    { return c.control.Pitch }
func (c *Controller) YawInput() float64      { return c.control.Yaw }
func (c *Controller) RollInput() float64     { return c.control.Roll }
func (c *Controller) StrafeInput() float64   { return c.control.Strafe }
func (c *Controller) Throttle() float64      { return c.control.Throttle }
func (c *Controller) Brake() bool            { return c.control.Brake }
func (c *Controller) Control() ControlSample { return c.control }

// SetProfile swaps the active profile for a copy of profile and recomputes
// the stall and banking state that depend on it. Momentum is kept.
func (c *Controller) SetProfile(profile PerformanceProfile) {
	c.profile = profile.Sanitize()
	c.state.settle(c.profile, c.tuning)
}

// SetProfilePtr is SetProfile for callers holding an optional profile; nil
// selects DefaultProfile.
func (c *Controller) SetProfilePtr(profile *PerformanceProfile) {
	c.SetProfile(resolveProfile(profile))
}

// SetTuning replaces the engine constants
func (c *Controller) SetTuning(tuning Tuning) {
	c.tuning = tuning.Sanitize()
	c.state.settle(c.profile, c.tuning)
}

// SetEnabled opens or closes the tick gate
func (c *Controller) SetEnabled(enabled bool) { c.enabled = enabled }

// Enabled reports whether Tick runs
func (c *Controller) Enabled() bool { return c.enabled }

// Position returns the committed position
func (c *Controller) Position() mgl64.Vec3 { return c.state.Position }

// Orientation returns the committed orientation
func (c *Controller) Orientation() mgl64.Quat { return c.state.Orientation }

// Velocity returns the persistent velocity, excluding transient strafe
func (c *Controller) Velocity() mgl64.Vec3 { return c.state.Velocity }

// CurrentSpeed returns the magnitude of Velocity
func (c *Controller) CurrentSpeed() float64 { return c.state.Speed() }

// ForwardSpeed returns the velocity component along the nose
func (c *Controller) ForwardSpeed() float64 { return c.state.ForwardSpeed }

func (c *Controller) IsStalled() bool         { return c.state.IsStalled }
func (c *Controller) StallInfluence() float64 { return c.state.StallInfluence }

// StallControlMultiplier returns the pitch/yaw authority left at this speed
func (c *Controller) StallControlMultiplier() float64 { return c.state.ControlMultiplier }

// BankAngle returns the visual bank in degrees, positive for a right roll
func (c *Controller) BankAngle() float64 { return c.state.CurrentBankAngle }

// Pitch returns the nose elevation in degrees
func (c *Controller) Pitch() float64 { return c.state.CurrentPitch }

// Yaw returns the heading in degrees, 0 along -Z
func (c *Controller) Yaw() float64 { return c.state.CurrentYaw }

func (c *Controller) Profile() PerformanceProfile { return c.profile }
func (c *Controller) Tuning() Tuning              { return c.tuning }

// State returns a copy of the full flight state
func (c *Controller) State() FlightState { return c.state }

// Ticks returns how many ticks have run since creation
func (c *Controller) Ticks() uint64 { return c.ticks }

// LastReport returns the report of the most recent tick
func (c *Controller) LastReport() TickReport { return c.last }

// Snapshot captures the pose, momentum and active profile ID
func (c *Controller) Snapshot() Snapshot {
	return c.state.Snapshot(c.profile.ID)
}

// Restore replaces the state with snap under the active profile. Callers that
// persist profile IDs resolve and set the profile before restoring. Inputs and
// the tick counter are left untouched.
func (c *Controller) Restore(snap Snapshot) {
	c.state = FromSnapshot(snap, c.profile, c.tuning)
}
