package flight

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/opd-ai/go-arcadeflight/pkg/physics"
)

// Corruption reasons reported in TickReport.Reason
const (
	ReasonVelocity    = "velocity"
	ReasonOrientation = "orientation"
	ReasonPosition    = "position"
	ReasonResteer     = "resteer"
)

// TickReport describes what happened during one Advance call. The flight
// core never logs; hosts inspect the report instead.
type TickReport struct {
	// Corrupted is set when a non-finite value was produced and replaced
	Corrupted bool
	Reason    string

	StallEntered   bool
	StallRecovered bool

	DriftCost    float64
	StrafeBudget float64
}

// Advance runs one simulation tick and returns the next state.
//
// The sub-steps run in dependency order: stall model, velocity integration,
// rotation, pose commit, velocity re-steer, telemetry. The function is pure;
// identical inputs always produce identical outputs. Profile, tuning, control
// and dt are sanitized first so no input can push NaN into the result. A
// negative or non-finite dt is treated as zero.
func Advance(state FlightState, profile PerformanceProfile, tuning Tuning, control ControlSample, dt float64) (FlightState, TickReport) {
	profile = profile.Sanitize()
	tuning = tuning.Sanitize()
	control = control.Clamped()
	if !physics.IsFinite(dt) || dt < 0 {
		dt = 0
	}

	next := state.sanitized()
	wasStalled := next.IsStalled
	var report TickReport
	corrupt := func(reason string) {
		if !report.Corrupted {
			report.Corrupted = true
			report.Reason = reason
		}
	}

	forward := physics.Forward(next.Orientation)
	next.applyStall(UpdateStall(next, profile, tuning, next.Velocity.Dot(forward), dt))

	integrated := Integrate(next, profile, tuning, control, dt)
	if integrated.Corrupted {
		corrupt(ReasonVelocity)
	}
	next.Velocity = integrated.Velocity
	next.StrafeVelocity = integrated.StrafeVelocity
	report.DriftCost = integrated.DriftCost
	report.StrafeBudget = integrated.StrafeBudget

	rotated := Rotate(next, profile, tuning, control, dt)
	if rotated.Corrupted {
		corrupt(ReasonOrientation)
	}
	next.Orientation = rotated.Orientation
	next.LastBankInput = rotated.BankInput

	// A corrupted velocity discards the tick's movement entirely
	if !integrated.Corrupted {
		pos, ok := physics.AdvancePosition(next.Position, next.Velocity.Add(next.StrafeVelocity), dt)
		if ok {
			next.Position = pos
		} else {
			corrupt(ReasonPosition)
		}
	}

	steered := Resteer(next.Velocity, rotated.Delta, next.StallInfluence)
	if physics.IsFiniteVec(steered) {
		next.Velocity = steered
	} else {
		corrupt(ReasonResteer)
	}
	if !next.IsStalled {
		next.Velocity = physics.ClampMagnitude(next.Velocity, profile.MaxSpeed)
	}

	if report.Corrupted {
		next.StrafeVelocity = mgl64.Vec3{}
	} else {
		next.LastGoodVelocity = next.Velocity
	}
	next.refreshTelemetry(profile, tuning)

	report.StallEntered = !wasStalled && next.IsStalled
	report.StallRecovered = wasStalled && !next.IsStalled
	return next, report
}
