package flight

import (
	"math"

	"github.com/opd-ai/go-arcadeflight/pkg/physics"
)

// StallResult is the output of the stall model for one tick
type StallResult struct {
	// Depth is how far into the band forward speed sits while latched
	Depth float64
	// Influence is the blend weight applied this tick. It follows Depth but
	// rises no faster than the tuning's onset rate.
	Influence float64
	Stalled   bool
	Latched   bool
	Threshold float64
	// LowerEdge and UpperEdge bound the hysteresis band
	LowerEdge float64
	UpperEdge float64
	// ControlMultiplier scales pitch and yaw authority
	ControlMultiplier float64
}

// StallThreshold returns the forward speed below which a profile stalls
func StallThreshold(profile PerformanceProfile, tuning Tuning) float64 {
	return math.Max(profile.MaxSpeed*profile.StallThresholdRatio, tuning.StallFloor)
}

// UpdateStall evaluates the stall model for forwardSpeed over a tick of dt
// seconds.
//
// A vehicle in normal flight enters the stall only once forward speed drops
// below the lower edge of a hysteresis band centred on the threshold, whose
// half-width is StallBandRatio of the threshold. While latched, depth is the
// inverse-lerp of forward speed across the band and the latch releases when
// depth returns to zero at the upper edge. Stalled follows depth. The applied
// influence eases in from entry at StallOnsetRate per second and drops with
// depth immediately. Outside the latch both are exactly zero.
func UpdateStall(state FlightState, profile PerformanceProfile, tuning Tuning, forwardSpeed, dt float64) StallResult {
	if !physics.IsFinite(forwardSpeed) {
		forwardSpeed = 0
	}
	threshold := StallThreshold(profile, tuning)
	halfBand := threshold * tuning.StallBandRatio
	res := StallResult{
		Threshold: threshold,
		LowerEdge: threshold - halfBand,
		UpperEdge: threshold + halfBand,
		Latched:   state.StallLatched,
	}

	if !res.Latched && forwardSpeed < res.LowerEdge {
		res.Latched = true
	}
	if res.Latched {
		if halfBand < physics.Epsilon {
			if forwardSpeed < threshold {
				res.Depth = 1
			}
		} else {
			res.Depth = physics.InverseLerp(res.UpperEdge, res.LowerEdge, forwardSpeed)
		}
		if res.Depth <= 0 {
			res.Latched = false
		}
	}
	res.Influence = stallOnset(state.StallInfluence, res.Depth, tuning.StallOnsetRate, dt)
	res.Stalled = res.Depth > tuning.StallEpsilon

	speed := state.Velocity.Len()
	if !physics.IsFinite(speed) {
		speed = 0
	}
	res.ControlMultiplier = ControlMultiplier(speed, threshold, tuning)
	return res
}

// stallOnset moves current toward depth. Rises are limited to rate*dt; a
// zero rate applies depth at once.
func stallOnset(current, depth, rate, dt float64) float64 {
	current = physics.Clamp01(finiteOrZero(current))
	if depth <= current || rate <= 0 {
		return depth
	}
	if !physics.IsFinite(dt) || dt < 0 {
		dt = 0
	}
	return math.Min(depth, current+rate*dt)
}

// ControlMultiplier returns the pitch/yaw authority at speed. Below the stall
// threshold authority falls with speed but never below the configured floor.
func ControlMultiplier(speed, threshold float64, tuning Tuning) float64 {
	if speed >= threshold || threshold <= 0 {
		return 1
	}
	return physics.Clamp(speed/threshold, tuning.MinControlAuthority, 1)
}
