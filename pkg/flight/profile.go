// Package flight implements the arcade flight-movement core: a deterministic
// single-vehicle integrator that turns normalized control samples into a new
// pose every tick.
//
// The package is organised leaf-first. PerformanceProfile and ControlSample
// are plain values; UpdateStall, Integrate and Rotate are pure functions over
// a FlightState; Advance composes them into one tick; Controller owns a state
// and exposes the query and mutator surface used by the rest of a game.
package flight

import "math"

// PerformanceProfile describes the handling envelope of a vehicle class. It is
// treated as an immutable value: equipment changes produce a new profile that
// replaces the old one wholesale.
type PerformanceProfile struct {
	ID   string `json:"id" msgpack:"id"`
	Name string `json:"name" msgpack:"name"`

	MaxSpeed     float64 `json:"maxSpeed" msgpack:"max_speed"`
	MinSpeed     float64 `json:"minSpeed" msgpack:"min_speed"`
	Acceleration float64 `json:"acceleration" msgpack:"acceleration"`
	// TurnRate is in degrees per second at the reference mass
	TurnRate float64 `json:"turnRate" msgpack:"turn_rate"`
	Mass     float64 `json:"mass" msgpack:"mass"`
	// ManeuverBudget is the lateral speed shared by strafing and drift correction
	ManeuverBudget float64 `json:"maneuverBudget" msgpack:"maneuver_budget"`
	// MaxBankAngle is in degrees
	MaxBankAngle        float64 `json:"maxBankAngle" msgpack:"max_bank_angle"`
	BankSmoothing       float64 `json:"bankSmoothing" msgpack:"bank_smoothing"`
	StallThresholdRatio float64 `json:"stallThresholdRatio" msgpack:"stall_threshold_ratio"`
	InertiaFactor       float64 `json:"inertiaFactor" msgpack:"inertia_factor"`
}

// DefaultProfileID identifies the fallback profile
const DefaultProfileID = "default"

// DefaultProfile returns the profile used when none is supplied
func DefaultProfile() PerformanceProfile {
	return PerformanceProfile{
		ID:                  DefaultProfileID,
		Name:                "Default",
		MaxSpeed:            150,
		MinSpeed:            0,
		Acceleration:        20,
		TurnRate:            60,
		Mass:                100,
		ManeuverBudget:      35,
		MaxBankAngle:        45,
		BankSmoothing:       5,
		StallThresholdRatio: 0.4,
		InertiaFactor:       1,
	}
}

// Sanitize returns a copy with non-finite fields replaced by the default
// profile's values and negative fields floored at zero. It never fails.
func (p PerformanceProfile) Sanitize() PerformanceProfile {
	d := DefaultProfile()
	if p.ID == "" {
		p.ID = d.ID
	}
	p.MaxSpeed = sanitizeField(p.MaxSpeed, d.MaxSpeed)
	p.MinSpeed = sanitizeField(p.MinSpeed, d.MinSpeed)
	p.Acceleration = sanitizeField(p.Acceleration, d.Acceleration)
	p.TurnRate = sanitizeField(p.TurnRate, d.TurnRate)
	p.Mass = sanitizeField(p.Mass, d.Mass)
	p.ManeuverBudget = sanitizeField(p.ManeuverBudget, d.ManeuverBudget)
	p.MaxBankAngle = math.Min(sanitizeField(p.MaxBankAngle, d.MaxBankAngle), 180)
	p.BankSmoothing = sanitizeField(p.BankSmoothing, d.BankSmoothing)
	p.StallThresholdRatio = math.Min(sanitizeField(p.StallThresholdRatio, d.StallThresholdRatio), 1)
	p.InertiaFactor = sanitizeField(p.InertiaFactor, d.InertiaFactor)
	if p.MinSpeed > p.MaxSpeed {
		p.MinSpeed = p.MaxSpeed
	}
	return p
}

func sanitizeField(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	if v < 0 {
		return 0
	}
	return v
}

// SpeedRatio returns speed as a fraction of MaxSpeed, clamped to [0, 1].
// A profile with no top speed reports 1 so that it keeps full authority.
func (p PerformanceProfile) SpeedRatio(speed float64) float64 {
	if p.MaxSpeed <= 0 {
		return 1
	}
	r := speed / p.MaxSpeed
	switch {
	case math.IsNaN(r), r < 0:
		return 0
	case r > 1:
		return 1
	}
	return r
}
