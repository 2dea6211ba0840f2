package flight

import "math"

// Tuning holds the engine-wide constants shared by every vehicle. The values
// differ between game builds, so they are configuration rather than code.
type Tuning struct {
	// Gravity is the downward acceleration in units/s^2
	Gravity float64 `json:"gravity"`
	// StallFloor is the lowest stall threshold speed any profile can have
	StallFloor float64 `json:"stallFloor"`
	// StallBandRatio is the hysteresis half-width as a fraction of the threshold
	StallBandRatio float64 `json:"stallBandRatio"`
	// StallEpsilon is the influence above which a vehicle counts as stalled
	StallEpsilon float64 `json:"stallEpsilon"`
	// StallOnsetRate is how fast (1/s) stall influence may rise after entry;
	// zero applies it at once
	StallOnsetRate float64 `json:"stallOnsetRate"`
	// MinControlAuthority is the control multiplier floor while slow
	MinControlAuthority float64 `json:"minControlAuthority"`
	// StallFallSpeedRatio scales the threshold speed into the fall target speed
	StallFallSpeedRatio float64 `json:"stallFallSpeedRatio"`
	// DiveSpeedBonus is the extra speed cap fraction reached in a vertical dive
	DiveSpeedBonus float64 `json:"diveSpeedBonus"`
	// DragCoefficient is the per-second drag fraction at zero throttle
	DragCoefficient float64 `json:"dragCoefficient"`
	// BrakeFactor multiplies Acceleration into braking deceleration
	BrakeFactor float64 `json:"brakeFactor"`
	// DriftCorrectionRate converts turn speed (deg/s) into a sideways decay rate
	DriftCorrectionRate float64 `json:"driftCorrectionRate"`
	// BankTransitionRate is how fast the bank input moves, in units/s
	BankTransitionRate float64 `json:"bankTransitionRate"`
	// BankFloor is the fraction of MaxBankAngle available at zero speed
	BankFloor float64 `json:"bankFloor"`
	// StrafeDeadZone is the strafe magnitude above which strafing owns the bank
	StrafeDeadZone float64 `json:"strafeDeadZone"`
	// MaxPitch is the steepest climb or dive (deg) pitch input can reach
	MaxPitch float64 `json:"maxPitch"`
	// WeathervaneCone is the nose/velocity divergence (deg) tolerated in a stall
	WeathervaneCone float64 `json:"weathervaneCone"`
	// WeathervaneRate limits how much of the weathervane blend applies per second
	WeathervaneRate float64 `json:"weathervaneRate"`
	// MinTurnSpeedRatio keeps turning available at low speed
	MinTurnSpeedRatio float64 `json:"minTurnSpeedRatio"`
	// MassReference is the mass at which TurnRate applies unscaled
	MassReference float64 `json:"massReference"`
	// MinMassFactor bounds the mass divisor from below
	MinMassFactor float64 `json:"minMassFactor"`
}

// DefaultTuning returns the reference constants
func DefaultTuning() Tuning {
	return Tuning{
		Gravity:             9.81,
		StallFloor:          15,
		StallBandRatio:      0.2,
		StallEpsilon:        0.01,
		StallOnsetRate:      2,
		MinControlAuthority: 0.3,
		StallFallSpeedRatio: 0.5,
		DiveSpeedBonus:      0.5,
		DragCoefficient:     0.5,
		BrakeFactor:         2,
		DriftCorrectionRate: 0.05,
		BankTransitionRate:  5,
		BankFloor:           0.2,
		StrafeDeadZone:      0.05,
		MaxPitch:            85,
		WeathervaneCone:     45,
		WeathervaneRate:     2,
		MinTurnSpeedRatio:   0.25,
		MassReference:       100,
		MinMassFactor:       0.1,
	}
}

// Sanitize replaces non-finite or negative constants with their defaults
func (t Tuning) Sanitize() Tuning {
	d := DefaultTuning()
	fix := func(v *float64, fallback float64) {
		if math.IsNaN(*v) || math.IsInf(*v, 0) || *v < 0 {
			*v = fallback
		}
	}
	fix(&t.Gravity, d.Gravity)
	fix(&t.StallFloor, d.StallFloor)
	fix(&t.StallBandRatio, d.StallBandRatio)
	fix(&t.StallEpsilon, d.StallEpsilon)
	fix(&t.StallOnsetRate, d.StallOnsetRate)
	fix(&t.MinControlAuthority, d.MinControlAuthority)
	fix(&t.StallFallSpeedRatio, d.StallFallSpeedRatio)
	fix(&t.DiveSpeedBonus, d.DiveSpeedBonus)
	fix(&t.DragCoefficient, d.DragCoefficient)
	fix(&t.BrakeFactor, d.BrakeFactor)
	fix(&t.DriftCorrectionRate, d.DriftCorrectionRate)
	fix(&t.BankTransitionRate, d.BankTransitionRate)
	fix(&t.BankFloor, d.BankFloor)
	fix(&t.StrafeDeadZone, d.StrafeDeadZone)
	fix(&t.MaxPitch, d.MaxPitch)
	fix(&t.WeathervaneCone, d.WeathervaneCone)
	fix(&t.WeathervaneRate, d.WeathervaneRate)
	fix(&t.MinTurnSpeedRatio, d.MinTurnSpeedRatio)
	fix(&t.MinMassFactor, d.MinMassFactor)
	if !(t.MassReference > 0) || math.IsInf(t.MassReference, 0) {
		t.MassReference = d.MassReference
	}
	if t.MinMassFactor == 0 {
		t.MinMassFactor = d.MinMassFactor
	}
	t.BankFloor = math.Min(t.BankFloor, 1)
	t.MinControlAuthority = math.Min(t.MinControlAuthority, 1)
	return t
}
