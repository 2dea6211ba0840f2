package flight

import (
	"math"

	"github.com/opd-ai/go-arcadeflight/pkg/physics"
)

// MassFactor is the profile mass relative to the reference mass, floored so a
// weightless profile cannot divide by zero.
func MassFactor(profile PerformanceProfile, tuning Tuning) float64 {
	return math.Max(tuning.MinMassFactor, profile.Mass/tuning.MassReference)
}

// EffectiveTurnSpeed returns the turn rate in degrees per second at the given
// speed. Heavier craft turn slower; the speed ratio floor keeps a stopped
// craft recoverable.
func EffectiveTurnSpeed(profile PerformanceProfile, tuning Tuning, speed float64) float64 {
	speedFactor := math.Max(tuning.MinTurnSpeedRatio, profile.SpeedRatio(speed))
	return profile.TurnRate / MassFactor(profile, tuning) * speedFactor
}

// AvailableStrafeBudget returns the lateral speed left for strafing once drift
// correction has spent driftCost of the maneuver budget.
func AvailableStrafeBudget(profile PerformanceProfile, driftCost float64) float64 {
	if math.IsNaN(driftCost) {
		driftCost = 0
	}
	return math.Max(0, profile.ManeuverBudget-driftCost)
}

// BankSpeedScale returns the fraction of MaxBankAngle available at speed
func BankSpeedScale(profile PerformanceProfile, tuning Tuning, speed float64) float64 {
	return physics.Lerp(tuning.BankFloor, 1, profile.SpeedRatio(speed))
}

// BankLimit returns the largest bank magnitude in degrees allowed at speed
func BankLimit(profile PerformanceProfile, tuning Tuning, speed float64) float64 {
	return profile.MaxBankAngle * BankSpeedScale(profile, tuning, speed)
}
