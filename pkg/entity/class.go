// pkg/entity/class.go
package entity

import (
	"strings"

	"github.com/opd-ai/go-arcadeflight/pkg/flight"
)

// VehicleClass defines the airframe family a vehicle belongs to
type VehicleClass int

const (
	Trainer VehicleClass = iota
	Interceptor
	Fighter
	Gunship
	Freighter
)

// String returns the profile ID of the class
func (c VehicleClass) String() string {
	switch c {
	case Trainer:
		return "trainer"
	case Interceptor:
		return "interceptor"
	case Fighter:
		return "fighter"
	case Gunship:
		return "gunship"
	case Freighter:
		return "freighter"
	default:
		return "unknown"
	}
}

// Classes lists every built-in class
func Classes() []VehicleClass {
	return []VehicleClass{Trainer, Interceptor, Fighter, Gunship, Freighter}
}

// ClassProfile returns the base performance profile of a class. Unknown
// classes get the default profile.
func ClassProfile(class VehicleClass) flight.PerformanceProfile {
	p := flight.DefaultProfile()
	p.ID = class.String()

	switch class {
	case Trainer:
		p.Name = "Trainer"
	case Interceptor:
		p.Name = "Interceptor"
		p.MaxSpeed = 260
		p.Acceleration = 45
		p.TurnRate = 50
		p.Mass = 80
		p.ManeuverBudget = 25
		p.MaxBankAngle = 70
		p.StallThresholdRatio = 0.35
	case Fighter:
		p.Name = "Fighter"
		p.MaxSpeed = 200
		p.Acceleration = 35
		p.TurnRate = 90
		p.Mass = 90
		p.ManeuverBudget = 40
		p.MaxBankAngle = 60
		p.BankSmoothing = 7
	case Gunship:
		p.Name = "Gunship"
		p.MaxSpeed = 120
		p.MinSpeed = 10
		p.Acceleration = 15
		p.TurnRate = 45
		p.Mass = 180
		p.ManeuverBudget = 50
		p.MaxBankAngle = 30
		p.BankSmoothing = 3
		p.InertiaFactor = 0.7
	case Freighter:
		p.Name = "Freighter"
		p.MaxSpeed = 100
		p.MinSpeed = 20
		p.Acceleration = 8
		p.TurnRate = 30
		p.Mass = 300
		p.ManeuverBudget = 15
		p.MaxBankAngle = 25
		p.BankSmoothing = 2
		p.StallThresholdRatio = 0.5
		p.InertiaFactor = 0.4
	default:
		return flight.DefaultProfile()
	}
	return p
}

// ClassFromString converts a string to a VehicleClass
func ClassFromString(s string) (VehicleClass, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trainer":
		return Trainer, true
	case "interceptor":
		return Interceptor, true
	case "fighter":
		return Fighter, true
	case "gunship":
		return Gunship, true
	case "freighter":
		return Freighter, true
	default:
		return Trainer, false
	}
}
