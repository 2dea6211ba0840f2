// pkg/entity/vehicle.go
package entity

import (
	"github.com/EngoEngine/ecs"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/opd-ai/go-arcadeflight/pkg/flight"
	"github.com/opd-ai/go-arcadeflight/pkg/physics"
)

// Vehicle is a flying entity driven by a flight controller
type Vehicle struct {
	ecs.BasicEntity
	ID         ID
	Name       string
	Controller *flight.Controller
	Active     bool
}

// NewVehicle creates a vehicle flying profile from pose with the given
// initial throttle
func NewVehicle(name string, profile flight.PerformanceProfile, tuning flight.Tuning, pose physics.Pose, initialThrottle float64) *Vehicle {
	return &Vehicle{
		BasicEntity: ecs.NewBasic(),
		ID:          GenerateID(),
		Name:        name,
		Controller:  flight.NewController(&profile, tuning, pose, initialThrottle),
		Active:      true,
	}
}

// ProfileID returns the ID of the profile currently flown
func (v *Vehicle) ProfileID() string {
	return v.Controller.Profile().ID
}

// GetPosition returns the vehicle's position
func (v *Vehicle) GetPosition() mgl64.Vec3 {
	return v.Controller.Position()
}

// Update advances the vehicle one tick. Inactive vehicles do not move.
func (v *Vehicle) Update(deltaTime float64) flight.TickReport {
	if !v.Active {
		return flight.TickReport{}
	}
	return v.Controller.Tick(deltaTime)
}
