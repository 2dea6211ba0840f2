// pkg/engine/system.go
package engine

import (
	"context"

	"github.com/EngoEngine/ecs"
	"golang.org/x/sync/errgroup"

	"github.com/opd-ai/go-arcadeflight/pkg/entity"
	"github.com/opd-ai/go-arcadeflight/pkg/flight"
)

// TickResult is the outcome of one vehicle's tick
type TickResult struct {
	VehicleID entity.ID
	Report    flight.TickReport
	// ForwardSpeed and Threshold are sampled after the tick
	ForwardSpeed float64
	Threshold    float64
}

type flightEntity struct {
	basic   *ecs.BasicEntity
	vehicle *entity.Vehicle
}

// FlightSystem ticks every vehicle it tracks. Vehicles share no state, so
// ticks fan out across a bounded worker pool; results keep insertion order.
type FlightSystem struct {
	entities []flightEntity
	workers  int
}

// NewFlightSystem creates a system ticking at most workers vehicles at once
func NewFlightSystem(workers int) *FlightSystem {
	if workers < 1 {
		workers = 1
	}
	return &FlightSystem{workers: workers}
}

// Add starts ticking vehicle
func (s *FlightSystem) Add(basic *ecs.BasicEntity, vehicle *entity.Vehicle) {
	s.entities = append(s.entities, flightEntity{basic: basic, vehicle: vehicle})
}

// Remove stops ticking the vehicle owning basic
func (s *FlightSystem) Remove(basic ecs.BasicEntity) {
	for i, e := range s.entities {
		if e.basic.ID() == basic.ID() {
			s.entities = append(s.entities[:i], s.entities[i+1:]...)
			return
		}
	}
}

// Len returns the number of tracked vehicles
func (s *FlightSystem) Len() int { return len(s.entities) }

// Step ticks every tracked vehicle by dt
func (s *FlightSystem) Step(ctx context.Context, dt float64) ([]TickResult, error) {
	results := make([]TickResult, len(s.entities))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, e := range s.entities {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			report := e.vehicle.Update(dt)
			state := e.vehicle.Controller.State()
			results[i] = TickResult{
				VehicleID:    e.vehicle.ID,
				Report:       report,
				ForwardSpeed: state.ForwardSpeed,
				Threshold:    state.DynamicStallThreshold,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
