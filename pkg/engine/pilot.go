// pkg/engine/pilot.go
package engine

import (
	"errors"
	"fmt"
	"sort"

	"github.com/opd-ai/go-arcadeflight/pkg/flight"
	"github.com/opd-ai/go-arcadeflight/pkg/physics"
)

// ErrUnknownPilot is returned when a pilot name is not registered
var ErrUnknownPilot = errors.New("unknown pilot")

// Pilot produces the control sample for a vehicle before each tick
type Pilot interface {
	Name() string
	Control(state flight.FlightState, simTime float64) flight.ControlSample
}

type pilotFunc struct {
	name string
	fn   func(state flight.FlightState, simTime float64) flight.ControlSample
}

func (p pilotFunc) Name() string { return p.name }

func (p pilotFunc) Control(state flight.FlightState, simTime float64) flight.ControlSample {
	return p.fn(state, simTime)
}

// NewPilot wraps fn as a named Pilot
func NewPilot(name string, fn func(state flight.FlightState, simTime float64) flight.ControlSample) Pilot {
	return pilotFunc{name: name, fn: fn}
}

// holdPitch returns the pitch input steering the nose toward target degrees
func holdPitch(state flight.FlightState, target float64) float64 {
	return physics.Clamp((target-state.CurrentPitch)/20, -1, 1)
}

var pilots = map[string]Pilot{
	"cruise": NewPilot("cruise", func(state flight.FlightState, _ float64) flight.ControlSample {
		return flight.ControlSample{
			Pitch:    holdPitch(state, 0),
			Throttle: 0.8,
		}
	}),
	"orbit": NewPilot("orbit", func(state flight.FlightState, _ float64) flight.ControlSample {
		return flight.ControlSample{
			Pitch:    holdPitch(state, 0),
			Yaw:      0.5,
			Roll:     0.5,
			Throttle: 0.7,
		}
	}),
	// stall cuts the engine and holds the nose level until the craft falls
	// out of the sky, then noses down and powers up to recover
	"stall": NewPilot("stall", func(state flight.FlightState, _ float64) flight.ControlSample {
		if state.IsStalled {
			return flight.ControlSample{Pitch: holdPitch(state, -30), Throttle: 1}
		}
		return flight.ControlSample{Pitch: holdPitch(state, 0)}
	}),
	"climb": NewPilot("climb", func(state flight.FlightState, _ float64) flight.ControlSample {
		return flight.ControlSample{
			Pitch:    holdPitch(state, 30),
			Throttle: 1,
		}
	}),
	// weave alternates full strafe every two seconds
	"weave": NewPilot("weave", func(state flight.FlightState, simTime float64) flight.ControlSample {
		strafe := 1.0
		if int(simTime/2)%2 == 1 {
			strafe = -1
		}
		return flight.ControlSample{
			Pitch:    holdPitch(state, 0),
			Strafe:   strafe,
			Throttle: 0.9,
		}
	}),
}

// PilotByName returns the scripted pilot registered under name
func PilotByName(name string) (Pilot, error) {
	p, ok := pilots[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPilot, name)
	}
	return p, nil
}

// PilotNames lists the registered pilots in sorted order
func PilotNames() []string {
	names := make([]string, 0, len(pilots))
	for name := range pilots {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
