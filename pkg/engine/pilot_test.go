package engine

import (
	"errors"
	"testing"

	"github.com/opd-ai/go-arcadeflight/pkg/flight"
)

func TestPilotByName(t *testing.T) {
	for _, name := range PilotNames() {
		t.Run(name, func(t *testing.T) {
			p, err := PilotByName(name)
			if err != nil {
				t.Fatalf("PilotByName(%q) error = %v", name, err)
			}
			if p.Name() != name {
				t.Errorf("Name() = %q, want %q", p.Name(), name)
			}
			c := p.Control(flight.FlightState{}, 0)
			if c != c.Clamped() {
				t.Errorf("pilot %s produced out-of-range control %+v", name, c)
			}
		})
	}

	if _, err := PilotByName("autopilot"); !errors.Is(err, ErrUnknownPilot) {
		t.Errorf("PilotByName(unknown) error = %v", err)
	}
}

func TestPilotNames_Sorted(t *testing.T) {
	names := PilotNames()
	want := []string{"climb", "cruise", "orbit", "stall", "weave"}
	if len(names) != len(want) {
		t.Fatalf("PilotNames() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("PilotNames()[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestPilots_Behaviour(t *testing.T) {
	tests := []struct {
		name  string
		pilot string
		state flight.FlightState
		time  float64
		check func(flight.ControlSample) bool
	}{
		{"cruise levels a raised nose", "cruise", flight.FlightState{CurrentPitch: 10}, 0,
			func(c flight.ControlSample) bool { return c.Pitch < 0 && c.Throttle == 0.8 }},
		{"climb pulls up", "climb", flight.FlightState{}, 0,
			func(c flight.ControlSample) bool { return c.Pitch > 0 && c.Throttle == 1 }},
		{"stall cuts power", "stall", flight.FlightState{}, 0,
			func(c flight.ControlSample) bool { return c.Throttle == 0 }},
		{"stall recovers nose down", "stall", flight.FlightState{IsStalled: true}, 0,
			func(c flight.ControlSample) bool { return c.Pitch < 0 && c.Throttle == 1 }},
		{"orbit turns right", "orbit", flight.FlightState{}, 0,
			func(c flight.ControlSample) bool { return c.Yaw > 0 && c.Roll > 0 }},
		{"weave starts right", "weave", flight.FlightState{}, 1,
			func(c flight.ControlSample) bool { return c.Strafe == 1 }},
		{"weave swings left", "weave", flight.FlightState{}, 3,
			func(c flight.ControlSample) bool { return c.Strafe == -1 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, err := PilotByName(tc.pilot)
			if err != nil {
				t.Fatal(err)
			}
			if c := p.Control(tc.state, tc.time); !tc.check(c) {
				t.Errorf("unexpected control %+v", c)
			}
		})
	}
}
