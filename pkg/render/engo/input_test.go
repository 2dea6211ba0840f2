// pkg/render/engo/input_test.go
package engo

import (
	"math"
	"testing"

	"github.com/opd-ai/go-arcadeflight/pkg/flight"
)

func TestControlMapper_Axes(t *testing.T) {
	tests := []struct {
		name string
		keys KeyState
		want flight.ControlSample
	}{
		{"nothing held", KeyState{}, flight.ControlSample{}},
		{"pitch up", KeyState{PitchUp: true}, flight.ControlSample{Pitch: 1}},
		{"pitch down", KeyState{PitchDown: true}, flight.ControlSample{Pitch: -1}},
		{"opposing keys cancel", KeyState{PitchUp: true, PitchDown: true}, flight.ControlSample{}},
		{"yaw right", KeyState{YawRight: true}, flight.ControlSample{Yaw: 1}},
		{"roll left", KeyState{RollLeft: true}, flight.ControlSample{Roll: -1}},
		{"strafe right", KeyState{StrafeRight: true}, flight.ControlSample{Strafe: 1}},
		{"brake", KeyState{Brake: true}, flight.ControlSample{Brake: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewControlMapper(0)
			if got := m.Map(tt.keys, 0.1); got != tt.want {
				t.Errorf("Map(%+v) = %+v, want %+v", tt.keys, got, tt.want)
			}
		})
	}
}

func TestControlMapper_ThrottleRamps(t *testing.T) {
	m := NewControlMapper(0.5)

	sample := m.Map(KeyState{ThrottleUp: true}, 0.5)
	if math.Abs(sample.Throttle-0.75) > 1e-9 {
		t.Errorf("Expected throttle 0.75 after ramping up, got %f", sample.Throttle)
	}

	// released keys hold the setting
	sample = m.Map(KeyState{}, 1)
	if math.Abs(sample.Throttle-0.75) > 1e-9 {
		t.Errorf("Expected throttle to hold at 0.75, got %f", sample.Throttle)
	}

	sample = m.Map(KeyState{ThrottleDown: true}, 10)
	if sample.Throttle != 0 {
		t.Errorf("Expected throttle clamped to 0, got %f", sample.Throttle)
	}

	m.Map(KeyState{ThrottleUp: true}, 10)
	if m.Throttle() != 1 {
		t.Errorf("Expected throttle clamped to 1, got %f", m.Throttle())
	}
}

func TestControlMapper_IgnoresNonPositiveDelta(t *testing.T) {
	m := NewControlMapper(0.4)
	m.Map(KeyState{ThrottleUp: true}, 0)
	m.Map(KeyState{ThrottleUp: true}, -1)
	m.Map(KeyState{ThrottleUp: true}, math.NaN())
	if m.Throttle() != 0.4 {
		t.Errorf("Expected throttle 0.4, got %f", m.Throttle())
	}
}

func TestControlMapper_SetThrottleClamps(t *testing.T) {
	m := NewControlMapper(2)
	if m.Throttle() != 1 {
		t.Errorf("Expected initial throttle clamped to 1, got %f", m.Throttle())
	}
	m.SetThrottle(-3)
	if m.Throttle() != 0 {
		t.Errorf("Expected throttle clamped to 0, got %f", m.Throttle())
	}
}

func TestNewInputSystem(t *testing.T) {
	var got []flight.ControlSample
	m := NewControlMapper(0)
	is := NewInputSystem(m, func(s flight.ControlSample) { got = append(got, s) })

	if is.mapper != m {
		t.Error("Expected mapper to be set")
	}
	is.sink(flight.ControlSample{Pitch: 1})
	if len(got) != 1 || got[0].Pitch != 1 {
		t.Errorf("Expected sink to receive the sample, got %v", got)
	}

	cycled := false
	is.OnCycle(func() { cycled = true })
	is.cycle()
	if !cycled {
		t.Error("Expected cycle callback to run")
	}
}
