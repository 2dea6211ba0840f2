package flight

import (
	"math"

	"github.com/opd-ai/go-arcadeflight/pkg/physics"
)

// ControlSample is the normalized input for a single tick, produced by an
// input-mapping collaborator and consumed once.
type ControlSample struct {
	Pitch    float64 `json:"pitch" msgpack:"pitch"`
	Yaw      float64 `json:"yaw" msgpack:"yaw"`
	Roll     float64 `json:"roll" msgpack:"roll"`
	Strafe   float64 `json:"strafe" msgpack:"strafe"`
	Throttle float64 `json:"throttle" msgpack:"throttle"`
	Brake    bool    `json:"brake" msgpack:"brake"`
}

// ClampAxis clamps a stick axis to [-1, 1]; NaN becomes 0
func ClampAxis(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return physics.Clamp(v, -1, 1)
}

// ClampThrottle clamps a throttle value to [0, 1]; NaN becomes 0
func ClampThrottle(v float64) float64 {
	return physics.Clamp01(v)
}

// Clamped returns a copy of c with every axis inside its documented range
func (c ControlSample) Clamped() ControlSample {
	return ControlSample{
		Pitch:    ClampAxis(c.Pitch),
		Yaw:      ClampAxis(c.Yaw),
		Roll:     ClampAxis(c.Roll),
		Strafe:   ClampAxis(c.Strafe),
		Throttle: ClampThrottle(c.Throttle),
		Brake:    c.Brake,
	}
}
