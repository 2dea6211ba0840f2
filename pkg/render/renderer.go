// pkg/render/renderer.go
package render

import (
	"context"

	"github.com/opd-ai/go-arcadeflight/pkg/engine"
	"github.com/opd-ai/go-arcadeflight/pkg/logging"
)

// Renderer draws one frame of vehicles at a time
type Renderer interface {
	Clear()
	RenderVehicle(state engine.VehicleState)
	Present()
}

// Frame draws a full frame of states on r
func Frame(r Renderer, states []engine.VehicleState) {
	r.Clear()
	for _, s := range states {
		r.RenderVehicle(s)
	}
	r.Present()
}

// NullRenderer logs draw calls at debug level and draws nothing
type NullRenderer struct {
	logger *logging.Logger
}

// NewNullRenderer creates a new NullRenderer with structured logging.
func NewNullRenderer(logger *logging.Logger) *NullRenderer {
	if logger == nil {
		logger = logging.NewLogger()
	}
	return &NullRenderer{logger: logger}
}

// Clear implements Renderer.
func (d *NullRenderer) Clear() {
	d.logger.Debug(context.Background(), "Clear called")
}

// Present implements Renderer.
func (d *NullRenderer) Present() {
	d.logger.Debug(context.Background(), "Present called")
}

// RenderVehicle implements Renderer.
func (d *NullRenderer) RenderVehicle(state engine.VehicleState) {
	d.logger.Debug(context.Background(), "RenderVehicle called",
		"vehicle_id", state.ID,
		"name", state.Name,
		"profile", state.ProfileID,
		"stalled", state.Stalled,
	)
}
