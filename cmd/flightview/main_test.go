package main

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"

	"github.com/opd-ai/go-arcadeflight/pkg/engine"
	"github.com/opd-ai/go-arcadeflight/pkg/entity"
	"github.com/opd-ai/go-arcadeflight/pkg/render"
)

// centeringRenderer records what drawFrame asks of it
type centeringRenderer struct {
	center mgl64.Vec3
	drawn  []entity.ID
}

func (r *centeringRenderer) SetCenter(pos mgl64.Vec3)            { r.center = pos }
func (r *centeringRenderer) Clear()                              { r.drawn = r.drawn[:0] }
func (r *centeringRenderer) Present()                            {}
func (r *centeringRenderer) RenderVehicle(s engine.VehicleState) { r.drawn = append(r.drawn, s.ID) }

func testStates() []engine.VehicleState {
	return []engine.VehicleState{
		{ID: 3, Name: "Alpha", Position: mgl64.Vec3{10, 500, -20}},
		{ID: 7, Name: "Bravo", Position: mgl64.Vec3{-400, 650, 90}},
	}
}

func TestCenterOn(t *testing.T) {
	states := testStates()
	tests := []struct {
		name   string
		states []engine.VehicleState
		follow entity.ID
		want   mgl64.Vec3
	}{
		{"followed vehicle", states, 7, states[1].Position},
		{"zero follows first", states, 0, states[0].Position},
		{"missing follows first", states, 42, states[0].Position},
		{"empty world", nil, 7, mgl64.Vec3{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, centerOn(tt.states, tt.follow))
		})
	}
}

func TestDrawFrame(t *testing.T) {
	r := &centeringRenderer{}
	drawFrame(r, testStates(), 7)

	assert.Equal(t, mgl64.Vec3{-400, 650, 90}, r.center)
	assert.Equal(t, []entity.ID{3, 7}, r.drawn)
}

func TestFrameRenderer(t *testing.T) {
	_, isNull := frameRenderer("null", 80, 24, 50, nil).(*render.NullRenderer)
	assert.True(t, isNull)

	_, isTerminal := frameRenderer("terminal", 80, 24, 50, nil).(*render.TerminalRenderer)
	assert.True(t, isTerminal)

	// the null renderer has no center and still draws
	drawFrame(frameRenderer("null", 80, 24, 50, nil), testStates(), 3)
}
