// pkg/render/engo/camera.go
package engo

import (
	"github.com/EngoEngine/ecs"
	"github.com/EngoEngine/engo"
	"github.com/EngoEngine/engo/common"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/opd-ai/go-arcadeflight/pkg/engine"
)

// PixelsPerMeter is the map scale at zoom 1
const PixelsPerMeter = 0.5

// TopDown projects a world position onto the map plane. North (-Z) is up
// the screen and east (+X) is right.
func TopDown(pos mgl64.Vec3) engo.Point {
	return engo.Point{
		X: float32(pos[0] * PixelsPerMeter),
		Y: float32(pos[2] * PixelsPerMeter),
	}
}

const (
	defaultLookAhead = 1.5
	defaultEase      = 2
	// zoomOutSpeed is the ground speed (m/s) at which the view has zoomed
	// out to half the user's zoom
	zoomOutSpeed = 200
	minZoom      = 0.1
	maxZoom      = 3
)

// CameraSystem keeps the map centred a little ahead of the tracked vehicle
// and pulls the view back as it speeds up
type CameraSystem struct {
	// LookAhead is how many seconds of ground velocity the view leads by
	LookAhead float64
	// Ease is the fraction of the remaining gap closed per second; zero
	// snaps to the target
	Ease float32

	target   engo.Point
	current  engo.Point
	tracking bool

	zoom      float32
	speedZoom float32

	viewWidth  float32
	viewHeight float32
}

// NewCameraSystem returns an untracked camera at zoom 1
func NewCameraSystem() *CameraSystem {
	return &CameraSystem{
		LookAhead: defaultLookAhead,
		Ease:      defaultEase,
		zoom:      1,
		speedZoom: 1,
	}
}

func (cs *CameraSystem) Add(*ecs.BasicEntity, *common.RenderComponent, *common.SpaceComponent) {}

func (cs *CameraSystem) Remove(ecs.BasicEntity) {}

// Update applies zoom keys, eases toward the target and moves the engo camera
func (cs *CameraSystem) Update(dt float32) {
	cs.handleZoomInput()
	cs.ease(dt)

	// a smaller Z distance is a closer view
	engo.Mailbox.Dispatch(common.CameraMessage{Axis: common.XAxis, Value: cs.current.X})
	engo.Mailbox.Dispatch(common.CameraMessage{Axis: common.YAxis, Value: cs.current.Y})
	engo.Mailbox.Dispatch(common.CameraMessage{Axis: common.ZAxis, Value: 1 / cs.EffectiveZoom()})
}

func (cs *CameraSystem) handleZoomInput() {
	if scrollY := engo.Input.Mouse.ScrollY; scrollY != 0 {
		cs.SetZoom(cs.zoom * (1 + scrollY*0.1))
	}
	switch {
	case engo.Input.Button("zoomIn").Down():
		cs.SetZoom(cs.zoom * 1.02)
	case engo.Input.Button("zoomOut").Down():
		cs.SetZoom(cs.zoom * 0.98)
	}
	if engo.Input.Button("resetZoom").JustPressed() {
		cs.SetZoom(1)
	}
}

func (cs *CameraSystem) ease(dt float32) {
	if !cs.tracking {
		return
	}
	t := cs.Ease * dt
	if cs.Ease <= 0 || t > 1 {
		t = 1
	}
	cs.current.X += (cs.target.X - cs.current.X) * t
	cs.current.Y += (cs.target.Y - cs.current.Y) * t
}

// Track aims the camera at state's position led by its ground velocity. The
// first target after Release is snapped to.
func (cs *CameraSystem) Track(state engine.VehicleState) {
	ground := mgl64.Vec3{state.Velocity[0], 0, state.Velocity[2]}
	cs.target = TopDown(state.Position.Add(ground.Mul(cs.LookAhead)))
	cs.speedZoom = float32(1 / (1 + ground.Len()/zoomOutSpeed))
	if !cs.tracking {
		cs.current = cs.target
	}
	cs.tracking = true
}

// Release stops tracking; the camera stays where it is
func (cs *CameraSystem) Release() {
	cs.tracking = false
	cs.speedZoom = 1
}

func (cs *CameraSystem) Tracking() bool { return cs.tracking }

// Position is the map point at the centre of the view
func (cs *CameraSystem) Position() engo.Point { return cs.current }

// SetZoom sets the user zoom, clamped to [0.1, 3]
func (cs *CameraSystem) SetZoom(zoom float32) {
	cs.zoom = clampZoom(zoom)
}

func (cs *CameraSystem) Zoom() float32 { return cs.zoom }

// EffectiveZoom is the user zoom scaled down by the tracked vehicle's speed
func (cs *CameraSystem) EffectiveZoom() float32 {
	return clampZoom(cs.zoom * cs.speedZoom)
}

func clampZoom(zoom float32) float32 {
	if zoom < minZoom {
		return minZoom
	}
	if zoom > maxZoom {
		return maxZoom
	}
	return zoom
}

// SetViewport sets the screen size used by WorldToScreen and ScreenToWorld
func (cs *CameraSystem) SetViewport(width, height float32) {
	cs.viewWidth = width
	cs.viewHeight = height
}

func (cs *CameraSystem) WorldToScreen(p engo.Point) engo.Point {
	z := cs.EffectiveZoom()
	return engo.Point{
		X: (p.X-cs.current.X)*z + cs.viewWidth/2,
		Y: (p.Y-cs.current.Y)*z + cs.viewHeight/2,
	}
}

func (cs *CameraSystem) ScreenToWorld(p engo.Point) engo.Point {
	z := cs.EffectiveZoom()
	return engo.Point{
		X: (p.X-cs.viewWidth/2)/z + cs.current.X,
		Y: (p.Y-cs.viewHeight/2)/z + cs.current.Y,
	}
}

// SetupCameraControls registers the zoom key bindings
func SetupCameraControls() {
	engo.Input.RegisterButton("zoomIn", engo.KeyEquals)
	engo.Input.RegisterButton("zoomOut", engo.KeyDash)
	engo.Input.RegisterButton("resetZoom", engo.KeyZero)
}
