// pkg/render/engo/input.go
package engo

import (
	"github.com/EngoEngine/ecs"
	"github.com/EngoEngine/engo"
	"github.com/EngoEngine/engo/common"

	"github.com/opd-ai/go-arcadeflight/pkg/flight"
)

// DefaultThrottleRate is how much of the throttle range a held throttle key
// sweeps per second
const DefaultThrottleRate = 0.5

// KeyState is the set of flight keys held during one frame
type KeyState struct {
	PitchUp, PitchDown  bool
	YawLeft, YawRight   bool
	RollLeft, RollRight bool
	StrafeLeft          bool
	StrafeRight         bool
	ThrottleUp          bool
	ThrottleDown        bool
	Brake               bool
}

// ControlMapper turns held keys into control samples. Stick axes are full
// deflection while held; throttle ramps while a throttle key is held and
// stays put otherwise.
type ControlMapper struct {
	throttle     float64
	throttleRate float64
}

// NewControlMapper creates a mapper starting at the given throttle
func NewControlMapper(initialThrottle float64) *ControlMapper {
	return &ControlMapper{
		throttle:     flight.ClampThrottle(initialThrottle),
		throttleRate: DefaultThrottleRate,
	}
}

// Throttle returns the current throttle setting
func (m *ControlMapper) Throttle() float64 {
	return m.throttle
}

// SetThrottle overrides the throttle setting
func (m *ControlMapper) SetThrottle(throttle float64) {
	m.throttle = flight.ClampThrottle(throttle)
}

// Map returns the control sample for keys held over dt seconds
func (m *ControlMapper) Map(keys KeyState, dt float64) flight.ControlSample {
	if dt > 0 {
		m.throttle = flight.ClampThrottle(m.throttle + axis(keys.ThrottleDown, keys.ThrottleUp)*m.throttleRate*dt)
	}

	return flight.ControlSample{
		Pitch:    axis(keys.PitchDown, keys.PitchUp),
		Yaw:      axis(keys.YawLeft, keys.YawRight),
		Roll:     axis(keys.RollLeft, keys.RollRight),
		Strafe:   axis(keys.StrafeLeft, keys.StrafeRight),
		Throttle: m.throttle,
		Brake:    keys.Brake,
	}
}

// axis folds a key pair into -1, 0 or 1
func axis(negative, positive bool) float64 {
	switch {
	case positive && !negative:
		return 1
	case negative && !positive:
		return -1
	default:
		return 0
	}
}

// InputSystem reads the keyboard every frame and hands the mapped control
// sample to its sink
type InputSystem struct {
	mapper *ControlMapper
	sink   func(flight.ControlSample)

	// cycle and takeover run when their keys are pressed
	cycle    func()
	takeover func()
}

// NewInputSystem creates an input system feeding sink
func NewInputSystem(mapper *ControlMapper, sink func(flight.ControlSample)) *InputSystem {
	return &InputSystem{
		mapper: mapper,
		sink:   sink,
	}
}

// OnCycle sets the callback run when the follow-next key is pressed
func (is *InputSystem) OnCycle(fn func()) {
	is.cycle = fn
}

// OnTakeover sets the callback run when the takeover key is pressed
func (is *InputSystem) OnTakeover(fn func()) {
	is.takeover = fn
}

// Add satisfies the ecs.System interface
func (is *InputSystem) Add(basic *ecs.BasicEntity, render *common.RenderComponent, space *common.SpaceComponent) {
}

// Remove satisfies the ecs.System interface
func (is *InputSystem) Remove(basic ecs.BasicEntity) {}

// Update samples the keyboard and forwards the control sample
func (is *InputSystem) Update(dt float32) {
	if is.cycle != nil && engo.Input.Button("follow").JustPressed() {
		is.cycle()
	}
	if is.takeover != nil && engo.Input.Button("takeover").JustPressed() {
		is.takeover()
	}

	sample := is.mapper.Map(readKeys(), float64(dt))
	if is.sink != nil {
		is.sink(sample)
	}
}

func readKeys() KeyState {
	down := func(name string) bool { return engo.Input.Button(name).Down() }
	return KeyState{
		PitchUp:      down("pitchUp"),
		PitchDown:    down("pitchDown"),
		YawLeft:      down("yawLeft"),
		YawRight:     down("yawRight"),
		RollLeft:     down("rollLeft"),
		RollRight:    down("rollRight"),
		StrafeLeft:   down("strafeLeft"),
		StrafeRight:  down("strafeRight"),
		ThrottleUp:   down("throttleUp"),
		ThrottleDown: down("throttleDown"),
		Brake:        down("brake"),
	}
}

// SetupInputBindings registers the flight key bindings
func SetupInputBindings() {
	engo.Input.RegisterButton("pitchUp", engo.KeyS, engo.KeyArrowDown)
	engo.Input.RegisterButton("pitchDown", engo.KeyW, engo.KeyArrowUp)
	engo.Input.RegisterButton("yawLeft", engo.KeyA, engo.KeyArrowLeft)
	engo.Input.RegisterButton("yawRight", engo.KeyD, engo.KeyArrowRight)
	engo.Input.RegisterButton("rollLeft", engo.KeyQ)
	engo.Input.RegisterButton("rollRight", engo.KeyE)
	engo.Input.RegisterButton("strafeLeft", engo.KeyZ)
	engo.Input.RegisterButton("strafeRight", engo.KeyC)
	engo.Input.RegisterButton("throttleUp", engo.KeyR)
	engo.Input.RegisterButton("throttleDown", engo.KeyF)
	engo.Input.RegisterButton("brake", engo.KeySpace)
	engo.Input.RegisterButton("follow", engo.KeyTab)
	engo.Input.RegisterButton("takeover", engo.KeyM)
}
