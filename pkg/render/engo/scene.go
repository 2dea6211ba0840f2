// pkg/render/engo/scene.go
package engo

import (
	"bytes"
	"context"
	"image/color"
	"sort"

	"github.com/EngoEngine/ecs"
	"github.com/EngoEngine/engo"
	"github.com/EngoEngine/engo/common"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/opd-ai/go-arcadeflight/pkg/engine"
	"github.com/opd-ai/go-arcadeflight/pkg/entity"
	"github.com/opd-ai/go-arcadeflight/pkg/event"
	"github.com/opd-ai/go-arcadeflight/pkg/flight"
)

const hudFontURL = "goregular.ttf"

// FlightScene renders a running simulation and lets the user fly the
// followed vehicle
type FlightScene struct {
	sim *engine.World

	followID entity.ID
	// manual is set while the user flies the followed vehicle; pilot is the
	// scripted pilot to hand control back to
	manual bool
	pilot  string

	renderer *EngoRenderer
	camera   *CameraSystem
	input    *InputSystem
	hud      *HUDSystem
	mapper   *ControlMapper

	background []*vehicleSprite

	subs []*event.Subscription
}

// NewFlightScene creates a scene over sim following followID. A zero
// followID follows the first vehicle.
func NewFlightScene(sim *engine.World, followID entity.ID) *FlightScene {
	return &FlightScene{
		sim:      sim,
		followID: followID,
		mapper:   NewControlMapper(0),
	}
}

// Type returns the scene type (required by Engo)
func (scene *FlightScene) Type() string {
	return "FlightScene"
}

// Preload registers the embedded HUD font (required by Engo)
func (scene *FlightScene) Preload() {
	if err := engo.Files.LoadReaderData(hudFontURL, bytes.NewReader(goregular.TTF)); err != nil {
		scene.sim.Logger.Error(context.Background(), "Failed to load HUD font", err)
	}
}

// Setup is called when the scene starts (required by Engo)
func (scene *FlightScene) Setup(u engo.Updater) {
	world, _ := u.(*ecs.World)
	common.SetBackground(color.RGBA{10, 20, 40, 255})

	renderSystem := &common.RenderSystem{}
	world.AddSystem(renderSystem)

	assets := NewAssetManager()
	if err := assets.LoadAssets(); err != nil {
		panic("Failed to load assets: " + err.Error())
	}
	scene.addBackground(renderSystem, assets)
	scene.renderer = NewEngoRenderer(renderSystem, assets)

	scene.camera = NewCameraSystem()
	scene.camera.SetViewport(engo.GameWidth(), engo.GameHeight())
	SetupCameraControls()
	world.AddSystem(scene.camera)

	SetupInputBindings()
	scene.input = NewInputSystem(scene.mapper, scene.control)
	scene.input.OnCycle(scene.CycleFollow)
	scene.input.OnTakeover(scene.ToggleManual)
	world.AddSystem(scene.input)

	scene.hud = NewHUDSystem(renderSystem)
	font := &common.Font{URL: hudFontURL, FG: color.White, Size: 14}
	if err := font.CreatePreloaded(); err != nil {
		scene.sim.Logger.Error(context.Background(), "Failed to create HUD font", err)
	} else {
		scene.hud.SetFont(font)
	}
	world.AddSystem(scene.hud)

	world.AddSystem(&simulationSystem{scene: scene})

	scene.subscribeToEvents()
	scene.sim.Start()
}

// backgroundTiles is the side length, in tiles, of the grid drawn under the
// vehicles, centred on the origin
const backgroundTiles = 32

// addBackground lays the grid texture under the vehicles so ground motion is
// visible while the camera follows
func (scene *FlightScene) addBackground(sink SpriteSink, assets *AssetManager) {
	tile := assets.GetBackgroundTexture()
	if tile == nil {
		return
	}
	w, h := tile.Width(), tile.Height()
	origin := float32(backgroundTiles) / 2
	for row := 0; row < backgroundTiles; row++ {
		for col := 0; col < backgroundTiles; col++ {
			bg := &vehicleSprite{
				basic:  ecs.NewBasic(),
				render: common.RenderComponent{
					Drawable: tile,
					Scale:    engo.Point{X: 1, Y: 1},
					Color:    color.RGBA{40, 60, 90, 255},
				},
				space: common.SpaceComponent{
					Position: engo.Point{X: (float32(col) - origin) * w, Y: (float32(row) - origin) * h},
					Width:    w,
					Height:   h,
				},
			}
			bg.render.SetZIndex(-1)
			sink.Add(&bg.basic, &bg.render, &bg.space)
			scene.background = append(scene.background, bg)
		}
	}
}

// Exit stops the simulation when the window closes
func (scene *FlightScene) Exit() {
	for _, sub := range scene.subs {
		sub.Cancel()
	}
	scene.subs = nil
	scene.sim.Stop()
}

func (scene *FlightScene) subscribeToEvents() {
	for _, t := range []event.Type{
		event.StallEntered,
		event.StallRecovered,
		event.ProfileChanged,
		event.VehicleSpawned,
		event.VehicleDestroyed,
		event.TickCorrupted,
	} {
		scene.subs = append(scene.subs, scene.sim.EventBus.Subscribe(t, scene.hud.HandleEvent))
	}
}

// Advance steps the simulation by wall-clock time and redraws
func (scene *FlightScene) Advance() {
	if err := scene.sim.Update(); err != nil {
		scene.sim.Logger.Error(context.Background(), "Simulation update failed", err)
	}

	state := scene.sim.State()
	followed := scene.followed(state.Vehicles)

	if scene.renderer != nil {
		scene.renderer.Sync(state.Vehicles)
		if followed != nil {
			scene.renderer.Select(followed.ID)
		}
	}
	if scene.camera != nil {
		if followed != nil {
			scene.camera.Track(*followed)
		} else {
			scene.camera.Release()
		}
	}
	if scene.hud != nil {
		scene.hud.SetVehicle(followed, state.Tick)
	}
}

// followed returns the followed vehicle, re-targeting the first vehicle
// when it is gone
func (scene *FlightScene) followed(states []engine.VehicleState) *engine.VehicleState {
	if len(states) == 0 {
		return nil
	}
	for i := range states {
		if states[i].ID == scene.followID {
			return &states[i]
		}
	}
	scene.followID = states[0].ID
	scene.manual = false
	return &states[0]
}

// FollowID returns the ID of the followed vehicle
func (scene *FlightScene) FollowID() entity.ID {
	return scene.followID
}

// CycleFollow follows the vehicle with the next higher ID, wrapping around.
// Manual control does not carry over.
func (scene *FlightScene) CycleFollow() {
	scene.releaseManual()

	states := scene.sim.Vehicles()
	if len(states) == 0 {
		return
	}
	ids := make([]entity.ID, len(states))
	for i, s := range states {
		ids[i] = s.ID
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	next := ids[0]
	for _, id := range ids {
		if id > scene.followID {
			next = id
			break
		}
	}
	scene.followID = next
}

// ToggleManual hands the followed vehicle to the keyboard, or back to its
// scripted pilot
func (scene *FlightScene) ToggleManual() {
	if scene.manual {
		scene.releaseManual()
		return
	}

	state, err := scene.sim.Vehicle(scene.followID)
	if err != nil {
		return
	}
	scene.pilot = state.Pilot
	scene.mapper.SetThrottle(state.Throttle)
	scene.manual = true
}

// Manual reports whether the user is flying the followed vehicle
func (scene *FlightScene) Manual() bool {
	return scene.manual
}

func (scene *FlightScene) releaseManual() {
	if !scene.manual {
		return
	}
	scene.manual = false
	if scene.pilot != "" {
		if err := scene.sim.SetPilot(scene.followID, scene.pilot); err != nil {
			scene.sim.Logger.Warn(context.Background(), "Failed to restore pilot",
				"vehicle_id", scene.followID, "pilot", scene.pilot, "error", err)
		}
	}
	scene.pilot = ""
}

// control forwards keyboard input while manual control is engaged
func (scene *FlightScene) control(sample flight.ControlSample) {
	if !scene.manual {
		return
	}
	if err := scene.sim.SetControl(scene.followID, sample); err != nil {
		scene.manual = false
	}
}

// simulationSystem advances the simulation once per frame
type simulationSystem struct {
	scene *FlightScene
}

func (s *simulationSystem) Remove(ecs.BasicEntity) {}

func (s *simulationSystem) Update(dt float32) {
	s.scene.Advance()
}
