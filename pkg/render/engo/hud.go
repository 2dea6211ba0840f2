// pkg/render/engo/hud.go
package engo

import (
	"fmt"
	"image/color"
	"math"
	"sync"
	"time"

	"github.com/EngoEngine/ecs"
	"github.com/EngoEngine/engo"
	"github.com/EngoEngine/engo/common"

	"github.com/opd-ai/go-arcadeflight/pkg/engine"
	"github.com/opd-ai/go-arcadeflight/pkg/event"
)

// Message is one line of the HUD event log
type Message struct {
	Text      string
	Timestamp time.Time
	Warning   bool
}

type hudText struct {
	basic  ecs.BasicEntity
	render common.RenderComponent
	space  common.SpaceComponent
}

// HUDSystem draws the followed vehicle's telemetry and a log of recent
// simulation events
type HUDSystem struct {
	mu sync.Mutex

	sink SpriteSink
	font *common.Font

	texts []*hudText

	vehicle  *engine.VehicleState
	tick     uint64
	messages []Message

	maxMessages int

	hudColor  color.Color
	warnColor color.Color
}

// NewHUDSystem creates a HUD drawing into sink
func NewHUDSystem(sink SpriteSink) *HUDSystem {
	return &HUDSystem{
		sink:        sink,
		maxMessages: 8,
		hudColor:    color.RGBA{255, 255, 255, 255},
		warnColor:   color.RGBA{255, 64, 64, 255},
	}
}

// Add satisfies the ecs.System interface
func (hud *HUDSystem) Add(basic *ecs.BasicEntity, render *common.RenderComponent, space *common.SpaceComponent) {
}

// Remove satisfies the ecs.System interface
func (hud *HUDSystem) Remove(basic ecs.BasicEntity) {}

// Update redraws the HUD text. Nothing is drawn until a font is set.
func (hud *HUDSystem) Update(dt float32) {
	hud.mu.Lock()
	defer hud.mu.Unlock()

	if hud.font == nil || hud.sink == nil {
		return
	}

	lines := hud.lines()
	for i, line := range lines {
		text := hud.textAt(i)
		text.render.Drawable = common.Text{Font: hud.font, Text: line.Text}
		text.render.Color = hud.hudColor
		if line.Warning {
			text.render.Color = hud.warnColor
		}
	}
	for i := len(lines); i < len(hud.texts); i++ {
		hud.texts[i].render.Drawable = common.Text{Font: hud.font, Text: ""}
	}
}

// textAt returns the i-th text entity, creating it on first use
func (hud *HUDSystem) textAt(i int) *hudText {
	for len(hud.texts) <= i {
		text := &hudText{
			basic: ecs.NewBasic(),
			space: common.SpaceComponent{
				Position: engo.Point{X: 10, Y: 10 + float32(len(hud.texts))*18},
			},
		}
		text.render.SetShader(common.HUDShader)
		text.render.SetZIndex(100)
		hud.texts = append(hud.texts, text)
		hud.sink.Add(&text.basic, &text.render, &text.space)
	}
	return hud.texts[i]
}

// lines lays out telemetry above the event log
func (hud *HUDSystem) lines() []Message {
	var out []Message
	out = append(out, Message{Text: fmt.Sprintf("Tick %d", hud.tick)})
	if hud.vehicle != nil {
		for _, text := range TelemetryLines(*hud.vehicle) {
			out = append(out, Message{Text: text})
		}
		if hud.vehicle.Stalled {
			out = append(out, Message{Text: "STALL", Warning: true})
		}
	}
	out = append(out, Message{})
	return append(out, hud.messages...)
}

// TelemetryLines formats a vehicle's flight state for display
func TelemetryLines(state engine.VehicleState) []string {
	pilot := state.Pilot
	if pilot == "" {
		pilot = "manual"
	}
	return []string{
		fmt.Sprintf("%s [%s] pilot: %s", state.Name, state.ProfileID, pilot),
		fmt.Sprintf("Speed %.1f m/s  Fwd %.1f m/s", state.Speed, state.ForwardSpeed),
		fmt.Sprintf("Throttle %d%%", int(math.Round(state.Throttle*100))),
		fmt.Sprintf("Alt %.0f m  Hdg %.0f  Pitch %.1f  Bank %.1f",
			state.Position[1], state.Yaw, state.Pitch, state.BankAngle),
	}
}

// SetVehicle sets the vehicle whose telemetry is shown; nil hides it
func (hud *HUDSystem) SetVehicle(state *engine.VehicleState, tick uint64) {
	hud.mu.Lock()
	defer hud.mu.Unlock()
	hud.vehicle = state
	hud.tick = tick
}

// HandleEvent adds a log line for the simulation events the HUD reports
func (hud *HUDSystem) HandleEvent(e event.Event) {
	var msg Message
	switch ev := e.(type) {
	case *event.StallEvent:
		if ev.GetType() == event.StallEntered {
			msg = Message{Text: fmt.Sprintf("#%d stalled at %.1f m/s (min %.1f)", ev.VehicleID, ev.ForwardSpeed, ev.Threshold), Warning: true}
		} else {
			msg = Message{Text: fmt.Sprintf("#%d recovered at %.1f m/s", ev.VehicleID, ev.ForwardSpeed)}
		}
	case *event.ProfileEvent:
		msg = Message{Text: fmt.Sprintf("#%d profile %s -> %s", ev.VehicleID, ev.OldProfileID, ev.NewProfileID)}
	case *event.VehicleEvent:
		msg = Message{Text: fmt.Sprintf("%s %s (#%d)", ev.Name, verb(ev.GetType()), ev.VehicleID)}
	case *event.CorruptionEvent:
		msg = Message{Text: fmt.Sprintf("#%d tick %d recovered: %s", ev.VehicleID, ev.Tick, ev.Reason), Warning: true}
	default:
		return
	}
	hud.AddMessage(msg)
}

func verb(t event.Type) string {
	if t == event.VehicleDestroyed {
		return "destroyed"
	}
	return "spawned"
}

// AddMessage appends a log line, keeping the most recent ones
func (hud *HUDSystem) AddMessage(msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	hud.mu.Lock()
	defer hud.mu.Unlock()
	hud.messages = append(hud.messages, msg)
	if len(hud.messages) > hud.maxMessages {
		hud.messages = hud.messages[len(hud.messages)-hud.maxMessages:]
	}
}

// Messages returns a copy of the event log
func (hud *HUDSystem) Messages() []Message {
	hud.mu.Lock()
	defer hud.mu.Unlock()
	return append([]Message(nil), hud.messages...)
}

// ClearMessages clears the event log
func (hud *HUDSystem) ClearMessages() {
	hud.mu.Lock()
	defer hud.mu.Unlock()
	hud.messages = hud.messages[:0]
}

// SetFont sets the font used for HUD text rendering
func (hud *HUDSystem) SetFont(font *common.Font) {
	hud.mu.Lock()
	defer hud.mu.Unlock()
	hud.font = font
}
