// pkg/render/terminal.go
package render

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/opd-ai/go-arcadeflight/pkg/engine"
)

// TerminalRenderer draws a top-down ASCII map with a telemetry line per
// vehicle. North (-Z) is up.
type TerminalRenderer struct {
	out       io.Writer
	width     int
	height    int
	buffer    [][]rune
	scale     float64 // meters per cell
	centerPos mgl64.Vec3
	status    []string
}

// NewTerminalRenderer creates a renderer of width x height cells, each
// covering scale meters, writing frames to out
func NewTerminalRenderer(out io.Writer, width, height int, scale float64) *TerminalRenderer {
	buffer := make([][]rune, height)
	for i := range buffer {
		buffer[i] = make([]rune, width)
	}
	return &TerminalRenderer{
		out:    out,
		width:  width,
		height: height,
		buffer: buffer,
		scale:  scale,
	}
}

// SetCenter sets the world position drawn at the middle of the map
func (r *TerminalRenderer) SetCenter(pos mgl64.Vec3) {
	r.centerPos = pos
}

// worldToScreen converts a world position to a map cell
func (r *TerminalRenderer) worldToScreen(pos mgl64.Vec3) (int, int) {
	screenX := int(math.Floor((pos[0]-r.centerPos[0])/r.scale + float64(r.width)/2))
	screenY := int(math.Floor((pos[2]-r.centerPos[2])/r.scale + float64(r.height)/2))
	return screenX, screenY
}

// Clear implements Renderer
func (r *TerminalRenderer) Clear() {
	for y := range r.buffer {
		for x := range r.buffer[y] {
			r.buffer[y][x] = ' '
		}
	}
	r.status = r.status[:0]
}

// Present implements Renderer
func (r *TerminalRenderer) Present() {
	w := bufio.NewWriter(r.out)
	fmt.Fprint(w, "\033[H\033[2J")

	border := "+" + strings.Repeat("-", r.width) + "+"
	fmt.Fprintln(w, border)
	for y := range r.buffer {
		fmt.Fprintf(w, "|%s|\n", string(r.buffer[y]))
	}
	fmt.Fprintln(w, border)

	for _, line := range r.status {
		fmt.Fprintln(w, line)
	}
	w.Flush()
}

// RenderVehicle implements Renderer
func (r *TerminalRenderer) RenderVehicle(state engine.VehicleState) {
	x, y := r.worldToScreen(state.Position)
	if x >= 0 && x < r.width && y >= 0 && y < r.height {
		r.buffer[y][x] = Glyph(state)
	}

	flag := ""
	if state.Stalled {
		flag = " STALL"
	}
	r.status = append(r.status, fmt.Sprintf("%c %-10s %-16s %6.1f m/s thr %3.0f%% alt %6.0f hdg %3.0f%s",
		Glyph(state), state.Name, state.ProfileID, state.Speed, state.Throttle*100,
		state.Position[1], state.Yaw, flag))
}

// Glyph returns the map symbol for a vehicle: '!' while stalled, otherwise
// an arrow along its heading
func Glyph(state engine.VehicleState) rune {
	if state.Stalled {
		return '!'
	}
	heading := math.Mod(state.Yaw, 360)
	if heading < 0 {
		heading += 360
	}
	switch {
	case heading < 45 || heading >= 315:
		return '^'
	case heading < 135:
		return '>'
	case heading < 225:
		return 'v'
	default:
		return '<'
	}
}
