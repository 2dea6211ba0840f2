// pkg/render/terminal_test.go
package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/opd-ai/go-arcadeflight/pkg/engine"
)

func TestNewTerminalRenderer_CreatesValidRenderer_WithCorrectDimensions(t *testing.T) {
	tests := []struct {
		name   string
		width  int
		height int
		scale  float64
	}{
		{"small renderer", 10, 5, 1.0},
		{"medium renderer", 80, 24, 10.0},
		{"large renderer", 120, 40, 5.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewTerminalRenderer(&bytes.Buffer{}, tt.width, tt.height, tt.scale)

			if r.width != tt.width || r.height != tt.height || r.scale != tt.scale {
				t.Errorf("expected %dx%d@%f, got %dx%d@%f", tt.width, tt.height, tt.scale, r.width, r.height, r.scale)
			}
			if len(r.buffer) != tt.height {
				t.Errorf("expected buffer height %d, got %d", tt.height, len(r.buffer))
			}
			for i, row := range r.buffer {
				if len(row) != tt.width {
					t.Errorf("row %d: expected width %d, got %d", i, tt.width, len(row))
				}
			}
			if r.centerPos != (mgl64.Vec3{}) {
				t.Errorf("expected center at origin, got %v", r.centerPos)
			}
		})
	}
}

func TestWorldToScreen(t *testing.T) {
	r := NewTerminalRenderer(&bytes.Buffer{}, 80, 24, 10)

	tests := []struct {
		name  string
		pos   mgl64.Vec3
		wantX int
		wantY int
	}{
		{"origin is centre", mgl64.Vec3{0, 0, 0}, 40, 12},
		{"east is right", mgl64.Vec3{100, 0, 0}, 50, 12},
		{"north is up", mgl64.Vec3{0, 0, -100}, 40, 2},
		{"altitude ignored", mgl64.Vec3{0, 5000, 0}, 40, 12},
		{"negative cells floor", mgl64.Vec3{-405, 0, 0}, -1, 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y := r.worldToScreen(tt.pos)
			if x != tt.wantX || y != tt.wantY {
				t.Errorf("worldToScreen(%v) = (%d, %d), want (%d, %d)", tt.pos, x, y, tt.wantX, tt.wantY)
			}
		})
	}

	r.SetCenter(mgl64.Vec3{100, 0, 100})
	if x, y := r.worldToScreen(mgl64.Vec3{100, 0, 100}); x != 40 || y != 12 {
		t.Errorf("expected recentred origin at (40, 12), got (%d, %d)", x, y)
	}
}

func TestGlyph(t *testing.T) {
	tests := []struct {
		yaw     float64
		stalled bool
		want    rune
	}{
		{0, false, '^'},
		{44, false, '^'},
		{90, false, '>'},
		{180, false, 'v'},
		{270, false, '<'},
		{-90, false, '<'},
		{350, false, '^'},
		{720 + 90, false, '>'},
		{90, true, '!'},
	}
	for _, tt := range tests {
		state := engine.VehicleState{Yaw: tt.yaw, Stalled: tt.stalled}
		if got := Glyph(state); got != tt.want {
			t.Errorf("Glyph(yaw=%v, stalled=%v) = %q, want %q", tt.yaw, tt.stalled, got, tt.want)
		}
	}
}

func TestTerminalRenderer_Frame(t *testing.T) {
	var out bytes.Buffer
	r := NewTerminalRenderer(&out, 20, 10, 10)

	Frame(r, []engine.VehicleState{
		{Name: "Alpha", ProfileID: "fighter", Yaw: 90, Speed: 80, Throttle: 0.5},
		{Name: "Bravo", ProfileID: "trainer", Position: mgl64.Vec3{50, 100, -30}, Stalled: true},
		{Name: "Far", ProfileID: "trainer", Position: mgl64.Vec3{10000, 0, 0}},
	})

	if r.buffer[5][10] != '>' {
		t.Errorf("expected Alpha glyph at (10, 5), got %q", r.buffer[5][10])
	}
	if r.buffer[2][15] != '!' {
		t.Errorf("expected stalled Bravo at (15, 2), got %q", r.buffer[2][15])
	}

	frame := out.String()
	for _, want := range []string{"+" + strings.Repeat("-", 20) + "+", "Alpha", "fighter", "80.0 m/s", "thr  50%", "Bravo", "STALL", "Far"} {
		if !strings.Contains(frame, want) {
			t.Errorf("expected frame to contain %q, got:\n%s", want, frame)
		}
	}
}

func TestTerminalRenderer_ClearResetsFrame(t *testing.T) {
	r := NewTerminalRenderer(&bytes.Buffer{}, 10, 5, 1)
	r.RenderVehicle(engine.VehicleState{Name: "A"})
	r.Clear()

	for y := range r.buffer {
		for x := range r.buffer[y] {
			if r.buffer[y][x] != ' ' {
				t.Fatalf("expected blank cell at (%d, %d), got %q", x, y, r.buffer[y][x])
			}
		}
	}
	if len(r.status) != 0 {
		t.Errorf("expected no status lines, got %v", r.status)
	}
}
