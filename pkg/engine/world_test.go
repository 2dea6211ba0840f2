// Package engine provides unit tests for world.go
package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/opd-ai/go-arcadeflight/pkg/config"
	"github.com/opd-ai/go-arcadeflight/pkg/entity"
	"github.com/opd-ai/go-arcadeflight/pkg/event"
	"github.com/opd-ai/go-arcadeflight/pkg/flight"
	"github.com/opd-ai/go-arcadeflight/pkg/logging"
	"github.com/opd-ai/go-arcadeflight/pkg/snapshot"
)

func quietLogger() *logging.Logger {
	return logging.NewLoggerWithWriter(io.Discard, slog.LevelError)
}

func emptyConfig() *config.SimConfig {
	cfg := config.DefaultConfig()
	cfg.Vehicles = nil
	return cfg
}

func newTestWorld(t *testing.T, cfg *config.SimConfig) *World {
	t.Helper()
	w, err := NewWorld(cfg, nil, quietLogger())
	if err != nil {
		t.Fatalf("NewWorld() error = %v", err)
	}
	return w
}

// recorder collects published events of the given types
type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func record(bus *event.Bus, types ...event.Type) *recorder {
	r := &recorder{}
	for _, typ := range types {
		bus.Subscribe(typ, func(e event.Event) {
			r.mu.Lock()
			r.events = append(r.events, e)
			r.mu.Unlock()
		})
	}
	return r
}

func (r *recorder) count(typ event.Type) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.GetType() == typ {
			n++
		}
	}
	return n
}

func (r *recorder) last(typ event.Type) event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].GetType() == typ {
			return r.events[i]
		}
	}
	return nil
}

func TestNewWorld_SpawnsConfiguredVehicles(t *testing.T) {
	w := newTestWorld(t, nil)

	vehicles := w.Vehicles()
	if len(vehicles) != 3 {
		t.Fatalf("expected 3 vehicles, got %d", len(vehicles))
	}
	want := map[string]string{"Alpha": "cruise", "Bravo": "orbit", "Charlie": "stall"}
	for _, v := range vehicles {
		if want[v.Name] != v.Pilot {
			t.Errorf("vehicle %s pilot = %q, want %q", v.Name, v.Pilot, want[v.Name])
		}
	}
	for i := 1; i < len(vehicles); i++ {
		if vehicles[i-1].ID >= vehicles[i].ID {
			t.Error("Vehicles() not ordered by ID")
		}
	}
	if w.TimeStep != 1.0/60 {
		t.Errorf("TimeStep = %v, want 1/60", w.TimeStep)
	}
	if _, err := w.Catalog.Profile("fighter+afterburner"); err != nil {
		t.Errorf("configured profile not registered: %v", err)
	}
}

func TestNewWorld_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.SimConfig)
		wantErr error
	}{
		{
			name:   "invalid tick rate",
			mutate: func(c *config.SimConfig) { c.TickRate = 0 },
		},
		{
			name: "unknown vehicle profile",
			mutate: func(c *config.SimConfig) {
				c.Vehicles = []config.VehicleConfig{{Name: "X", Profile: "zeppelin"}}
			},
			wantErr: entity.ErrUnknownProfile,
		},
		{
			name: "unknown pilot",
			mutate: func(c *config.SimConfig) {
				c.Vehicles = []config.VehicleConfig{{Name: "X", Profile: "trainer", Pilot: "autopilot"}}
			},
			wantErr: ErrUnknownPilot,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := emptyConfig()
			tc.mutate(cfg)
			_, err := NewWorld(cfg, nil, quietLogger())
			if err == nil {
				t.Fatal("expected error")
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Errorf("error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestWorld_StartStop_Transitions(t *testing.T) {
	w := newTestWorld(t, emptyConfig())
	rec := record(w.EventBus, event.SimulationStarted, event.SimulationStopped)

	w.Start()
	if !w.Running() {
		t.Error("world did not start")
	}
	w.Stop()
	if w.Running() {
		t.Error("world did not stop")
	}
	if rec.count(event.SimulationStarted) != 1 || rec.count(event.SimulationStopped) != 1 {
		t.Error("expected one start and one stop event")
	}
}

func TestWorld_StopReportsTickAndVehicles(t *testing.T) {
	w := newTestWorld(t, config.DefaultConfig())
	rec := record(w.EventBus, event.SimulationStopped)

	w.Start()
	for i := 0; i < 3; i++ {
		if err := w.Step(0.1); err != nil {
			t.Fatalf("Step() error = %v", err)
		}
	}
	w.Stop()

	ev, ok := rec.last(event.SimulationStopped).(*event.SimulationEvent)
	if !ok {
		t.Fatal("expected a SimulationEvent on stop")
	}
	if ev.Tick != 3 || ev.Vehicles != len(w.Vehicles()) {
		t.Errorf("stop event tick %d vehicles %d, want 3 and %d", ev.Tick, ev.Vehicles, len(w.Vehicles()))
	}
}

func TestWorld_SpawnDestroy(t *testing.T) {
	w := newTestWorld(t, emptyConfig())
	rec := record(w.EventBus, event.VehicleSpawned, event.VehicleDestroyed)

	id, err := w.Spawn(config.VehicleConfig{Name: "Delta", Profile: "fighter", Throttle: 1})
	if err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}
	state, err := w.Vehicle(id)
	if err != nil {
		t.Fatalf("Vehicle() error = %v", err)
	}
	if state.Name != "Delta" || state.ProfileID != "fighter" || state.Throttle != 1 {
		t.Errorf("unexpected vehicle state %+v", state)
	}
	spawned, ok := rec.last(event.VehicleSpawned).(*event.VehicleEvent)
	if !ok || spawned.VehicleID != uint64(id) || spawned.ProfileID != "fighter" {
		t.Errorf("unexpected spawn event %+v", rec.last(event.VehicleSpawned))
	}

	if err := w.Destroy(id); err != nil {
		t.Fatalf("Destroy() error = %v", err)
	}
	if rec.count(event.VehicleDestroyed) != 1 {
		t.Error("expected a destroy event")
	}
	if _, err := w.Vehicle(id); !errors.Is(err, ErrVehicleNotFound) {
		t.Errorf("Vehicle() after destroy error = %v", err)
	}
	if err := w.Destroy(id); !errors.Is(err, ErrVehicleNotFound) {
		t.Errorf("second Destroy() error = %v", err)
	}
	if w.system.Len() != 0 {
		t.Errorf("flight system still tracks %d vehicles", w.system.Len())
	}
}

func TestWorld_Step_MovesVehicles(t *testing.T) {
	w := newTestWorld(t, emptyConfig())
	id, err := w.Spawn(config.VehicleConfig{Name: "Echo", Profile: "trainer", Position: [3]float64{0, 100, 0}, Throttle: 1})
	if err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}

	for i := 0; i < 60; i++ {
		if err := w.Step(1.0 / 60); err != nil {
			t.Fatalf("Step() error = %v", err)
		}
	}
	state, _ := w.Vehicle(id)
	if state.Position[2] > -100 {
		t.Errorf("expected vehicle to fly along -Z, got %v", state.Position)
	}
	if w.CurrentTick() != 60 {
		t.Errorf("CurrentTick() = %d, want 60", w.CurrentTick())
	}
	stats := w.Stats()
	if stats.Ticks != 60 || stats.VehicleTicks != 60 || stats.Vehicles != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if math.Abs(stats.SimTime-1) > 1e-9 {
		t.Errorf("SimTime = %v, want 1", stats.SimTime)
	}
}

func TestWorld_Step_ClampsDelta(t *testing.T) {
	tests := []struct {
		name string
		dt   float64
		want float64
	}{
		{"normal", 0.05, 0.05},
		{"capped", 10, 0.1},
		{"infinite", math.Inf(1), 0.1},
		{"negative", -1, 0},
		{"nan", math.NaN(), 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := newTestWorld(t, emptyConfig())
			if err := w.Step(tc.dt); err != nil {
				t.Fatalf("Step() error = %v", err)
			}
			if got := w.State().SimTime; got != tc.want {
				t.Errorf("SimTime = %v, want %v", got, tc.want)
			}
			if w.CurrentTick() != 1 {
				t.Errorf("CurrentTick() = %d, want 1", w.CurrentTick())
			}
		})
	}
}

func TestWorld_Step_PublishesStallEvents(t *testing.T) {
	w := newTestWorld(t, emptyConfig())
	rec := record(w.EventBus, event.StallEntered, event.StallRecovered)

	id, err := w.Spawn(config.VehicleConfig{Name: "Foxtrot", Profile: flight.DefaultProfileID, Throttle: 80.0 / 150})
	if err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}
	if err := w.SetControl(id, flight.ControlSample{}); err != nil {
		t.Fatalf("SetControl() error = %v", err)
	}

	for i := 0; i < 300 && rec.count(event.StallEntered) == 0; i++ {
		if err := w.Step(1.0 / 60); err != nil {
			t.Fatalf("Step() error = %v", err)
		}
	}
	if rec.count(event.StallEntered) != 1 {
		t.Fatalf("expected one stall event, got %d", rec.count(event.StallEntered))
	}
	stall := rec.last(event.StallEntered).(*event.StallEvent)
	if stall.VehicleID != uint64(id) || stall.Threshold != 60 {
		t.Errorf("unexpected stall event %+v", stall)
	}
	stats := w.Stats()
	if stats.StallsEntered != 1 || stats.Stalled != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}

	// full power with the nose down flies out of it
	if err := w.SetControl(id, flight.ControlSample{Pitch: -1, Throttle: 1}); err != nil {
		t.Fatalf("SetControl() error = %v", err)
	}
	for i := 0; i < 1200 && rec.count(event.StallRecovered) == 0; i++ {
		if err := w.Step(1.0 / 60); err != nil {
			t.Fatalf("Step() error = %v", err)
		}
	}
	if rec.count(event.StallRecovered) != 1 {
		t.Errorf("expected recovery, stats %+v", w.Stats())
	}
}

func TestWorld_SwapProfile(t *testing.T) {
	w := newTestWorld(t, emptyConfig())
	rec := record(w.EventBus, event.ProfileChanged)
	id, _ := w.Spawn(config.VehicleConfig{Name: "Golf", Profile: "trainer", Throttle: 0.5})

	if err := w.SwapProfile(id, "fighter"); err != nil {
		t.Fatalf("SwapProfile() error = %v", err)
	}
	state, _ := w.Vehicle(id)
	if state.ProfileID != "fighter" {
		t.Errorf("ProfileID = %q, want fighter", state.ProfileID)
	}
	changed := rec.last(event.ProfileChanged).(*event.ProfileEvent)
	if changed.OldProfileID != "trainer" || changed.NewProfileID != "fighter" {
		t.Errorf("unexpected profile event %+v", changed)
	}

	if err := w.SwapProfile(id, "zeppelin"); !errors.Is(err, entity.ErrUnknownProfile) {
		t.Errorf("SwapProfile(unknown) error = %v", err)
	}
	if err := w.SwapProfile(entity.ID(math.MaxUint64), "fighter"); !errors.Is(err, ErrVehicleNotFound) {
		t.Errorf("SwapProfile(missing vehicle) error = %v", err)
	}

	if err := w.Equip(id, "fighter", entity.Modifiers{Tag: "boost", MaxSpeedScale: 1.1}); err != nil {
		t.Fatalf("Equip() error = %v", err)
	}
	state, _ = w.Vehicle(id)
	if state.ProfileID != "fighter+boost" {
		t.Errorf("ProfileID = %q, want fighter+boost", state.ProfileID)
	}
	if rec.count(event.ProfileChanged) != 2 {
		t.Errorf("expected 2 profile events, got %d", rec.count(event.ProfileChanged))
	}
}

func TestWorld_PilotAssignment(t *testing.T) {
	w := newTestWorld(t, emptyConfig())
	id, _ := w.Spawn(config.VehicleConfig{Name: "Hotel", Profile: "trainer", Throttle: 0.2, Pilot: "climb"})

	if err := w.Step(1.0 / 60); err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	state, _ := w.Vehicle(id)
	if state.Pilot != "climb" || state.Throttle != 1 {
		t.Errorf("climb pilot not flying: %+v", state)
	}

	if err := w.SetControl(id, flight.ControlSample{Throttle: 0.3}); err != nil {
		t.Fatalf("SetControl() error = %v", err)
	}
	w.Step(1.0 / 60)
	state, _ = w.Vehicle(id)
	if state.Pilot != "" || state.Throttle != 0.3 {
		t.Errorf("manual control did not take over: %+v", state)
	}

	if err := w.SetPilot(id, "autopilot"); !errors.Is(err, ErrUnknownPilot) {
		t.Errorf("SetPilot(unknown) error = %v", err)
	}
	if err := w.SetPilot(entity.ID(math.MaxUint64), "cruise"); !errors.Is(err, ErrVehicleNotFound) {
		t.Errorf("SetPilot(missing vehicle) error = %v", err)
	}
	if err := w.SetPilot(id, "cruise"); err != nil {
		t.Fatalf("SetPilot() error = %v", err)
	}
	state, _ = w.Vehicle(id)
	if state.Pilot != "cruise" {
		t.Errorf("Pilot = %q, want cruise", state.Pilot)
	}
}

func TestWorld_SnapshotRestore(t *testing.T) {
	src := newTestWorld(t, nil)
	for i := 0; i < 90; i++ {
		src.Step(1.0 / 30)
	}
	snap := src.Snapshot()
	if snap.Tick != 90 || len(snap.Vehicles) != 3 {
		t.Fatalf("unexpected snapshot tick=%d vehicles=%d", snap.Tick, len(snap.Vehicles))
	}

	data, err := snapshot.Marshal(snap)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	decoded, err := snapshot.Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	dst := newTestWorld(t, emptyConfig())
	if err := dst.Restore(decoded); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if dst.CurrentTick() != 90 {
		t.Errorf("CurrentTick() = %d, want 90", dst.CurrentTick())
	}
	if dst.system.Len() != 3 {
		t.Errorf("flight system tracks %d vehicles, want 3", dst.system.Len())
	}

	want := src.Vehicles()
	got := dst.Vehicles()
	if len(got) != len(want) {
		t.Fatalf("restored %d vehicles, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i].ID || got[i].Name != want[i].Name || got[i].Pilot != want[i].Pilot {
			t.Errorf("vehicle %d identity mismatch: got %+v want %+v", i, got[i], want[i])
		}
		if got[i].ProfileID != want[i].ProfileID {
			t.Errorf("vehicle %d profile = %q, want %q", i, got[i].ProfileID, want[i].ProfileID)
		}
		if got[i].Position != want[i].Position || got[i].Velocity != want[i].Velocity {
			t.Errorf("vehicle %d pose mismatch", i)
		}
	}

	// new vehicles never reuse restored IDs
	id, _ := dst.Spawn(config.VehicleConfig{Name: "India", Profile: "trainer"})
	for _, v := range want {
		if id <= v.ID {
			t.Errorf("spawned ID %d not above restored ID %d", id, v.ID)
		}
	}
}

func TestWorld_SnapshotRestore_KeepsEquippedProfile(t *testing.T) {
	src := newTestWorld(t, emptyConfig())
	id, err := src.Spawn(config.VehicleConfig{Name: "Kilo", Profile: "fighter", Throttle: 0.6})
	if err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}
	base, _ := src.Profile(id)
	if err := src.Equip(id, "fighter", entity.Modifiers{Tag: "boost", MaxSpeedScale: 1.5}); err != nil {
		t.Fatalf("Equip() error = %v", err)
	}
	src.Step(1.0 / 60)

	data, err := snapshot.Marshal(src.Snapshot())
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	decoded, err := snapshot.Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	// a fresh world whose catalog has never derived the equipped profile
	dst := newTestWorld(t, emptyConfig())
	if err := dst.Restore(decoded); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	state, err := dst.Vehicle(id)
	if err != nil {
		t.Fatalf("Vehicle() error = %v", err)
	}
	if state.ProfileID != "fighter+boost" {
		t.Errorf("ProfileID = %q, want fighter+boost", state.ProfileID)
	}
	profile, err := dst.Profile(id)
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if want := base.MaxSpeed * 1.5; math.Abs(profile.MaxSpeed-want) > 1e-9 {
		t.Errorf("MaxSpeed = %f, want %f", profile.MaxSpeed, want)
	}
	before, _ := src.Profile(id)
	if profile != before {
		t.Errorf("restored profile %+v, want %+v", profile, before)
	}
}

func TestWorld_Profile_MissingVehicle(t *testing.T) {
	w := newTestWorld(t, emptyConfig())
	if _, err := w.Profile(entity.ID(math.MaxUint64)); !errors.Is(err, ErrVehicleNotFound) {
		t.Errorf("Profile(missing) error = %v", err)
	}
}

func TestWorld_Restore_Errors(t *testing.T) {
	w := newTestWorld(t, emptyConfig())
	if err := w.Restore(nil); !errors.Is(err, snapshot.ErrEmptySnapshot) {
		t.Errorf("Restore(nil) error = %v", err)
	}

	tests := []struct {
		name    string
		records []snapshot.VehicleRecord
	}{
		{"zero id", []snapshot.VehicleRecord{{ID: 0, Name: "A"}}},
		{"duplicate id", []snapshot.VehicleRecord{{ID: 5, Name: "A"}, {ID: 5, Name: "B"}}},
		{"unknown pilot", []snapshot.VehicleRecord{{ID: 6, Name: "A", Pilot: "autopilot"}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := w.Restore(&snapshot.WorldSnapshot{Vehicles: tc.records}); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestWorld_Restore_UnknownProfileFallsBack(t *testing.T) {
	w := newTestWorld(t, emptyConfig())
	snap := &snapshot.WorldSnapshot{
		Tick: 7,
		Vehicles: []snapshot.VehicleRecord{{
			ID:     uint64(entity.GenerateID()),
			Name:   "Juliet",
			Active: true,
			Flight: flight.Snapshot{ProfileID: "retired"},
		}},
	}
	if err := w.Restore(snap); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	got := w.Vehicles()
	if len(got) != 1 || got[0].ProfileID != flight.DefaultProfileID {
		t.Errorf("unexpected vehicles %+v", got)
	}
}

func TestWorld_Run_StopsOnCancel(t *testing.T) {
	cfg := emptyConfig()
	cfg.TickRate = 200
	w := newTestWorld(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for w.CurrentTick() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if w.CurrentTick() < 3 {
		t.Fatal("world never ticked")
	}
	if !w.Running() {
		t.Error("Running() = false during Run")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if w.Running() {
		t.Error("Running() = true after Run returned")
	}
}

func TestStats_CorruptedRatio(t *testing.T) {
	tests := []struct {
		name  string
		stats Stats
		want  float64
	}{
		{"no ticks", Stats{}, 0},
		{"clean", Stats{VehicleTicks: 100}, 0},
		{"some corrupted", Stats{VehicleTicks: 200, CorruptedTicks: 5}, 0.025},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.stats.CorruptedRatio(); got != tc.want {
				t.Errorf("CorruptedRatio() = %v, want %v", got, tc.want)
			}
		})
	}
}
