// pkg/engine/world.go
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/opd-ai/go-arcadeflight/pkg/config"
	"github.com/opd-ai/go-arcadeflight/pkg/entity"
	"github.com/opd-ai/go-arcadeflight/pkg/event"
	"github.com/opd-ai/go-arcadeflight/pkg/flight"
	"github.com/opd-ai/go-arcadeflight/pkg/logging"
	"github.com/opd-ai/go-arcadeflight/pkg/physics"
	"github.com/opd-ai/go-arcadeflight/pkg/snapshot"
)

// ErrVehicleNotFound is returned for operations on an unknown vehicle ID
var ErrVehicleNotFound = errors.New("vehicle not found")

// VehicleState is a read-only copy of one vehicle's flight telemetry
type VehicleState struct {
	ID           entity.ID
	Name         string
	ProfileID    string
	Pilot        string
	Position     mgl64.Vec3
	Orientation  mgl64.Quat
	Velocity     mgl64.Vec3
	Speed        float64
	ForwardSpeed float64
	Pitch        float64
	Yaw          float64
	BankAngle    float64
	Throttle     float64
	Stalled      bool
}

// WorldState is a consistent copy of the whole simulation at one tick
type WorldState struct {
	Tick     uint64
	SimTime  float64
	Running  bool
	Vehicles []VehicleState
}

// Stats counts per-vehicle tick outcomes since the world was created
type Stats struct {
	Ticks           uint64    `json:"ticks"`
	VehicleTicks    uint64    `json:"vehicleTicks"`
	CorruptedTicks  uint64    `json:"corruptedTicks"`
	StallsEntered   uint64    `json:"stallsEntered"`
	StallsRecovered uint64    `json:"stallsRecovered"`
	Vehicles        int       `json:"vehicles"`
	Stalled         int       `json:"stalled"`
	SimTime         float64   `json:"simTime"`
	LastTick        time.Time `json:"lastTick"`
}

// CorruptedRatio is the fraction of vehicle ticks that needed recovery
func (s Stats) CorruptedRatio() float64 {
	if s.VehicleTicks == 0 {
		return 0
	}
	return float64(s.CorruptedTicks) / float64(s.VehicleTicks)
}

// World owns every vehicle in a simulation and advances them together
type World struct {
	Config   *config.SimConfig
	Catalog  *entity.Catalog
	EventBus *event.Bus
	Logger   *logging.Logger
	TimeStep float64 // Seconds per tick

	lock        sync.RWMutex
	vehicles    map[entity.ID]*entity.Vehicle
	pilots      map[entity.ID]Pilot
	system      *FlightSystem
	running     bool
	currentTick uint64
	simTime     float64
	lastUpdate  time.Time
	stats       Stats
}

// NewWorld creates a world from cfg, registering cfg's profiles in catalog
// and spawning its vehicles. A nil cfg uses the defaults, a nil catalog a
// fresh one and a nil logger the environment-configured logger.
func NewWorld(cfg *config.SimConfig, catalog *entity.Catalog, logger *logging.Logger) (*World, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid simulation config: %w", err)
	}
	if catalog == nil {
		c, err := entity.NewCatalog(entity.DefaultDerivedCacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create profile catalog: %w", err)
		}
		catalog = c
	}
	if logger == nil {
		logger = logging.NewLogger()
	}
	if err := cfg.RegisterProfiles(catalog); err != nil {
		return nil, fmt.Errorf("failed to register profiles: %w", err)
	}
	// reject the whole config before any vehicle is spawned
	if err := cfg.CheckVehicleProfiles(catalog); err != nil {
		return nil, err
	}

	w := &World{
		Config:     cfg,
		Catalog:    catalog,
		EventBus:   event.NewEventBus(),
		Logger:     logger,
		TimeStep:   1.0 / float64(cfg.TickRate),
		vehicles:   make(map[entity.ID]*entity.Vehicle),
		pilots:     make(map[entity.ID]Pilot),
		system:     NewFlightSystem(cfg.Workers),
		lastUpdate: time.Now(),
	}

	for _, vc := range cfg.Vehicles {
		if _, err := w.Spawn(vc); err != nil {
			return nil, fmt.Errorf("failed to spawn %q: %w", vc.Name, err)
		}
	}
	return w, nil
}

// Start marks the world running
func (w *World) Start() {
	w.lock.Lock()
	w.running = true
	w.lastUpdate = time.Now()
	tick, count := w.currentTick, len(w.vehicles)
	w.lock.Unlock()

	w.EventBus.Publish(event.NewSimulationEvent(event.SimulationStarted, w, tick, count))
}

// Stop marks the world stopped
func (w *World) Stop() {
	w.lock.Lock()
	w.running = false
	tick, count := w.currentTick, len(w.vehicles)
	w.lock.Unlock()

	w.EventBus.Publish(event.NewSimulationEvent(event.SimulationStopped, w, tick, count))
}

// Running reports whether the world has been started and not stopped
func (w *World) Running() bool {
	w.lock.RLock()
	defer w.lock.RUnlock()
	return w.running
}

// Spawn adds a vehicle described by vc and returns its ID
func (w *World) Spawn(vc config.VehicleConfig) (entity.ID, error) {
	profile, err := w.Catalog.Profile(vc.Profile)
	if err != nil {
		return 0, err
	}
	var pilot Pilot
	if vc.Pilot != "" {
		if pilot, err = PilotByName(vc.Pilot); err != nil {
			return 0, err
		}
	}

	pose := physics.Pose{
		Position:    mgl64.Vec3{vc.Position[0], vc.Position[1], vc.Position[2]},
		Orientation: physics.HeadingQuat(vc.Heading, vc.Pitch),
	}
	vehicle := entity.NewVehicle(vc.Name, profile, w.Config.Tuning, pose, vc.Throttle)

	w.lock.Lock()
	w.addVehicle(vehicle, pilot)
	w.lock.Unlock()

	w.EventBus.Publish(event.NewVehicleEvent(event.VehicleSpawned, w, uint64(vehicle.ID), vehicle.Name, profile.ID))
	return vehicle.ID, nil
}

// addVehicle registers vehicle with the world and the flight system.
// Must be called with w.lock held.
func (w *World) addVehicle(vehicle *entity.Vehicle, pilot Pilot) {
	w.vehicles[vehicle.ID] = vehicle
	if pilot != nil {
		w.pilots[vehicle.ID] = pilot
	}
	w.system.Add(&vehicle.BasicEntity, vehicle)
}

// Destroy removes a vehicle from the world
func (w *World) Destroy(id entity.ID) error {
	w.lock.Lock()
	vehicle, ok := w.vehicles[id]
	if !ok {
		w.lock.Unlock()
		return fmt.Errorf("%w: %d", ErrVehicleNotFound, id)
	}
	w.removeVehicle(vehicle)
	w.lock.Unlock()

	w.EventBus.Publish(event.NewVehicleEvent(event.VehicleDestroyed, w, uint64(id), vehicle.Name, vehicle.ProfileID()))
	return nil
}

// removeVehicle unregisters vehicle. Must be called with w.lock held.
func (w *World) removeVehicle(vehicle *entity.Vehicle) {
	vehicle.Active = false
	delete(w.vehicles, vehicle.ID)
	delete(w.pilots, vehicle.ID)
	w.system.Remove(vehicle.BasicEntity)
}

// Vehicle returns the current state of one vehicle
func (w *World) Vehicle(id entity.ID) (VehicleState, error) {
	w.lock.RLock()
	defer w.lock.RUnlock()

	vehicle, ok := w.vehicles[id]
	if !ok {
		return VehicleState{}, fmt.Errorf("%w: %d", ErrVehicleNotFound, id)
	}
	return w.vehicleState(vehicle), nil
}

// Vehicles returns the state of every vehicle ordered by ID
func (w *World) Vehicles() []VehicleState {
	w.lock.RLock()
	defer w.lock.RUnlock()
	return w.vehicleStates()
}

// State returns a consistent copy of the world
func (w *World) State() WorldState {
	w.lock.RLock()
	defer w.lock.RUnlock()
	return WorldState{
		Tick:     w.currentTick,
		SimTime:  w.simTime,
		Running:  w.running,
		Vehicles: w.vehicleStates(),
	}
}

// sortedIDs returns every vehicle ID in ascending order.
// Must be called with w.lock held.
func (w *World) sortedIDs() []entity.ID {
	ids := make([]entity.ID, 0, len(w.vehicles))
	for id := range w.vehicles {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (w *World) vehicleStates() []VehicleState {
	states := make([]VehicleState, 0, len(w.vehicles))
	for _, id := range w.sortedIDs() {
		states = append(states, w.vehicleState(w.vehicles[id]))
	}
	return states
}

func (w *World) vehicleState(v *entity.Vehicle) VehicleState {
	c := v.Controller
	state := VehicleState{
		ID:           v.ID,
		Name:         v.Name,
		ProfileID:    v.ProfileID(),
		Position:     c.Position(),
		Orientation:  c.Orientation(),
		Velocity:     c.Velocity(),
		Speed:        c.CurrentSpeed(),
		ForwardSpeed: c.ForwardSpeed(),
		Pitch:        c.Pitch(),
		Yaw:          c.Yaw(),
		BankAngle:    c.BankAngle(),
		Throttle:     c.Throttle(),
		Stalled:      c.IsStalled(),
	}
	if p, ok := w.pilots[v.ID]; ok {
		state.Pilot = p.Name()
	}
	return state
}

// SetControl hands a vehicle to manual control and latches sample as its
// input until the next call
func (w *World) SetControl(id entity.ID, sample flight.ControlSample) error {
	w.lock.Lock()
	defer w.lock.Unlock()

	vehicle, ok := w.vehicles[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrVehicleNotFound, id)
	}
	delete(w.pilots, id)
	vehicle.Controller.SetControl(sample)
	return nil
}

// SetPilot assigns a scripted pilot to a vehicle
func (w *World) SetPilot(id entity.ID, name string) error {
	pilot, err := PilotByName(name)
	if err != nil {
		return err
	}

	w.lock.Lock()
	defer w.lock.Unlock()
	if _, ok := w.vehicles[id]; !ok {
		return fmt.Errorf("%w: %d", ErrVehicleNotFound, id)
	}
	w.pilots[id] = pilot
	return nil
}

// SwapProfile makes a vehicle fly the catalog profile profileID from the
// next tick on
func (w *World) SwapProfile(id entity.ID, profileID string) error {
	profile, err := w.Catalog.Profile(profileID)
	if err != nil {
		return err
	}
	return w.applyProfile(id, profile)
}

// Equip makes a vehicle fly baseID adjusted by mods
func (w *World) Equip(id entity.ID, baseID string, mods entity.Modifiers) error {
	profile, err := w.Catalog.Derive(baseID, mods)
	if err != nil {
		return err
	}
	return w.applyProfile(id, profile)
}

func (w *World) applyProfile(id entity.ID, profile flight.PerformanceProfile) error {
	w.lock.Lock()
	vehicle, ok := w.vehicles[id]
	if !ok {
		w.lock.Unlock()
		return fmt.Errorf("%w: %d", ErrVehicleNotFound, id)
	}
	old := vehicle.ProfileID()
	vehicle.Controller.SetProfile(profile)
	w.lock.Unlock()

	w.EventBus.Publish(event.NewProfileEvent(w, uint64(id), old, profile.ID))
	return nil
}

// Update advances the world by the wall time since the last update
func (w *World) Update() error {
	return w.Step(w.calculateDeltaTime())
}

// calculateDeltaTime calculates the time since the last update
func (w *World) calculateDeltaTime() float64 {
	w.lock.Lock()
	defer w.lock.Unlock()

	now := time.Now()
	deltaTime := now.Sub(w.lastUpdate).Seconds()
	w.lastUpdate = now
	return deltaTime
}

// clampDelta caps dt at the configured maximum. Negative and non-finite
// deltas become zero.
func (w *World) clampDelta(dt float64) float64 {
	if math.IsNaN(dt) || dt < 0 {
		return 0
	}
	if limit := w.Config.MaxDeltaTime; limit > 0 && dt > limit {
		return limit
	}
	return dt
}

// Step advances every vehicle by dt seconds. Scripted pilots sample their
// vehicle before the tick; events are published once the tick is complete.
func (w *World) Step(dt float64) error {
	dt = w.clampDelta(dt)

	w.lock.Lock()
	for id, pilot := range w.pilots {
		vehicle := w.vehicles[id]
		vehicle.Controller.SetControl(pilot.Control(vehicle.Controller.State(), w.simTime))
	}

	results, err := w.system.Step(context.Background(), dt)
	if err != nil {
		w.lock.Unlock()
		return logging.WrapError(err, "tick %d failed", w.currentTick+1)
	}

	w.currentTick++
	w.simTime += dt
	tick := w.currentTick
	w.stats.Ticks++
	w.stats.LastTick = time.Now()

	var events []event.Event
	for _, r := range results {
		w.stats.VehicleTicks++
		if r.Report.Corrupted {
			w.stats.CorruptedTicks++
			events = append(events, event.NewCorruptionEvent(w, uint64(r.VehicleID), tick, r.Report.Reason))
		}
		if r.Report.StallEntered {
			w.stats.StallsEntered++
			events = append(events, event.NewStallEvent(event.StallEntered, w, uint64(r.VehicleID), tick, r.ForwardSpeed, r.Threshold))
		}
		if r.Report.StallRecovered {
			w.stats.StallsRecovered++
			events = append(events, event.NewStallEvent(event.StallRecovered, w, uint64(r.VehicleID), tick, r.ForwardSpeed, r.Threshold))
		}
	}
	w.lock.Unlock()

	for _, e := range events {
		if c, ok := e.(*event.CorruptionEvent); ok {
			w.Logger.Warn(context.Background(), "Recovered corrupted tick",
				"vehicle_id", c.VehicleID,
				"tick", c.Tick,
				"reason", c.Reason,
			)
		}
		w.EventBus.Publish(e)
	}
	return nil
}

// Run steps the world at its fixed tick rate until ctx is cancelled
func (w *World) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Duration(w.TimeStep * float64(time.Second)))
	defer ticker.Stop()

	w.Start()
	defer w.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := w.Update(); err != nil {
				w.Logger.Error(ctx, "World update failed", err)
			}
		}
	}
}

// Stats returns tick counters and the current vehicle population
func (w *World) Stats() Stats {
	w.lock.RLock()
	defer w.lock.RUnlock()

	stats := w.stats
	stats.Vehicles = len(w.vehicles)
	stats.SimTime = w.simTime
	for _, v := range w.vehicles {
		if v.Controller.IsStalled() {
			stats.Stalled++
		}
	}
	return stats
}

// Snapshot captures every vehicle for persistence
func (w *World) Snapshot() *snapshot.WorldSnapshot {
	w.lock.RLock()
	defer w.lock.RUnlock()

	snap := &snapshot.WorldSnapshot{
		Tick:     w.currentTick,
		SimTime:  w.simTime,
		SavedAt:  time.Now().UTC(),
		Vehicles: make([]snapshot.VehicleRecord, 0, len(w.vehicles)),
	}
	for _, id := range w.sortedIDs() {
		v := w.vehicles[id]
		rec := snapshot.VehicleRecord{
			ID:     uint64(v.ID),
			Name:   v.Name,
			Active: v.Active,
			Flight: v.Controller.Snapshot(),
		}
		profile := v.Controller.Profile()
		rec.Profile = &profile
		if p, ok := w.pilots[id]; ok {
			rec.Pilot = p.Name()
		}
		snap.Vehicles = append(snap.Vehicles, rec)
	}
	return snap
}

// Restore replaces every vehicle with the contents of snap. A record's saved
// profile is used as is; older records without one are looked up in the
// catalog and fall back to the default profile when it no longer has them.
func (w *World) Restore(snap *snapshot.WorldSnapshot) error {
	if snap == nil {
		return snapshot.ErrEmptySnapshot
	}

	restored := make([]*entity.Vehicle, 0, len(snap.Vehicles))
	pilots := make(map[entity.ID]Pilot)
	seen := make(map[uint64]bool, len(snap.Vehicles))
	for _, rec := range snap.Vehicles {
		if rec.ID == 0 {
			return fmt.Errorf("vehicle %q has no ID", rec.Name)
		}
		if seen[rec.ID] {
			return fmt.Errorf("duplicate vehicle ID %d in snapshot", rec.ID)
		}
		seen[rec.ID] = true
		profile := w.recordProfile(rec)

		v := entity.NewVehicle(rec.Name, profile, w.Config.Tuning, physics.Pose{}, 0)
		v.ID = entity.ID(rec.ID)
		v.Active = rec.Active
		v.Controller.Restore(rec.Flight)
		entity.ReserveID(v.ID)

		if rec.Pilot != "" {
			p, err := PilotByName(rec.Pilot)
			if err != nil {
				return fmt.Errorf("failed to restore vehicle %d: %w", rec.ID, err)
			}
			pilots[v.ID] = p
		}
		restored = append(restored, v)
	}

	w.lock.Lock()
	for _, v := range w.vehicles {
		w.removeVehicle(v)
	}
	for _, v := range restored {
		w.addVehicle(v, pilots[v.ID])
	}
	w.currentTick = snap.Tick
	w.simTime = snap.SimTime
	w.lock.Unlock()
	return nil
}

func (w *World) recordProfile(rec snapshot.VehicleRecord) flight.PerformanceProfile {
	if rec.Profile != nil {
		return rec.Profile.Sanitize()
	}
	profile, err := w.Catalog.Profile(rec.Flight.ProfileID)
	if err != nil {
		w.Logger.Warn(context.Background(), "Restoring vehicle with default profile",
			"vehicle_id", rec.ID,
			"profile", rec.Flight.ProfileID,
		)
		return flight.DefaultProfile()
	}
	return profile
}

// Profile returns the performance profile vehicle id is flying with
func (w *World) Profile(id entity.ID) (flight.PerformanceProfile, error) {
	w.lock.RLock()
	defer w.lock.RUnlock()
	v, ok := w.vehicles[id]
	if !ok {
		return flight.PerformanceProfile{}, fmt.Errorf("%w: %d", ErrVehicleNotFound, id)
	}
	return v.Controller.Profile(), nil
}

// CurrentTick returns the number of completed ticks
func (w *World) CurrentTick() uint64 {
	w.lock.RLock()
	defer w.lock.RUnlock()
	return w.currentTick
}
