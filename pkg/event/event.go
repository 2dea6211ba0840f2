// pkg/event/event.go
package event

import (
	"sync"
)

// Type names a kind of event
type Type string

const (
	VehicleSpawned    Type = "vehicle_spawned"
	VehicleDestroyed  Type = "vehicle_destroyed"
	StallEntered      Type = "stall_entered"
	StallRecovered    Type = "stall_recovered"
	TickCorrupted     Type = "tick_corrupted"
	ProfileChanged    Type = "profile_changed"
	SimulationStarted Type = "simulation_started"
	SimulationStopped Type = "simulation_stopped"
	SnapshotSaved     Type = "snapshot_saved"
)

// Types lists every event type the simulation publishes
func Types() []Type {
	return []Type{
		VehicleSpawned, VehicleDestroyed,
		StallEntered, StallRecovered, TickCorrupted, ProfileChanged,
		SimulationStarted, SimulationStopped, SnapshotSaved,
	}
}

// Event is implemented by everything published on a Bus
type Event interface {
	GetType() Type
	GetSource() any
}

// BaseEvent carries the type and publisher shared by every event
type BaseEvent struct {
	EventType Type
	Source    any
}

func base(t Type, source any) BaseEvent {
	return BaseEvent{EventType: t, Source: source}
}

func (e *BaseEvent) GetType() Type  { return e.EventType }
func (e *BaseEvent) GetSource() any { return e.Source }

// Handler receives published events
type Handler func(Event)

// SubscriptionID identifies a single Subscribe call
type SubscriptionID uint64

// Subscription is returned by Subscribe; Cancel removes the handler and may
// be called more than once
type Subscription struct {
	ID     SubscriptionID
	Type   Type
	Cancel func()
}

type registration struct {
	id      SubscriptionID
	handler Handler
}

// Bus dispatches events to subscribers. Handlers run synchronously on the
// publishing goroutine in subscription order, so a handler must not block.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Type][]registration
	nextID   SubscriptionID
}

// NewEventBus returns an empty bus
func NewEventBus() *Bus {
	return &Bus{
		handlers: make(map[Type][]registration),
		nextID:   1,
	}
}

// Subscribe registers handler for eventType
func (b *Bus) Subscribe(eventType Type, handler Handler) *Subscription {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[eventType] = append(b.handlers[eventType], registration{id: id, handler: handler})
	b.mu.Unlock()

	var once sync.Once
	return &Subscription{
		ID:     id,
		Type:   eventType,
		Cancel: func() { once.Do(func() { b.unsubscribe(eventType, id) }) },
	}
}

// unsubscribe replaces the handler slice rather than editing it in place; a
// Publish already ranging over the old slice finishes its dispatch
func (b *Bus) unsubscribe(eventType Type, id SubscriptionID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	regs := b.handlers[eventType]
	kept := make([]registration, 0, len(regs))
	for _, r := range regs {
		if r.id != id {
			kept = append(kept, r)
		}
	}
	if len(kept) == 0 {
		delete(b.handlers, eventType)
		return
	}
	b.handlers[eventType] = kept
}

// SubscriberCount returns how many handlers are registered for eventType
func (b *Bus) SubscriberCount(eventType Type) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType])
}

// Publish delivers e to the handlers subscribed to its type
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	regs := b.handlers[e.GetType()]
	b.mu.RUnlock()

	for _, r := range regs {
		r.handler(e)
	}
}

// VehicleEvent reports a vehicle joining or leaving the world
type VehicleEvent struct {
	BaseEvent
	VehicleID uint64
	Name      string
	ProfileID string
}

func NewVehicleEvent(eventType Type, source any, vehicleID uint64, name, profileID string) *VehicleEvent {
	return &VehicleEvent{BaseEvent: base(eventType, source), VehicleID: vehicleID, Name: name, ProfileID: profileID}
}

// StallEvent reports a vehicle entering or leaving a stall. ForwardSpeed is
// the speed along the nose on the tick the latch changed.
type StallEvent struct {
	BaseEvent
	VehicleID    uint64
	Tick         uint64
	ForwardSpeed float64
	Threshold    float64
}

func NewStallEvent(eventType Type, source any, vehicleID, tick uint64, forwardSpeed, threshold float64) *StallEvent {
	return &StallEvent{
		BaseEvent:    base(eventType, source),
		VehicleID:    vehicleID,
		Tick:         tick,
		ForwardSpeed: forwardSpeed,
		Threshold:    threshold,
	}
}

// CorruptionEvent reports a tick whose non-finite result was discarded
type CorruptionEvent struct {
	BaseEvent
	VehicleID uint64
	Tick      uint64
	Reason    string
}

func NewCorruptionEvent(source any, vehicleID, tick uint64, reason string) *CorruptionEvent {
	return &CorruptionEvent{BaseEvent: base(TickCorrupted, source), VehicleID: vehicleID, Tick: tick, Reason: reason}
}

// ProfileEvent reports a vehicle switching performance profiles
type ProfileEvent struct {
	BaseEvent
	VehicleID    uint64
	OldProfileID string
	NewProfileID string
}

func NewProfileEvent(source any, vehicleID uint64, oldProfileID, newProfileID string) *ProfileEvent {
	return &ProfileEvent{
		BaseEvent:    base(ProfileChanged, source),
		VehicleID:    vehicleID,
		OldProfileID: oldProfileID,
		NewProfileID: newProfileID,
	}
}

// SimulationEvent reports the world starting or stopping
type SimulationEvent struct {
	BaseEvent
	Tick     uint64
	Vehicles int
}

func NewSimulationEvent(eventType Type, source any, tick uint64, vehicles int) *SimulationEvent {
	return &SimulationEvent{BaseEvent: base(eventType, source), Tick: tick, Vehicles: vehicles}
}

// SnapshotEvent reports a world snapshot written to Path
type SnapshotEvent struct {
	BaseEvent
	Tick     uint64
	Path     string
	Vehicles int
}

func NewSnapshotEvent(source any, tick uint64, path string, vehicles int) *SnapshotEvent {
	return &SnapshotEvent{BaseEvent: base(SnapshotSaved, source), Tick: tick, Path: path, Vehicles: vehicles}
}
