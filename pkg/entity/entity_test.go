// pkg/entity/entity_test.go
package entity

import (
	"errors"
	"sync"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/opd-ai/go-arcadeflight/pkg/flight"
	"github.com/opd-ai/go-arcadeflight/pkg/physics"
)

func TestGenerateID_Concurrent_UniqueNonZero(t *testing.T) {
	const workers = 8
	const perWorker = 200

	var mu sync.Mutex
	seen := make(map[ID]bool)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				id := GenerateID()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != workers*perWorker {
		t.Errorf("expected %d unique IDs, got %d", workers*perWorker, len(seen))
	}
	if seen[0] {
		t.Error("GenerateID() returned zero")
	}
}

func TestReserveID_SkipsReservedRange(t *testing.T) {
	reserved := GenerateID() + 1000
	ReserveID(reserved)
	if id := GenerateID(); id <= reserved {
		t.Errorf("GenerateID() = %d after ReserveID(%d)", id, reserved)
	}

	// reserving something already handed out is a no-op
	before := GenerateID()
	ReserveID(1)
	if id := GenerateID(); id != before+1 {
		t.Errorf("GenerateID() = %d, want %d", id, before+1)
	}
}

func TestClassFromString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected VehicleClass
		ok       bool
	}{
		{name: "trainer", input: "trainer", expected: Trainer, ok: true},
		{name: "mixed_case", input: "Interceptor", expected: Interceptor, ok: true},
		{name: "padded", input: "  fighter ", expected: Fighter, ok: true},
		{name: "gunship", input: "gunship", expected: Gunship, ok: true},
		{name: "freighter", input: "FREIGHTER", expected: Freighter, ok: true},
		{name: "unknown", input: "zeppelin", expected: Trainer, ok: false},
		{name: "empty", input: "", expected: Trainer, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ClassFromString(tt.input)
			if got != tt.expected || ok != tt.ok {
				t.Errorf("ClassFromString(%q) = %v, %v, want %v, %v", tt.input, got, ok, tt.expected, tt.ok)
			}
		})
	}
}

func TestClassProfile_AllClasses_ConsistentAndSane(t *testing.T) {
	for _, class := range Classes() {
		t.Run(class.String(), func(t *testing.T) {
			p := ClassProfile(class)
			if p.ID != class.String() {
				t.Errorf("profile ID = %q, want %q", p.ID, class.String())
			}
			if p != p.Sanitize() {
				t.Errorf("class profile %q is not already sanitized", p.ID)
			}
			if p.MinSpeed > p.MaxSpeed {
				t.Errorf("MinSpeed %v exceeds MaxSpeed %v", p.MinSpeed, p.MaxSpeed)
			}
		})
	}

	if got := ClassProfile(VehicleClass(99)); got != flight.DefaultProfile() {
		t.Errorf("unknown class should map to the default profile, got %+v", got)
	}
}

func TestClassProfile_HeavierClasses_TurnSlower(t *testing.T) {
	tuning := flight.DefaultTuning()
	fighter := ClassProfile(Fighter)
	freighter := ClassProfile(Freighter)

	fast := flight.EffectiveTurnSpeed(fighter, tuning, 1)
	slow := flight.EffectiveTurnSpeed(freighter, tuning, 1)
	if slow >= fast {
		t.Errorf("freighter turn speed %v should be below fighter %v", slow, fast)
	}
}

func TestVehicle_Update_MovesWhenActive(t *testing.T) {
	pose := physics.Pose{Position: mgl64.Vec3{0, 100, 0}, Orientation: mgl64.QuatIdent()}
	v := NewVehicle("alpha", ClassProfile(Fighter), flight.DefaultTuning(), pose, 1)

	if v.ID == 0 {
		t.Fatal("vehicle ID should not be zero")
	}
	if !v.Active {
		t.Error("new vehicle should be active")
	}
	if v.ProfileID() != "fighter" {
		t.Errorf("ProfileID() = %q, want fighter", v.ProfileID())
	}

	start := v.GetPosition()
	report := v.Update(0.1)
	if report.Corrupted {
		t.Errorf("unexpected corrupted tick: %+v", report)
	}
	if v.GetPosition() == start {
		t.Error("active vehicle did not move")
	}
	// the nose faces -Z
	if v.GetPosition()[2] >= start[2] {
		t.Errorf("expected forward motion along -Z, got %v", v.GetPosition())
	}
}

func TestVehicle_Update_InactiveHolds(t *testing.T) {
	v := NewVehicle("bravo", ClassProfile(Trainer), flight.DefaultTuning(), physics.Pose{Orientation: mgl64.QuatIdent()}, 1)
	v.Active = false

	start := v.GetPosition()
	report := v.Update(0.5)
	if report != (flight.TickReport{}) {
		t.Errorf("inactive vehicle produced report %+v", report)
	}
	if v.GetPosition() != start {
		t.Error("inactive vehicle moved")
	}
	if v.Controller.Ticks() != 0 {
		t.Errorf("inactive vehicle ticked %d times", v.Controller.Ticks())
	}
}

func TestVehicle_BasicEntity_UniquePerVehicle(t *testing.T) {
	a := NewVehicle("a", ClassProfile(Trainer), flight.DefaultTuning(), physics.Pose{}, 0)
	b := NewVehicle("b", ClassProfile(Trainer), flight.DefaultTuning(), physics.Pose{}, 0)

	if a.BasicEntity.ID() == b.BasicEntity.ID() {
		t.Error("vehicles share an ecs entity ID")
	}
	if a.ID == b.ID {
		t.Error("vehicles share an ID")
	}
}

func TestUnknownProfile_IsSentinel(t *testing.T) {
	c, err := NewCatalog(0)
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}
	_, err = c.Profile("zeppelin")
	if !errors.Is(err, ErrUnknownProfile) {
		t.Errorf("expected ErrUnknownProfile, got %v", err)
	}
}
