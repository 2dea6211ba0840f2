// pkg/config/config.go
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/opd-ai/go-arcadeflight/pkg/entity"
	"github.com/opd-ai/go-arcadeflight/pkg/flight"
)

// SimConfig contains configuration for a flight simulation run
type SimConfig struct {
	// TickRate is the fixed simulation rate in ticks per second
	TickRate int `json:"tickRate"`
	// MaxDeltaTime caps a single tick's delta in seconds
	MaxDeltaTime float64         `json:"maxDeltaTime"`
	Workers      int             `json:"workers"`
	Tuning       flight.Tuning   `json:"tuning"`
	Profiles     []ProfileConfig `json:"profiles"`
	Vehicles     []VehicleConfig `json:"vehicles"`
	Snapshot     SnapshotConfig  `json:"snapshot"`
	Health       HealthConfig    `json:"health"`
	Control      ControlConfig   `json:"control"`
}

// ProfileConfig registers a performance profile. Either Profile is given in
// full, or Base names an already registered profile adjusted by Modifiers.
type ProfileConfig struct {
	ID        string                     `json:"id"`
	Base      string                     `json:"base,omitempty"`
	Modifiers entity.Modifiers           `json:"modifiers,omitempty"`
	Profile   *flight.PerformanceProfile `json:"profile,omitempty"`
}

// VehicleConfig describes a vehicle spawned at startup
type VehicleConfig struct {
	Name     string     `json:"name"`
	Profile  string     `json:"profile"`
	Position [3]float64 `json:"position"`
	// Heading and Pitch are in degrees
	Heading  float64 `json:"heading"`
	Pitch    float64 `json:"pitch"`
	Throttle float64 `json:"throttle"`
	// Pilot names the scripted input program flying the vehicle
	Pilot string `json:"pilot,omitempty"`
}

// SnapshotConfig contains world snapshot settings
type SnapshotConfig struct {
	Enabled bool   `json:"enabled"`
	Dir     string `json:"dir"`
	// IntervalSeconds between periodic snapshots
	IntervalSeconds float64 `json:"intervalSeconds"`
	// RestoreOnStart loads the latest snapshot before the first tick
	RestoreOnStart bool `json:"restoreOnStart"`
	// Keep is how many snapshot files are retained; zero keeps the store default
	Keep int `json:"keep,omitempty"`
}

// HealthConfig contains health endpoint settings
type HealthConfig struct {
	Addr string `json:"addr"`
	// MaxCorruptedRatio is the corrupted tick fraction above which the
	// integrity check reports unhealthy
	MaxCorruptedRatio float64 `json:"maxCorruptedRatio"`
}

// ControlConfig contains settings for the HTTP control API served next to
// the health endpoints
type ControlConfig struct {
	Enabled bool `json:"enabled"`
	// MaxRequestsPerMinute is the per-client request budget
	MaxRequestsPerMinute int `json:"maxRequestsPerMinute"`
}

// LoadConfig loads a configuration from a file
func LoadConfig(path string) (*SimConfig, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	config.Profiles = nil
	config.Vehicles = nil
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file: %w", err)
	}

	return config, nil
}

// SaveConfig saves a configuration to a file
func SaveConfig(config *SimConfig, path string) error {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DefaultConfig returns a default simulation configuration
func DefaultConfig() *SimConfig {
	return &SimConfig{
		TickRate:     60,
		MaxDeltaTime: 0.1,
		Workers:      4,
		Tuning:       flight.DefaultTuning(),
		Profiles: []ProfileConfig{
			{
				ID:        "fighter+afterburner",
				Base:      "fighter",
				Modifiers: entity.Modifiers{Tag: "afterburner", MaxSpeedScale: 1.25, AccelerationScale: 1.5},
			},
		},
		Vehicles: []VehicleConfig{
			{
				Name:     "Alpha",
				Profile:  "trainer",
				Position: [3]float64{0, 500, 0},
				Throttle: 0.8,
				Pilot:    "cruise",
			},
			{
				Name:     "Bravo",
				Profile:  "fighter",
				Position: [3]float64{200, 600, 0},
				Heading:  90,
				Throttle: 1,
				Pilot:    "orbit",
			},
			{
				Name:     "Charlie",
				Profile:  "freighter",
				Position: [3]float64{-200, 400, 0},
				Heading:  -45,
				Throttle: 0.6,
				Pilot:    "stall",
			},
		},
		Snapshot: SnapshotConfig{
			Enabled:         true,
			Dir:             "snapshots",
			IntervalSeconds: 30,
		},
		Health: HealthConfig{
			Addr:              ":8080",
			MaxCorruptedRatio: 0.01,
		},
		Control: ControlConfig{
			Enabled:              true,
			MaxRequestsPerMinute: 600,
		},
	}
}

// Validate checks the configuration for values the simulator cannot run with
func (c *SimConfig) Validate() error {
	if c.TickRate < 1 || c.TickRate > 1000 {
		return &ValidationError{Field: "TickRate", Value: c.TickRate, Message: "must be between 1 and 1000"}
	}
	if !(c.MaxDeltaTime > 0) || math.IsInf(c.MaxDeltaTime, 0) {
		return &ValidationError{Field: "MaxDeltaTime", Value: c.MaxDeltaTime, Message: "must be a positive number of seconds"}
	}
	if c.Workers < 1 || c.Workers > 256 {
		return &ValidationError{Field: "Workers", Value: c.Workers, Message: "must be between 1 and 256"}
	}

	for i, p := range c.Profiles {
		if p.ID == "" {
			return &ValidationError{Field: fmt.Sprintf("Profiles[%d].ID", i), Value: p.ID, Message: "cannot be empty"}
		}
		if p.Profile == nil && p.Base == "" {
			return &ValidationError{Field: fmt.Sprintf("Profiles[%d]", i), Value: p.ID, Message: "needs either a base or a full profile"}
		}
	}

	names := make(map[string]bool, len(c.Vehicles))
	for i, v := range c.Vehicles {
		if v.Name == "" {
			return &ValidationError{Field: fmt.Sprintf("Vehicles[%d].Name", i), Value: v.Name, Message: "cannot be empty"}
		}
		if names[v.Name] {
			return &ValidationError{Field: fmt.Sprintf("Vehicles[%d].Name", i), Value: v.Name, Message: "must be unique"}
		}
		names[v.Name] = true
	}

	if c.Snapshot.Enabled {
		if c.Snapshot.Dir == "" {
			return &ValidationError{Field: "Snapshot.Dir", Value: c.Snapshot.Dir, Message: "cannot be empty when snapshots are enabled"}
		}
		if !(c.Snapshot.IntervalSeconds > 0) {
			return &ValidationError{Field: "Snapshot.IntervalSeconds", Value: c.Snapshot.IntervalSeconds, Message: "must be positive"}
		}
		if c.Snapshot.Keep < 0 {
			return &ValidationError{Field: "Snapshot.Keep", Value: c.Snapshot.Keep, Message: "cannot be negative"}
		}
	}

	if c.Health.MaxCorruptedRatio < 0 || c.Health.MaxCorruptedRatio > 1 || math.IsNaN(c.Health.MaxCorruptedRatio) {
		return &ValidationError{Field: "Health.MaxCorruptedRatio", Value: c.Health.MaxCorruptedRatio, Message: "must be between 0 and 1"}
	}

	if c.Control.Enabled && c.Control.MaxRequestsPerMinute < 1 {
		return &ValidationError{Field: "Control.MaxRequestsPerMinute", Value: c.Control.MaxRequestsPerMinute, Message: "must be at least 1 when the control API is enabled"}
	}

	return nil
}

// RegisterProfiles adds the configured profiles to catalog in order, so a
// profile may use an earlier one as its base.
func (c *SimConfig) RegisterProfiles(catalog *entity.Catalog) error {
	for _, pc := range c.Profiles {
		var profile flight.PerformanceProfile
		if pc.Profile != nil {
			profile = *pc.Profile
		} else {
			derived, err := catalog.Derive(pc.Base, pc.Modifiers)
			if err != nil {
				return fmt.Errorf("failed to derive profile %q: %w", pc.ID, err)
			}
			profile = derived
		}
		profile.ID = pc.ID
		if err := catalog.Register(profile); err != nil {
			return fmt.Errorf("failed to register profile %q: %w", pc.ID, err)
		}
	}
	return nil
}

// CheckVehicleProfiles reports the first vehicle whose profile is not in catalog
func (c *SimConfig) CheckVehicleProfiles(catalog *entity.Catalog) error {
	for _, v := range c.Vehicles {
		if _, err := catalog.Profile(v.Profile); err != nil {
			if errors.Is(err, entity.ErrUnknownProfile) {
				return fmt.Errorf("vehicle %q: %w", v.Name, err)
			}
			return err
		}
	}
	return nil
}
