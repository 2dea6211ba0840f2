// Package snapshot persists world state between simulator runs. Snapshots are
// msgpack-encoded and written atomically; the store sits behind a circuit
// breaker so a failing disk degrades to skipped snapshots rather than a
// stalled simulation.
package snapshot

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/opd-ai/go-arcadeflight/pkg/flight"
)

const (
	// FormatVersion is the current snapshot encoding version. Version 2 added
	// the vehicle profile to each record.
	FormatVersion = 2
	// MinFormatVersion is the oldest version Unmarshal still reads
	MinFormatVersion = 1
)

var (
	// ErrEmptySnapshot is returned when decoding zero bytes
	ErrEmptySnapshot = errors.New("empty snapshot")
	// ErrUnsupportedVersion is returned for snapshots outside
	// MinFormatVersion..FormatVersion
	ErrUnsupportedVersion = errors.New("unsupported snapshot version")
)

// VehicleRecord is one vehicle inside a world snapshot. Profile holds the
// full handling envelope so equipment-derived profiles, which never enter the
// catalog, survive a restart; version 1 records carry only Flight.ProfileID.
type VehicleRecord struct {
	ID      uint64                     `msgpack:"id"`
	Name    string                     `msgpack:"name"`
	Active  bool                       `msgpack:"active"`
	Pilot   string                     `msgpack:"pilot,omitempty"`
	Flight  flight.Snapshot            `msgpack:"flight"`
	Profile *flight.PerformanceProfile `msgpack:"profile,omitempty"`
}

// WorldSnapshot is the persisted state of every vehicle at one tick
type WorldSnapshot struct {
	Version  int             `msgpack:"version"`
	Tick     uint64          `msgpack:"tick"`
	SimTime  float64         `msgpack:"sim_time"`
	SavedAt  time.Time       `msgpack:"saved_at"`
	Vehicles []VehicleRecord `msgpack:"vehicles"`
}

// Marshal encodes snap, stamping the current format version
func Marshal(snap *WorldSnapshot) ([]byte, error) {
	if snap == nil {
		return nil, ErrEmptySnapshot
	}
	out := *snap
	out.Version = FormatVersion

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.UseCompactInts(true)
	if err := enc.Encode(&out); err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a snapshot produced by Marshal
func Unmarshal(data []byte) (*WorldSnapshot, error) {
	if len(data) == 0 {
		return nil, ErrEmptySnapshot
	}

	var snap WorldSnapshot
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if snap.Version < MinFormatVersion || snap.Version > FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, snap.Version)
	}
	return &snap, nil
}
