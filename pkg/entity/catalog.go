// pkg/entity/catalog.go
package entity

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/opd-ai/go-arcadeflight/pkg/flight"
)

// ErrUnknownProfile is returned when a profile ID is not registered
var ErrUnknownProfile = errors.New("unknown performance profile")

// DefaultDerivedCacheSize bounds the number of cached derived profiles
const DefaultDerivedCacheSize = 256

// Modifiers adjust a base profile, typically from installed equipment. Scale
// fields multiply (zero means unchanged); delta fields add.
type Modifiers struct {
	// Tag becomes the suffix of the derived profile ID
	Tag string `json:"tag"`

	MaxSpeedScale     float64 `json:"maxSpeedScale,omitempty"`
	AccelerationScale float64 `json:"accelerationScale,omitempty"`
	TurnRateScale     float64 `json:"turnRateScale,omitempty"`
	MassDelta         float64 `json:"massDelta,omitempty"`
	ManeuverDelta     float64 `json:"maneuverDelta,omitempty"`
	BankAngleDelta    float64 `json:"bankAngleDelta,omitempty"`
}

// Apply returns base adjusted by the modifiers. The result is sanitized.
func (m Modifiers) Apply(base flight.PerformanceProfile) flight.PerformanceProfile {
	p := base
	p.MaxSpeed *= scaleOrOne(m.MaxSpeedScale)
	p.Acceleration *= scaleOrOne(m.AccelerationScale)
	p.TurnRate *= scaleOrOne(m.TurnRateScale)
	p.Mass += m.MassDelta
	p.ManeuverBudget += m.ManeuverDelta
	p.MaxBankAngle += m.BankAngleDelta

	tag := m.Tag
	if tag == "" {
		tag = "mod"
	}
	p.ID = base.ID + "+" + tag
	return p.Sanitize()
}

func scaleOrOne(s float64) float64 {
	if s == 0 || math.IsNaN(s) || math.IsInf(s, 0) {
		return 1
	}
	return s
}

type derivedKey struct {
	base string
	mods Modifiers
}

// Catalog maps profile IDs to performance profiles. It is safe for
// concurrent use.
type Catalog struct {
	mu       sync.RWMutex
	profiles map[string]flight.PerformanceProfile
	derived  *lru.Cache[derivedKey, flight.PerformanceProfile]
}

// NewCatalog creates a catalog preloaded with the default profile and every
// built-in class. A non-positive cacheSize uses DefaultDerivedCacheSize.
func NewCatalog(cacheSize int) (*Catalog, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultDerivedCacheSize
	}
	cache, err := lru.New[derivedKey, flight.PerformanceProfile](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create derived profile cache: %w", err)
	}

	c := &Catalog{
		profiles: make(map[string]flight.PerformanceProfile),
		derived:  cache,
	}
	c.profiles[flight.DefaultProfileID] = flight.DefaultProfile()
	for _, class := range Classes() {
		p := ClassProfile(class)
		c.profiles[p.ID] = p
	}
	return c, nil
}

// Register adds or replaces a profile. Replacing a base profile invalidates
// every derived profile.
func (c *Catalog) Register(p flight.PerformanceProfile) error {
	if p.ID == "" {
		return errors.New("profile ID cannot be empty")
	}

	c.mu.Lock()
	_, existed := c.profiles[p.ID]
	c.profiles[p.ID] = p.Sanitize()
	c.mu.Unlock()

	if existed {
		c.derived.Purge()
	}
	return nil
}

// Profile returns the profile registered under id
func (c *Catalog) Profile(id string) (flight.PerformanceProfile, error) {
	c.mu.RLock()
	p, ok := c.profiles[id]
	c.mu.RUnlock()
	if !ok {
		return flight.PerformanceProfile{}, fmt.Errorf("%w: %q", ErrUnknownProfile, id)
	}
	return p, nil
}

// ProfileOrDefault returns the profile registered under id, or the default
// profile when it is missing.
func (c *Catalog) ProfileOrDefault(id string) flight.PerformanceProfile {
	p, err := c.Profile(id)
	if err != nil {
		return flight.DefaultProfile()
	}
	return p
}

// Derive returns baseID adjusted by mods, caching the result
func (c *Catalog) Derive(baseID string, mods Modifiers) (flight.PerformanceProfile, error) {
	key := derivedKey{base: baseID, mods: mods}
	if p, ok := c.derived.Get(key); ok {
		return p, nil
	}

	base, err := c.Profile(baseID)
	if err != nil {
		return flight.PerformanceProfile{}, err
	}
	p := mods.Apply(base)
	c.derived.Add(key, p)
	return p, nil
}

// IDs returns every registered profile ID in sorted order
func (c *Catalog) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.profiles))
	for id := range c.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DerivedCount returns how many derived profiles are cached
func (c *Catalog) DerivedCount() int {
	return c.derived.Len()
}
