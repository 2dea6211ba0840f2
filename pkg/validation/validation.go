// Package validation checks requests arriving on the control API before they
// reach the simulation.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/opd-ai/go-arcadeflight/pkg/entity"
	"github.com/opd-ai/go-arcadeflight/pkg/flight"
)

// Request size and content limits
const (
	MaxMessageSize        = 16 * 1024
	MaxVehicleNameLen     = 32
	MaxProfileIDLen       = 64
	MaxModifierScale      = 10.0
	DefaultRequestsPerMin = 600
)

var (
	// ErrMessageTooLarge is returned for bodies over MaxMessageSize
	ErrMessageTooLarge = errors.New("message too large")
	// ErrInvalidJSON is returned for bodies that are not valid JSON
	ErrInvalidJSON = errors.New("invalid JSON format")
	// ErrRateLimited is returned when a client exceeds its request budget
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrInvalidInput is wrapped by every field-level validation failure
	ErrInvalidInput = errors.New("invalid input")
)

var (
	validVehicleNameChars = regexp.MustCompile(`^[a-zA-Z0-9\s\-_.()]+$`)
	// profile and pilot identifiers; '+' joins a base profile and its tags
	validIdentifier = regexp.MustCompile(`^[a-z0-9][a-z0-9_\-+]*$`)
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// MessageValidator applies size, format and rate checks to raw request bodies
type MessageValidator struct {
	rateLimiter *RateLimiter
	maxPerMin   int
}

// NewMessageValidator creates a validator allowing maxPerMin requests per
// client per minute. Non-positive values use DefaultRequestsPerMin.
func NewMessageValidator(maxPerMin int) *MessageValidator {
	if maxPerMin < 1 {
		maxPerMin = DefaultRequestsPerMin
	}
	return &MessageValidator{
		rateLimiter: NewRateLimiter(maxPerMin, time.Minute),
		maxPerMin:   maxPerMin,
	}
}

// Close releases resources used by the message validator
func (v *MessageValidator) Close() {
	if v.rateLimiter != nil {
		v.rateLimiter.Close()
	}
}

// Allow spends one request from clientID's budget
func (v *MessageValidator) Allow(clientID string) error {
	if !v.rateLimiter.Allow(clientID) {
		return fmt.Errorf("%w: max %d requests per minute", ErrRateLimited, v.maxPerMin)
	}
	return nil
}

// CheckFormat checks a request body's size and that it is valid JSON
func CheckFormat(data []byte) error {
	if len(data) > MaxMessageSize {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrMessageTooLarge, len(data), MaxMessageSize)
	}
	if !json.Valid(data) {
		return ErrInvalidJSON
	}
	return nil
}

// ValidateMessage checks a request body's format, then spends one request
// from clientID's budget
func (v *MessageValidator) ValidateMessage(data []byte, clientID string) error {
	if err := CheckFormat(data); err != nil {
		return err
	}
	return v.Allow(clientID)
}

// ValidateVehicleName validates and trims a vehicle name
func ValidateVehicleName(name string) (string, error) {
	if name == "" {
		return "", invalid("vehicle name cannot be empty")
	}
	if len(name) > MaxVehicleNameLen {
		return "", invalid("vehicle name too long: %d characters (max %d)", len(name), MaxVehicleNameLen)
	}
	if !utf8.ValidString(name) {
		return "", invalid("vehicle name contains invalid UTF-8 characters")
	}

	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", invalid("vehicle name cannot be only whitespace")
	}
	for _, r := range trimmed {
		if unicode.IsControl(r) {
			return "", invalid("vehicle name contains control characters")
		}
	}
	if !validVehicleNameChars.MatchString(trimmed) {
		return "", invalid("vehicle name contains invalid characters (only alphanumeric, spaces, hyphens, underscores, dots and parentheses allowed)")
	}
	return trimmed, nil
}

// ValidateIdentifier checks a profile or pilot identifier
func ValidateIdentifier(kind, id string) error {
	if id == "" {
		return invalid("%s cannot be empty", kind)
	}
	if len(id) > MaxProfileIDLen {
		return invalid("%s too long: %d characters (max %d)", kind, len(id), MaxProfileIDLen)
	}
	if !validIdentifier.MatchString(id) {
		return invalid("%s %q must be lowercase alphanumeric with '_', '-' or '+'", kind, id)
	}
	return nil
}

// ValidateControlSample rejects non-finite axes. Finite out-of-range values
// are accepted; the flight controller clamps them.
func ValidateControlSample(s flight.ControlSample) error {
	axes := []struct {
		name  string
		value float64
	}{
		{"pitch", s.Pitch},
		{"yaw", s.Yaw},
		{"roll", s.Roll},
		{"strafe", s.Strafe},
		{"throttle", s.Throttle},
	}
	for _, a := range axes {
		if math.IsNaN(a.value) || math.IsInf(a.value, 0) {
			return invalid("%s must be a finite number", a.name)
		}
	}
	return nil
}

// ValidateModifiers checks equipment modifiers. Scales must lie in
// [0, MaxModifierScale] and deltas must be finite. An empty tag is allowed.
func ValidateModifiers(m entity.Modifiers) error {
	if m.Tag != "" {
		if err := ValidateIdentifier("modifier tag", m.Tag); err != nil {
			return err
		}
		if strings.Contains(m.Tag, "+") {
			return invalid("modifier tag %q cannot contain '+'", m.Tag)
		}
	}

	scales := []struct {
		name  string
		value float64
	}{
		{"maxSpeedScale", m.MaxSpeedScale},
		{"accelerationScale", m.AccelerationScale},
		{"turnRateScale", m.TurnRateScale},
	}
	for _, s := range scales {
		if math.IsNaN(s.value) || s.value < 0 || s.value > MaxModifierScale {
			return invalid("%s must be between 0 and %g", s.name, MaxModifierScale)
		}
	}

	deltas := []struct {
		name  string
		value float64
	}{
		{"massDelta", m.MassDelta},
		{"maneuverDelta", m.ManeuverDelta},
		{"bankAngleDelta", m.BankAngleDelta},
	}
	for _, d := range deltas {
		if math.IsNaN(d.value) || math.IsInf(d.value, 0) {
			return invalid("%s must be a finite number", d.name)
		}
	}
	return nil
}
