// pkg/config/env_config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// EnvironmentConfig holds deployment settings read from FLIGHT_* variables
type EnvironmentConfig struct {
	HealthAddr       string
	TickRate         int
	Workers          int
	SnapshotDir      string
	SnapshotInterval time.Duration
	ProfileCacheSize int
	ControlRate      int
	HTTPTimeout      time.Duration

	// Circuit Breaker Configuration
	CircuitBreakerMaxRequests         uint32
	CircuitBreakerInterval            time.Duration
	CircuitBreakerTimeout             time.Duration
	CircuitBreakerMaxConsecutiveFails uint32

	// Resource Management Configuration
	MaxMemoryMB           int
	MaxGoroutines         int
	ShutdownTimeout       time.Duration
	ResourceCheckInterval time.Duration
}

// ValidationError describes a configuration field that failed validation
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s (%v): %s", e.Field, e.Value, e.Message)
}

// LoadConfigFromEnv reads and validates the environment configuration
func LoadConfigFromEnv() (*EnvironmentConfig, error) {
	config := &EnvironmentConfig{
		HealthAddr:       getEnvOrDefault("FLIGHT_HEALTH_ADDR", ":8080"),
		TickRate:         getEnvAsIntOrDefault("FLIGHT_TICK_RATE", 60),
		Workers:          getEnvAsIntOrDefault("FLIGHT_WORKERS", 4),
		SnapshotDir:      getEnvOrDefault("FLIGHT_SNAPSHOT_DIR", "snapshots"),
		SnapshotInterval: getEnvAsDurationOrDefault("FLIGHT_SNAPSHOT_INTERVAL", 30*time.Second),
		ProfileCacheSize: getEnvAsIntOrDefault("FLIGHT_PROFILE_CACHE_SIZE", 256),
		ControlRate:      getEnvAsIntOrDefault("FLIGHT_CONTROL_RATE", 600),
		HTTPTimeout:      getEnvAsDurationOrDefault("FLIGHT_HTTP_TIMEOUT", 10*time.Second),

		CircuitBreakerMaxRequests:         uint32(getEnvAsIntOrDefault("FLIGHT_CB_MAX_REQUESTS", 3)),
		CircuitBreakerInterval:            getEnvAsDurationOrDefault("FLIGHT_CB_INTERVAL", 60*time.Second),
		CircuitBreakerTimeout:             getEnvAsDurationOrDefault("FLIGHT_CB_TIMEOUT", 30*time.Second),
		CircuitBreakerMaxConsecutiveFails: uint32(getEnvAsIntOrDefault("FLIGHT_CB_MAX_FAILURES", 5)),

		MaxMemoryMB:           getEnvAsIntOrDefault("FLIGHT_MAX_MEMORY_MB", 500),
		MaxGoroutines:         getEnvAsIntOrDefault("FLIGHT_MAX_GOROUTINES", 1000),
		ShutdownTimeout:       getEnvAsDurationOrDefault("FLIGHT_SHUTDOWN_TIMEOUT", 30*time.Second),
		ResourceCheckInterval: getEnvAsDurationOrDefault("FLIGHT_RESOURCE_CHECK_INTERVAL", 10*time.Second),
	}

	if err := validateEnvironmentConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}

func validateEnvironmentConfig(config *EnvironmentConfig) error {
	if config.HealthAddr == "" {
		return &ValidationError{Field: "HealthAddr", Value: config.HealthAddr, Message: "cannot be empty"}
	}
	if config.TickRate < 1 || config.TickRate > 1000 {
		return &ValidationError{Field: "TickRate", Value: config.TickRate, Message: "must be between 1 and 1000"}
	}
	if config.Workers < 1 || config.Workers > 256 {
		return &ValidationError{Field: "Workers", Value: config.Workers, Message: "must be between 1 and 256"}
	}
	if config.SnapshotDir == "" {
		return &ValidationError{Field: "SnapshotDir", Value: config.SnapshotDir, Message: "cannot be empty"}
	}
	if config.SnapshotInterval <= 0 {
		return &ValidationError{Field: "SnapshotInterval", Value: config.SnapshotInterval, Message: "must be positive"}
	}
	if config.ProfileCacheSize < 1 {
		return &ValidationError{Field: "ProfileCacheSize", Value: config.ProfileCacheSize, Message: "must be at least 1"}
	}
	if config.ControlRate < 1 {
		return &ValidationError{Field: "ControlRate", Value: config.ControlRate, Message: "must be at least 1"}
	}
	if config.HTTPTimeout <= 0 {
		return &ValidationError{Field: "HTTPTimeout", Value: config.HTTPTimeout, Message: "must be positive"}
	}
	if config.CircuitBreakerMaxRequests == 0 {
		return &ValidationError{Field: "CircuitBreakerMaxRequests", Value: config.CircuitBreakerMaxRequests, Message: "must be at least 1"}
	}
	if config.CircuitBreakerInterval <= 0 {
		return &ValidationError{Field: "CircuitBreakerInterval", Value: config.CircuitBreakerInterval, Message: "must be positive"}
	}
	if config.CircuitBreakerTimeout <= 0 {
		return &ValidationError{Field: "CircuitBreakerTimeout", Value: config.CircuitBreakerTimeout, Message: "must be positive"}
	}
	if config.CircuitBreakerMaxConsecutiveFails == 0 {
		return &ValidationError{Field: "CircuitBreakerMaxConsecutiveFails", Value: config.CircuitBreakerMaxConsecutiveFails, Message: "must be at least 1"}
	}
	if config.MaxMemoryMB < 1 {
		return &ValidationError{Field: "MaxMemoryMB", Value: config.MaxMemoryMB, Message: "must be at least 1"}
	}
	if config.MaxGoroutines < 1 {
		return &ValidationError{Field: "MaxGoroutines", Value: config.MaxGoroutines, Message: "must be at least 1"}
	}
	if config.ShutdownTimeout <= 0 {
		return &ValidationError{Field: "ShutdownTimeout", Value: config.ShutdownTimeout, Message: "must be positive"}
	}
	if config.ResourceCheckInterval <= 0 {
		return &ValidationError{Field: "ResourceCheckInterval", Value: config.ResourceCheckInterval, Message: "must be positive"}
	}
	return nil
}

// ApplyEnvironmentOverrides overrides simConfig fields whose FLIGHT_*
// variable is explicitly set
func ApplyEnvironmentOverrides(simConfig *SimConfig) error {
	envConfig, err := LoadConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load environment config: %w", err)
	}

	if isSet("FLIGHT_TICK_RATE") {
		simConfig.TickRate = envConfig.TickRate
	}
	if isSet("FLIGHT_WORKERS") {
		simConfig.Workers = envConfig.Workers
	}
	if isSet("FLIGHT_HEALTH_ADDR") {
		simConfig.Health.Addr = envConfig.HealthAddr
	}
	if isSet("FLIGHT_SNAPSHOT_ENABLED") {
		simConfig.Snapshot.Enabled = getEnvAsBoolOrDefault("FLIGHT_SNAPSHOT_ENABLED", simConfig.Snapshot.Enabled)
	}
	if isSet("FLIGHT_SNAPSHOT_DIR") {
		simConfig.Snapshot.Dir = envConfig.SnapshotDir
	}
	if isSet("FLIGHT_SNAPSHOT_INTERVAL") {
		simConfig.Snapshot.IntervalSeconds = envConfig.SnapshotInterval.Seconds()
	}
	if isSet("FLIGHT_CONTROL_ENABLED") {
		simConfig.Control.Enabled = getEnvAsBoolOrDefault("FLIGHT_CONTROL_ENABLED", simConfig.Control.Enabled)
	}
	if isSet("FLIGHT_CONTROL_RATE") {
		simConfig.Control.MaxRequestsPerMinute = envConfig.ControlRate
	}
	if isSet("FLIGHT_GRAVITY") {
		simConfig.Tuning.Gravity = getEnvAsFloatOrDefault("FLIGHT_GRAVITY", simConfig.Tuning.Gravity)
	}

	return nil
}

func isSet(key string) bool {
	_, ok := os.LookupEnv(key)
	return ok
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvAsDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
