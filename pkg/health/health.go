// Package health provides health checks for the flight simulator. It serves
// liveness and readiness probes plus a runtime stats endpoint.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"
)

// DefaultCheckTimeout bounds a single readiness probe
const DefaultCheckTimeout = 5 * time.Second

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// HealthCheck is one probed component.
type HealthCheck interface {
	// Name identifies the check in reports; it must be unique per checker
	Name() string
	// Check returns an error when the component is unhealthy
	Check(ctx context.Context) error
}

// HealthStatus is the aggregated result of a probe.
type HealthStatus struct {
	Status    string                     `json:"status"`
	CheckedAt time.Time                  `json:"checkedAt"`
	Checks    map[string]ComponentHealth `json:"checks"`
}

// ComponentHealth is the result of a single check.
type ComponentHealth struct {
	Status    string  `json:"status"`
	Message   string  `json:"message,omitempty"`
	LatencyMS float64 `json:"latencyMs"`
}

// HealthChecker runs registered checks concurrently, each under the probe
// timeout.
type HealthChecker struct {
	mu      sync.RWMutex
	checks  map[string]HealthCheck
	timeout time.Duration
	started time.Time
}

// NewHealthChecker creates a checker with DefaultCheckTimeout.
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		checks:  make(map[string]HealthCheck),
		timeout: DefaultCheckTimeout,
		started: time.Now(),
	}
}

// SetTimeout changes the probe timeout. Non-positive values restore the
// default.
func (hc *HealthChecker) SetTimeout(d time.Duration) {
	if d <= 0 {
		d = DefaultCheckTimeout
	}
	hc.mu.Lock()
	hc.timeout = d
	hc.mu.Unlock()
}

// AddCheck registers check, replacing any check with the same name.
func (hc *HealthChecker) AddCheck(check HealthCheck) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checks[check.Name()] = check
}

// RemoveCheck removes a health check by name.
func (hc *HealthChecker) RemoveCheck(name string) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	delete(hc.checks, name)
}

// Names returns the registered check names in order.
func (hc *HealthChecker) Names() []string {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	names := make([]string, 0, len(hc.checks))
	for name := range hc.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckHealth runs every check and aggregates the results. The overall
// status is healthy only when all checks pass. A check that outlives ctx
// reports the context error.
func (hc *HealthChecker) CheckHealth(ctx context.Context) HealthStatus {
	hc.mu.RLock()
	checks := make([]HealthCheck, 0, len(hc.checks))
	for _, check := range hc.checks {
		checks = append(checks, check)
	}
	hc.mu.RUnlock()

	status := HealthStatus{
		Status:    StatusHealthy,
		CheckedAt: time.Now(),
		Checks:    make(map[string]ComponentHealth, len(checks)),
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for _, check := range checks {
		g.Go(func() error {
			result := runCheck(ctx, check)
			mu.Lock()
			status.Checks[check.Name()] = result
			if result.Status != StatusHealthy {
				status.Status = StatusUnhealthy
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return status
}

// runCheck runs check and stops waiting once ctx is done, so a check that
// ignores its context cannot hold up the probe.
func runCheck(ctx context.Context, check HealthCheck) ComponentHealth {
	start := time.Now()
	done := make(chan error, 1)
	go func() { done <- check.Check(ctx) }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	result := ComponentHealth{
		Status:    StatusHealthy,
		LatencyMS: float64(time.Since(start).Microseconds()) / 1000,
	}
	if err != nil {
		result.Status = StatusUnhealthy
		result.Message = err.Error()
	}
	return result
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// LivenessHandler answers 200 while the process can serve requests.
func (hc *HealthChecker) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "alive",
		"uptime": time.Since(hc.started).Round(time.Second).String(),
	})
}

// ReadinessHandler runs all checks and answers 200 when healthy, 503
// otherwise.
func (hc *HealthChecker) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	hc.mu.RLock()
	timeout := hc.timeout
	hc.mu.RUnlock()

	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	health := hc.CheckHealth(ctx)
	code := http.StatusOK
	if health.Status != StatusHealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, health)
}

type namedCheck struct {
	name string
	fn   func(ctx context.Context) error
}

func (c namedCheck) Name() string                    { return c.name }
func (c namedCheck) Check(ctx context.Context) error { return c.fn(ctx) }

// NewCheck adapts fn into a HealthCheck called name
func NewCheck(name string, fn func(ctx context.Context) error) HealthCheck {
	return namedCheck{name: name, fn: fn}
}

// NewEngineHealthCheck fails while the simulation loop is stopped or, once
// it has ticked, when the last tick is older than maxStale. A zero maxStale
// disables the staleness test.
func NewEngineHealthCheck(running func() bool, lastTick func() time.Time, maxStale time.Duration) HealthCheck {
	return NewCheck("engine", func(context.Context) error {
		if !running() {
			return fmt.Errorf("simulation is not running")
		}
		if maxStale <= 0 || lastTick == nil {
			return nil
		}
		last := lastTick()
		if last.IsZero() {
			return nil
		}
		if age := time.Since(last); age > maxStale {
			return fmt.Errorf("last tick %s ago exceeds %s", age.Round(time.Millisecond), maxStale)
		}
		return nil
	})
}

// NewIntegrityHealthCheck fails when the share of ticks that needed
// numeric recovery exceeds maxRatio
func NewIntegrityHealthCheck(maxRatio float64, corruptedRatio func() float64) HealthCheck {
	return NewCheck("integrity", func(context.Context) error {
		if ratio := corruptedRatio(); ratio > maxRatio {
			return fmt.Errorf("corrupted tick ratio %.4f exceeds limit %.4f", ratio, maxRatio)
		}
		return nil
	})
}

// NewSnapshotHealthCheck fails while the snapshot store's breaker is open,
// which means snapshots are being skipped
func NewSnapshotHealthCheck(breakerState func() gobreaker.State) HealthCheck {
	return NewCheck("snapshots", func(context.Context) error {
		if state := breakerState(); state == gobreaker.StateOpen {
			return fmt.Errorf("snapshot store circuit breaker is %s", state)
		}
		return nil
	})
}

// NewMemoryHealthCheck fails when usageMB reports more than maxMemoryMB
func NewMemoryHealthCheck(maxMemoryMB int64, usageMB func() int64) HealthCheck {
	return NewCheck("memory", func(context.Context) error {
		if current := usageMB(); current > maxMemoryMB {
			return fmt.Errorf("memory usage %dMB exceeds limit %dMB", current, maxMemoryMB)
		}
		return nil
	})
}
