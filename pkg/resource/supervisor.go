// Package resource supervises the simulator's long-lived tasks: the tick
// loop, the snapshot writer and the health server run as named tasks under a
// task limit and a memory ceiling, and stop together on shutdown.
package resource

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opd-ai/go-arcadeflight/pkg/config"
	"github.com/opd-ai/go-arcadeflight/pkg/logging"
)

// Task is a unit of supervised work. It should return when ctx is cancelled.
type Task func(ctx context.Context) error

// Supervisor runs named tasks with panic recovery, counts them against a
// limit and samples process memory on an interval.
type Supervisor struct {
	maxMemoryMB     int64
	maxTasks        int64
	shutdownTimeout time.Duration
	checkInterval   time.Duration

	taskCount     atomic.Int64
	memoryUsageMB atomic.Int64
	failures      atomic.Uint64

	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	mu      sync.RWMutex
	started bool
	stopped bool
	tasks   map[string]int
	lastErr error
	logger  *logging.Logger

	lastMemoryCheck time.Time
}

// NewSupervisor creates a supervisor with limits from cfg. A nil logger uses
// logging.NewLogger.
func NewSupervisor(cfg *config.EnvironmentConfig, logger *logging.Logger) *Supervisor {
	if logger == nil {
		logger = logging.NewLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Supervisor{
		maxMemoryMB:     int64(cfg.MaxMemoryMB),
		maxTasks:        int64(cfg.MaxGoroutines),
		shutdownTimeout: cfg.ShutdownTimeout,
		checkInterval:   cfg.ResourceCheckInterval,
		ctx:             ctx,
		cancel:          cancel,
		done:            make(chan struct{}),
		tasks:           make(map[string]int),
		logger:          logger,
	}
}

// Start begins the memory monitoring loop.
func (s *Supervisor) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("supervisor already running")
	}
	if s.stopped {
		s.mu.Unlock()
		return fmt.Errorf("supervisor has been shut down")
	}
	s.started = true
	s.mu.Unlock()

	go s.monitoringLoop()

	s.logger.Info(s.ctx, "supervisor started",
		"max_memory_mb", s.maxMemoryMB,
		"max_tasks", s.maxTasks,
		"check_interval", s.checkInterval.String(),
	)
	return nil
}

// Context returns the context cancelled by Shutdown
func (s *Supervisor) Context() context.Context {
	return s.ctx
}

// Go starts fn as a named task. It fails when the task limit is reached or
// the supervisor is shutting down. The task's context carries its own
// correlation ID.
func (s *Supervisor) Go(name string, fn Task) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return fmt.Errorf("supervisor is shut down, task %q not started", name)
	}
	current := s.taskCount.Load()
	if current >= s.maxTasks {
		s.mu.Unlock()
		s.logger.Warn(s.ctx, "task limit exceeded",
			"current", current,
			"limit", s.maxTasks,
			"task", name,
		)
		return fmt.Errorf("task limit exceeded: %d/%d", current, s.maxTasks)
	}
	s.taskCount.Add(1)
	s.tasks[name]++
	s.mu.Unlock()

	ctx := logging.WithCorrelationID(s.ctx, "")

	go func() {
		defer s.finish(name)

		defer func() {
			if r := recover(); r != nil {
				s.recordFailure(ctx, name, fmt.Errorf("panic: %v", r))
			}
		}()

		if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.recordFailure(ctx, name, err)
		}
	}()

	return nil
}

func (s *Supervisor) finish(name string) {
	s.mu.Lock()
	if s.tasks[name] <= 1 {
		delete(s.tasks, name)
	} else {
		s.tasks[name]--
	}
	s.mu.Unlock()
	s.taskCount.Add(-1)
}

func (s *Supervisor) recordFailure(ctx context.Context, name string, err error) {
	s.mu.Lock()
	s.lastErr = logging.WrapError(err, "task %s", name)
	s.mu.Unlock()
	s.failures.Add(1)
	s.logger.Error(ctx, "task failed", err, "task", name)
}

// TaskCount returns the number of running tasks.
func (s *Supervisor) TaskCount() int64 {
	return s.taskCount.Load()
}

// Tasks returns the names of running tasks in sorted order
func (s *Supervisor) Tasks() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Failures returns how many tasks have exited with an error or panic
func (s *Supervisor) Failures() uint64 {
	return s.failures.Load()
}

// LastError returns the most recent task failure
func (s *Supervisor) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// CheckMemoryUsage samples heap usage and compares it with the limit.
func (s *Supervisor) CheckMemoryUsage() error {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	currentMB := int64(m.Alloc / 1024 / 1024)
	s.memoryUsageMB.Store(currentMB)
	s.mu.Lock()
	s.lastMemoryCheck = time.Now()
	s.mu.Unlock()

	if currentMB > s.maxMemoryMB {
		return fmt.Errorf("memory usage %dMB exceeds limit %dMB", currentMB, s.maxMemoryMB)
	}
	return nil
}

// MemoryUsage returns the last sampled heap usage in MB.
func (s *Supervisor) MemoryUsage() int64 {
	return s.memoryUsageMB.Load()
}

// Stats contains supervisor statistics.
type Stats struct {
	TaskCount       int64     `json:"task_count"`
	MaxTasks        int64     `json:"max_tasks"`
	Tasks           []string  `json:"tasks"`
	Failures        uint64    `json:"failures"`
	MemoryUsageMB   int64     `json:"memory_usage_mb"`
	MaxMemoryMB     int64     `json:"max_memory_mb"`
	LastMemoryCheck time.Time `json:"last_memory_check"`
}

// Stats returns current usage statistics.
func (s *Supervisor) Stats() Stats {
	s.mu.RLock()
	lastCheck := s.lastMemoryCheck
	s.mu.RUnlock()

	return Stats{
		TaskCount:       s.TaskCount(),
		MaxTasks:        s.maxTasks,
		Tasks:           s.Tasks(),
		Failures:        s.Failures(),
		MemoryUsageMB:   s.MemoryUsage(),
		MaxMemoryMB:     s.maxMemoryMB,
		LastMemoryCheck: lastCheck,
	}
}

// Shutdown cancels every task and waits for them to return, up to the
// configured shutdown timeout.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	wasStarted := s.started
	s.started = false
	s.stopped = true
	s.mu.Unlock()

	s.logger.Info(ctx, "shutting down supervisor", "tasks", s.TaskCount())
	s.cancel()

	shutdownCtx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()

	if wasStarted {
		select {
		case <-s.done:
		case <-shutdownCtx.Done():
			s.logger.Warn(ctx, "monitoring loop did not stop gracefully")
		}
	}

	return s.waitForTasks(shutdownCtx)
}

func (s *Supervisor) waitForTasks(ctx context.Context) error {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		count := s.TaskCount()
		if count == 0 {
			return nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			remaining := s.TaskCount()
			s.logger.Warn(ctx, "shutdown timeout exceeded with tasks still running",
				"remaining", remaining,
				"tasks", s.Tasks(),
			)
			return fmt.Errorf("shutdown timeout: %d tasks still running", remaining)
		}
	}
}

func (s *Supervisor) monitoringLoop() {
	defer close(s.done)

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.performChecks()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Supervisor) performChecks() {
	if err := s.CheckMemoryUsage(); err != nil {
		s.logger.Error(s.ctx, "memory limit exceeded", err,
			"current_mb", s.MemoryUsage(),
			"limit_mb", s.maxMemoryMB,
		)
	}

	s.logger.Debug(s.ctx, "resource usage check",
		"tasks", s.TaskCount(),
		"max_tasks", s.maxTasks,
		"memory_mb", s.MemoryUsage(),
	)
}
