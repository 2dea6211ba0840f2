// pkg/resource/health.go
package resource

import (
	"context"
	"fmt"

	"github.com/opd-ai/go-arcadeflight/pkg/health"
)

// taskWarnRatio is the share of MaxTasks above which the supervisor reports
// unhealthy
const taskWarnRatio = 0.8

// NewSupervisorHealthCheck reports unhealthy when memory or task usage is
// too high, or when a supervised task has failed
func NewSupervisorHealthCheck(supervisor *Supervisor) health.HealthCheck {
	return health.NewCheck("resources", func(context.Context) error {
		stats := supervisor.Stats()
		if stats.MemoryUsageMB > stats.MaxMemoryMB {
			return fmt.Errorf("memory usage %dMB exceeds limit %dMB", stats.MemoryUsageMB, stats.MaxMemoryMB)
		}
		if limit := int64(float64(stats.MaxTasks) * taskWarnRatio); stats.TaskCount > limit {
			return fmt.Errorf("task count %d exceeds 80%% threshold (%d/%d)", stats.TaskCount, limit, stats.MaxTasks)
		}
		if err := supervisor.LastError(); err != nil {
			return fmt.Errorf("supervised task failed: %w", err)
		}
		return nil
	})
}
