// pkg/health/stats.go
package health

import (
	"math"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/process"
)

// ServerStats is the body served by the stats endpoint
type ServerStats struct {
	Uptime             string `json:"uptime"`
	AllocMemoryMB      uint64 `json:"allocMemoryMB"`
	TotalAllocMemoryMB uint64 `json:"totalAllocMemoryMB"`
	SysMemoryMB        uint64 `json:"sysMemoryMB"`
	RSSMemoryMB        uint64 `json:"rssMemoryMB"`
	NumGC              uint32 `json:"numGC"`
	NumGoroutines      int    `json:"numGoroutines"`
	CPUUsage           int    `json:"cpuUsage"`
	Simulation         any    `json:"simulation,omitempty"`
}

// StatsHandler serves process and simulation statistics
type StatsHandler struct {
	startTime  time.Time
	simulation func() any
	proc       *process.Process
}

// NewStatsHandler creates a stats handler. simulation, if non-nil, supplies
// the simulation section of every response.
func NewStatsHandler(simulation func() any) *StatsHandler {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		proc = nil
	}
	return &StatsHandler{
		startTime:  time.Now(),
		simulation: simulation,
		proc:       proc,
	}
}

// Collect samples the current statistics
func (s *StatsHandler) Collect() ServerStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	stats := ServerStats{
		Uptime:             time.Since(s.startTime).Round(time.Second).String(),
		AllocMemoryMB:      m.Alloc / (1024 * 1024),
		TotalAllocMemoryMB: m.TotalAlloc / (1024 * 1024),
		SysMemoryMB:        m.Sys / (1024 * 1024),
		NumGC:              m.NumGC,
		NumGoroutines:      runtime.NumGoroutine(),
	}

	// interval 0 compares against the previous call and never blocks
	if usage, err := cpu.Percent(0, false); err == nil && len(usage) > 0 {
		stats.CPUUsage = int(math.Round(usage[0]))
	}
	if s.proc != nil {
		if mem, err := s.proc.MemoryInfo(); err == nil {
			stats.RSSMemoryMB = mem.RSS / (1024 * 1024)
		}
	}
	if s.simulation != nil {
		stats.Simulation = s.simulation()
	}
	return stats
}

// ServeHTTP writes the current statistics as JSON
func (s *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Collect())
}

// NewMux mounts the liveness, readiness and stats endpoints
func NewMux(hc *HealthChecker, stats http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", hc.LivenessHandler)
	mux.HandleFunc("/ready", hc.ReadinessHandler)
	if stats != nil {
		mux.Handle("/stats", stats)
	}
	return mux
}
