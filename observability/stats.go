// Package observability collects process self-stats for the health worker
// and the debug inspector.
package observability

import (
	"runtime"

	"github.com/shirou/gopsutil/process"
)

// SelfStats is a point-in-time view of the server process.
type SelfStats struct {
	RSSBytes   uint64  `json:"rss_bytes"`
	CPUPercent float64 `json:"cpu_percent"`
	PidStatus  string  `json:"pid_status"`
	Goroutines int     `json:"goroutines"`
	AllocMemMB uint64  `json:"alloc_mem_mb"`
	NumGC      uint32  `json:"num_gc"`
}

// Collect retrieves memory, CPU, and OS status for the given process,
// plus Go runtime counters.
func Collect(p *process.Process) (SelfStats, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return SelfStats{}, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return SelfStats{}, err
	}
	status, err := p.Status()
	if err != nil {
		return SelfStats{}, err
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return SelfStats{
		RSSBytes:   memInfo.RSS,
		CPUPercent: cpuPercent,
		PidStatus:  status,
		Goroutines: runtime.NumGoroutine(),
		AllocMemMB: memStats.Alloc / 1024 / 1024,
		NumGC:      memStats.NumGC,
	}, nil
}
