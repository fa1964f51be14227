// Package status probes the running process for the operator status
// surface: memory footprint and CPU time alongside the store counts.
package status

import (
	"os"

	"github.com/shirou/gopsutil/v3/process"
)

// ProcessStats is a point-in-time view of this process
type ProcessStats struct {
	PID        int32   `json:"pid"`
	RSSBytes   uint64  `json:"rss_bytes"`
	CPUPercent float64 `json:"cpu_percent"`
	NumThreads int32   `json:"num_threads"`
}

// Probe samples the current process. Best effort: fields the platform
// cannot report stay zero rather than failing the status command.
func Probe() (*ProcessStats, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	stats := &ProcessStats{PID: p.Pid}
	if mem, err := p.MemoryInfo(); err == nil && mem != nil {
		stats.RSSBytes = mem.RSS
	}
	if cpu, err := p.CPUPercent(); err == nil {
		stats.CPUPercent = cpu
	}
	if threads, err := p.NumThreads(); err == nil {
		stats.NumThreads = threads
	}
	return stats, nil
}
