package metrics

import (
	"fmt"
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/process"
)

// ProcessStats is shown next to the network window on the monitor pages.
type ProcessStats struct {
	PID        int32   `json:"pid"`
	RSSMB      float64 `json:"rss_mb"`
	CPUPercent float64 `json:"cpu_percent"`
	Threads    int32   `json:"threads"`
	Goroutines int     `json:"goroutines"`
}

// Process reads stats of the running process.
func Process() (ProcessStats, error) {
	ps := ProcessStats{PID: int32(os.Getpid()), Goroutines: runtime.NumGoroutine()}

	proc, err := process.NewProcess(ps.PID)
	if err != nil {
		return ps, fmt.Errorf("metrics: process: %w", err)
	}

	mem, err := proc.MemoryInfo()
	if err != nil {
		return ps, fmt.Errorf("metrics: memory info: %w", err)
	}
	ps.RSSMB = float64(mem.RSS) / 1024 / 1024

	// cpu since process start, not an instant sample
	if cpu, err := proc.CPUPercent(); err == nil {
		ps.CPUPercent = cpu
	}
	if n, err := proc.NumThreads(); err == nil {
		ps.Threads = n
	}
	return ps, nil
}
