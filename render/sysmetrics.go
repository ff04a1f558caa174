package render

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/mem"
)

// SystemMetrics is host resource usage attached to poller telemetry.
type SystemMetrics struct {
	MemoryUsedGB  float64 `json:"memory_used_gb"`
	MemoryTotalGB float64 `json:"memory_total_gb"`
	MemoryPercent float64 `json:"memory_percent"`
	Goroutines    int     `json:"goroutines"`
}

// getSystemMetrics samples current memory usage. Sampling failures leave
// the memory fields zeroed rather than failing the caller.
func getSystemMetrics() SystemMetrics {
	m := SystemMetrics{Goroutines: runtime.NumGoroutine()}

	vm, err := mem.VirtualMemory()
	if err != nil || vm.Total == 0 {
		return m
	}
	m.MemoryTotalGB = float64(vm.Total) / 1024 / 1024 / 1024
	m.MemoryUsedGB = float64(vm.Used) / 1024 / 1024 / 1024
	m.MemoryPercent = vm.UsedPercent
	return m
}
