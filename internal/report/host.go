package report

import (
	"context"
	"errors"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
)

// HostStats describes the machine a Snapshot was taken on.
type HostStats struct {
	Hostname   string  `json:"hostname,omitempty"`
	CPUs       int     `json:"cpus"`
	CPUPercent float64 `json:"cpuPercent"`
	MemPercent float64 `json:"memPercent"`
	BytesSent  uint64  `json:"bytesSent"`
	BytesRecv  uint64  `json:"bytesRecv"`
	Goroutines int     `json:"goroutines"`
}

// CollectHostStats samples system-wide CPU and memory usage.
//
// CPU usage is measured since the previous call in this process (the first
// call reports usage since boot). Every probe is attempted; the returned
// stats hold whatever succeeded and the error joins the failures.
func CollectHostStats(ctx context.Context) (HostStats, error) {
	s := HostStats{
		CPUs:       runtime.NumCPU(),
		Goroutines: runtime.NumGoroutine(),
	}
	var errs []error

	if info, err := host.InfoWithContext(ctx); err == nil {
		s.Hostname = info.Hostname
	} else {
		errs = append(errs, err)
	}
	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		s.CPUPercent = pct[0]
	} else if err != nil {
		errs = append(errs, err)
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		s.MemPercent = vm.UsedPercent
	} else {
		errs = append(errs, err)
	}
	if io, err := net.IOCountersWithContext(ctx, false); err == nil && len(io) > 0 {
		s.BytesSent = io[0].BytesSent
		s.BytesRecv = io[0].BytesRecv
	} else if err != nil {
		errs = append(errs, err)
	}

	return s, errors.Join(errs...)
}
