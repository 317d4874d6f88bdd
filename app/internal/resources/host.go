package resources

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// hostSource reads the local machine through gopsutil.
type hostSource struct{}

// NewHostSource returns a Source backed by the local operating system.
func NewHostSource() Source {
	return hostSource{}
}

func (hostSource) PerCoreCPU(ctx context.Context, window time.Duration) ([]float64, error) {
	return cpu.PercentWithContext(ctx, window, true)
}

func (hostSource) Memory(ctx context.Context) (MemorySample, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return MemorySample{}, err
	}
	return MemorySample{
		UsedBytes:  vm.Used,
		TotalBytes: vm.Total,
		Percent:    vm.UsedPercent,
	}, nil
}

// Processes enumerates live processes. Per-process CPU is the average over
// the process lifetime, which is what gopsutil reports without a prior sample.
func (hostSource) Processes(ctx context.Context) ([]ProcessSample, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]ProcessSample, 0, len(procs))
	for _, p := range procs {
		// Any read error here means the process exited or is not readable.
		name, err := p.NameWithContext(ctx)
		if err != nil || name == "" {
			continue
		}
		cpuPct, err := p.CPUPercentWithContext(ctx)
		if err != nil {
			continue
		}
		memPct, err := p.MemoryPercentWithContext(ctx)
		if err != nil {
			continue
		}

		var rss uint64
		if mi, err := p.MemoryInfoWithContext(ctx); err == nil && mi != nil {
			rss = mi.RSS
		}

		out = append(out, ProcessSample{
			PID:           p.Pid,
			Name:          name,
			CPUPercent:    cpuPct,
			MemoryPercent: float64(memPct),
			RSSBytes:      rss,
		})
	}
	return out, nil
}
