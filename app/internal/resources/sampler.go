package resources

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"sysadvisor/app/internal/models"
)

const (
	// DefaultTopN is the length of the top process lists.
	DefaultTopN = 3

	// DefaultWindow is how long CPU utilisation is measured for.
	DefaultWindow = 1 * time.Second
)

// Sampler turns raw OS readings into a models.Snapshot.
type Sampler struct {
	src    Source
	window time.Duration
	topN   int
	now    func() time.Time
}

// NewSampler creates a sampler over src. Non-positive window or topN fall
// back to the defaults.
func NewSampler(src Source, window time.Duration, topN int) *Sampler {
	if window <= 0 {
		window = DefaultWindow
	}
	if topN <= 0 {
		topN = DefaultTopN
	}
	return &Sampler{src: src, window: window, topN: topN, now: time.Now}
}

// Sample takes one snapshot. Overall CPU is the mean of the per-core
// readings from the same measurement window.
func (s *Sampler) Sample(ctx context.Context) (*models.Snapshot, error) {
	takenAt := s.now()

	perCore, err := s.src.PerCoreCPU(ctx, s.window)
	if err != nil {
		return nil, fmt.Errorf("%w: cpu: %w", ErrSampling, err)
	}
	if len(perCore) == 0 {
		return nil, fmt.Errorf("%w: cpu: no cores reported", ErrSampling)
	}

	vm, err := s.src.Memory(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: memory: %w", ErrSampling, err)
	}

	procs, err := s.src.Processes(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: processes: %w", ErrSampling, err)
	}

	return &models.Snapshot{
		TakenAt:            takenAt,
		CPUPercent:         mean(perCore),
		PerCoreCPUPercent:  slices.Clone(perCore),
		MemoryPercent:      vm.Percent,
		MemoryUsedBytes:    vm.UsedBytes,
		MemoryTotalBytes:   vm.TotalBytes,
		TopCPUProcesses:    TopByCPU(procs, s.topN),
		TopMemoryProcesses: TopByMemory(procs, s.topN),
	}, nil
}

// TopByCPU returns at most n processes ordered by CPU descending, ties by pid.
func TopByCPU(procs []ProcessSample, n int) []models.ProcessUsage {
	return top(procs, n, func(p ProcessSample) float64 { return p.CPUPercent })
}

// TopByMemory returns at most n processes ordered by memory descending, ties by pid.
func TopByMemory(procs []ProcessSample, n int) []models.ProcessUsage {
	return top(procs, n, func(p ProcessSample) float64 { return p.MemoryPercent })
}

func top(procs []ProcessSample, n int, metric func(ProcessSample) float64) []models.ProcessUsage {
	if n <= 0 || len(procs) == 0 {
		return []models.ProcessUsage{}
	}

	sorted := slices.Clone(procs)
	slices.SortStableFunc(sorted, func(a, b ProcessSample) int {
		if c := cmp.Compare(metric(b), metric(a)); c != 0 {
			return c
		}
		return cmp.Compare(a.PID, b.PID)
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}

	out := make([]models.ProcessUsage, 0, len(sorted))
	for _, p := range sorted {
		out = append(out, models.ProcessUsage{
			Name:          p.Name,
			PID:           p.PID,
			CPUPercent:    p.CPUPercent,
			MemoryPercent: p.MemoryPercent,
			RSSBytes:      p.RSSBytes,
		})
	}
	return out
}

func mean(vals []float64) float64 {
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}
