package resources

import (
	"context"
	"errors"
	"time"
)

// ErrSampling is returned when the OS query layer cannot produce a snapshot.
var ErrSampling = errors.New("sampling failed")

// ProcessSample is a raw per-process reading from the OS layer.
// All percentages are 0..100.
type ProcessSample struct {
	PID           int32
	Name          string
	CPUPercent    float64
	MemoryPercent float64
	RSSBytes      uint64
}

// MemorySample is a raw virtual memory reading.
type MemorySample struct {
	UsedBytes  uint64
	TotalBytes uint64
	Percent    float64
}

// Source is the OS-facing seam of the sampler. Implementations must skip
// processes that disappear between enumeration and detail read.
type Source interface {
	// PerCoreCPU blocks for window and returns utilisation per logical core.
	PerCoreCPU(ctx context.Context, window time.Duration) ([]float64, error)
	Memory(ctx context.Context) (MemorySample, error)
	Processes(ctx context.Context) ([]ProcessSample, error)
}
