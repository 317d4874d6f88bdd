package models

import "time"

// ProcessUsage is one entry of a top-N process list.
type ProcessUsage struct {
	Name          string  `json:"name"`
	PID           int32   `json:"pid"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	RSSBytes      uint64  `json:"rss_bytes"`
}

// Snapshot is a single point-in-time measurement of the host.
// It is produced fresh on every tick and never mutated afterwards.
type Snapshot struct {
	TakenAt            time.Time
	CPUPercent         float64
	PerCoreCPUPercent  []float64
	MemoryPercent      float64
	MemoryUsedBytes    uint64
	MemoryTotalBytes   uint64
	TopCPUProcesses    []ProcessUsage
	TopMemoryProcesses []ProcessUsage
}

// MemoryUsedGB returns used memory in GiB.
func (s *Snapshot) MemoryUsedGB() float64 {
	return float64(s.MemoryUsedBytes) / (1 << 30)
}

// MemoryTotalGB returns total memory in GiB.
func (s *Snapshot) MemoryTotalGB() float64 {
	return float64(s.MemoryTotalBytes) / (1 << 30)
}

// Thresholds holds the alert limits in percent. Supplied once at startup.
type Thresholds struct {
	CPUPercent    float64 `yaml:"cpu_percent"`
	MemoryPercent float64 `yaml:"memory_percent"`
}

// DefaultThresholds returns the stock CPU 90% / memory 95% limits.
func DefaultThresholds() Thresholds {
	return Thresholds{CPUPercent: 90, MemoryPercent: 95}
}

// Exceeded reports which thresholds a snapshot crossed.
type Exceeded struct {
	CPU    bool `json:"cpu"`
	Memory bool `json:"memory"`
}

// Any reports whether at least one threshold was crossed.
func (e Exceeded) Any() bool {
	return e.CPU || e.Memory
}

// AlertEvent is derived on a tick where a threshold was crossed and handed
// straight to the email dispatcher.
type AlertEvent struct {
	Snapshot   *Snapshot
	Thresholds Thresholds
	Report     string
	Exceeded   Exceeded
}

// LogRecord is the flattened projection of a Snapshot written as one CSV row.
type LogRecord struct {
	Timestamp        time.Time
	CPUPercent       float64
	MemoryPercent    float64
	MemoryUsedGB     float64
	MemoryTotalGB    float64
	TopCPUProcess    string
	TopCPUPercent    float64
	TopMemoryProcess string
	TopMemoryPercent float64
}

// LogEntry is a row of the activity journal.
type LogEntry struct {
	ID        int64  `json:"id"`
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Category  string `json:"category"`
	Subject   string `json:"subject"`
	Message   string `json:"message"`
	Details   string `json:"details"`
}
