package report

import (
	"bytes"
	"math"
	"strconv"

	"sysadvisor/app/internal/models"
)

// Percent marshals as a JSON number that always carries a decimal point,
// so 42 is written as 42.0.
type Percent float64

// MarshalJSON implements json.Marshaler.
func (p Percent) MarshalJSON() ([]byte, error) {
	f := float64(p)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	b := strconv.AppendFloat(nil, f, 'f', -1, 64)
	if !bytes.ContainsRune(b, '.') {
		b = append(b, ".0"...)
	}
	return b, nil
}

// ProcessRecord is one process entry of the JSON record.
type ProcessRecord struct {
	Name          string  `json:"name"`
	PID           int32   `json:"pid"`
	CPUPercent    Percent `json:"cpu_percent"`
	MemoryPercent Percent `json:"memory_percent"`
	RSSBytes      uint64  `json:"rss_bytes"`
}

// Record is the machine-readable projection of a snapshot. Key names are
// stable; consumers may rely on them.
type Record struct {
	Timestamp          string          `json:"timestamp"`
	CPUPercent         Percent         `json:"cpu_percent"`
	PerCoreCPUPercent  []Percent       `json:"per_core_cpu_percent"`
	MemoryPercent      Percent         `json:"memory_percent"`
	MemoryUsedGB       float64         `json:"memory_used_gb"`
	MemoryTotalGB      float64         `json:"memory_total_gb"`
	TopCPUProcesses    []ProcessRecord `json:"top_cpu_processes"`
	TopMemoryProcesses []ProcessRecord `json:"top_memory_processes"`
}

// ToRecord builds the JSON record for a snapshot.
func ToRecord(s *models.Snapshot) *Record {
	perCore := make([]Percent, len(s.PerCoreCPUPercent))
	for i, v := range s.PerCoreCPUPercent {
		perCore[i] = Percent(v)
	}
	return &Record{
		Timestamp:          s.TakenAt.UTC().Format(TimeLayout),
		CPUPercent:         Percent(s.CPUPercent),
		PerCoreCPUPercent:  perCore,
		MemoryPercent:      Percent(s.MemoryPercent),
		MemoryUsedGB:       s.MemoryUsedGB(),
		MemoryTotalGB:      s.MemoryTotalGB(),
		TopCPUProcesses:    processRecords(s.TopCPUProcesses),
		TopMemoryProcesses: processRecords(s.TopMemoryProcesses),
	}
}

func processRecords(procs []models.ProcessUsage) []ProcessRecord {
	out := make([]ProcessRecord, 0, len(procs))
	for _, p := range procs {
		out = append(out, ProcessRecord{
			Name:          p.Name,
			PID:           p.PID,
			CPUPercent:    Percent(p.CPUPercent),
			MemoryPercent: Percent(p.MemoryPercent),
			RSSBytes:      p.RSSBytes,
		})
	}
	return out
}
