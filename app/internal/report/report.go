// Package report renders snapshots as operator-facing text and as the
// machine-readable record consumed by the alert and trend tools.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"sysadvisor/app/internal/models"
)

// TimeLayout is the fixed, sortable timestamp format used in every output.
const TimeLayout = time.RFC3339

const (
	ruleWidth = 50
	// topShown is how many processes each report list prints.
	topShown = 3
)

// Format renders the prose report for a snapshot.
func Format(s *models.Snapshot) string {
	var b strings.Builder
	rule := strings.Repeat("=", ruleWidth)

	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "SYSTEM MONITOR - %s\n", s.TakenAt.UTC().Format(TimeLayout))
	b.WriteString(rule + "\n\n")

	fmt.Fprintf(&b, "CPU Usage: %.1f%%\n", s.CPUPercent)
	b.WriteString("Per-Core:")
	if len(s.PerCoreCPUPercent) == 0 {
		b.WriteString(" n/a")
	}
	for i, v := range s.PerCoreCPUPercent {
		fmt.Fprintf(&b, " [%d] %.1f%%", i, v)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Memory Usage: %.1f%% (%.2f GB / %.2f GB)\n",
		s.MemoryPercent, s.MemoryUsedGB(), s.MemoryTotalGB())

	b.WriteString("\nTop CPU Processes:\n")
	writeProcs(&b, s.TopCPUProcesses, func(p models.ProcessUsage) string {
		return fmt.Sprintf("%.1f%%", p.CPUPercent)
	})

	b.WriteString("\nTop Memory Processes:\n")
	writeProcs(&b, s.TopMemoryProcesses, func(p models.ProcessUsage) string {
		if p.RSSBytes == 0 {
			return fmt.Sprintf("%.1f%%", p.MemoryPercent)
		}
		return fmt.Sprintf("%s (%.1f%%)", humanize.IBytes(p.RSSBytes), p.MemoryPercent)
	})

	return b.String()
}

func writeProcs(b *strings.Builder, procs []models.ProcessUsage, value func(models.ProcessUsage) string) {
	if len(procs) == 0 {
		b.WriteString("  (none)\n")
		return
	}
	for i, p := range procs {
		if i == topShown {
			break
		}
		fmt.Fprintf(b, "  %d. %s (PID: %d) - %s\n", i+1, p.Name, p.PID, value(p))
	}
}

// WithRecommendation appends a recommendation section. An empty
// recommendation leaves the report untouched.
func WithRecommendation(reportText, recommendation string) string {
	recommendation = strings.TrimSpace(recommendation)
	if recommendation == "" {
		return reportText
	}
	return reportText + "\nRECOMMENDATIONS\n" + strings.Repeat("-", 30) + "\n" + recommendation + "\n"
}

// Project flattens a snapshot into the single-row trend record.
func Project(s *models.Snapshot) models.LogRecord {
	rec := models.LogRecord{
		Timestamp:     s.TakenAt,
		CPUPercent:    s.CPUPercent,
		MemoryPercent: s.MemoryPercent,
		MemoryUsedGB:  s.MemoryUsedGB(),
		MemoryTotalGB: s.MemoryTotalGB(),
	}
	if len(s.TopCPUProcesses) > 0 {
		rec.TopCPUProcess = s.TopCPUProcesses[0].Name
		rec.TopCPUPercent = s.TopCPUProcesses[0].CPUPercent
	}
	if len(s.TopMemoryProcesses) > 0 {
		rec.TopMemoryProcess = s.TopMemoryProcesses[0].Name
		rec.TopMemoryPercent = s.TopMemoryProcesses[0].MemoryPercent
	}
	return rec
}
