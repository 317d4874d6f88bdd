// Package trendlog appends one CSV row per snapshot to a trend file.
package trendlog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"sysadvisor/app/internal/database"
	"sysadvisor/app/internal/models"
	"sysadvisor/app/internal/report"
)

// ErrFileWrite is returned when the trend file cannot be opened or written.
var ErrFileWrite = errors.New("trend file write failed")

// Columns is the header row, in order.
var Columns = []string{
	"timestamp",
	"cpu_percent",
	"memory_percent",
	"memory_used_gb",
	"memory_total_gb",
	"top_cpu_process",
	"top_cpu_percent",
	"top_memory_process",
	"top_memory_percent",
}

// Header is the header line as written to disk.
var Header = strings.Join(Columns, ",")

// Row renders a record in column order.
func Row(rec models.LogRecord) []string {
	return []string{
		rec.Timestamp.UTC().Format(report.TimeLayout),
		formatFloat(rec.CPUPercent, 1),
		formatFloat(rec.MemoryPercent, 1),
		formatFloat(rec.MemoryUsedGB, 2),
		formatFloat(rec.MemoryTotalGB, 2),
		rec.TopCPUProcess,
		formatFloat(rec.TopCPUPercent, 1),
		rec.TopMemoryProcess,
		formatFloat(rec.TopMemoryPercent, 1),
	}
}

func formatFloat(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}

// Append writes rec to path, preceded by the header when the file is new or
// empty. The file is opened and closed on every call.
func Append(path string, rec models.LogRecord) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFileWrite, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: %w", ErrFileWrite, err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		_ = w.Write(Columns)
	}
	_ = w.Write(Row(rec))
	w.Flush()

	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: %w", ErrFileWrite, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrFileWrite, err)
	}
	return nil
}

// Sampler takes one host snapshot.
type Sampler interface {
	Sample(ctx context.Context) (*models.Snapshot, error)
}

// Logger is the trend loop body.
type Logger struct {
	sampler  Sampler
	path     string
	keepLogs int
}

// New creates a logger writing to path.
func New(sampler Sampler, path string) *Logger {
	return &Logger{sampler: sampler, path: path, keepLogs: database.DefaultKeepLogs}
}

// SetKeepLogs sets how many journal rows survive the per-tick prune.
func (l *Logger) SetKeepLogs(n int) {
	if n > 0 {
		l.keepLogs = n
	}
}

// Tick samples once and appends the row. It satisfies schedule.Task.
func (l *Logger) Tick(ctx context.Context) error {
	defer func() {
		if err := database.PruneLogs(l.keepLogs); err != nil {
			log.Printf("Warning: failed to prune activity journal: %v", err)
		}
	}()

	snap, err := l.sampler.Sample(ctx)
	if err != nil {
		log.Printf("Sampling failed: %v", err)
		_ = database.InsertLog(database.LogLevelError, database.LogCategorySample, "performance-logger", "Sampling failed", err.Error())
		return err
	}

	rec := report.Project(snap)
	if err := Append(l.path, rec); err != nil {
		log.Printf("Failed to write %s: %v", l.path, err)
		_ = database.InsertLog(database.LogLevelError, database.LogCategoryTrend, "performance-logger", "Failed to write trend row",
			fmt.Sprintf("path=%s, error=%v", l.path, err))
		return err
	}

	log.Printf("Data logged: CPU %.1f%%, Memory %.1f%%", rec.CPUPercent, rec.MemoryPercent)
	return nil
}
