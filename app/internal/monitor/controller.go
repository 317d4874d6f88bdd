package monitor

import (
	"context"
	"fmt"
	"log"

	"sysadvisor/app/internal/advisor"
	"sysadvisor/app/internal/alerts"
	"sysadvisor/app/internal/database"
	"sysadvisor/app/internal/models"
)

// Sender delivers an alert event.
type Sender interface {
	Send(ctx context.Context, ev models.AlertEvent) error
}

// Outcome describes one alert tick.
type Outcome struct {
	Check    *Check
	Exceeded models.Exceeded
	// Alerted is true when a threshold was crossed and a send was attempted.
	Alerted bool
	// DeliveryErr holds the send failure, if any. It never fails the tick.
	DeliveryErr error
}

// Controller is the alert loop body. It keeps no state between ticks, so
// every crossing is mailed again.
type Controller struct {
	sampler     Sampler
	recommender advisor.Recommender
	sender      Sender
	thresholds  models.Thresholds
	source      string
	keepLogs    int
}

// NewController wires the alert pipeline. recommender may be nil.
func NewController(sampler Sampler, recommender advisor.Recommender, sender Sender, th models.Thresholds, source string) *Controller {
	return &Controller{
		sampler:     sampler,
		recommender: recommender,
		sender:      sender,
		thresholds:  th,
		source:      source,
		keepLogs:    database.DefaultKeepLogs,
	}
}

// SetKeepLogs sets how many journal rows survive the per-tick prune.
func (c *Controller) SetKeepLogs(n int) {
	if n > 0 {
		c.keepLogs = n
	}
}

// Tick samples, evaluates and alerts once. Only a sampling failure is
// returned as an error.
func (c *Controller) Tick(ctx context.Context) (*Outcome, error) {
	defer c.prune()

	check, err := Inspect(ctx, c.sampler, c.recommender, c.source)
	if err != nil {
		return nil, err
	}

	snap := check.Snapshot
	log.Printf("CPU: %.1f%%, Memory: %.1f%%", snap.CPUPercent, snap.MemoryPercent)

	out := &Outcome{Check: check, Exceeded: alerts.Evaluate(snap, c.thresholds)}
	if !out.Exceeded.Any() {
		return out, nil
	}

	_ = database.InsertLog(database.LogLevelWarn, database.LogCategorySample, c.source, "Threshold exceeded",
		fmt.Sprintf("cpu=%.1f/%.1f, memory=%.1f/%.1f", snap.CPUPercent, c.thresholds.CPUPercent, snap.MemoryPercent, c.thresholds.MemoryPercent))

	out.Alerted = true
	out.DeliveryErr = c.sender.Send(ctx, models.AlertEvent{
		Snapshot:   snap,
		Thresholds: c.thresholds,
		Report:     check.Report,
		Exceeded:   out.Exceeded,
	})
	if out.DeliveryErr != nil {
		log.Printf("Failed to send alert email: %v", out.DeliveryErr)
	}
	return out, nil
}

// Run adapts Tick to a schedule.Task.
func (c *Controller) Run(ctx context.Context) error {
	_, err := c.Tick(ctx)
	return err
}

func (c *Controller) prune() {
	if err := database.PruneLogs(c.keepLogs); err != nil {
		log.Printf("Warning: failed to prune activity journal: %v", err)
	}
}
