// Package alerts decides when a snapshot crosses its thresholds and mails
// the report to the operator.
package alerts

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"sysadvisor/app/internal/config"
	"sysadvisor/app/internal/database"
	"sysadvisor/app/internal/models"
)

// ErrDelivery is returned when an alert email could not be handed to the
// mail server. Sends are never retried.
var ErrDelivery = errors.New("alert delivery failed")

// SubjectTimeLayout is the timestamp format in alert subjects.
const SubjectTimeLayout = "2006-01-02 15:04"

// Evaluate compares a snapshot against thresholds. A value equal to its
// threshold does not trigger.
func Evaluate(s *models.Snapshot, th models.Thresholds) models.Exceeded {
	return models.Exceeded{
		CPU:    s.CPUPercent > th.CPUPercent,
		Memory: s.MemoryPercent > th.MemoryPercent,
	}
}

// Transport hands a composed message to a mail server.
type Transport interface {
	Send(ctx context.Context, msg *Message) error
}

// Dispatcher turns alert events into email and sends them once.
type Dispatcher struct {
	smtp      config.SMTPConfig
	transport Transport
	source    string
	now       func() time.Time
}

// NewDispatcher builds a dispatcher. A nil transport means SMTP with the
// given settings. Source names the tool in journal entries.
func NewDispatcher(cfg config.SMTPConfig, transport Transport, source string) *Dispatcher {
	if transport == nil {
		transport = NewSMTPTransport(cfg)
	}
	return &Dispatcher{smtp: cfg, transport: transport, source: source, now: time.Now}
}

// Send mails the event's report. Missing credentials or any transport
// failure yields ErrDelivery.
func (d *Dispatcher) Send(ctx context.Context, ev models.AlertEvent) error {
	if d.smtp.SecretErr != nil {
		err := fmt.Errorf("%w: %w", ErrDelivery, d.smtp.SecretErr)
		d.journal(database.LogLevelError, "Alert email not sent", err.Error())
		return err
	}
	if missing := missingSettings(d.smtp); len(missing) > 0 {
		err := fmt.Errorf("%w: missing email configuration: %s", ErrDelivery, strings.Join(missing, ", "))
		d.journal(database.LogLevelError, "Alert email not sent", err.Error())
		return err
	}

	msg := d.Compose(ev)

	if d.smtp.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.smtp.Timeout)
		defer cancel()
	}

	if err := d.transport.Send(ctx, msg); err != nil {
		d.journal(database.LogLevelError, "Failed to send email",
			fmt.Sprintf("to=%s, subject=%s, error=%v", strings.Join(msg.To, ","), msg.Subject, err))
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}

	log.Printf("Alert email sent to %s", strings.Join(msg.To, ", "))
	d.journal(database.LogLevelInfo, "Email sent successfully",
		fmt.Sprintf("to=%s, subject=%s", strings.Join(msg.To, ","), msg.Subject))
	return nil
}

// Compose builds the message for an event without sending it.
func (d *Dispatcher) Compose(ev models.AlertEvent) *Message {
	return &Message{
		From:    d.smtp.From,
		To:      d.smtp.To,
		Subject: Subject(ev.Exceeded, d.now()),
		Body:    Body(ev),
		Date:    d.now(),
	}
}

func (d *Dispatcher) journal(level, message, details string) {
	_ = database.InsertLog(level, database.LogCategoryEmail, d.source, message, details)
}

func missingSettings(cfg config.SMTPConfig) []string {
	var missing []string
	if cfg.Username == "" {
		missing = append(missing, "EMAIL_USERNAME")
	}
	if cfg.Password == "" {
		missing = append(missing, "EMAIL_PASSWORD")
	}
	if len(cfg.To) == 0 {
		missing = append(missing, "EMAIL_TO")
	}
	return missing
}

// Subject names which thresholds were crossed, e.g.
// "System Alert - High CPU - 2025-05-26 19:00".
func Subject(ex models.Exceeded, at time.Time) string {
	var which string
	switch {
	case ex.CPU && ex.Memory:
		which = "High CPU and Memory"
	case ex.CPU:
		which = "High CPU"
	case ex.Memory:
		which = "High Memory"
	default:
		which = "Status"
	}
	return fmt.Sprintf("System Alert - %s - %s", which, at.Format(SubjectTimeLayout))
}

// Body is a summary of the crossed thresholds followed by the full report.
func Body(ev models.AlertEvent) string {
	var b strings.Builder
	if ev.Exceeded.CPU {
		fmt.Fprintf(&b, "CPU usage %.1f%% exceeds threshold %.1f%%\n", ev.Snapshot.CPUPercent, ev.Thresholds.CPUPercent)
	}
	if ev.Exceeded.Memory {
		fmt.Fprintf(&b, "Memory usage %.1f%% exceeds threshold %.1f%%\n", ev.Snapshot.MemoryPercent, ev.Thresholds.MemoryPercent)
	}
	b.WriteString("\n")
	b.WriteString(ev.Report)
	return b.String()
}
