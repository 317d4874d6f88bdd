// Package schedule runs a task once or on a fixed interval until stopped.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"sysadvisor/app/internal/database"
)

// ErrTooManyFailures stops a continuous run once the failure cut-off is hit.
var ErrTooManyFailures = errors.New("too many consecutive failures")

// Mode selects single-shot or continuous operation.
type Mode struct {
	Interval   time.Duration
	Continuous bool

	// MaxConsecutiveFailures stops a continuous run after that many failed
	// ticks in a row. Zero never stops.
	MaxConsecutiveFailures int

	// Terminal picks the errors that count toward MaxConsecutiveFailures.
	// Other failures are logged and reset the streak. Nil counts every error.
	Terminal func(error) bool
}

// Matching returns a Terminal predicate for errors wrapping any of targets.
func Matching(targets ...error) func(error) bool {
	return func(err error) bool {
		for _, target := range targets {
			if errors.Is(err, target) {
				return true
			}
		}
		return false
	}
}

func (m Mode) terminal(err error) bool {
	return m.Terminal == nil || m.Terminal(err)
}

// Validate checks the interval of a continuous mode.
func (m Mode) Validate() error {
	if m.Continuous && m.Interval < time.Second {
		return fmt.Errorf("interval must be at least 1 second, got %s", m.Interval)
	}
	if m.MaxConsecutiveFailures < 0 {
		return fmt.Errorf("max consecutive failures must not be negative, got %d", m.MaxConsecutiveFailures)
	}
	return nil
}

// Task is one tick of work.
type Task func(ctx context.Context) error

// Runner drives a Task according to a Mode.
type Runner struct {
	name   string
	mode   Mode
	task   Task
	streak *FailureStreak
	after  func(time.Duration) <-chan time.Time
}

// New creates a runner. Name labels log lines and journal entries.
func New(name string, mode Mode, task Task) *Runner {
	return &Runner{
		name:   name,
		mode:   mode,
		task:   task,
		streak: NewFailureStreak(),
		after:  time.After,
	}
}

// Run executes the task. In single-shot mode the task error is returned.
// In continuous mode the task repeats every interval; failures are logged
// and the loop goes on until ctx is cancelled (nil) or the failure cut-off
// is reached (ErrTooManyFailures). Cancellation is observed before each
// tick and during the sleep; a tick in progress always completes.
func (r *Runner) Run(ctx context.Context) error {
	if !r.mode.Continuous {
		return r.task(ctx)
	}

	log.Printf("%s: running every %s", r.name, r.mode.Interval)
	for n := 1; ; n++ {
		if ctx.Err() != nil {
			log.Printf("%s: stopped", r.name)
			return nil
		}

		err := r.task(context.WithoutCancel(ctx))
		switch {
		case err == nil:
			r.streak.Update(r.name, true)
		case !r.mode.terminal(err):
			r.streak.Update(r.name, true)
			log.Printf("%s: tick %d failed: %v", r.name, n, err)
		default:
			failures := r.streak.Update(r.name, false)
			log.Printf("%s: tick %d failed (%d in a row): %v", r.name, n, failures, err)
			if limit := r.mode.MaxConsecutiveFailures; limit > 0 && failures >= limit {
				_ = database.InsertLog(database.LogLevelError, database.LogCategorySystem, r.name,
					"Stopping after consecutive failures", fmt.Sprintf("failures=%d, last_error=%v", failures, err))
				return fmt.Errorf("%w: %d: %w", ErrTooManyFailures, failures, err)
			}
		}

		select {
		case <-ctx.Done():
			log.Printf("%s: stopped", r.name)
			return nil
		case <-r.after(r.mode.Interval):
		}
	}
}
