// Command system-advisor prints a host report with model recommendations,
// once or on a redraw loop.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"sysadvisor/app/internal/advisor"
	"sysadvisor/app/internal/bootstrap"
	"sysadvisor/app/internal/config"
	"sysadvisor/app/internal/console"
	"sysadvisor/app/internal/models"
	"sysadvisor/app/internal/monitor"
	"sysadvisor/app/internal/report"
	"sysadvisor/app/internal/schedule"
)

const tool = "system-advisor"

type options struct {
	watch      bool
	interval   int
	json       bool
	recent     int
	configPath string
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet(tool, flag.ContinueOnError)
	fs.SetOutput(stderr)

	opts := &options{}
	fs.BoolVar(&opts.watch, "watch", false, "Continuous monitoring mode")
	fs.IntVar(&opts.interval, "interval", 5, "Update interval in seconds")
	fs.BoolVar(&opts.json, "json", false, "Output in JSON format")
	fs.IntVar(&opts.recent, "recent", 0, "Print the newest N activity journal entries and exit")
	fs.StringVar(&opts.configPath, "config", "", "YAML config file (default $SYSADVISOR_CONFIG)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := config.ValidateInterval(opts.interval); err != nil {
		return nil, err
	}
	if opts.recent < 0 {
		return nil, fmt.Errorf("%w: recent must not be negative, got %d", config.ErrInvalid, opts.recent)
	}
	return opts, nil
}

// output is the --json document.
type output struct {
	*report.Record
	Recommendation  string                   `json:"recommendation"`
	Recommendations []advisor.Recommendation `json:"recommendations"`
}

func newOutput(check *monitor.Check) output {
	out := output{Record: report.ToRecord(check.Snapshot), Recommendations: []advisor.Recommendation{}}
	if check.Advice != nil {
		out.Recommendation = check.Advice.Text
		if check.Advice.Items != nil {
			out.Recommendations = check.Advice.Items
		}
	}
	return out
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		log.Printf("Invalid arguments: %v", err)
		os.Exit(2)
	}

	env, err := bootstrap.Start(tool, opts.configPath)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, opts, env, console.New(os.Stdout))
	stop()
	env.Close()

	if err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts *options, env *bootstrap.Env, out *console.Printer) error {
	if opts.recent > 0 {
		return showActivity(opts, env, out)
	}
	rec := env.Recommender()

	task := func(ctx context.Context) error {
		check, err := monitor.Inspect(ctx, env.Sampler, rec, tool)
		if err != nil {
			return err
		}
		if opts.json {
			return out.JSON(newOutput(check))
		}
		if opts.watch {
			out.Clear()
		}
		out.Report(check.Report)
		return nil
	}

	mode := bootstrap.Mode(opts.interval, opts.watch, 0)
	if err := schedule.New(tool, mode, task).Run(ctx); err != nil {
		return fmt.Errorf("%s: %w", tool, err)
	}
	return nil
}

func showActivity(opts *options, env *bootstrap.Env, out *console.Printer) error {
	entries, total, err := env.RecentActivity(opts.recent)
	if err != nil {
		return fmt.Errorf("%s: %w", tool, err)
	}
	if opts.json {
		if entries == nil {
			entries = []models.LogEntry{}
		}
		return out.JSON(entries)
	}
	out.Activity(entries, total)
	return nil
}
