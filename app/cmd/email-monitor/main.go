// Command email-monitor mails the host report when CPU or memory use
// crosses its threshold.
package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"sysadvisor/app/internal/alerts"
	"sysadvisor/app/internal/bootstrap"
	"sysadvisor/app/internal/config"
	"sysadvisor/app/internal/monitor"
	"sysadvisor/app/internal/schedule"
)

const tool = "email-monitor"

type options struct {
	cpuThresh  float64
	memThresh  float64
	interval   int
	monitor    bool
	configPath string
	set        map[string]bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet(tool, flag.ContinueOnError)
	fs.SetOutput(stderr)

	opts := &options{}
	fs.Float64Var(&opts.cpuThresh, "cpu-thresh", 90, "CPU threshold to notify (percent)")
	fs.Float64Var(&opts.memThresh, "mem-thresh", 95, "Memory threshold to notify (percent)")
	fs.IntVar(&opts.interval, "time", 300, "Time interval to check system status in seconds")
	fs.BoolVar(&opts.monitor, "monitor", false, "Run continuously")
	fs.StringVar(&opts.configPath, "config", "", "YAML config file (default $SYSADVISOR_CONFIG)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	opts.set = bootstrap.FlagSet(fs)

	if err := config.ValidateThreshold("cpu threshold", opts.cpuThresh); err != nil {
		return nil, err
	}
	if err := config.ValidateThreshold("memory threshold", opts.memThresh); err != nil {
		return nil, err
	}
	if err := config.ValidateInterval(opts.interval); err != nil {
		return nil, err
	}
	return opts, nil
}

// apply lets explicit flags override the loaded configuration.
func (o *options) apply(cfg *config.Config) {
	if o.set["cpu-thresh"] {
		cfg.Thresholds.CPUPercent = o.cpuThresh
	}
	if o.set["mem-thresh"] {
		cfg.Thresholds.MemoryPercent = o.memThresh
	}
	if o.set["time"] {
		cfg.DefaultIntervalSecs = o.interval
	}
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
	opts.apply(env.Config)
	cfg := env.Config

	if !cfg.SMTP.Ready() {
		log.Printf("Warning: email settings incomplete, alerts will not be delivered")
	}

	dispatcher := alerts.NewDispatcher(cfg.SMTP, nil, tool)
	controller := monitor.NewController(env.Sampler, env.Recommender(), dispatcher, cfg.Thresholds, tool)
	controller.SetKeepLogs(cfg.ActivityKeepEntries)

	mode := bootstrap.Mode(cfg.DefaultIntervalSecs, opts.monitor, cfg.AlertMaxFailures)
	if opts.monitor {
		log.Printf("Starting continuous monitoring (cpu > %.1f%%, memory > %.1f%%)", cfg.Thresholds.CPUPercent, cfg.Thresholds.MemoryPercent)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = schedule.New(tool, mode, controller.Run).Run(ctx)
	stop()
	env.Close()

	if err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}
