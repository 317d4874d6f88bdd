// Command performance-logger appends host metrics to a CSV trend file.
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

	"sysadvisor/app/internal/bootstrap"
	"sysadvisor/app/internal/config"
	"sysadvisor/app/internal/schedule"
	"sysadvisor/app/internal/trendlog"
)

const tool = "performance-logger"

type options struct {
	output     string
	interval   int
	monitor    bool
	configPath string
	set        map[string]bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet(tool, flag.ContinueOnError)
	fs.SetOutput(stderr)

	opts := &options{}
	fs.StringVar(&opts.output, "output", "system_performance.csv", "Output filename")
	fs.IntVar(&opts.interval, "time", 300, "Time interval to check system status in seconds")
	fs.BoolVar(&opts.monitor, "monitor", false, "Run continuously")
	fs.StringVar(&opts.configPath, "config", "", "YAML config file (default $SYSADVISOR_CONFIG)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	opts.set = bootstrap.FlagSet(fs)

	if err := config.ValidateInterval(opts.interval); err != nil {
		return nil, err
	}
	return opts, nil
}

// apply lets explicit flags override the loaded configuration.
func (o *options) apply(cfg *config.Config) {
	if o.set["output"] {
		cfg.TrendOutput = o.output
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

	if err := config.PrepareOutputPath(cfg.TrendOutput); err != nil {
		env.Close()
		log.Printf("Invalid output filename: %v", err)
		os.Exit(2)
	}

	logger := trendlog.New(env.Sampler, cfg.TrendOutput)
	logger.SetKeepLogs(cfg.ActivityKeepEntries)

	mode := bootstrap.Mode(cfg.DefaultIntervalSecs, opts.monitor, cfg.TrendMaxFailures)
	if opts.monitor {
		log.Printf("Starting continuous monitoring, logging to %s", cfg.TrendOutput)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = schedule.New(tool, mode, logger.Tick).Run(ctx)
	stop()
	env.Close()

	if err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}
