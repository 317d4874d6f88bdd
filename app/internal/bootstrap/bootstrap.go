// Package bootstrap wires configuration, the activity journal, the sampler
// and the recommender for the command-line tools.
package bootstrap

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	"sysadvisor/app/internal/advisor"
	"sysadvisor/app/internal/config"
	"sysadvisor/app/internal/database"
	"sysadvisor/app/internal/models"
	"sysadvisor/app/internal/resources"
	"sysadvisor/app/internal/schedule"
)

// ErrNoJournal is returned when activity is queried without ACTIVITY_DB_PATH.
var ErrNoJournal = errors.New("activity journal not configured (set ACTIVITY_DB_PATH)")

// Env holds the shared dependencies of a tool run.
type Env struct {
	Tool    string
	Config  *config.Config
	Sampler *resources.Sampler

	throttled *advisor.Throttled
}

// Start loads configuration from configPath (may be empty), opens the
// activity journal when configured and builds the host sampler.
func Start(tool, configPath string) (*Env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if cfg.ActivityDBPath != "" {
		if err := database.Init(cfg.ActivityDBPath); err != nil {
			return nil, fmt.Errorf("open activity journal: %w", err)
		}
	}

	env := &Env{
		Tool:    tool,
		Config:  cfg,
		Sampler: resources.NewSampler(resources.NewHostSource(), cfg.SampleWindow, cfg.TopN),
	}
	log.Printf("%s starting: %s", tool, cfg.Summary())
	_ = database.InsertLog(database.LogLevelInfo, database.LogCategorySystem, tool, "Started", cfg.Summary())
	return env, nil
}

// Recommender returns the throttled model client, or nil when no usable API
// key is configured.
func (e *Env) Recommender() advisor.Recommender {
	if err := e.Config.OpenAI.SecretErr; err != nil {
		log.Printf("Recommendations disabled: %v", err)
		return nil
	}
	if e.Config.OpenAI.APIKey == "" {
		log.Printf("OPENAI_API_KEY not set, recommendations disabled")
		return nil
	}
	if e.throttled == nil {
		client := advisor.New(e.Config.OpenAI, e.Config.Thresholds)
		e.throttled = advisor.NewThrottled(client, e.Config.OpenAI.PerMinute, e.Config.OpenAI.Model)
	}
	return e.throttled
}

// RecentActivity returns up to limit journal entries, newest first, along
// with the total number of rows kept.
func (e *Env) RecentActivity(limit int) ([]models.LogEntry, int, error) {
	if !database.Enabled() {
		return nil, 0, ErrNoJournal
	}
	entries, err := database.GetLogs(limit, "", "", "")
	if err != nil {
		return nil, 0, fmt.Errorf("read activity journal: %w", err)
	}
	total, err := database.CountLogs()
	if err != nil {
		return nil, 0, fmt.Errorf("count activity journal: %w", err)
	}
	return entries, total, nil
}

// Close releases background workers and the journal.
func (e *Env) Close() {
	if e.throttled != nil {
		e.throttled.Close()
	}
	_ = database.InsertLog(database.LogLevelInfo, database.LogCategorySystem, e.Tool, "Stopped", "")
	if err := database.Close(); err != nil {
		log.Printf("Warning: failed to close activity journal: %v", err)
	}
}

// Mode builds the run mode of a tool. Only sampling failures count toward
// the failure cut-off; delivery, write and recommendation failures are
// logged and the loop goes on.
func Mode(intervalSecs int, continuous bool, maxFailures int) schedule.Mode {
	return schedule.Mode{
		Interval:               time.Duration(intervalSecs) * time.Second,
		Continuous:             continuous,
		MaxConsecutiveFailures: maxFailures,
		Terminal:               schedule.Matching(resources.ErrSampling),
	}
}

// FlagSet reports which flags were given on the command line.
func FlagSet(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}
