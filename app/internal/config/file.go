package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the YAML config file. Pointer fields distinguish
// "absent" from an explicit zero.
type fileConfig struct {
	Thresholds struct {
		CPUPercent    *float64 `yaml:"cpu_percent"`
		MemoryPercent *float64 `yaml:"memory_percent"`
	} `yaml:"thresholds"`

	SMTP struct {
		Host           string   `yaml:"host"`
		Port           int      `yaml:"port"`
		Username       string   `yaml:"username"`
		Password       string   `yaml:"password"`
		From           string   `yaml:"from"`
		To             []string `yaml:"to"`
		SkipVerify     *bool    `yaml:"skip_verify"`
		TimeoutSeconds int      `yaml:"timeout_seconds"`
	} `yaml:"smtp"`

	OpenAI struct {
		APIKey         string `yaml:"api_key"`
		Model          string `yaml:"model"`
		BaseURL        string `yaml:"base_url"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
		PerMinute      *int   `yaml:"per_minute"`
	} `yaml:"openai"`

	Sampling struct {
		WindowMS int `yaml:"window_ms"`
		TopN     int `yaml:"top_n"`
	} `yaml:"sampling"`

	Trend struct {
		Output                 string `yaml:"output"`
		MaxConsecutiveFailures *int   `yaml:"max_consecutive_failures"`
	} `yaml:"trend"`

	Alert struct {
		MaxConsecutiveFailures *int `yaml:"max_consecutive_failures"`
	} `yaml:"alert"`

	IntervalSeconds int    `yaml:"interval_seconds"`
	ActivityDB      string `yaml:"activity_db"`
	ActivityKeep    int    `yaml:"activity_keep_entries"`
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	fc.apply(cfg)
	return nil
}

func (fc *fileConfig) apply(cfg *Config) {
	if fc.Thresholds.CPUPercent != nil {
		cfg.Thresholds.CPUPercent = *fc.Thresholds.CPUPercent
	}
	if fc.Thresholds.MemoryPercent != nil {
		cfg.Thresholds.MemoryPercent = *fc.Thresholds.MemoryPercent
	}

	setString(&cfg.SMTP.Host, fc.SMTP.Host)
	setInt(&cfg.SMTP.Port, fc.SMTP.Port)
	setString(&cfg.SMTP.Username, fc.SMTP.Username)
	setString(&cfg.SMTP.Password, fc.SMTP.Password)
	setString(&cfg.SMTP.From, fc.SMTP.From)
	if len(fc.SMTP.To) > 0 {
		cfg.SMTP.To = fc.SMTP.To
	}
	if fc.SMTP.SkipVerify != nil {
		cfg.SMTP.SkipVerify = *fc.SMTP.SkipVerify
	}
	if fc.SMTP.TimeoutSeconds > 0 {
		cfg.SMTP.Timeout = time.Duration(fc.SMTP.TimeoutSeconds) * time.Second
	}

	setString(&cfg.OpenAI.APIKey, fc.OpenAI.APIKey)
	setString(&cfg.OpenAI.Model, fc.OpenAI.Model)
	setString(&cfg.OpenAI.BaseURL, fc.OpenAI.BaseURL)
	if fc.OpenAI.TimeoutSeconds > 0 {
		cfg.OpenAI.Timeout = time.Duration(fc.OpenAI.TimeoutSeconds) * time.Second
	}
	if fc.OpenAI.PerMinute != nil {
		cfg.OpenAI.PerMinute = *fc.OpenAI.PerMinute
	}

	if fc.Sampling.WindowMS > 0 {
		cfg.SampleWindow = time.Duration(fc.Sampling.WindowMS) * time.Millisecond
	}
	setInt(&cfg.TopN, fc.Sampling.TopN)

	setString(&cfg.TrendOutput, fc.Trend.Output)
	if fc.Trend.MaxConsecutiveFailures != nil {
		cfg.TrendMaxFailures = *fc.Trend.MaxConsecutiveFailures
	}
	if fc.Alert.MaxConsecutiveFailures != nil {
		cfg.AlertMaxFailures = *fc.Alert.MaxConsecutiveFailures
	}
	setInt(&cfg.DefaultIntervalSecs, fc.IntervalSeconds)
	setString(&cfg.ActivityDBPath, fc.ActivityDB)
	setInt(&cfg.ActivityKeepEntries, fc.ActivityKeep)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
