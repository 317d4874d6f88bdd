package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// forbiddenPathChars are rejected in the base name of output files. Path
// separators are allowed.
const forbiddenPathChars = `<>:"|?*`

// Validate checks the loaded settings.
func (c *Config) Validate() error {
	if err := ValidateThreshold("cpu threshold", c.Thresholds.CPUPercent); err != nil {
		return err
	}
	if err := ValidateThreshold("memory threshold", c.Thresholds.MemoryPercent); err != nil {
		return err
	}
	if c.SMTP.Port < 1 || c.SMTP.Port > 65535 {
		return fmt.Errorf("%w: smtp port %d out of range", ErrInvalid, c.SMTP.Port)
	}
	if c.TopN < 1 {
		return fmt.Errorf("%w: top_n must be at least 1", ErrInvalid)
	}
	if c.SampleWindow <= 0 {
		return fmt.Errorf("%w: sample window must be positive", ErrInvalid)
	}
	if c.OpenAI.PerMinute < 0 {
		return fmt.Errorf("%w: recommendations per minute must not be negative", ErrInvalid)
	}
	if c.TrendMaxFailures < 0 || c.AlertMaxFailures < 0 {
		return fmt.Errorf("%w: max consecutive failures must not be negative", ErrInvalid)
	}
	if c.DefaultIntervalSecs < 1 {
		return fmt.Errorf("%w: interval must be at least 1 second", ErrInvalid)
	}
	return nil
}

// ValidateThreshold requires a percentage in [0, 100].
func ValidateThreshold(name string, v float64) error {
	if v < 0 || v > 100 {
		return fmt.Errorf("%w: %s must be between 0 and 100, got %v", ErrInvalid, name, v)
	}
	return nil
}

// ValidateInterval requires at least one second between ticks.
func ValidateInterval(secs int) error {
	if secs < 1 {
		return fmt.Errorf("%w: interval must be at least 1 second, got %d", ErrInvalid, secs)
	}
	return nil
}

// PrepareOutputPath checks an output filename and creates its parent
// directory.
func PrepareOutputPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("%w: output filename is empty", ErrInvalid)
	}
	if strings.ContainsAny(filepath.Base(path), forbiddenPathChars) {
		return fmt.Errorf("%w: output filename %q contains one of %s", ErrInvalid, path, forbiddenPathChars)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: create %s: %w", ErrInvalid, dir, err)
		}
	}
	return nil
}
