package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"sysadvisor/app/internal/crypto"
	"sysadvisor/app/internal/models"
)

// Config holds the settings shared by the command-line tools.
type Config struct {
	Thresholds models.Thresholds
	SMTP       SMTPConfig
	OpenAI     OpenAIConfig

	// Sampling
	SampleWindow time.Duration
	TopN         int

	// Loops
	TrendOutput         string
	TrendMaxFailures    int
	AlertMaxFailures    int
	DefaultIntervalSecs int

	// Activity journal
	ActivityDBPath      string
	ActivityKeepEntries int

	ConfigFile string
}

// SMTPConfig is the outgoing mail account.
type SMTPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	To         []string
	SkipVerify bool
	Timeout    time.Duration

	// SecretErr is set when a sealed password could not be opened.
	SecretErr error
}

// Ready reports whether enough is configured to send mail.
func (s SMTPConfig) Ready() bool {
	return s.SecretErr == nil && s.Username != "" && s.Password != "" && len(s.To) > 0
}

// OpenAIConfig is the chat-completion endpoint used for recommendations.
type OpenAIConfig struct {
	APIKey    string
	Model     string
	BaseURL   string
	Timeout   time.Duration
	PerMinute int

	// SecretErr is set when a sealed API key could not be opened.
	SecretErr error
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Thresholds: models.DefaultThresholds(),
		SMTP: SMTPConfig{
			Host:    "smtp.gmail.com",
			Port:    587,
			Timeout: 30 * time.Second,
		},
		OpenAI: OpenAIConfig{
			Model:     "gpt-3.5-turbo",
			Timeout:   30 * time.Second,
			PerMinute: 6,
		},
		SampleWindow:        time.Second,
		TopN:                3,
		TrendOutput:         "system_performance.csv",
		TrendMaxFailures:    5,
		AlertMaxFailures:    0,
		DefaultIntervalSecs: 300,
		ActivityKeepEntries: 10000,
	}
}

// Load builds the configuration: defaults, then .env, then the YAML file
// at path (or SYSADVISOR_CONFIG), then environment variables. Sealed
// secrets are opened with SYSADVISOR_SECRET; one that cannot be opened does
// not fail Load (see SMTPConfig.SecretErr and OpenAIConfig.SecretErr).
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path == "" {
		path = os.Getenv("SYSADVISOR_CONFIG")
	}
	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
		cfg.ConfigFile = path
	}

	applyEnv(cfg)

	openSecrets(cfg, []byte(os.Getenv("SYSADVISOR_SECRET")))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Thresholds.CPUPercent = envFloat("CPU_THRESHOLD", cfg.Thresholds.CPUPercent)
	cfg.Thresholds.MemoryPercent = envFloat("MEMORY_THRESHOLD", cfg.Thresholds.MemoryPercent)

	cfg.SMTP.Host = getenv("SMTP_HOST", cfg.SMTP.Host)
	cfg.SMTP.Port = envInt("SMTP_PORT", cfg.SMTP.Port)
	cfg.SMTP.Username = getenv("EMAIL_USERNAME", cfg.SMTP.Username)
	cfg.SMTP.Password = getenv("EMAIL_PASSWORD", cfg.SMTP.Password)
	cfg.SMTP.From = getenv("EMAIL_FROM", cfg.SMTP.From)
	if to := getenv("EMAIL_TO", ""); to != "" {
		cfg.SMTP.To = splitList(to)
	}
	cfg.SMTP.SkipVerify = envBool("SMTP_SKIP_VERIFY", cfg.SMTP.SkipVerify)
	cfg.SMTP.Timeout = envDurSecs("EMAIL_TIMEOUT_SECONDS", int(cfg.SMTP.Timeout/time.Second))
	if cfg.SMTP.From == "" {
		cfg.SMTP.From = cfg.SMTP.Username
	}

	cfg.OpenAI.APIKey = getenv("OPENAI_API_KEY", cfg.OpenAI.APIKey)
	cfg.OpenAI.Model = getenv("OPENAI_MODEL", cfg.OpenAI.Model)
	cfg.OpenAI.BaseURL = strings.TrimSuffix(getenv("OPENAI_BASE_URL", cfg.OpenAI.BaseURL), "/")
	cfg.OpenAI.Timeout = envDurSecs("RECOMMEND_TIMEOUT_SECONDS", int(cfg.OpenAI.Timeout/time.Second))
	cfg.OpenAI.PerMinute = envInt("RECOMMEND_PER_MINUTE", cfg.OpenAI.PerMinute)

	cfg.SampleWindow = time.Duration(envInt("SAMPLE_WINDOW_MS", int(cfg.SampleWindow/time.Millisecond))) * time.Millisecond
	cfg.TopN = envInt("TOP_N", cfg.TopN)

	cfg.TrendOutput = getenv("TREND_OUTPUT", cfg.TrendOutput)
	cfg.TrendMaxFailures = envInt("MAX_CONSECUTIVE_FAILURES", cfg.TrendMaxFailures)
	cfg.AlertMaxFailures = envInt("ALERT_MAX_CONSECUTIVE_FAILURES", cfg.AlertMaxFailures)
	cfg.DefaultIntervalSecs = envInt("INTERVAL_SECONDS", cfg.DefaultIntervalSecs)
	cfg.ActivityDBPath = getenv("ACTIVITY_DB_PATH", cfg.ActivityDBPath)
	cfg.ActivityKeepEntries = envInt("ACTIVITY_KEEP_ENTRIES", cfg.ActivityKeepEntries)
}

// openSecrets decrypts sealed values. A value that cannot be opened is
// cleared and its error kept on the owning section, so only the mail or
// recommendation path fails, never start-up.
func openSecrets(cfg *Config, secret []byte) {
	sealer, err := crypto.NewSealer(secret)
	if err != nil {
		log.Printf("Warning: cannot derive secret key: %v", err)
		sealer, _ = crypto.NewSealer(nil)
	}

	if cfg.SMTP.Password, err = sealer.Open(cfg.SMTP.Password); err != nil {
		cfg.SMTP.SecretErr = fmt.Errorf("EMAIL_PASSWORD: %w", err)
		log.Printf("Warning: %v, alert email disabled", cfg.SMTP.SecretErr)
	}
	if cfg.OpenAI.APIKey, err = sealer.Open(cfg.OpenAI.APIKey); err != nil {
		cfg.OpenAI.SecretErr = fmt.Errorf("OPENAI_API_KEY: %w", err)
		log.Printf("Warning: %v, recommendations disabled", cfg.OpenAI.SecretErr)
	}
}

// Summary is a one-line description safe to log.
func (c *Config) Summary() string {
	return fmt.Sprintf("cpu_thresh=%.1f mem_thresh=%.1f smtp=%s:%d user=%s password=%s model=%s api_key=%s window=%s top_n=%d",
		c.Thresholds.CPUPercent, c.Thresholds.MemoryPercent,
		c.SMTP.Host, c.SMTP.Port, c.SMTP.Username, crypto.Mask(c.SMTP.Password),
		c.OpenAI.Model, crypto.Mask(c.OpenAI.APIKey), c.SampleWindow, c.TopN)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Helper functions
func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envBool(k string, def bool) bool {
	v := strings.ToLower(getenv(k, ""))
	if v == "" {
		return def
	}
	return v == "1" || v == "true" || v == "yes"
}

func envDurSecs(k string, def int) time.Duration {
	return time.Duration(envInt(k, def)) * time.Second
}
