// Package advisor asks a chat-completion model for operational advice about
// a system report.
package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"sysadvisor/app/internal/config"
	"sysadvisor/app/internal/models"
)

// ErrUnavailable covers every way a recommendation can fail: no API key,
// network or API errors, timeouts, empty replies and throttling. Callers
// treat it as non-fatal.
var ErrUnavailable = errors.New("recommendation unavailable")

// Recommendation is one structured item of advice.
type Recommendation struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Action   string `json:"action"`
}

// Advice is a model reply. Items is set only when the reply parsed as a
// list of recommendations; Text is always usable.
type Advice struct {
	Text  string           `json:"text"`
	Items []Recommendation `json:"items,omitempty"`
}

// Recommender produces advice for a formatted report.
type Recommender interface {
	Recommend(ctx context.Context, reportText string) (*Advice, error)
}

// Client is the OpenAI-compatible Recommender.
type Client struct {
	api        *openai.Client
	keyErr     error
	model      string
	timeout    time.Duration
	thresholds models.Thresholds
}

// New builds a client. Without a usable API key the client exists but every
// call returns ErrUnavailable.
func New(cfg config.OpenAIConfig, th models.Thresholds) *Client {
	c := &Client{model: cfg.Model, timeout: cfg.Timeout, thresholds: th, keyErr: cfg.SecretErr}
	if c.model == "" {
		c.model = openai.GPT3Dot5Turbo
	}
	if cfg.APIKey == "" || cfg.SecretErr != nil {
		return c
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	c.api = openai.NewClientWithConfig(oc)
	return c
}

// Recommend sends the report to the model once, bounded by the client
// timeout.
func (c *Client) Recommend(ctx context.Context, reportText string) (*Advice, error) {
	if c.keyErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, c.keyErr)
	}
	if c.api == nil {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY not set", ErrUnavailable)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: Prompt(reportText, c.thresholds)},
		},
		MaxTokens:   500,
		Temperature: 0.3,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrUnavailable)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return nil, fmt.Errorf("%w: empty response", ErrUnavailable)
	}
	return Parse(content), nil
}

// Prompt builds the single user message sent to the model.
func Prompt(reportText string, th models.Thresholds) string {
	var b strings.Builder
	b.WriteString("Analyze this system performance data and provide specific recommendations.\n")
	b.WriteString("Only flag issues if they are actually problematic:\n")
	fmt.Fprintf(&b, "- CPU usage over %.0f%% is concerning\n", th.CPUPercent)
	fmt.Fprintf(&b, "- Memory usage over %.0f%% is concerning\n", th.MemoryPercent)
	b.WriteString("- Below these thresholds, the system is performing normally\n\n")
	b.WriteString("Current data:\n")
	b.WriteString(reportText)
	b.WriteString("\n\nProvide 1-3 specific, actionable recommendations in JSON format:\n")
	b.WriteString(`[
  {
    "type": "recommendation_type",
    "severity": "info|warning|critical",
    "message": "brief description",
    "action": "specific action to take"
  }
]`)
	return b.String()
}

// Parse extracts a JSON recommendation list from a reply. When none is
// found the raw reply becomes the text.
func Parse(content string) *Advice {
	items, ok := parseItems(content)
	if !ok {
		return &Advice{Text: strings.TrimSpace(content)}
	}
	return &Advice{Text: Render(items), Items: items}
}

func parseItems(content string) ([]Recommendation, bool) {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end <= start {
		return nil, false
	}

	var raw []map[string]any
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil || len(raw) == 0 {
		return nil, false
	}

	items := make([]Recommendation, 0, len(raw))
	for _, r := range raw {
		rec := Recommendation{}
		for key, dst := range map[string]*string{
			"type":     &rec.Type,
			"severity": &rec.Severity,
			"message":  &rec.Message,
			"action":   &rec.Action,
		} {
			v, present := r[key]
			if !present {
				return nil, false
			}
			s, isString := v.(string)
			if !isString {
				return nil, false
			}
			*dst = s
		}
		items = append(items, rec)
	}
	return items, true
}

// Render prints recommendations as "[SEVERITY] message" with an indented
// action line.
func Render(items []Recommendation) string {
	var b strings.Builder
	for i, rec := range items {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s %s\n", SeverityTag(rec.Severity), rec.Message)
		fmt.Fprintf(&b, "   Action: %s\n", rec.Action)
	}
	return strings.TrimRight(b.String(), "\n")
}

// SeverityTag maps a severity to its display tag. Unknown severities are
// shown as info.
func SeverityTag(severity string) string {
	switch strings.ToLower(strings.TrimSpace(severity)) {
	case "critical":
		return "[CRITICAL]"
	case "warning":
		return "[WARNING]"
	default:
		return "[INFO]"
	}
}
