// Package console prints reports to a terminal or a pipe.
package console

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/term"

	"sysadvisor/app/internal/models"
)

// ClearScreen moves the cursor home and clears the display.
const ClearScreen = "\033[2J\033[H"

const (
	colorTitle    = lipgloss.Color("#06B6D4") // Cyan
	colorCritical = lipgloss.Color("#EF4444") // Red
	colorWarning  = lipgloss.Color("#EAB308") // Yellow
	colorMuted    = lipgloss.Color("#6B7280") // Gray
)

var (
	styleTitle    = lipgloss.NewStyle().Bold(true).Foreground(colorTitle)
	styleRule     = lipgloss.NewStyle().Foreground(colorMuted)
	styleSection  = lipgloss.NewStyle().Bold(true)
	styleCritical = lipgloss.NewStyle().Bold(true).Foreground(colorCritical)
	styleWarning  = lipgloss.NewStyle().Foreground(colorWarning)
	styleInfo     = lipgloss.NewStyle().Foreground(colorTitle)
)

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(f.Fd())
}

// Printer writes reports, styling them only on a terminal.
type Printer struct {
	w      io.Writer
	styled bool
}

// New creates a printer for w.
func New(w io.Writer) *Printer {
	return &Printer{w: w, styled: IsTerminal(w)}
}

// Clear wipes the screen before a redraw. It does nothing off a terminal so
// piped output stays clean.
func (p *Printer) Clear() {
	if p.styled {
		fmt.Fprint(p.w, ClearScreen)
	}
}

// Report prints a prose report.
func (p *Printer) Report(text string) {
	if !p.styled {
		fmt.Fprint(p.w, ensureNewline(text))
		return
	}
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, line := range lines {
		lines[i] = styleLine(line)
	}
	fmt.Fprintln(p.w, strings.Join(lines, "\n"))
}

// JSON prints v as indented JSON.
func (p *Printer) JSON(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Activity prints journal entries one per line, followed by a count.
func (p *Printer) Activity(entries []models.LogEntry, total int) {
	for _, e := range entries {
		line := fmt.Sprintf("%s %-5s %-7s %s: %s", e.Timestamp, strings.ToUpper(e.Level), e.Category, e.Subject, e.Message)
		if e.Details != "" {
			line += " (" + e.Details + ")"
		}
		if p.styled {
			switch e.Level {
			case "error":
				line = styleCritical.Render(line)
			case "warn":
				line = styleWarning.Render(line)
			}
		}
		fmt.Fprintln(p.w, line)
	}
	fmt.Fprintf(p.w, "Showing %d of %d entries\n", len(entries), total)
}

func styleLine(line string) string {
	trimmed := strings.TrimSpace(line)
	switch {
	case trimmed == "":
		return line
	case strings.Trim(trimmed, "=-") == "":
		return styleRule.Render(line)
	case strings.HasPrefix(trimmed, "SYSTEM MONITOR"):
		return styleTitle.Render(line)
	case strings.HasPrefix(trimmed, "[CRITICAL]"):
		return styleCritical.Render(line)
	case strings.HasPrefix(trimmed, "[WARNING]"):
		return styleWarning.Render(line)
	case strings.HasPrefix(trimmed, "[INFO]"):
		return styleInfo.Render(line)
	case strings.HasSuffix(trimmed, ":") || trimmed == "RECOMMENDATIONS":
		return styleSection.Render(line)
	}
	return line
}

func ensureNewline(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
