package errors

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#E06C75")).Bold(true)
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ABB2BF")).Bold(true)
	textStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ABB2BF"))
	locStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#56B6C2"))
	hintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#56B6C2"))
	faintStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#5C6370"))
)

// colorEnabled controls whether styles are applied.
var colorEnabled = true

// DisableColors disables styled output.
func DisableColors() {
	colorEnabled = false
}

func render(style lipgloss.Style, text string) string {
	if !colorEnabled {
		return text
	}
	return style.Render(text)
}

// Format returns the error formatted for terminal display.
func (e *Error) Format() string {
	var b strings.Builder

	b.WriteString("\n")
	if e.Code != "" {
		b.WriteString(render(errorStyle, "ERROR "))
		b.WriteString(render(titleStyle, e.Code+": "))
	} else {
		b.WriteString(render(errorStyle, "ERROR: "))
	}
	b.WriteString(render(textStyle, e.Message))
	b.WriteString("\n\n")

	if e.Location != nil {
		b.WriteString("  ")
		b.WriteString(render(locStyle, e.Location.String()))
		b.WriteString("\n\n")

		if len(e.Context) > 0 {
			startLine := e.Location.Line - len(e.Context)/2
			if startLine < 1 {
				startLine = 1
			}
			for i, line := range e.Context {
				lineNum := startLine + i
				if lineNum == e.Location.Line {
					b.WriteString("  ")
					b.WriteString(render(errorStyle, "→ "))
				} else {
					b.WriteString("    ")
				}
				b.WriteString(fmt.Sprintf("%4d", lineNum))
				b.WriteString(render(faintStyle, " │ "))
				b.WriteString(line)
				b.WriteString("\n")

				if lineNum == e.Location.Line && e.Location.Column > 0 {
					b.WriteString("       ")
					b.WriteString(render(faintStyle, "│ "))
					b.WriteString(strings.Repeat(" ", e.Location.Column-1))
					b.WriteString(render(errorStyle, "^"))
					b.WriteString("\n")
				}
			}
			b.WriteString("\n")
		}
	}

	if e.Detail != "" {
		for _, line := range wrapText(e.Detail, 70) {
			b.WriteString("  ")
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if e.Suggestion != "" {
		b.WriteString("  ")
		b.WriteString(render(hintStyle, "Hint: "))
		b.WriteString(e.Suggestion)
		b.WriteString("\n\n")
	}

	return b.String()
}

// FormatCompact renders the error on one line.
func (e *Error) FormatCompact() string {
	var b strings.Builder
	if e.Location != nil {
		b.WriteString(e.Location.String())
		b.WriteString(": ")
	}
	if e.Code != "" {
		b.WriteString(e.Code)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Detail != "" {
		b.WriteString(" (")
		b.WriteString(e.Detail)
		b.WriteString(")")
	}
	return b.String()
}

// FormatJSON renders the error for machine consumers.
func (e *Error) FormatJSON() string {
	type location struct {
		File   string `json:"file"`
		Line   int    `json:"line"`
		Column int    `json:"column"`
	}
	out := struct {
		Code       string    `json:"code,omitempty"`
		Category   Category  `json:"category"`
		Message    string    `json:"message"`
		Detail     string    `json:"detail,omitempty"`
		Location   *location `json:"location,omitempty"`
		Suggestion string    `json:"suggestion,omitempty"`
	}{
		Code:       e.Code,
		Category:   e.Category,
		Message:    e.Message,
		Detail:     e.Detail,
		Suggestion: e.Suggestion,
	}
	if e.Location != nil {
		out.Location = &location{e.Location.File, e.Location.Line, e.Location.Column}
	}
	data, _ := json.Marshal(out)
	return string(data)
}

// wrapText splits text into lines no wider than width.
func wrapText(text string, width int) []string {
	if text == "" {
		return nil
	}
	if len(text) <= width {
		return []string{text}
	}

	var lines []string
	var current strings.Builder
	for _, word := range strings.Fields(text) {
		if current.Len() > 0 && current.Len()+len(word)+1 > width {
			lines = append(lines, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return lines
}

// OutputFormat selects how errors are written.
type OutputFormat string

const (
	OutputText    OutputFormat = "text"
	OutputCompact OutputFormat = "compact"
	OutputJSON    OutputFormat = "json"
)

// ParseOutputFormat validates an --output value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case OutputText, OutputCompact, OutputJSON:
		return f, nil
	}
	return "", New("V400").WithDetail(fmt.Sprintf("--output must be text, compact or json, got %q", s))
}

// Render formats the error as f. Unknown formats render as text.
func (e *Error) Render(f OutputFormat) string {
	switch f {
	case OutputCompact:
		return e.FormatCompact() + "\n"
	case OutputJSON:
		return e.FormatJSON() + "\n"
	default:
		return e.Format()
	}
}

// FprintAs writes err to w in format f. Errors that are not *Error are
// written as a plain styled line.
func FprintAs(w io.Writer, err error, f OutputFormat) {
	if e, ok := err.(*Error); ok {
		fmt.Fprint(w, e.Render(f))
		return
	}
	fmt.Fprintf(w, "\n%s %s\n\n", render(errorStyle, "ERROR:"), err.Error())
}
