package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ResultType selects the color, marker and word of a result box.
type ResultType int

const (
	ResultSuccess ResultType = iota
	ResultFailure
	ResultWarning
)

func (t ResultType) look() (marker, word string, title lipgloss.Style, color lipgloss.Color) {
	switch t {
	case ResultFailure:
		return FailureMarker, "FAILED", ErrorTitleStyle, ErrorColor
	case ResultWarning:
		return WarningMarker, "WARNING", WarningTitleStyle, WarningColor
	default:
		return SuccessMarker, "SUCCESS", SuccessTitleStyle, SuccessColor
	}
}

// Result is the box printed when a command finishes.
type Result struct {
	Type            ResultType
	Title           string            // e.g., "Search complete"
	Details         map[string]string // rendered sorted by key
	Error           error             // failures only
	Troubleshooting []string          // failures only
	Width           int
}

// NewResult creates a result box sized to the terminal.
func NewResult(t ResultType, title string) *Result {
	return &Result{Type: t, Title: title, Width: GetTerminalWidth()}
}

// WithDetails sets the key-value details
func (r *Result) WithDetails(details map[string]string) *Result {
	r.Details = details
	return r
}

// WithError sets the error and the troubleshooting tips
func (r *Result) WithError(err error, tips []string) *Result {
	r.Error = err
	r.Troubleshooting = tips
	return r
}

// SetWidth sets the terminal width for responsive rendering
func (r *Result) SetWidth(width int) *Result {
	r.Width = width
	return r
}

// AddDetail adds a detail key-value pair
func (r *Result) AddDetail(key, value string) *Result {
	if r.Details == nil {
		r.Details = make(map[string]string)
	}
	r.Details[key] = value
	return r
}

// Render returns the styled result box as a string
func (r *Result) Render() string {
	width := clampWidth(r.Width)
	marker, word, titleStyle, color := r.Type.look()

	lines := []string{"", titleStyle.Render(fmt.Sprintf("   %s  %s  ─  %s", marker, word, r.Title)), ""}
	if r.Error != nil {
		lines = append(lines, ErrorMessageStyle.Render("   Error: "+r.Error.Error()), "")
	}
	if len(r.Details) > 0 {
		lines = append(lines, renderPairs(r.Details, ResultKeyStyle, ResultValueStyle, "   "), "")
	}
	if len(r.Troubleshooting) > 0 {
		lines = append(lines, renderTips(r.Troubleshooting, width), "")
	}

	return lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(color).
		Width(width - 2).
		Padding(0, 2).
		Render(strings.Join(lines, "\n"))
}

// String implements fmt.Stringer
func (r *Result) String() string {
	return r.Render()
}

// renderTips renders the inner troubleshooting box
func renderTips(tips []string, width int) string {
	lines := []string{TroubleshootingTitleStyle.Render("Troubleshooting:"), ""}
	for _, tip := range tips {
		lines = append(lines, TroubleshootingItemStyle.Render("  • "+tip))
	}

	inner := width - 12
	if inner < 40 {
		inner = 40
	}
	return TroubleshootingBoxStyle(width).
		Width(inner).
		MarginLeft(3).
		Render(strings.Join(lines, "\n"))
}
