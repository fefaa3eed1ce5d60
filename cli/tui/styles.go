// Package tui provides the Bubble Tea live view for gristmill run.
//
// The TUI is opt-in (--tui) and purely presentational: it consumes the
// same progress signals as the plain progress bar and never sees data
// the non-TUI path would not.
package tui

import "github.com/charmbracelet/lipgloss"

// Color palette.
var (
	primaryColor = lipgloss.Color("#7C3AED") // Purple
	successColor = lipgloss.Color("#10B981") // Green
	warningColor = lipgloss.Color("#F59E0B") // Amber
	errorColor   = lipgloss.Color("#EF4444") // Red
	mutedColor   = lipgloss.Color("#6B7280") // Gray
)

// Styles for TUI components.
var (
	// TitleStyle for the batch header line.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	// LabelStyle for counter labels.
	LabelStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	// SuccessStyle for the completed state.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(successColor)

	// WarningStyle for the report counter when warnings arrived.
	WarningStyle = lipgloss.NewStyle().
			Foreground(warningColor)

	// ErrorStyle for the aborted state.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	// HelpStyle for the quit hint.
	HelpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			MarginTop(1)
)
