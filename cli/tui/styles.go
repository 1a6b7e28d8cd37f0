// Package tui renders the node's live status as a Bubble Tea dashboard:
// backlog depth, VAD state, free space percentage, and the upload retry
// attempt histogram. Read-only: nothing here can reach into the
// scheduler or mutate any on-disk state.
package tui

import "github.com/charmbracelet/lipgloss"

var (
	primaryColor   = lipgloss.Color("#7C3AED")
	successColor   = lipgloss.Color("#10B981")
	warningColor   = lipgloss.Color("#F59E0B")
	errorColor     = lipgloss.Color("#EF4444")
	mutedColor     = lipgloss.Color("#6B7280")
	highlightColor = lipgloss.Color("#3B82F6")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	LabelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Width(18)

	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	SuccessStyle = lipgloss.NewStyle().Foreground(successColor)
	WarningStyle = lipgloss.NewStyle().Foreground(warningColor)
	ErrorStyle   = lipgloss.NewStyle().Foreground(errorColor)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(1, 2)

	HelpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			MarginTop(1)

	StatBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(highlightColor).
			Padding(0, 2).
			Width(20).
			Align(lipgloss.Center)

	StatLabelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Align(lipgloss.Center)

	StatValueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Align(lipgloss.Center)
)

// FreeSpaceStyle picks a color for a free-space percentage: red under
// the emergency threshold, amber under the minimum, green otherwise.
func FreeSpaceStyle(percent, minFree, emergencyFree uint8) lipgloss.Style {
	switch {
	case percent < emergencyFree:
		return ErrorStyle
	case percent < minFree:
		return WarningStyle
	default:
		return SuccessStyle
	}
}

// RecordingStyle highlights whether a VAD clip is currently recording.
func RecordingStyle(recording bool) lipgloss.Style {
	if recording {
		return WarningStyle
	}
	return SuccessStyle
}

// StatusStyle highlights a boolean health flag (Wi-Fi up, NTP synced):
// green when ok, amber otherwise.
func StatusStyle(ok bool) lipgloss.Style {
	if ok {
		return SuccessStyle
	}
	return WarningStyle
}
