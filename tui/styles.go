// ABOUTME: Defines lipgloss styles for the summary reader: header, status line, metrics and errors.
// ABOUTME: Provides StyleForPhase to map controller phases to the status line style.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/2389-research/summarize/consumer"
)

var (
	// Header
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170"))
	MetaStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	// Status line colors
	IdleStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	ConnectingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	StreamingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	ErrorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)

	// Footer
	MetricsStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	CacheStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("62")).Italic(true)
)

// StyleForPhase returns the status line style for a controller phase.
func StyleForPhase(p consumer.Phase) lipgloss.Style {
	switch p {
	case consumer.PhaseConnecting:
		return ConnectingStyle
	case consumer.PhaseStreaming:
		return StreamingStyle
	case consumer.PhaseError:
		return ErrorStyle
	default:
		return IdleStyle
	}
}
