// ABOUTME: Defines lipgloss style constants for the inline live view.
// ABOUTME: Task labels take their palette color tag; chrome stays dim.
package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170"))

	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	runningStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	completedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

// tagStyle builds a style from a task's palette color tag.
func tagStyle(tag string) lipgloss.Style {
	if tag == "" {
		return dimStyle
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(tag))
}
