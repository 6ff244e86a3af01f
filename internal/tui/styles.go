package tui

import "github.com/charmbracelet/lipgloss"

var (
	ActionStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	SuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	WarningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)
	ErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	PathStyle    = lipgloss.NewStyle().Faint(true)
)

// Action renders a step verb such as "Downloading".
func Action(word string) string {
	return ActionStyle.Render(word)
}

// Success renders a completion verb such as "Downloaded".
func Success(word string) string {
	return SuccessStyle.Render(word)
}
