package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/tierup/pkg/models"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(18)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

// tierStyle colors a tier name.
func tierStyle(t models.Tier) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)
	switch t {
	case models.TierCheap:
		return base.Foreground(lipgloss.Color("42"))
	case models.TierCapable:
		return base.Foreground(lipgloss.Color("214"))
	case models.TierPremium:
		return base.Foreground(lipgloss.Color("170"))
	default:
		return base.Foreground(lipgloss.Color("245"))
	}
}

func severityStyle(s models.Severity) lipgloss.Style {
	switch s {
	case models.SeverityCritical:
		return errorStyle
	case models.SeverityHigh, models.SeverityModerate:
		return warningStyle
	default:
		return successStyle
	}
}
