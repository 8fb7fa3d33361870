package tui

import "github.com/charmbracelet/lipgloss"

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary).
			MarginBottom(1)

	SelectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorSecondary)

	DimStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	HelpStyle = lipgloss.NewStyle().
			Foreground(colorDim).
			MarginTop(1)

	DangerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorDanger).
			Background(colorDangerBg).
			Padding(0, 1)

	WarnStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorWarning)
	SuccessStyle = lipgloss.NewStyle().Bold(true).Foreground(colorSuccess)
	FailStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorDanger)
)

// CategoryStyle renders a category name in its ecosystem color.
func CategoryStyle(category string) lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(CategoryColor(category))
}
