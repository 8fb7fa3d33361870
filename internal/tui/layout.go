package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Header draws a title with breadcrumb parts.
func Header(parts ...string) string {
	breadcrumb := "devsweep"
	for _, p := range parts {
		breadcrumb += " > " + p
	}
	return TitleStyle.Render(breadcrumb)
}

// ProgressBar draws a bar of the given width colored by ratio.
// ratio should be between 0.0 and 1.0.
func ProgressBar(ratio float64, width int) string {
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	filled := int(ratio * float64(width))
	if filled == 0 && ratio > 0 {
		filled = 1
	}
	empty := width - filled
	fillStyle := lipgloss.NewStyle().Foreground(barColor(ratio))
	return "[" + fillStyle.Render(strings.Repeat("█", filled)) + strings.Repeat("░", empty) + "]"
}

// TruncPath shortens path from the left to at most maxLen characters.
func TruncPath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}
	if maxLen <= 3 {
		return path[len(path)-maxLen:]
	}
	return "..." + path[len(path)-maxLen+3:]
}
