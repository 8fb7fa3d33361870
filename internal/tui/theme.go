package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ---------------------------------------------------------------------------
// Color palette -- single source of truth for all console colors.
// Values are ANSI-256 color codes passed to lipgloss.Color().
// ---------------------------------------------------------------------------

var (
	colorPrimary   = lipgloss.Color("170")
	colorSecondary = lipgloss.Color("212")
	colorSuccess   = lipgloss.Color("82")
	colorWarning   = lipgloss.Color("214")
	colorDanger    = lipgloss.Color("196")
	colorDim       = lipgloss.Color("241")
	colorDangerBg  = lipgloss.Color("52")
)

// ---------------------------------------------------------------------------
// Ecosystem colors -- keyed by the part of a category before the first dot,
// so "python.directories" and "python.files" share a color.
// ---------------------------------------------------------------------------

var ecosystemColors = map[string]lipgloss.Color{
	"python":     lipgloss.Color("220"),
	"javascript": lipgloss.Color("119"),
	"rust":       lipgloss.Color("173"),
	"go":         lipgloss.Color("74"),
	"java":       lipgloss.Color("167"),
	"ruby":       lipgloss.Color("161"),
	"swift":      lipgloss.Color("208"),
	"dotnet":     lipgloss.Color("141"),
	"general":    lipgloss.Color("223"),
	"jetbrains":  lipgloss.Color("75"),
}

// CategoryColor returns the theme color for a pattern category.
// Unknown ecosystems fall back to colorPrimary.
func CategoryColor(category string) lipgloss.Color {
	eco, _, _ := strings.Cut(category, ".")
	if c, ok := ecosystemColors[eco]; ok {
		return c
	}
	return colorPrimary
}

// ---------------------------------------------------------------------------
// Bar colors -- used for usage-ratio bars (disk usage in status).
// ---------------------------------------------------------------------------

var (
	barColorHigh   = lipgloss.Color("196")
	barColorMedium = lipgloss.Color("214")
	barColorLow    = lipgloss.Color("82")
)

// barColor returns a color based on a 0.0-1.0 ratio.
//   - >= 0.75 -> high (red)
//   - >= 0.40 -> medium (orange/yellow)
//   - < 0.40  -> low (green)
func barColor(ratio float64) lipgloss.Color {
	switch {
	case ratio >= 0.75:
		return barColorHigh
	case ratio >= 0.40:
		return barColorMedium
	default:
		return barColorLow
	}
}
