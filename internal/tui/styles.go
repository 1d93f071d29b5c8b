// Package tui provides a live terminal dashboard for an engine tournament.
//
// The TUI uses Bubble Tea for the application framework and Lipgloss for styling.
// It displays:
// - Tournament progress
// - Standings with Elo and LOS
// - Colour balance
// - Forfeits and aborts per engine
package tui

import (
	"fmt"
	"math"

	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorPrimary   = lipgloss.Color("#7C3AED") // Purple
	colorSecondary = lipgloss.Color("#06B6D4") // Cyan

	colorSuccess = lipgloss.Color("#10B981") // Green
	colorWarning = lipgloss.Color("#F59E0B") // Amber
	colorError   = lipgloss.Color("#EF4444") // Red
	colorInfo    = lipgloss.Color("#3B82F6") // Blue

	colorText      = lipgloss.Color("#E5E7EB") // Light gray
	colorTextMuted = lipgloss.Color("#9CA3AF") // Medium gray
	colorTextDim   = lipgloss.Color("#6B7280") // Dark gray
	colorBorder    = lipgloss.Color("#374151") // Border gray
)

// =============================================================================
// Base Styles
// =============================================================================

var (
	mutedStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorTextDim)
)

// =============================================================================
// Status Indicator Styles
// =============================================================================

var (
	statusOK = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)

	statusWarning = lipgloss.NewStyle().
			Foreground(colorWarning).
			Bold(true)

	statusError = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)

	statusInfo = lipgloss.NewStyle().
			Foreground(colorInfo).
			Bold(true)
)

// =============================================================================
// Layout Styles
// =============================================================================

var (
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Background(colorPrimary).
			Bold(true).
			Padding(0, 1).
			MarginBottom(1)

	sectionHeaderStyle = lipgloss.NewStyle().
				Foreground(colorSecondary).
				Bold(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderBottom(true).
				BorderForeground(colorBorder)

	footerStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted).
			MarginTop(1)
)

// =============================================================================
// Value Styles
// =============================================================================

var (
	valueStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Bold(true)

	valueGoodStyle = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)

	valueBadStyle = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)

	valueWarnStyle = lipgloss.NewStyle().
			Foreground(colorWarning).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted).
			Width(20)
)

// =============================================================================
// Progress Bar Styles
// =============================================================================

var (
	progressBarStyle = lipgloss.NewStyle().
				Foreground(colorPrimary)

	progressBarEmptyStyle = lipgloss.NewStyle().
				Foreground(colorBorder)

	progressPercentStyle = lipgloss.NewStyle().
				Foreground(colorText).
				Bold(true)
)

// =============================================================================
// Likelihood Of Superiority Indicator
// =============================================================================

// LOSStatus classifies how settled a match result is.
type LOSStatus int

const (
	LOSUnknown LOSStatus = iota
	LOSUndecided
	LOSLikely
	LOSSignificant
)

// GetLOSStatus classifies a likelihood of superiority for either side.
func GetLOSStatus(los float64) LOSStatus {
	if math.IsNaN(los) {
		return LOSUnknown
	}
	certainty := math.Max(los, 1-los)
	switch {
	case certainty >= 0.95:
		return LOSSignificant
	case certainty >= 0.80:
		return LOSLikely
	default:
		return LOSUndecided
	}
}

// GetLOSStyle returns the style for a LOS value.
func GetLOSStyle(los float64) lipgloss.Style {
	switch GetLOSStatus(los) {
	case LOSSignificant:
		return valueGoodStyle
	case LOSLikely:
		return valueWarnStyle
	default:
		return valueStyle
	}
}

// =============================================================================
// Failure Rate Indicator
// =============================================================================

// GetFailureRateStyle returns a style based on the share of games lost to
// forfeits or aborts.
func GetFailureRateStyle(rate float64) lipgloss.Style {
	switch {
	case rate == 0:
		return valueGoodStyle
	case rate < 0.01: // <1%
		return valueWarnStyle
	default:
		return valueBadStyle
	}
}

// GetColorBalanceStyle flags a colour split that drifts far from even.
func GetColorBalanceStyle(whitePct float64) lipgloss.Style {
	dev := math.Abs(whitePct - 0.5)
	switch {
	case dev <= 0.05:
		return valueGoodStyle
	case dev <= 0.15:
		return valueWarnStyle
	default:
		return valueBadStyle
	}
}

// =============================================================================
// Helper Functions
// =============================================================================

// RenderKeyValue renders a label-value pair.
func RenderKeyValue(label string, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Left,
		labelStyle.Render(label+":"),
		valueStyle.Render(value),
	)
}

// RenderProgressBar renders a progress bar.
func RenderProgressBar(progress float64, width int) string {
	if width < 10 {
		width = 10
	}

	filled := int(progress * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	bar := progressBarStyle.Render(repeatChar('█', filled)) +
		progressBarEmptyStyle.Render(repeatChar('░', width-filled))

	percent := progressPercentStyle.Render(fmt.Sprintf(" %3.0f%%", progress*100))

	return bar + percent
}

func repeatChar(char rune, count int) string {
	if count <= 0 {
		return ""
	}
	result := make([]rune, count)
	for i := range result {
		result[i] = char
	}
	return string(result)
}
