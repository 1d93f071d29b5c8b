package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/randomizedcoder/go-othello-arena/internal/protocol"
	"github.com/randomizedcoder/go-othello-arena/internal/stats"
)

// =============================================================================
// Main View Rendering
// =============================================================================

// renderSummaryView renders the main dashboard.
func (m Model) renderSummaryView() string {
	sections := []string{
		m.renderHeader(),
		m.renderProgress(),
		m.renderStandings(),
		m.renderColorBalance(),
	}

	if m.hasFailures() {
		sections = append(sections, m.renderFailures())
	}

	sections = append(sections, m.renderFooter())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderDetailedView renders per-engine timing.
func (m Model) renderDetailedView() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.renderTiming(),
		m.renderFooter(),
	)
}

// =============================================================================
// Header
// =============================================================================

func (m Model) renderHeader() string {
	header := fmt.Sprintf(
		" othello-arena │ %s vs %s │ Elapsed: %s │ %s ",
		engineLabel(m.engines[0], 0),
		engineLabel(m.engines[1], 1),
		stats.FormatDuration(m.Elapsed()),
		formatGamesPerMinute(m.rate.PerMinute1m),
	)

	return headerStyle.Width(m.width).Render(header)
}

// =============================================================================
// Progress Section
// =============================================================================

func (m Model) renderProgress() string {
	barWidth := m.width - 30
	if barWidth < 20 {
		barWidth = 20
	}
	progressBar := RenderProgressBar(m.Progress(), barWidth)

	var status string
	switch {
	case m.done:
		status = statusOK.Render(fmt.Sprintf("✓ Tournament finished: %d/%d games", m.Finished(), m.totalGames))
	default:
		status = statusInfo.Render(fmt.Sprintf("Playing... %d/%d games, %d in progress",
			m.Finished(), m.totalGames, m.active))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		sectionHeaderStyle.Render("Progress"),
		progressBar,
		status,
	)

	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Standings
// =============================================================================

func (m Model) renderStandings() string {
	s := m.snap
	stat := s.Stat()

	rows := []string{
		renderStandingRow(engineLabel(m.engines[0], 0), s.Win0),
		renderStandingRow(engineLabel(m.engines[1], 1), s.Win1),
		renderStandingRow("Draws", s.Draw),
		RenderKeyValue("Score (W-L-D)", s.Score()),
		RenderKeyValue("Winning fraction", formatPercent(stat.WinningFraction)),
		lipgloss.JoinHorizontal(lipgloss.Left,
			labelStyle.Render("Elo difference:"),
			valueStyle.Render(formatElo(stat.EloDifference)),
		),
		lipgloss.JoinHorizontal(lipgloss.Left,
			labelStyle.Render("LOS:"),
			GetLOSStyle(stat.LOS).Render(formatPercent(stat.LOS)),
		),
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("Standings")}, rows...)...,
	)

	return boxStyle.Width(m.width - 2).Render(content)
}

func renderStandingRow(label string, wins int) string {
	return lipgloss.JoinHorizontal(lipgloss.Left,
		labelStyle.Render(label+":"),
		valueStyle.Width(8).Render(fmt.Sprintf("%d", wins)),
	)
}

// =============================================================================
// Colour Balance
// =============================================================================

func (m Model) renderColorBalance() string {
	s := m.snap
	whitePct := s.WhitePct()

	whiteValue := mutedStyle.Render("n/a")
	if s.ColorWins[protocol.Black]+s.ColorWins[protocol.White] > 0 {
		whiteValue = GetColorBalanceStyle(whitePct).Render(formatPercent(whitePct))
	}

	rows := []string{
		RenderKeyValue("Black wins", fmt.Sprintf("%.1f", s.ColorWins[protocol.Black])),
		RenderKeyValue("White wins", fmt.Sprintf("%.1f", s.ColorWins[protocol.White])),
		lipgloss.JoinHorizontal(lipgloss.Left,
			labelStyle.Render("White share:"),
			whiteValue,
		),
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("Colour Balance")}, rows...)...,
	)

	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Failures
// =============================================================================

func (m Model) hasFailures() bool {
	s := m.snap
	return s.Aborted > 0 || s.Forfeits[0] > 0 || s.Forfeits[1] > 0
}

func (m Model) renderFailures() string {
	s := m.snap
	rateStyle := GetFailureRateStyle(m.FailureRate())

	var rows []string
	for slot := 0; slot < 2; slot++ {
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Left,
			labelStyle.Render(engineLabel(m.engines[slot], slot)+":"),
			valueStyle.Render(fmt.Sprintf("%d forfeits, %d aborts", s.Forfeits[slot], s.Aborts[slot])),
		))
	}
	unattributed := s.Aborted - s.Aborts[0] - s.Aborts[1]
	if unattributed > 0 {
		rows = append(rows, RenderKeyValue("Cancelled", fmt.Sprintf("%d", unattributed)))
	}
	rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Left,
		labelStyle.Render("Failure rate:"),
		rateStyle.Render(formatPercent(m.FailureRate())),
	))

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{statusError.Render("Failures")}, rows...)...,
	)

	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Timing (detailed view)
// =============================================================================

func (m Model) renderTiming() string {
	if m.timingSource == nil {
		return ""
	}

	quantiles := []struct {
		label string
		q     float64
	}{
		{"P50", 0.50},
		{"P95", 0.95},
		{"P99", 0.99},
	}

	header := lipgloss.JoinHorizontal(lipgloss.Left,
		labelStyle.Render("Think time"),
		mutedStyle.Width(14).Render(engineLabel(m.engines[0], 0)),
		mutedStyle.Width(14).Render(engineLabel(m.engines[1], 1)),
	)
	rows := []string{header}
	for _, qq := range quantiles {
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Left,
			labelStyle.Render(qq.label+":"),
			valueStyle.Width(14).Render(stats.FormatMs(m.timingSource.ThinkQuantile(0, qq.q))),
			valueStyle.Width(14).Render(stats.FormatMs(m.timingSource.ThinkQuantile(1, qq.q))),
		))
	}

	plies := m.timingSource.PliesQuantile(0.5)
	rows = append(rows, "", RenderKeyValue("Median plies", fmt.Sprintf("%.0f", plies)))

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("Timing")}, rows...)...,
	)

	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Footer
// =============================================================================

func (m Model) renderFooter() string {
	shortcuts := []string{
		"q: quit",
		"d: toggle timing",
		"r: refresh",
	}

	left := dimStyle.Render(strings.Join(shortcuts, " │ "))

	var info []string
	if m.metricsAddr != "" {
		info = append(info, "Metrics: "+m.metricsAddr)
	}
	if m.runID != "" {
		id := m.runID
		if len(id) > 8 {
			id = id[:8]
		}
		info = append(info, "Run: "+id)
	}
	right := dimStyle.Render(strings.Join(info, " │ "))

	padding := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if padding < 1 {
		padding = 1
	}

	return footerStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Left,
			left,
			strings.Repeat(" ", padding),
			right,
		),
	)
}
