package tui

import (
	"fmt"
	"math"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/go-othello-arena/internal/stats"
	"github.com/randomizedcoder/go-othello-arena/internal/timeseries"
)

// =============================================================================
// Messages
// =============================================================================

// TickMsg is sent periodically to update the display.
type TickMsg time.Time

// StatsMsg carries an updated snapshot.
type StatsMsg struct {
	Snapshot stats.Snapshot
}

// DoneMsg marks the tournament as finished. The dashboard stays up until
// the user quits.
type DoneMsg struct{}

// QuitMsg signals the TUI should exit.
type QuitMsg struct{}

// =============================================================================
// Sources
// =============================================================================

// StatsSource provides tournament tallies.
type StatsSource interface {
	Snapshot() stats.Snapshot
}

// TimingSource provides think-time and game-length quantiles. Optional.
type TimingSource interface {
	ThinkQuantile(slot int, q float64) time.Duration
	PliesQuantile(q float64) float64
}

// RateSource provides games-per-minute figures. Optional.
type RateSource interface {
	GetStats() timeseries.RateStats
}

// ActiveSource reports matches in progress. Optional.
type ActiveSource interface {
	ActiveMatches() int
}

// =============================================================================
// Model
// =============================================================================

// Model represents the TUI state.
type Model struct {
	// Configuration
	totalGames  int
	engines     [2]string
	metricsAddr string
	runID       string

	// Current state
	snap         stats.Snapshot
	rate         timeseries.RateStats
	active       int
	startTime    time.Time
	lastUpdate   time.Time
	detailedView bool
	done         bool

	// Display options
	width  int
	height int

	statsSource  StatsSource
	timingSource TimingSource
	rateSource   RateSource
	activeSource ActiveSource

	quitting bool
}

// Config holds TUI configuration.
type Config struct {
	TotalGames   int
	EngineA      string
	EngineB      string
	MetricsAddr  string
	RunID        string
	StatsSource  StatsSource
	TimingSource TimingSource
	RateSource   RateSource
	ActiveSource ActiveSource
}

// New creates a new TUI model.
func New(cfg Config) Model {
	return Model{
		totalGames:   cfg.TotalGames,
		engines:      [2]string{cfg.EngineA, cfg.EngineB},
		metricsAddr:  cfg.MetricsAddr,
		runID:        cfg.RunID,
		statsSource:  cfg.StatsSource,
		timingSource: cfg.TimingSource,
		rateSource:   cfg.RateSource,
		activeSource: cfg.ActiveSource,
		startTime:    time.Now(),
		lastUpdate:   time.Now(),
		width:        80,
		height:       24,
	}
}

// =============================================================================
// Bubble Tea Interface
// =============================================================================

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "d":
			m.detailedView = !m.detailedView
			return m, nil
		case "r":
			m = m.refresh()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case TickMsg:
		m = m.refresh()
		return m, tickCmd()

	case StatsMsg:
		m.snap = msg.Snapshot
		m.lastUpdate = time.Now()
		return m, nil

	case DoneMsg:
		m = m.refresh()
		m.done = true
		return m, nil

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.detailedView && m.timingSource != nil {
		return m.renderDetailedView()
	}
	return m.renderSummaryView()
}

// refresh pulls the latest figures from every configured source.
func (m Model) refresh() Model {
	if m.statsSource != nil {
		m.snap = m.statsSource.Snapshot()
	}
	if m.rateSource != nil {
		m.rate = m.rateSource.GetStats()
	}
	if m.activeSource != nil {
		m.active = m.activeSource.ActiveMatches()
	}
	m.lastUpdate = time.Now()
	return m
}

// =============================================================================
// Commands
// =============================================================================

// tickCmd returns a command that sends a tick after 500ms.
func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// =============================================================================
// Accessors
// =============================================================================

// Elapsed returns the time since the tournament started.
func (m Model) Elapsed() time.Duration {
	return time.Since(m.startTime)
}

// Finished returns the number of games that reached a result.
func (m Model) Finished() int {
	return m.snap.Completed + m.snap.Aborted
}

// TotalGames returns the number of scheduled games.
func (m Model) TotalGames() int {
	return m.totalGames
}

// Progress returns the finished share of scheduled games (0.0 to 1.0).
func (m Model) Progress() float64 {
	if m.totalGames == 0 {
		return 0
	}
	return float64(m.Finished()) / float64(m.totalGames)
}

// FailureRate returns the share of finished games lost to forfeits or aborts.
func (m Model) FailureRate() float64 {
	finished := m.Finished()
	if finished == 0 {
		return 0
	}
	failed := m.snap.Aborted + m.snap.Forfeits[0] + m.snap.Forfeits[1]
	return float64(failed) / float64(finished)
}

// Done reports whether the tournament has finished.
func (m Model) Done() bool {
	return m.done
}

// =============================================================================
// Helper for external use
// =============================================================================

// SendStats sends a snapshot to the TUI.
func SendStats(p *tea.Program, snap stats.Snapshot) {
	if p != nil {
		p.Send(StatsMsg{Snapshot: snap})
	}
}

// SendDone tells the TUI the tournament is over.
func SendDone(p *tea.Program) {
	if p != nil {
		p.Send(DoneMsg{})
	}
}

// SendQuit sends a quit message to the TUI.
func SendQuit(p *tea.Program) {
	if p != nil {
		p.Send(QuitMsg{})
	}
}

// =============================================================================
// Formatting Helpers (used by view.go)
// =============================================================================

// engineLabel shortens an engine path to its base name.
func engineLabel(path string, slot int) string {
	if path == "" {
		return fmt.Sprintf("engine %d", slot)
	}
	return filepath.Base(path)
}

// formatPercent formats a fraction as a percentage.
func formatPercent(value float64) string {
	if math.IsNaN(value) {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", value*100)
}

// formatElo formats an Elo difference with sign.
func formatElo(elo float64) string {
	switch {
	case math.IsNaN(elo):
		return "n/a"
	case math.IsInf(elo, 1):
		return "+inf"
	case math.IsInf(elo, -1):
		return "-inf"
	default:
		return fmt.Sprintf("%+.1f", elo)
	}
}

// formatGamesPerMinute formats a games/min rate.
func formatGamesPerMinute(rate float64) string {
	if rate >= 100 {
		return fmt.Sprintf("%.0f/min", rate)
	}
	return fmt.Sprintf("%.1f/min", rate)
}
