package stats

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"
)

// SummaryConfig holds the run facts the exit summary reports alongside the
// tallies.
type SummaryConfig struct {
	// EngineA and EngineB are slot 0 and slot 1.
	EngineA string
	EngineB string

	Openings int
	Workers  int
	BudgetMs int64
	Duration time.Duration

	// Interrupted is set when the run was cancelled before every game ran.
	Interrupted bool

	// MetricsAddr is the Prometheus endpoint address, if enabled.
	MetricsAddr string

	// ThinkP50/P95/P99 are per-slot move time percentiles.
	ThinkP50 [2]time.Duration
	ThinkP95 [2]time.Duration
	ThinkP99 [2]time.Duration

	// PliesP50 is the median completed game length.
	PliesP50 float64
}

// SummaryConfigFrom fills the percentile fields from an aggregator.
func (a *Aggregator) SummaryConfigFrom(cfg SummaryConfig) SummaryConfig {
	for slot := 0; slot < 2; slot++ {
		cfg.ThinkP50[slot] = a.ThinkQuantile(slot, 0.50)
		cfg.ThinkP95[slot] = a.ThinkQuantile(slot, 0.95)
		cfg.ThinkP99[slot] = a.ThinkQuantile(slot, 0.99)
	}
	cfg.PliesP50 = a.PliesQuantile(0.50)
	return cfg
}

const (
	heavyRule = "═══════════════════════════════════════════════════════════════════════════════\n"
	lightRule = "───────────────────────────────────────────────────────────────────────────────\n"
)

// FormatExitSummary formats the final standings for display at exit.
func FormatExitSummary(s Snapshot, cfg SummaryConfig) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(heavyRule)
	b.WriteString("                          othello-arena Exit Summary\n")
	b.WriteString(heavyRule + "\n")

	if cfg.Interrupted {
		b.WriteString("⚠️  INTERRUPTED: not every scheduled game was played\n\n")
	}

	nameA := engineName(cfg.EngineA, "A")
	nameB := engineName(cfg.EngineB, "B")

	fmt.Fprintf(&b, "Run Duration:           %s\n", FormatDuration(cfg.Duration))
	fmt.Fprintf(&b, "Engines:                %s vs %s\n", nameA, nameB)
	fmt.Fprintf(&b, "Openings:               %d (x2 colours)\n", cfg.Openings)
	fmt.Fprintf(&b, "Workers:                %d\n", cfg.Workers)
	fmt.Fprintf(&b, "Time per side:          %s\n", FormatMs(time.Duration(cfg.BudgetMs)*time.Millisecond))
	fmt.Fprintf(&b, "Games:                  %d started, %d completed, %d aborted\n\n",
		s.Started, s.Completed, s.Aborted)

	writeSection(&b, "Standings")

	stat := s.Stat()
	fmt.Fprintf(&b, "  Score (%s):  %s  [%s]\n", nameA, s.Score(), formatPct(stat.WinningFraction))
	fmt.Fprintf(&b, "  Elo difference:       %s\n", formatElo(stat.EloDifference))
	fmt.Fprintf(&b, "  LOS:                  %s\n", formatPct(stat.LOS))
	fmt.Fprintf(&b, "  White win share:      %s\n\n", formatPct(s.WhitePct()))

	writeSection(&b, "Per Engine")

	fmt.Fprintf(&b, "  %-20s %10s %10s %10s %10s %10s\n", "Engine", "Forfeits", "Aborts", "Move P50", "Move P95", "Move P99")
	b.WriteString("  " + strings.Repeat("─", 75) + "\n")
	for slot, name := range []string{nameA, nameB} {
		fmt.Fprintf(&b, "  %-20s %10d %10d %10s %10s %10s\n",
			truncate(name, 20),
			s.Forfeits[slot],
			s.Aborts[slot],
			FormatMs(cfg.ThinkP50[slot]),
			FormatMs(cfg.ThinkP95[slot]),
			FormatMs(cfg.ThinkP99[slot]),
		)
	}
	if unattributed := s.Aborted - s.Aborts[0] - s.Aborts[1]; unattributed > 0 {
		fmt.Fprintf(&b, "\n  Cancelled/unattributed aborts: %d\n", unattributed)
	}
	if cfg.PliesP50 > 0 {
		fmt.Fprintf(&b, "  Median game length:   %.0f plies\n", cfg.PliesP50)
	}
	b.WriteString("\n")

	if cfg.MetricsAddr != "" {
		fmt.Fprintf(&b, "Metrics endpoint was: http://%s/metrics\n", cfg.MetricsAddr)
	}

	b.WriteString(heavyRule)
	return b.String()
}

func writeSection(b *strings.Builder, title string) {
	pad := (79 - len(title)) / 2
	b.WriteString(lightRule)
	b.WriteString(strings.Repeat(" ", pad) + title + "\n")
	b.WriteString(lightRule + "\n")
}

func engineName(path, fallback string) string {
	if path == "" {
		return fallback
	}
	return filepath.Base(path)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

func formatPct(f float64) string {
	if math.IsNaN(f) {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", f*100)
}

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

// =============================================================================
// Formatting Helper Functions (exported for reuse)
// =============================================================================

// FormatDuration formats a duration as HH:MM:SS.
func FormatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// FormatNumber formats a number with K/M suffixes for readability.
func FormatNumber(n int64) string {
	if n >= 1_000_000 {
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	}
	if n >= 1_000 {
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	}
	return fmt.Sprintf("%d", n)
}

// FormatMs formats a duration as milliseconds.
func FormatMs(d time.Duration) string {
	ms := d.Milliseconds()
	if ms == 0 && d > 0 {
		return fmt.Sprintf("%d µs", d.Microseconds())
	}
	return fmt.Sprintf("%d ms", ms)
}
