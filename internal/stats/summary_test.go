package stats

import (
	"strings"
	"testing"
	"time"
)

func TestFormatExitSummary(t *testing.T) {
	snap := Snapshot{
		Started:   10,
		Completed: 9,
		Aborted:   1,
		Win0:      5,
		Win1:      3,
		Draw:      1,
		ColorWins: [2]float64{4.5, 4.5},
		Forfeits:  [2]int{0, 2},
		Aborts:    [2]int{1, 0},
	}
	cfg := SummaryConfig{
		EngineA:     "/opt/engines/alpha",
		EngineB:     "./beta",
		Openings:    5,
		Workers:     3,
		BudgetMs:    4000,
		Duration:    90 * time.Second,
		MetricsAddr: "127.0.0.1:9100",
		ThinkP50:    [2]time.Duration{120 * time.Millisecond, 80 * time.Millisecond},
		PliesP50:    58,
	}

	out := FormatExitSummary(snap, cfg)

	for _, want := range []string{
		"othello-arena Exit Summary",
		"Run Duration:           00:01:30",
		"alpha vs beta",
		"10 started, 9 completed, 1 aborted",
		"5-3-1",
		"[61.1%]",
		"White win share:      50.0%",
		"120 ms",
		"Median game length:   58 plies",
		"http://127.0.0.1:9100/metrics",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "INTERRUPTED") {
		t.Error("complete run must not be flagged as interrupted")
	}
}

func TestFormatExitSummary_Empty(t *testing.T) {
	out := FormatExitSummary(Snapshot{}, SummaryConfig{Interrupted: true})

	if !strings.Contains(out, "INTERRUPTED") {
		t.Error("interrupted run should be flagged")
	}
	if !strings.Contains(out, "Elo difference:       n/a") {
		t.Errorf("empty run should print n/a Elo:\n%s", out)
	}
	if !strings.Contains(out, "A vs B") {
		t.Error("missing engine names should fall back to slot letters")
	}
}

func TestFormatElo(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{ComputeStat(3, 1, 0).EloDifference, "+190.8"},
		{ComputeStat(1, 3, 0).EloDifference, "-190.8"},
		{ComputeStat(4, 0, 0).EloDifference, "+inf"},
		{ComputeStat(0, 4, 0).EloDifference, "-inf"},
	}
	for _, tt := range tests {
		if got := formatElo(tt.in); got != tt.want {
			t.Errorf("formatElo(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00:00"},
		{59 * time.Second, "00:00:59"},
		{61 * time.Minute, "01:01:00"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestFormatMs(t *testing.T) {
	if got := FormatMs(1500 * time.Microsecond); got != "1 ms" {
		t.Errorf("FormatMs = %q", got)
	}
	if got := FormatMs(300 * time.Microsecond); got != "300 µs" {
		t.Errorf("FormatMs = %q", got)
	}
}

func TestFormatNumber(t *testing.T) {
	if got := FormatNumber(1500); got != "1.5K" {
		t.Errorf("FormatNumber(1500) = %q", got)
	}
	if got := FormatNumber(42); got != "42" {
		t.Errorf("FormatNumber(42) = %q", got)
	}
}
