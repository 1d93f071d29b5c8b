package metrics

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/randomizedcoder/go-othello-arena/internal/engine"
	"github.com/randomizedcoder/go-othello-arena/internal/match"
	"github.com/randomizedcoder/go-othello-arena/internal/protocol"
	"github.com/randomizedcoder/go-othello-arena/internal/stats"
)

// =============================================================================
// Test Helpers
// =============================================================================

// newTestCollector creates a collector with a test registry.
func newTestCollector(t *testing.T) (*Collector, *prometheus.Registry) {
	t.Helper()
	registry := prometheus.NewRegistry()
	c := NewCollectorWithRegistry(CollectorConfig{
		Version:  "test",
		RunID:    "run-1",
		EngineA:  "./a",
		EngineB:  "./b",
		Workers:  4,
		BudgetMs: 8000,
	}, registry)
	return c, registry
}

func normalResult(black, white int) match.Result {
	return match.Result{
		Outcome: match.OutcomeNormal,
		Black:   black,
		White:   white,
		Turns:   60,
		MoveTimes: [2][]time.Duration{
			{10 * time.Millisecond, 20 * time.Millisecond},
			{30 * time.Millisecond},
		},
		Duration: 2 * time.Second,
	}
}

// =============================================================================
// Tests: NewCollector
// =============================================================================

func TestNewCollector_InitialValues(t *testing.T) {
	c, registry := newTestCollector(t)

	if got := testutil.ToFloat64(c.info.WithLabelValues("test", "run-1", "./a", "./b")); got != 1 {
		t.Errorf("arena_info = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.budgetSeconds); got != 8 {
		t.Errorf("arena_time_budget_seconds = %v, want 8", got)
	}
	if got := testutil.ToFloat64(c.workers); got != 4 {
		t.Errorf("arena_workers = %v, want 4", got)
	}
	if got := testutil.ToFloat64(c.eloDifference); !math.IsNaN(got) {
		t.Errorf("arena_elo_difference = %v, want NaN before any game", got)
	}

	// Outcome and slot series exist at zero so dashboards see them at once.
	if n := testutil.CollectAndCount(c.gamesTotal); n != 3 {
		t.Errorf("arena_games_total series = %d, want 3", n)
	}
	if n := testutil.CollectAndCount(c.slotWins); n != 2 {
		t.Errorf("arena_slot_wins_total series = %d, want 2", n)
	}

	if _, err := registry.Gather(); err != nil {
		t.Errorf("Gather() error: %v", err)
	}
}

func TestNewCollector_DuplicateRegistrationPanics(t *testing.T) {
	registry := prometheus.NewRegistry()
	NewCollectorWithRegistry(CollectorConfig{}, registry)

	defer func() {
		if recover() == nil {
			t.Error("second registration on the same registry should panic")
		}
	}()
	NewCollectorWithRegistry(CollectorConfig{}, registry)
}

// =============================================================================
// Tests: RecordResult
// =============================================================================

func TestCollector_GameStartedAndRecorded(t *testing.T) {
	c, _ := newTestCollector(t)

	c.SetScheduled(10)
	c.GameStarted()
	c.GameStarted()
	if got := c.ActiveMatches(); got != 2 {
		t.Errorf("ActiveMatches() = %d, want 2", got)
	}

	c.RecordResult(normalResult(40, 24), protocol.Black)
	if got := c.ActiveMatches(); got != 1 {
		t.Errorf("ActiveMatches() = %d, want 1", got)
	}
	if got := testutil.ToFloat64(c.gamesStarted); got != 2 {
		t.Errorf("arena_games_started_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.gamesScheduled); got != 10 {
		t.Errorf("arena_games_scheduled = %v, want 10", got)
	}
}

func TestCollector_RecordResult(t *testing.T) {
	tests := []struct {
		name        string
		res         match.Result
		slot0Color  protocol.Color
		wantWin0    float64
		wantWin1    float64
		wantDraws   float64
		wantOutcome string
	}{
		{
			name:        "slot 0 wins as black",
			res:         normalResult(40, 24),
			slot0Color:  protocol.Black,
			wantWin0:    1,
			wantOutcome: "normal",
		},
		{
			name:        "slot 1 wins as black",
			res:         normalResult(40, 24),
			slot0Color:  protocol.White,
			wantWin1:    1,
			wantOutcome: "normal",
		},
		{
			name:        "draw",
			res:         normalResult(32, 32),
			slot0Color:  protocol.Black,
			wantDraws:   1,
			wantOutcome: "normal",
		},
		{
			name: "white flags",
			res: match.Result{
				Outcome:      match.OutcomeTimeForfeit,
				ForfeitColor: protocol.White,
				Black:        64,
				White:        0,
				Turns:        12,
			},
			slot0Color:  protocol.White,
			wantWin1:    1,
			wantOutcome: "time_forfeit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestCollector(t)
			c.GameStarted()
			c.RecordResult(tt.res, tt.slot0Color)

			if got := testutil.ToFloat64(c.slotWins.WithLabelValues("0")); got != tt.wantWin0 {
				t.Errorf("slot 0 wins = %v, want %v", got, tt.wantWin0)
			}
			if got := testutil.ToFloat64(c.slotWins.WithLabelValues("1")); got != tt.wantWin1 {
				t.Errorf("slot 1 wins = %v, want %v", got, tt.wantWin1)
			}
			if got := testutil.ToFloat64(c.draws); got != tt.wantDraws {
				t.Errorf("draws = %v, want %v", got, tt.wantDraws)
			}
			if got := testutil.ToFloat64(c.gamesTotal.WithLabelValues(tt.wantOutcome)); got != 1 {
				t.Errorf("games_total{outcome=%q} = %v, want 1", tt.wantOutcome, got)
			}
		})
	}
}

func TestCollector_RecordResult_Forfeit(t *testing.T) {
	c, _ := newTestCollector(t)
	c.GameStarted()
	c.RecordResult(match.Result{
		Outcome:      match.OutcomeTimeForfeit,
		ForfeitColor: protocol.Black,
		White:        64,
	}, protocol.Black)

	if got := testutil.ToFloat64(c.forfeits.WithLabelValues("0")); got != 1 {
		t.Errorf("slot 0 forfeits = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.forfeits.WithLabelValues("1")); got != 0 {
		t.Errorf("slot 1 forfeits = %v, want 0", got)
	}
}

func TestCollector_RecordResult_Aborted(t *testing.T) {
	c, _ := newTestCollector(t)
	c.GameStarted()

	timeout := &engine.OpError{Op: "receive", Color: protocol.White, Err: engine.ErrProtocolTimeout}
	c.RecordResult(match.Result{
		Outcome:      match.OutcomeAborted,
		Culprit:      protocol.White,
		CulpritKnown: true,
		Err:          timeout,
	}, protocol.Black)

	c.GameStarted()
	c.RecordResult(match.Result{
		Outcome: match.OutcomeAborted,
		Err:     context.Canceled,
	}, protocol.Black)

	if got := testutil.ToFloat64(c.aborts.WithLabelValues("1", "timeout")); got != 1 {
		t.Errorf("aborts{slot=1,reason=timeout} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.aborts.WithLabelValues("unknown", "cancelled")); got != 1 {
		t.Errorf("aborts{slot=unknown,reason=cancelled} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.gamesTotal.WithLabelValues("aborted")); got != 2 {
		t.Errorf("games_total{outcome=aborted} = %v, want 2", got)
	}
	// Aborted games never score.
	for _, slot := range slotLabels {
		if got := testutil.ToFloat64(c.slotWins.WithLabelValues(slot)); got != 0 {
			t.Errorf("slot %s wins = %v, want 0", slot, got)
		}
	}
	if got := testutil.ToFloat64(c.draws); got != 0 {
		t.Errorf("draws = %v, want 0", got)
	}
}

func TestCollector_MoveHistogramBySlot(t *testing.T) {
	c, registry := newTestCollector(t)
	c.GameStarted()
	// slot 0 plays white: one white move, two black moves.
	c.RecordResult(normalResult(40, 24), protocol.White)

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	counts := map[string]uint64{}
	for _, mf := range families {
		if mf.GetName() != "arena_move_duration_seconds" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "slot" {
					counts[lp.GetValue()] = m.GetHistogram().GetSampleCount()
				}
			}
		}
	}
	if counts["0"] != 1 || counts["1"] != 2 {
		t.Errorf("move samples by slot = %v, want 0:1 1:2", counts)
	}
}

// =============================================================================
// Tests: UpdateStandings
// =============================================================================

func TestCollector_UpdateStandings(t *testing.T) {
	c, _ := newTestCollector(t)

	snap := stats.Snapshot{
		Win0:      3,
		Win1:      1,
		ColorWins: [2]float64{1, 3},
	}
	c.UpdateStandings(snap, 12.5)

	if got := testutil.ToFloat64(c.whiteWinShare); got != 0.75 {
		t.Errorf("arena_white_win_share = %v, want 0.75", got)
	}
	if got := testutil.ToFloat64(c.colorWins.WithLabelValues("white")); got != 3 {
		t.Errorf("arena_color_wins{color=white} = %v, want 3", got)
	}
	if got := testutil.ToFloat64(c.gamesPerMinute); got != 12.5 {
		t.Errorf("arena_games_per_minute = %v, want 12.5", got)
	}

	want := stats.ComputeStat(3, 1, 0)
	if got := testutil.ToFloat64(c.eloDifference); math.Abs(got-want.EloDifference) > 1e-9 {
		t.Errorf("arena_elo_difference = %v, want %v", got, want.EloDifference)
	}
	if got := testutil.ToFloat64(c.los); math.Abs(got-want.LOS) > 1e-9 {
		t.Errorf("arena_los = %v, want %v", got, want.LOS)
	}
}

// =============================================================================
// Tests: AbortReason
// =============================================================================

func TestAbortReason(t *testing.T) {
	wrap := func(err error) error {
		return &engine.OpError{Op: "receive", Color: protocol.Black, Path: "./e", Err: err}
	}

	tests := []struct {
		err  error
		want string
	}{
		{nil, "unknown"},
		{wrap(fmt.Errorf("%w: no such file", engine.ErrSpawn)), "spawn"},
		{wrap(engine.ErrProtocolTimeout), "timeout"},
		{wrap(engine.ErrEngineExited), "exited"},
		{wrap(engine.ErrInvalidResponse), "invalid_response"},
		{context.Canceled, "cancelled"},
		{fmt.Errorf("handshake: %w", context.DeadlineExceeded), "cancelled"},
		{errors.New("boom"), "other"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := AbortReason(tt.err); got != tt.want {
				t.Errorf("AbortReason(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}
