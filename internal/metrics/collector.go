// Package metrics provides Prometheus metrics for othello-arena.
//
// Metrics are grouped the way a tournament dashboard reads them:
//   - Panel 1: run overview (info, scheduled/started games, active matches)
//   - Panel 2: standings (slot wins, draws, Elo, LOS, colour balance)
//   - Panel 3: failures (forfeits and aborts per slot)
//   - Panel 4: timing (move latency, game duration and length)
package metrics

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/randomizedcoder/go-othello-arena/internal/engine"
	"github.com/randomizedcoder/go-othello-arena/internal/match"
	"github.com/randomizedcoder/go-othello-arena/internal/protocol"
	"github.com/randomizedcoder/go-othello-arena/internal/stats"
)

// slotLabels are the label values for slot 0 and slot 1.
var slotLabels = [2]string{"0", "1"}

// CollectorConfig holds the run facts exported on arena_info.
type CollectorConfig struct {
	Version  string
	RunID    string
	EngineA  string
	EngineB  string
	Workers  int
	BudgetMs int64
}

// Collector owns the arena metrics. Each collector registers its own
// instances so tests can use isolated registries.
type Collector struct {
	// --- Panel 1: Run Overview ---
	info           *prometheus.GaugeVec
	gamesScheduled prometheus.Gauge
	gamesStarted   prometheus.Counter
	activeMatches  prometheus.Gauge
	elapsedSeconds prometheus.Gauge
	gamesPerMinute prometheus.Gauge
	budgetSeconds  prometheus.Gauge
	workers        prometheus.Gauge

	// --- Panel 2: Standings ---
	gamesTotal    *prometheus.CounterVec
	slotWins      *prometheus.CounterVec
	draws         prometheus.Counter
	colorWins     *prometheus.GaugeVec
	whiteWinShare prometheus.Gauge
	eloDifference prometheus.Gauge
	los           prometheus.Gauge

	// --- Panel 3: Failures ---
	forfeits *prometheus.CounterVec
	aborts   *prometheus.CounterVec

	// --- Panel 4: Timing ---
	moveSeconds *prometheus.HistogramVec
	gameSeconds prometheus.Histogram
	gamePlies   prometheus.Histogram

	startTime time.Time
}

// NewCollector creates a collector on the default registry.
func NewCollector(cfg CollectorConfig) *Collector {
	return NewCollectorWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewCollectorWithRegistry creates a collector with a custom registry.
// Useful for testing.
func NewCollectorWithRegistry(cfg CollectorConfig, registry prometheus.Registerer) *Collector {
	c := &Collector{
		info: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "arena_info",
				Help: "Information about the tournament run (value always 1)",
			},
			[]string{"version", "run_id", "engine_a", "engine_b"},
		),
		gamesScheduled: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arena_games_scheduled",
			Help: "Games the scheduler will play (2 per opening)",
		}),
		gamesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arena_games_started_total",
			Help: "Games started",
		}),
		activeMatches: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arena_active_matches",
			Help: "Matches currently in progress",
		}),
		elapsedSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arena_elapsed_seconds",
			Help: "Seconds since the tournament started",
		}),
		gamesPerMinute: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arena_games_per_minute",
			Help: "Completed games per minute over the recent window",
		}),
		budgetSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arena_time_budget_seconds",
			Help: "Per-side thinking time per game",
		}),
		workers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arena_workers",
			Help: "Configured number of concurrent workers",
		}),

		gamesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arena_games_total",
				Help: "Finished games by outcome (normal, time_forfeit, aborted)",
			},
			[]string{"outcome"},
		),
		slotWins: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arena_slot_wins_total",
				Help: "Wins by engine slot (0 = first engine)",
			},
			[]string{"slot"},
		),
		draws: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arena_draws_total",
			Help: "Drawn games",
		}),
		colorWins: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "arena_color_wins",
				Help: "Wins by color, draws count half to each",
			},
			[]string{"color"},
		),
		whiteWinShare: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arena_white_win_share",
			Help: "White's share of colour wins (0.0 to 1.0)",
		}),
		eloDifference: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arena_elo_difference",
			Help: "Elo difference of slot 0 over slot 1 (NaN until decisive)",
		}),
		los: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arena_los",
			Help: "Likelihood of superiority of slot 0 (0.0 to 1.0)",
		}),

		forfeits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arena_time_forfeits_total",
				Help: "Time forfeits by losing slot",
			},
			[]string{"slot"},
		),
		aborts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arena_aborts_total",
				Help: "Aborted matches by responsible slot and reason",
			},
			[]string{"slot", "reason"},
		),

		moveSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "arena_move_duration_seconds",
				Help: "Wall-clock time per move including protocol round trip",
				Buckets: []float64{
					0.001, 0.005, 0.01, 0.025, 0.05,
					0.1, 0.25, 0.5, 1, 2.5, 5,
				},
			},
			[]string{"slot"},
		),
		gameSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "arena_game_duration_seconds",
			Help:    "Wall-clock time per game including engine startup",
			Buckets: []float64{0.5, 1, 2, 4, 8, 15, 30, 60, 120},
		}),
		gamePlies: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "arena_game_plies",
			Help:    "Accepted moves (including passes) per completed game",
			Buckets: prometheus.LinearBuckets(10, 10, 7),
		}),

		startTime: time.Now(),
	}

	registry.MustRegister(
		// Panel 1: Run Overview
		c.info,
		c.gamesScheduled,
		c.gamesStarted,
		c.activeMatches,
		c.elapsedSeconds,
		c.gamesPerMinute,
		c.budgetSeconds,
		c.workers,

		// Panel 2: Standings
		c.gamesTotal,
		c.slotWins,
		c.draws,
		c.colorWins,
		c.whiteWinShare,
		c.eloDifference,
		c.los,

		// Panel 3: Failures
		c.forfeits,
		c.aborts,

		// Panel 4: Timing
		c.moveSeconds,
		c.gameSeconds,
		c.gamePlies,
	)

	// Set initial values
	c.info.WithLabelValues(cfg.Version, cfg.RunID, cfg.EngineA, cfg.EngineB).Set(1)
	c.budgetSeconds.Set(float64(cfg.BudgetMs) / 1000)
	c.workers.Set(float64(cfg.Workers))
	c.eloDifference.Set(math.NaN())
	c.los.Set(math.NaN())
	for _, slot := range slotLabels {
		c.slotWins.WithLabelValues(slot)
		c.forfeits.WithLabelValues(slot)
	}
	for _, outcome := range []match.Outcome{match.OutcomeNormal, match.OutcomeTimeForfeit, match.OutcomeAborted} {
		c.gamesTotal.WithLabelValues(outcome.String())
	}

	return c
}

// =============================================================================
// Update Methods
// =============================================================================

// SetScheduled records how many games the run will play.
func (c *Collector) SetScheduled(games int) {
	c.gamesScheduled.Set(float64(games))
}

// GameStarted marks a match as in progress.
func (c *Collector) GameStarted() {
	c.gamesStarted.Inc()
	c.activeMatches.Inc()
}

// RecordResult folds a finished match into the counters. slot0Color is the
// color the slot 0 engine played.
func (c *Collector) RecordResult(res match.Result, slot0Color protocol.Color) {
	c.activeMatches.Dec()
	c.gamesTotal.WithLabelValues(res.Outcome.String()).Inc()
	c.gameSeconds.Observe(res.Duration.Seconds())

	slotOf := func(color protocol.Color) string {
		if color == slot0Color {
			return slotLabels[0]
		}
		return slotLabels[1]
	}

	for _, color := range []protocol.Color{protocol.Black, protocol.White} {
		h := c.moveSeconds.WithLabelValues(slotOf(color))
		for _, d := range res.MoveTimes[color] {
			h.Observe(d.Seconds())
		}
	}

	switch res.Outcome {
	case match.OutcomeAborted:
		slot := "unknown"
		if res.CulpritKnown {
			slot = slotOf(res.Culprit)
		}
		c.aborts.WithLabelValues(slot, AbortReason(res.Err)).Inc()
		return
	case match.OutcomeTimeForfeit:
		c.forfeits.WithLabelValues(slotOf(res.ForfeitColor)).Inc()
	}

	c.gamePlies.Observe(float64(res.Turns))

	counts := [2]int{res.Black, res.White}
	slot0 := counts[slot0Color]
	slot1 := counts[slot0Color.Opponent()]
	switch {
	case slot0 > slot1:
		c.slotWins.WithLabelValues(slotLabels[0]).Inc()
	case slot0 < slot1:
		c.slotWins.WithLabelValues(slotLabels[1]).Inc()
	default:
		c.draws.Inc()
	}
}

// UpdateStandings copies the aggregator's derived standings into gauges.
func (c *Collector) UpdateStandings(s stats.Snapshot, gamesPerMinute float64) {
	c.colorWins.WithLabelValues(protocol.Black.String()).Set(s.ColorWins[protocol.Black])
	c.colorWins.WithLabelValues(protocol.White.String()).Set(s.ColorWins[protocol.White])
	c.whiteWinShare.Set(s.WhitePct())

	stat := s.Stat()
	c.eloDifference.Set(stat.EloDifference)
	c.los.Set(stat.LOS)

	c.gamesPerMinute.Set(gamesPerMinute)
	c.elapsedSeconds.Set(time.Since(c.startTime).Seconds())
}

// ActiveMatches returns the current in-progress gauge value.
// Used by the TUI and tests.
func (c *Collector) ActiveMatches() int {
	return int(gaugeValue(c.activeMatches))
}

func gaugeValue(g prometheus.Gauge) float64 {
	m := metricOf(g)
	if m == nil || m.Gauge == nil {
		return 0
	}
	return m.Gauge.GetValue()
}

// AbortReason maps an abort cause to a low-cardinality label value.
func AbortReason(err error) string {
	switch {
	case err == nil:
		return "unknown"
	case errors.Is(err, engine.ErrSpawn):
		return "spawn"
	case errors.Is(err, engine.ErrProtocolTimeout):
		return "timeout"
	case errors.Is(err, engine.ErrEngineExited):
		return "exited"
	case errors.Is(err, engine.ErrInvalidResponse):
		return "invalid_response"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "other"
	}
}
