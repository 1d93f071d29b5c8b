// Package stats folds match results into tournament tallies.
//
// Every update, the matching results-stream line and the progress log event
// happen inside one critical section, so concurrent workers can never
// interleave a line or observe a partial W-L-D triple.
package stats

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/influxdata/tdigest"

	"github.com/randomizedcoder/go-othello-arena/internal/match"
	"github.com/randomizedcoder/go-othello-arena/internal/protocol"
)

// DefaultBalanceEvery is how often (in started games) the colour-balance
// diagnostic is logged.
const DefaultBalanceEvery = 100

// Snapshot is a consistent copy of the tallies.
type Snapshot struct {
	Timestamp time.Time
	Elapsed   time.Duration

	Started   int
	Completed int
	Aborted   int

	// Slot tallies: slot 0 is the first engine on the command line.
	Win0 int
	Win1 int
	Draw int

	// ColorWins counts wins by color; a draw adds 0.5 to each.
	ColorWins [2]float64

	// Forfeits and Aborts are charged to the responsible slot.
	Forfeits [2]int
	Aborts   [2]int
}

// WhitePct returns white's share of colour wins, or 0 before any result.
func (s Snapshot) WhitePct() float64 {
	total := s.ColorWins[protocol.Black] + s.ColorWins[protocol.White]
	if total == 0 {
		return 0
	}
	return s.ColorWins[protocol.White] / total
}

// Score returns the "W-L-D" string from slot 0's perspective.
func (s Snapshot) Score() string {
	return fmt.Sprintf("%d-%d-%d", s.Win0, s.Win1, s.Draw)
}

// Stat returns the match statistics from slot 0's perspective.
func (s Snapshot) Stat() GameStatistics {
	return ComputeStat(s.Win0, s.Win1, s.Draw)
}

// Aggregator owns the shared tallies.
type Aggregator struct {
	mu sync.Mutex

	out          io.Writer
	logger       *slog.Logger
	startTime    time.Time
	balanceEvery int

	started   int
	completed int
	aborted   int
	win0      int
	win1      int
	draw      int
	colorWins [2]float64
	forfeits  [2]int
	aborts    [2]int

	// Per-slot think time (ms) and per-game length (plies).
	thinkDigest [2]*tdigest.TDigest
	pliesDigest *tdigest.TDigest
}

// NewAggregator creates an aggregator writing result lines to out.
func NewAggregator(out io.Writer, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		out:          out,
		logger:       logger,
		startTime:    time.Now(),
		balanceEvery: DefaultBalanceEvery,
		thinkDigest: [2]*tdigest.TDigest{
			tdigest.NewWithCompression(100),
			tdigest.NewWithCompression(100),
		},
		pliesDigest: tdigest.NewWithCompression(100),
	}
}

// StartGame takes the next global game number. Every balanceEvery-th game
// also logs the white win percentage.
func (a *Aggregator) StartGame() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.started++
	n := a.started

	if n%a.balanceEvery == 0 {
		total := a.colorWins[protocol.Black] + a.colorWins[protocol.White]
		if total > 0 {
			whitePct := a.colorWins[protocol.White] / total
			a.logger.Info("color_balance",
				"game", n,
				"white_pct", whitePct,
				"line", fmt.Sprintf("White %.1f%%", whitePct*100),
			)
		}
	}
	a.logger.Info("game_starting", "game", n, "line", fmt.Sprintf("Starting game %d", n))
	return n
}

// Record folds one result into the tallies. slot0Color is the color the
// slot 0 engine played in this game. The returned snapshot reflects the
// update. An error means the results stream could not be written; the
// tallies are updated regardless.
func (a *Aggregator) Record(res match.Result, slot0Color protocol.Color) (Snapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	slotOf := func(c protocol.Color) int {
		if c == slot0Color {
			return 0
		}
		return 1
	}

	counts := [2]int{res.Black, res.White}

	if res.Completed() {
		a.completed++

		slot0 := counts[slot0Color]
		slot1 := counts[slot0Color.Opponent()]
		switch {
		case slot0 > slot1:
			a.win0++
		case slot0 < slot1:
			a.win1++
		default:
			a.draw++
		}

		switch {
		case res.Black > res.White:
			a.colorWins[protocol.Black]++
		case res.Black < res.White:
			a.colorWins[protocol.White]++
		default:
			a.colorWins[protocol.Black] += 0.5
			a.colorWins[protocol.White] += 0.5
		}

		if res.Outcome == match.OutcomeTimeForfeit {
			a.forfeits[slotOf(res.ForfeitColor)]++
		}
		a.pliesDigest.Add(float64(res.Turns), 1)
	} else {
		a.aborted++
		if res.CulpritKnown {
			a.aborts[slotOf(res.Culprit)]++
		}
	}

	for _, color := range []protocol.Color{protocol.Black, protocol.White} {
		d := a.thinkDigest[slotOf(color)]
		for _, t := range res.MoveTimes[color] {
			d.Add(float64(t.Microseconds())/1000, 1)
		}
	}

	_, err := fmt.Fprintln(a.out, res.Line())

	snap := a.snapshotLocked()
	a.logger.Info("game_finished",
		"game", res.Game,
		"score", snap.Score(),
		"outcome", res.Outcome.String(),
		"result", res.Line(),
		"line", fmt.Sprintf("Game %d finished: %s", res.Game, snap.Score()),
	)

	if err != nil {
		return snap, fmt.Errorf("write result: %w", err)
	}
	return snap, nil
}

// Snapshot returns a consistent copy of the tallies.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

func (a *Aggregator) snapshotLocked() Snapshot {
	now := time.Now()
	return Snapshot{
		Timestamp: now,
		Elapsed:   now.Sub(a.startTime),
		Started:   a.started,
		Completed: a.completed,
		Aborted:   a.aborted,
		Win0:      a.win0,
		Win1:      a.win1,
		Draw:      a.draw,
		ColorWins: a.colorWins,
		Forfeits:  a.forfeits,
		Aborts:    a.aborts,
	}
}

// ThinkQuantile returns the q-quantile of a slot's per-move think time.
func (a *Aggregator) ThinkQuantile(slot int, q float64) time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.thinkDigest[slot].Count() == 0 {
		return 0
	}
	ms := a.thinkDigest[slot].Quantile(q)
	return time.Duration(ms * float64(time.Millisecond))
}

// PliesQuantile returns the q-quantile of completed game length in plies.
func (a *Aggregator) PliesQuantile(q float64) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pliesDigest.Count() == 0 {
		return 0
	}
	return a.pliesDigest.Quantile(q)
}

// StartTime returns when the aggregator was created.
func (a *Aggregator) StartTime() time.Time {
	return a.startTime
}
