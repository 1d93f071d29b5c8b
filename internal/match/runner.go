package match

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/randomizedcoder/go-othello-arena/internal/book"
	"github.com/randomizedcoder/go-othello-arena/internal/engine"
	"github.com/randomizedcoder/go-othello-arena/internal/process"
	"github.com/randomizedcoder/go-othello-arena/internal/protocol"
)

// Engine is the per-match view of an engine process.
type Engine interface {
	WaitReady(ctx context.Context) error
	SendLastMove(last protocol.Move, remainingMs int64) error
	ReceiveMove(ctx context.Context, timeout time.Duration) (protocol.Response, error)
	Close() error
}

// Launcher spawns one engine for one side of a match.
type Launcher interface {
	Launch(ctx context.Context, inv process.Invocation) (Engine, error)
}

// ProcessLauncher launches real engine processes.
type ProcessLauncher struct {
	Options engine.Options
}

// Launch implements Launcher.
func (l ProcessLauncher) Launch(ctx context.Context, inv process.Invocation) (Engine, error) {
	h, err := engine.Start(ctx, inv, l.Options)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// stderrSource is implemented by engines that capture stderr.
type stderrSource interface {
	RecentStderr(n int) []string
}

// exitSource is implemented by engines that report their exit status.
type exitSource interface {
	ExitCode() (int, bool)
}

// Config holds match settings shared by every game of a run.
type Config struct {
	// BudgetMs is each color's total thinking time.
	BudgetMs int64

	// TimeFloor charges at least 1ms per turn.
	TimeFloor bool

	// MoveGrace is added to the mover's remaining time to form the read
	// deadline for its reply.
	MoveGrace time.Duration
}

// Spec identifies one game: its number, opening and the engine paths by color.
type Spec struct {
	Game     int
	Position book.Position
	Paths    [2]string // indexed by protocol.Color
}

// Runner plays matches. A Runner is safe for concurrent use; each Run call
// owns its engines.
type Runner struct {
	launcher Launcher
	cfg      Config
	logger   *slog.Logger

	// now is swapped in tests for a deterministic clock.
	now func() time.Time
}

// NewRunner creates a match runner.
func NewRunner(launcher Launcher, cfg Config, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		launcher: launcher,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Run plays one game to completion and returns exactly one Result. Engine
// failures never escape as errors; they become OutcomeAborted.
func (r *Runner) Run(ctx context.Context, spec Spec) Result {
	g := &game{
		runner: r,
		spec:   spec,
		logger: r.logger.With("game", spec.Game),
		state:  StateInitializing,
		result: Result{Game: spec.Game, Position: spec.Position},
	}

	started := r.now()
	g.play(ctx)
	g.result.Duration = r.now().Sub(started)

	g.teardown()
	g.recordCulpritExit()
	return g.result
}

// game is the state of one Run call.
type game struct {
	runner  *Runner
	spec    Spec
	logger  *slog.Logger
	state   State
	engines [2]Engine
	result  Result

	// exitedEarly is set when the culprit's stream closed before teardown.
	exitedEarly bool
}

func (g *game) play(ctx context.Context) {
	r := g.runner

	// First spawned plays black, second white.
	for _, color := range []protocol.Color{protocol.Black, protocol.White} {
		inv := process.Invocation{
			Path:     g.spec.Paths[color],
			Color:    color,
			Position: g.spec.Position,
		}
		e, err := r.launcher.Launch(ctx, inv)
		if err != nil {
			g.abort(color, !isCancel(err), err)
			return
		}
		g.engines[color] = e
	}

	for _, color := range []protocol.Color{protocol.Black, protocol.White} {
		if err := g.engines[color].WaitReady(ctx); err != nil {
			g.abort(color, !isCancel(err), err)
			return
		}
	}

	clock := NewClock(r.cfg.BudgetMs, r.cfg.TimeFloor)
	last := protocol.Pass
	passedLast := false
	color := protocol.Black

	for {
		g.state = StateAwaitingMove
		if err := ctx.Err(); err != nil {
			g.abort(color, false, err)
			return
		}

		e := g.engines[color]
		remaining := clock.Remaining(color)
		deadline := time.Duration(remaining)*time.Millisecond + r.cfg.MoveGrace

		start := r.now()
		if err := e.SendLastMove(last, remaining); err != nil {
			g.abort(color, true, err)
			return
		}
		resp, err := e.ReceiveMove(ctx, deadline)
		elapsed := r.now().Sub(start)
		if err != nil {
			// A reply that never came within the deadline still used the
			// mover's clock; once that is spent it is a time loss.
			if errors.Is(err, engine.ErrProtocolTimeout) && clock.Charge(color, elapsed) {
				g.result.MoveTimes[color] = append(g.result.MoveTimes[color], elapsed)
				g.logger.Info("move_timed_out", "color", color.String(), "elapsed", elapsed, "error", err)
				g.forfeit(color)
				return
			}
			g.abort(color, !isCancel(err), err)
			return
		}

		g.result.MoveTimes[color] = append(g.result.MoveTimes[color], elapsed)

		if clock.Charge(color, elapsed) {
			g.forfeit(color)
			return
		}

		g.result.Black = resp.Black
		g.result.White = resp.White
		g.result.Moves = append(g.result.Moves, resp.Move.Square())
		g.result.Turns++

		if resp.Move.IsPass() {
			if passedLast {
				g.state = StateFinished
				g.result.Outcome = OutcomeNormal
				return
			}
			passedLast = true
		} else {
			passedLast = false
		}

		last = resp.Move
		color = color.Opponent()
	}
}

// forfeit overrides the reported counts: the flagged side scores 0.
func (g *game) forfeit(color protocol.Color) {
	g.state = StateForfeited
	g.result.Outcome = OutcomeTimeForfeit
	g.result.ForfeitColor = color

	counts := [2]int{}
	counts[color] = 0
	counts[color.Opponent()] = protocol.BoardSquares
	g.result.Black = counts[protocol.Black]
	g.result.White = counts[protocol.White]
}

func (g *game) abort(color protocol.Color, attributable bool, err error) {
	g.state = StateAborted
	g.result.Outcome = OutcomeAborted
	g.result.Err = err
	g.result.Reason = err.Error()
	g.result.Culprit = color
	g.result.CulpritKnown = attributable
	g.exitedEarly = errors.Is(err, engine.ErrEngineExited)

	attrs := []any{
		"state", g.state.String(),
		"turns", g.result.Turns,
		"color", color.String(),
		"error", err,
	}
	if src, ok := g.engines[color].(stderrSource); ok {
		if lines := src.RecentStderr(10); len(lines) > 0 {
			attrs = append(attrs, "engine_stderr", lines)
		}
	}
	if attributable {
		g.logger.Warn("match_aborted", attrs...)
	} else {
		g.logger.Info("match_cancelled", attrs...)
	}
}

// recordCulpritExit notes how an aborting engine's process ended. Only an
// engine that exited before teardown asked it to quit is of interest.
func (g *game) recordCulpritExit() {
	if g.result.Outcome != OutcomeAborted || !g.result.CulpritKnown || !g.exitedEarly {
		return
	}
	src, ok := g.engines[g.result.Culprit].(exitSource)
	if !ok {
		return
	}
	code, ok := src.ExitCode()
	if !ok {
		return
	}
	g.result.CulpritExit = code
	g.result.CulpritExitKnown = true
	g.logger.Warn("aborted_engine_exit",
		"color", g.result.Culprit.String(),
		"exit_code", code,
	)
}

// teardown quits and reaps both engines on every exit path.
func (g *game) teardown() {
	var wg sync.WaitGroup
	for _, e := range g.engines {
		if e == nil {
			continue
		}
		wg.Add(1)
		go func(e Engine) {
			defer wg.Done()
			if err := e.Close(); err != nil {
				g.logger.Debug("engine_close_failed", "error", err)
			}
		}(e)
	}
	wg.Wait()
}

func isCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
