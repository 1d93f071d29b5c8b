package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/randomizedcoder/go-othello-arena/internal/book"
	"github.com/randomizedcoder/go-othello-arena/internal/match"
	"github.com/randomizedcoder/go-othello-arena/internal/protocol"
	"github.com/randomizedcoder/go-othello-arena/internal/stats"
)

// Matcher plays one game. *match.Runner implements it.
type Matcher interface {
	Run(ctx context.Context, spec match.Spec) match.Result
}

// SchedulerCallbacks contains optional callbacks for scheduler events.
type SchedulerCallbacks struct {
	// OnGameStart is called after a game number is taken, before spawning.
	OnGameStart func(game int)

	// OnGameFinished is called after the result is recorded.
	OnGameFinished func(res match.Result, slot0Color protocol.Color, snap stats.Snapshot)
}

// SchedulerConfig holds the Scheduler's collaborators.
type SchedulerConfig struct {
	Book       *book.Book
	Engines    [2]string // slot order
	Workers    int
	Shuffle    *ShuffleSource
	Matcher    Matcher
	Aggregator *stats.Aggregator
	Callbacks  SchedulerCallbacks
	Logger     *slog.Logger
}

// Scheduler partitions the book across workers and plays every opening
// twice, once per colour assignment.
type Scheduler struct {
	book       *book.Book
	engines    [2]string
	workers    int
	shuffle    *ShuffleSource
	matcher    Matcher
	aggregator *stats.Aggregator
	callbacks  SchedulerCallbacks
	logger     *slog.Logger
}

// NewScheduler creates a scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	shuffle := cfg.Shuffle
	if shuffle == nil {
		shuffle = NewShuffleSourceFromTime()
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	return &Scheduler{
		book:       cfg.Book,
		engines:    cfg.Engines,
		workers:    workers,
		shuffle:    shuffle,
		matcher:    cfg.Matcher,
		aggregator: cfg.Aggregator,
		callbacks:  cfg.Callbacks,
		logger:     logger,
	}
}

// TotalGames returns how many games a full run plays.
func (s *Scheduler) TotalGames() int {
	return 2 * s.book.Len()
}

// Run starts every worker and waits for them. It returns ctx's error when
// cancelled, or the first reporting failure.
func (s *Scheduler) Run(ctx context.Context) error {
	ranges := s.book.Partition(s.workers)

	g, ctx := errgroup.WithContext(ctx)
	for w, r := range ranges {
		if r.Len() == 0 {
			continue
		}
		w, r := w, r
		g.Go(func() error {
			return s.runWorker(ctx, w, r)
		})
	}
	return g.Wait()
}

func (s *Scheduler) runWorker(ctx context.Context, worker int, r book.Range) error {
	logger := s.logger.With("worker", worker)
	logger.Debug("worker_starting", "start", r.Start, "end", r.End)

	for _, idx := range s.shuffle.Order(worker, r) {
		pos := s.book.At(idx)

		// Same opening, colours swapped on the second game.
		for _, slot0Color := range []protocol.Color{protocol.Black, protocol.White} {
			if err := ctx.Err(); err != nil {
				logger.Debug("worker_cancelled")
				return err
			}
			if err := s.playOne(ctx, pos, slot0Color); err != nil {
				return err
			}
		}
	}

	logger.Debug("worker_done", "openings", r.Len())
	return nil
}

// playOne runs and records one game. slot0Color is the colour engine A plays.
func (s *Scheduler) playOne(ctx context.Context, pos book.Position, slot0Color protocol.Color) error {
	var paths [2]string
	paths[slot0Color] = s.engines[0]
	paths[slot0Color.Opponent()] = s.engines[1]

	game := s.aggregator.StartGame()
	if s.callbacks.OnGameStart != nil {
		s.callbacks.OnGameStart(game)
	}

	res := s.matcher.Run(ctx, match.Spec{Game: game, Position: pos, Paths: paths})

	snap, err := s.aggregator.Record(res, slot0Color)
	if s.callbacks.OnGameFinished != nil {
		s.callbacks.OnGameFinished(res, slot0Color, snap)
	}
	if err != nil {
		return fmt.Errorf("game %d: %w", game, err)
	}
	return nil
}
