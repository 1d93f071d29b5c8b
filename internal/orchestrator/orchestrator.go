// Package orchestrator runs a tournament: it wires the book, the match
// runner, the aggregator and the observability surfaces around a Scheduler.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/randomizedcoder/go-othello-arena/internal/book"
	"github.com/randomizedcoder/go-othello-arena/internal/config"
	"github.com/randomizedcoder/go-othello-arena/internal/engine"
	"github.com/randomizedcoder/go-othello-arena/internal/logging"
	"github.com/randomizedcoder/go-othello-arena/internal/match"
	"github.com/randomizedcoder/go-othello-arena/internal/metrics"
	"github.com/randomizedcoder/go-othello-arena/internal/preflight"
	"github.com/randomizedcoder/go-othello-arena/internal/process"
	"github.com/randomizedcoder/go-othello-arena/internal/protocol"
	"github.com/randomizedcoder/go-othello-arena/internal/stats"
	"github.com/randomizedcoder/go-othello-arena/internal/timeseries"
)

// sampleInterval is how often the rate tracker and standings gauges update.
const sampleInterval = time.Second

// Orchestrator coordinates all components for one tournament run.
type Orchestrator struct {
	config  *config.Config
	logger  *slog.Logger
	version string
	runID   string

	book          *book.Book
	engineRunner  *process.EngineRunner
	engineOptions engine.Options
	scheduler     *Scheduler
	aggregator    *stats.Aggregator
	registry      *prometheus.Registry
	metrics       *metrics.Collector
	metricsServer *metrics.Server
	rate          *timeseries.RateTracker

	results       io.Writer
	resultsCloser io.Closer
	summaryOut    io.Writer

	startTime time.Time
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithMatcher replaces the process-backed match runner. Used by tests.
func WithMatcher(m Matcher) Option {
	return func(o *Orchestrator) {
		o.scheduler.matcher = m
	}
}

// WithSummaryOutput sets where the exit summary is written (default stderr).
func WithSummaryOutput(w io.Writer) Option {
	return func(o *Orchestrator) {
		o.summaryOut = w
	}
}

// WithResultsWriter sets the results stream, overriding cfg.ResultsPath.
func WithResultsWriter(w io.Writer) Option {
	return func(o *Orchestrator) {
		o.results = w
	}
}

// New loads the book and builds every component. Nothing is spawned until Run.
func New(cfg *config.Config, logger *slog.Logger, version string, opts ...Option) (*Orchestrator, error) {
	runID := uuid.NewString()
	logger = logging.WithRun(logger, runID)

	b, err := book.Load(cfg.BookPath)
	if err != nil {
		return nil, err
	}
	if b.Len() == 0 {
		return nil, fmt.Errorf("book %s has no positions", cfg.BookPath)
	}
	total := b.Len()
	b = b.Head(cfg.Openings)
	logger.Info("book_loaded", "path", cfg.BookPath, "positions", total, "playing", b.Len())

	engineRunner := process.NewEngineRunner()
	engineRunner.Env = cfg.EngineEnv

	engineOptions := engine.Options{
		Runner:           engineRunner,
		HandshakeTimeout: cfg.HandshakeTimeout,
		QuitTimeout:      cfg.QuitTimeout,
		CaptureStderr:    cfg.EngineStderr,
		Logger:           logger,
	}

	matchRunner := match.NewRunner(
		match.ProcessLauncher{Options: engineOptions},
		match.Config{
			BudgetMs:  cfg.BudgetMs(),
			TimeFloor: cfg.TimeFloor,
			MoveGrace: cfg.MoveGrace,
		},
		logger,
	)

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollectorWithRegistry(metrics.CollectorConfig{
		Version:  version,
		RunID:    runID,
		EngineA:  cfg.EngineA,
		EngineB:  cfg.EngineB,
		Workers:  cfg.Workers,
		BudgetMs: cfg.BudgetMs(),
	}, registry)

	shuffle := NewShuffleSource(cfg.Seed)
	if cfg.Seed == 0 {
		shuffle = NewShuffleSourceFromTime()
	}

	o := &Orchestrator{
		config:        cfg,
		logger:        logger,
		version:       version,
		runID:         runID,
		book:          b,
		engineRunner:  engineRunner,
		engineOptions: engineOptions,
		registry:      registry,
		metrics:       collector,
		rate:          timeseries.NewRateTracker(),
		summaryOut:    os.Stderr,
	}

	o.scheduler = NewScheduler(SchedulerConfig{
		Book:    b,
		Engines: cfg.Engines(),
		Workers: cfg.Workers,
		Shuffle: shuffle,
		Matcher: matchRunner,
		Callbacks: SchedulerCallbacks{
			OnGameStart:    o.onGameStart,
			OnGameFinished: o.onGameFinished,
		},
		Logger: logger,
	})

	for _, opt := range opts {
		opt(o)
	}

	if o.results == nil {
		w, closer, err := openResults(cfg.ResultsPath)
		if err != nil {
			return nil, err
		}
		o.results = w
		o.resultsCloser = closer
	}

	o.aggregator = stats.NewAggregator(o.results, logger)
	o.scheduler.aggregator = o.aggregator
	o.metrics.SetScheduled(o.scheduler.TotalGames())

	if cfg.MetricsAddr != "" {
		o.metricsServer = metrics.NewServer(cfg.MetricsAddr, registry, logger)
	}

	logger.Info("shuffle_seed", "seed", shuffle.Seed())
	return o, nil
}

func openResults(path string) (io.Writer, io.Closer, error) {
	if path == "-" {
		return os.Stdout, nil, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open results: %w", err)
	}
	return f, f, nil
}

// Run plays the tournament. It blocks until every game ran, the context is
// cancelled or SIGINT/SIGTERM arrives. An interrupted run is not an error.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.startTime = time.Now()
	defer o.closeResults()

	// Run preflight checks
	if !o.config.SkipPreflight {
		result := preflight.RunAll(ctx, preflight.Options{
			Engines:       o.config.Engines(),
			BookPath:      o.config.BookPath,
			Workers:       o.config.Workers,
			Probe:         o.config.PreflightProbe,
			EngineOptions: o.engineOptions,
		})
		if !o.config.TUIEnabled {
			preflight.PrintResults(o.summaryOut, result)
		}
		if !result.Passed {
			return fmt.Errorf("preflight checks failed (use --skip-preflight to override)")
		}
	}

	if o.metricsServer != nil {
		if err := o.metricsServer.Start(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	// Setup signal handling
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			o.logger.Info("received_signal", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	samplerDone := make(chan struct{})
	go func() {
		defer close(samplerDone)
		o.sample(ctx)
	}()

	o.logger.Info("tournament_starting",
		"engine_a", o.config.EngineA,
		"engine_b", o.config.EngineB,
		"openings", o.book.Len(),
		"games", o.scheduler.TotalGames(),
		"workers", o.config.Workers,
		"time_ms", o.config.BudgetMs(),
	)

	runErr := o.scheduler.Run(ctx)
	interrupted := ctx.Err() != nil

	cancel()
	<-samplerDone
	o.updateStandings(o.aggregator.Snapshot())

	snap := o.aggregator.Snapshot()
	o.logger.Info("tournament_finished",
		"score", snap.Score(),
		"completed", snap.Completed,
		"aborted", snap.Aborted,
		"interrupted", interrupted,
	)

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if o.metricsServer != nil {
		if err := o.metricsServer.Shutdown(shutdownCtx); err != nil {
			o.logger.Warn("metrics_server_shutdown_error", "error", err)
		}
	}

	if o.config.MetricsDump != "" {
		if err := metrics.WriteSnapshotFile(o.config.MetricsDump, o.registry, "arena_"); err != nil {
			o.logger.Warn("metrics_dump_failed", "path", o.config.MetricsDump, "error", err)
		} else {
			o.logger.Info("metrics_dump_written", "path", o.config.MetricsDump)
		}
	}

	o.printExitSummary(snap, interrupted)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

// sample feeds the rate tracker and standings gauges until ctx is done.
func (o *Orchestrator) sample(ctx context.Context) {
	ticker := time.NewTicker(sampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.rate.RecordSample()
			o.updateStandings(o.aggregator.Snapshot())
		}
	}
}

func (o *Orchestrator) updateStandings(snap stats.Snapshot) {
	o.metrics.UpdateStandings(snap, o.rate.GetStats().PerMinute1m)
}

// Callback handlers

func (o *Orchestrator) onGameStart(game int) {
	o.metrics.GameStarted()
}

func (o *Orchestrator) onGameFinished(res match.Result, slot0Color protocol.Color, snap stats.Snapshot) {
	o.metrics.RecordResult(res, slot0Color)
	o.rate.Add(1)
	o.updateStandings(snap)
}

func (o *Orchestrator) closeResults() {
	if o.resultsCloser == nil {
		return
	}
	if err := o.resultsCloser.Close(); err != nil {
		o.logger.Warn("results_close_failed", "error", err)
	}
	o.resultsCloser = nil
}

// printExitSummary writes the final standings.
func (o *Orchestrator) printExitSummary(snap stats.Snapshot, interrupted bool) {
	cfg := o.aggregator.SummaryConfigFrom(stats.SummaryConfig{
		EngineA:     o.config.EngineA,
		EngineB:     o.config.EngineB,
		Openings:    o.book.Len(),
		Workers:     o.config.Workers,
		BudgetMs:    o.config.BudgetMs(),
		Duration:    time.Since(o.startTime),
		Interrupted: interrupted,
		MetricsAddr: o.MetricsAddr(),
	})
	fmt.Fprint(o.summaryOut, stats.FormatExitSummary(snap, cfg))
}

// PrintCommands writes the engine command lines for the first opening, for
// both colour assignments.
func (o *Orchestrator) PrintCommands(w io.Writer) {
	pos := o.book.At(0)
	engines := o.config.Engines()
	for pair, slot0Color := range []protocol.Color{protocol.Black, protocol.White} {
		var paths [2]string
		paths[slot0Color] = engines[0]
		paths[slot0Color.Opponent()] = engines[1]

		fmt.Fprintf(w, "# game %d, opening %q\n", pair+1, pos.String())
		for _, color := range []protocol.Color{protocol.Black, protocol.White} {
			inv := process.Invocation{Path: paths[color], Color: color, Position: pos}
			fmt.Fprintln(w, o.engineRunner.CommandString(inv))
		}
	}
}

// RunID returns the unique id of this run.
func (o *Orchestrator) RunID() string {
	return o.runID
}

// TotalGames returns the number of games the run schedules.
func (o *Orchestrator) TotalGames() int {
	return o.scheduler.TotalGames()
}

// Aggregator returns the result aggregator for external access.
func (o *Orchestrator) Aggregator() *stats.Aggregator {
	return o.aggregator
}

// Metrics returns the metrics collector for external access.
func (o *Orchestrator) Metrics() *metrics.Collector {
	return o.metrics
}

// Rate returns the games/minute tracker for external access.
func (o *Orchestrator) Rate() *timeseries.RateTracker {
	return o.rate
}

// MetricsAddr returns the metrics endpoint, or "" when disabled.
func (o *Orchestrator) MetricsAddr() string {
	if o.metricsServer == nil {
		return ""
	}
	return o.metricsServer.Addr()
}
