// Package main provides the othello-arena CLI entry point.
//
// othello-arena plays two Othello engines against each other over a book of
// opening positions, each opening twice with colours swapped, and reports
// the score with Elo and likelihood of superiority.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/go-othello-arena/internal/config"
	"github.com/randomizedcoder/go-othello-arena/internal/logging"
	"github.com/randomizedcoder/go-othello-arena/internal/orchestrator"
	"github.com/randomizedcoder/go-othello-arena/internal/tui"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0" ./cmd/othello-arena
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.ParseFlags()
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		return 2
	}

	if cfg.ShowVersion {
		fmt.Printf("othello-arena %s\n", version)
		return 0
	}

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error:\n%v\n", err)
		return 2
	}

	if cfg.Check {
		config.ApplyCheckMode(cfg)
	}

	// The TUI owns the terminal; logs would tear its rendering.
	var logger *slog.Logger
	if cfg.TUIEnabled {
		logger = logging.NewLoggerWithWriter(io.Discard, "json", "info")
	} else {
		logger = logging.NewLogger(cfg.LogFormat, "info", cfg.Verbose)
	}
	logging.SetDefault(logger)

	if cfg.Check {
		logger.Info("check_mode_enabled", "workers", cfg.Workers, "openings", cfg.Openings)
	}

	var summary bytes.Buffer
	var opts []orchestrator.Option
	if cfg.TUIEnabled {
		opts = append(opts, orchestrator.WithSummaryOutput(&summary))
	}

	orch, err := orchestrator.New(cfg, logger, version, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if cfg.PrintCmd {
		orch.PrintCommands(os.Stdout)
		return 0
	}

	logger.Info("starting",
		"version", version,
		"run_id", orch.RunID(),
		"engine_a", cfg.EngineA,
		"engine_b", cfg.EngineB,
		"games", orch.TotalGames(),
		"workers", cfg.Workers,
		"metrics_addr", cfg.MetricsAddr,
	)

	if cfg.TUIEnabled {
		err = runWithTUI(orch, cfg)
		fmt.Fprint(os.Stderr, summary.String())
	} else {
		printBanner(os.Stderr, cfg, orch.TotalGames())
		err = orch.Run(context.Background())
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// runWithTUI plays the tournament behind the dashboard. Quitting the
// dashboard cancels the run; a finished run keeps the dashboard up until
// the user quits.
func runWithTUI(orch *orchestrator.Orchestrator, cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	model := tui.New(tui.Config{
		TotalGames:   orch.TotalGames(),
		EngineA:      cfg.EngineA,
		EngineB:      cfg.EngineB,
		MetricsAddr:  cfg.MetricsAddr,
		RunID:        orch.RunID(),
		StatsSource:  orch.Aggregator(),
		TimingSource: orch.Aggregator(),
		RateSource:   orch.Rate(),
		ActiveSource: orch.Metrics(),
	})
	program := tea.NewProgram(model, tea.WithAltScreen())

	runErr := make(chan error, 1)
	go func() {
		err := orch.Run(ctx)
		if err != nil {
			tui.SendQuit(program)
		} else {
			tui.SendDone(program)
		}
		runErr <- err
	}()

	if _, err := program.Run(); err != nil {
		cancel()
		<-runErr
		return fmt.Errorf("tui: %w", err)
	}

	cancel()
	return <-runErr
}

// printBanner prints the startup banner. Stdout carries results, so the
// banner goes to w (stderr).
func printBanner(w io.Writer, cfg *config.Config, games int) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "╔═══════════════════════════════════════════════════════════════════╗")
	fmt.Fprintln(w, "║                          othello-arena                            ║")
	fmt.Fprintln(w, "║          Othello Engine Tournaments over a Line Protocol          ║")
	fmt.Fprintln(w, "╚═══════════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Engines:     %s vs %s\n", cfg.EngineA, cfg.EngineB)
	fmt.Fprintf(w, "  Games:       %d (%d workers)\n", games, cfg.Workers)
	fmt.Fprintf(w, "  Clock:       %s per side\n", cfg.TimeBudget)
	if cfg.MetricsAddr != "" {
		fmt.Fprintf(w, "  Metrics:     http://%s/metrics\n", cfg.MetricsAddr)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Press Ctrl+C to stop.")
	fmt.Fprintln(w)
}
