package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

// envList is a custom flag type for repeatable -engine-env flags.
type envList []string

func (e *envList) String() string {
	return strings.Join(*e, ", ")
}

func (e *envList) Set(value string) error {
	*e = append(*e, value)
	return nil
}

// ParseFlags parses the process command line and returns a Config.
func ParseFlags() (*Config, error) {
	return ParseArgs(os.Args[1:], os.Stderr)
}

// ParseArgs parses args (without the program name). Usage text goes to out.
func ParseArgs(args []string, out io.Writer) (*Config, error) {
	cfg := DefaultConfig()
	var env envList

	fs := flag.NewFlagSet("othello-arena", flag.ContinueOnError)
	fs.SetOutput(out)

	// Custom usage message
	fs.Usage = func() {
		fmt.Fprintf(out, `othello-arena - concurrent Othello engine tournaments over a line protocol

Usage:
  othello-arena [flags] <engineA> <engineB>

Tournament Flags:
`)
		printFlagCategory(fs, out, []string{"book", "openings", "workers", "seed"})

		fmt.Fprintf(out, "\nClock:\n")
		printFlagCategory(fs, out, []string{"time", "time-floor"})

		fmt.Fprintf(out, "\nEngine Protocol:\n")
		printFlagCategory(fs, out, []string{"handshake-timeout", "move-grace", "quit-timeout", "engine-env", "engine-stderr"})

		fmt.Fprintf(out, "\nSafety & Diagnostics:\n")
		printFlagCategory(fs, out, []string{"print-cmd", "check", "skip-preflight", "probe", "version"})

		fmt.Fprintf(out, "\nObservability:\n")
		printFlagCategory(fs, out, []string{"results", "metrics", "metrics-dump", "tui", "v", "log-format"})

		fmt.Fprintf(out, `
Flag Convention:
  Single-dash flags (-workers, -time) are normal options.
  Double-dash flags (--check, --print-cmd) are diagnostic modes.

Examples:
  # Two engines, 8 seconds per side, 4 games at a time
  othello-arena -time 8s -workers 4 ./edax ./myengine

  # Smoke test: one opening, both colours, verbose
  othello-arena --check ./edax ./myengine

  # Long run with a live dashboard and a metrics endpoint
  othello-arena -tui -results results.txt -metrics 127.0.0.1:17092 ./a ./b

`)
	}

	// Tournament
	fs.StringVar(&cfg.BookPath, "book", cfg.BookPath, "Opening book (two fields per line)")
	fs.IntVar(&cfg.Openings, "openings", cfg.Openings, "Play only the first N openings (0 = all)")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "Concurrent matches")
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "Shuffle seed (0 = time based)")

	// Clock
	fs.DurationVar(&cfg.TimeBudget, "time", cfg.TimeBudget, "Thinking time per side per game")
	fs.BoolVar(&cfg.TimeFloor, "time-floor", cfg.TimeFloor, "Charge at least 1ms per move")

	// Engine protocol
	fs.DurationVar(&cfg.HandshakeTimeout, "handshake-timeout", cfg.HandshakeTimeout, "Wait for \"ready\" after \"isready\"")
	fs.DurationVar(&cfg.MoveGrace, "move-grace", cfg.MoveGrace, "Added to the remaining clock to form the move read deadline")
	fs.DurationVar(&cfg.QuitTimeout, "quit-timeout", cfg.QuitTimeout, "Wait for exit after \"quit\" before killing")
	fs.Var(&env, "engine-env", "Extra KEY=VALUE for engine processes (can repeat)")
	fs.BoolVar(&cfg.EngineStderr, "engine-stderr", cfg.EngineStderr, "Log engine stderr instead of discarding it")

	// Safety & Diagnostics (double-dash convention)
	fs.BoolVar(&cfg.PrintCmd, "print-cmd", cfg.PrintCmd, "Print engine commands for the first opening and exit")
	fs.BoolVar(&cfg.Check, "check", cfg.Check, "Validate config and play one opening with 1 worker")
	fs.BoolVar(&cfg.SkipPreflight, "skip-preflight", cfg.SkipPreflight, "Skip preflight checks")
	fs.BoolVar(&cfg.PreflightProbe, "probe", cfg.PreflightProbe, "Handshake with each engine during preflight")
	fs.BoolVar(&cfg.ShowVersion, "version", cfg.ShowVersion, "Print version and exit")

	// Observability
	fs.StringVar(&cfg.ResultsPath, "results", cfg.ResultsPath, `Results stream ("-" = stdout)`)
	fs.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "Prometheus metrics address (empty = disabled)")
	fs.StringVar(&cfg.MetricsDump, "metrics-dump", cfg.MetricsDump, "Write a text-format metrics snapshot here at exit")
	fs.BoolVar(&cfg.TUIEnabled, "tui", cfg.TUIEnabled, "Enable live terminal dashboard")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Verbose logging")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, `Log format: "json" or "text"`)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.EngineEnv = env

	// Positional arguments: engine A and engine B
	rest := fs.Args()
	if len(rest) >= 1 {
		cfg.EngineA = rest[0]
	}
	if len(rest) >= 2 {
		cfg.EngineB = rest[1]
	}
	if len(rest) > 2 {
		return nil, fmt.Errorf("unexpected arguments after engines: %s", strings.Join(rest[2:], " "))
	}

	return cfg, nil
}

// printFlagCategory prints flags matching the given names (helper for usage).
func printFlagCategory(fs *flag.FlagSet, out io.Writer, names []string) {
	fs.VisitAll(func(f *flag.Flag) {
		for _, name := range names {
			if f.Name == name {
				fmt.Fprintf(out, "  -%s %s\n    \t%s", f.Name, flagType(f), f.Usage)
				if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" && f.DefValue != "0s" && f.DefValue != "[]" {
					fmt.Fprintf(out, " (default %s)", f.DefValue)
				}
				fmt.Fprintln(out)
				return
			}
		}
	})
}

// flagType returns a type hint for the flag value.
func flagType(f *flag.Flag) string {
	switch f.DefValue {
	case "true", "false":
		return ""
	}

	// Check if it looks like a duration
	if strings.HasSuffix(f.DefValue, "s") || strings.HasSuffix(f.DefValue, "m") || strings.HasSuffix(f.DefValue, "h") {
		return "duration"
	}

	// Check if numeric
	if _, err := fmt.Sscanf(f.DefValue, "%d", new(int)); err == nil {
		return "int"
	}

	return "string"
}
