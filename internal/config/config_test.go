package config

import (
	"bytes"
	"errors"
	"flag"
	"strings"
	"testing"
	"time"
)

func TestEnvList(t *testing.T) {
	var e envList
	for _, v := range []string{"A=1", "B=2"} {
		if err := e.Set(v); err != nil {
			t.Fatalf("Set(%q) error: %v", v, err)
		}
	}
	if len(e) != 2 || e[1] != "B=2" {
		t.Errorf("envList = %v", e)
	}
	if got := e.String(); got != "A=1, B=2" {
		t.Errorf("String() = %q", got)
	}
}

func TestFlagType(t *testing.T) {
	testCases := []struct {
		name     string
		defValue string
		expected string
	}{
		{"bool true", "true", ""},
		{"bool false", "false", ""},
		{"int", "42", "int"},
		{"string", "hello", "string"},
		{"book file", "perft8_balanced.txt", "string"},
		{"stdout marker", "-", "string"},
		{"duration seconds", "4s", "duration"},
		{"duration minutes", "5m", "duration"},
		{"empty", "", "string"},
		{"zero", "0", "int"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := &flag.Flag{Name: "test", DefValue: tc.defValue}
			if got := flagType(f); got != tc.expected {
				t.Errorf("flagType(%q) = %q, want %q", tc.defValue, got, tc.expected)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Workers != 3 {
		t.Errorf("Workers = %d, want 3", cfg.Workers)
	}
	if cfg.BudgetMs() != 4000 {
		t.Errorf("BudgetMs() = %d, want 4000", cfg.BudgetMs())
	}
	if !cfg.TimeFloor {
		t.Error("TimeFloor should default to true")
	}
	if cfg.BookPath != "perft8_balanced.txt" {
		t.Errorf("BookPath = %q", cfg.BookPath)
	}
	if cfg.ResultsPath != "-" {
		t.Errorf("ResultsPath = %q, want -", cfg.ResultsPath)
	}
	if cfg.MetricsAddr != "" {
		t.Errorf("metrics should be disabled by default, got %q", cfg.MetricsAddr)
	}
	if cfg.TUIEnabled {
		t.Error("TUI should be off by default")
	}
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		check   func(t *testing.T, cfg *Config)
		wantErr bool
	}{
		{
			name: "positional engines",
			args: []string{"./edax", "./mine"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Engines() != [2]string{"./edax", "./mine"} {
					t.Errorf("Engines() = %v", cfg.Engines())
				}
			},
		},
		{
			name: "tournament flags",
			args: []string{"-time", "8s", "-workers", "6", "-book", "b.txt", "-seed", "42", "-time-floor=false", "a", "b"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.BudgetMs() != 8000 || cfg.Workers != 6 || cfg.BookPath != "b.txt" || cfg.Seed != 42 || cfg.TimeFloor {
					t.Errorf("cfg = %+v", cfg)
				}
			},
		},
		{
			name: "repeatable engine env",
			args: []string{"-engine-env", "THREADS=1", "-engine-env", "HASH=64", "a", "b"},
			check: func(t *testing.T, cfg *Config) {
				if strings.Join(cfg.EngineEnv, ",") != "THREADS=1,HASH=64" {
					t.Errorf("EngineEnv = %v", cfg.EngineEnv)
				}
			},
		},
		{
			name: "double dash diagnostics",
			args: []string{"--check", "--print-cmd", "--skip-preflight", "a", "b"},
			check: func(t *testing.T, cfg *Config) {
				if !cfg.Check || !cfg.PrintCmd || !cfg.SkipPreflight {
					t.Errorf("cfg = %+v", cfg)
				}
			},
		},
		{
			name:    "extra positional",
			args:    []string{"a", "b", "c"},
			wantErr: true,
		},
		{
			name:    "unknown flag",
			args:    []string{"-clients", "5", "a", "b"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			cfg, err := ParseArgs(tt.args, &out)
			if tt.wantErr {
				if err == nil {
					t.Fatal("ParseArgs() should fail")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseArgs() error: %v", err)
			}
			tt.check(t, cfg)
		})
	}
}

func TestParseArgs_UsageListsCategories(t *testing.T) {
	var out bytes.Buffer
	_, err := ParseArgs([]string{"-h"}, &out)
	if !errors.Is(err, flag.ErrHelp) {
		t.Fatalf("ParseArgs(-h) error = %v, want flag.ErrHelp", err)
	}
	for _, want := range []string{"<engineA> <engineB>", "Clock:", "-move-grace", "(default 4s)"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("usage missing %q", want)
		}
	}
}

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.EngineA = "./a"
	cfg.EngineB = "./b"
	return cfg
}

func TestValidate_ValidConfig(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Errorf("valid config should not error: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"missing engine a", func(c *Config) { c.EngineA = "" }, "engine_a"},
		{"missing engine b", func(c *Config) { c.EngineB = "" }, "engine_b"},
		{"missing book", func(c *Config) { c.BookPath = "" }, "book_path"},
		{"negative openings", func(c *Config) { c.Openings = -1 }, "openings"},
		{"zero workers", func(c *Config) { c.Workers = 0 }, "workers"},
		{"sub-millisecond budget", func(c *Config) { c.TimeBudget = 500 * time.Microsecond }, "time_budget"},
		{"zero handshake", func(c *Config) { c.HandshakeTimeout = 0 }, "handshake_timeout"},
		{"negative grace", func(c *Config) { c.MoveGrace = -time.Second }, "move_grace"},
		{"zero quit timeout", func(c *Config) { c.QuitTimeout = 0 }, "quit_timeout"},
		{"bad env", func(c *Config) { c.EngineEnv = []string{"NOEQUALS"} }, "engine_env"},
		{"empty results", func(c *Config) { c.ResultsPath = "" }, "results_path"},
		{"tui on stdout", func(c *Config) { c.TUIEnabled = true }, "results_path"},
		{"bad metrics addr", func(c *Config) { c.MetricsAddr = "17092" }, "metrics_addr"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "log_format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("Validate() should fail")
			}
			var ve ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("error should contain a ValidationError: %v", err)
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q should name %s", err, tt.field)
			}
		})
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := validConfig()
	cfg.EngineA = ""
	cfg.Workers = 0
	cfg.LogFormat = "xml"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Validate() should fail")
	}
	for _, field := range []string{"engine_a", "workers", "log_format"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("joined error missing %s: %v", field, err)
		}
	}
}

func TestValidate_TUIWithResultsFile(t *testing.T) {
	cfg := validConfig()
	cfg.TUIEnabled = true
	cfg.ResultsPath = "results.txt"
	cfg.MetricsAddr = "127.0.0.1:17092"
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
}

func TestApplyCheckMode(t *testing.T) {
	cfg := validConfig()
	cfg.Workers = 8

	ApplyCheckMode(cfg)

	if cfg.Workers != 1 {
		t.Errorf("Workers = %d, want 1", cfg.Workers)
	}
	if cfg.Openings != 1 {
		t.Errorf("Openings = %d, want 1", cfg.Openings)
	}
	if !cfg.Verbose {
		t.Error("check mode should enable verbose")
	}
}

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{Field: "test_field", Message: "test message"}
	if got := err.Error(); got != "test_field: test message" {
		t.Errorf("Error() = %q", got)
	}
}
