package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for errors and inconsistencies.
// Returns nil if valid, or every problem joined with errors.Join.
func Validate(cfg *Config) error {
	var errs []error

	// Both engines are required
	if cfg.EngineA == "" {
		errs = append(errs, ValidationError{
			Field:   "engine_a",
			Message: "first engine executable is required",
		})
	}
	if cfg.EngineB == "" {
		errs = append(errs, ValidationError{
			Field:   "engine_b",
			Message: "second engine executable is required",
		})
	}

	if cfg.BookPath == "" {
		errs = append(errs, ValidationError{
			Field:   "book_path",
			Message: "opening book is required",
		})
	}

	if cfg.Openings < 0 {
		errs = append(errs, ValidationError{
			Field:   "openings",
			Message: "must be >= 0",
		})
	}

	if cfg.Workers < 1 {
		errs = append(errs, ValidationError{
			Field:   "workers",
			Message: "must be at least 1",
		})
	}

	// The engines only see whole milliseconds
	if cfg.TimeBudget < time.Millisecond {
		errs = append(errs, ValidationError{
			Field:   "time_budget",
			Message: fmt.Sprintf("must be at least 1ms (got %v)", cfg.TimeBudget),
		})
	}

	if cfg.HandshakeTimeout <= 0 {
		errs = append(errs, ValidationError{
			Field:   "handshake_timeout",
			Message: "must be positive",
		})
	}
	if cfg.MoveGrace < 0 {
		errs = append(errs, ValidationError{
			Field:   "move_grace",
			Message: "must be >= 0",
		})
	}
	if cfg.QuitTimeout <= 0 {
		errs = append(errs, ValidationError{
			Field:   "quit_timeout",
			Message: "must be positive",
		})
	}

	for _, kv := range cfg.EngineEnv {
		if k, _, ok := strings.Cut(kv, "="); !ok || k == "" {
			errs = append(errs, ValidationError{
				Field:   "engine_env",
				Message: fmt.Sprintf("must be KEY=VALUE (got %q)", kv),
			})
		}
	}

	if cfg.ResultsPath == "" {
		errs = append(errs, ValidationError{
			Field:   "results_path",
			Message: `must be a file or "-" for stdout`,
		})
	}

	// The dashboard owns stdout
	if cfg.TUIEnabled && cfg.ResultsPath == "-" {
		errs = append(errs, ValidationError{
			Field:   "results_path",
			Message: "-tui needs -results to name a file",
		})
	}

	if cfg.MetricsAddr != "" {
		if _, _, err := net.SplitHostPort(cfg.MetricsAddr); err != nil {
			errs = append(errs, ValidationError{
				Field:   "metrics_addr",
				Message: fmt.Sprintf("must be host:port: %v", err),
			})
		}
	}

	// Log format must be valid
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.LogFormat] {
		errs = append(errs, ValidationError{
			Field:   "log_format",
			Message: fmt.Sprintf("must be 'json' or 'text' (got %q)", cfg.LogFormat),
		})
	}

	// Return combined errors
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// ApplyCheckMode modifies config for --check mode: one worker playing the
// first opening with both colour assignments.
func ApplyCheckMode(cfg *Config) {
	cfg.Workers = 1
	cfg.Openings = 1
	cfg.Verbose = true
}
