// Package config provides configuration management for othello-arena.
package config

import "time"

// Config holds all configuration options for a tournament run.
type Config struct {
	// Engines, in slot order. Slot 0 is EngineA.
	EngineA   string   `json:"engine_a"`
	EngineB   string   `json:"engine_b"`
	EngineEnv []string `json:"engine_env"`

	// Tournament
	BookPath string `json:"book_path"`
	Openings int    `json:"openings"` // 0 = whole book
	Workers  int    `json:"workers"`
	Seed     int64  `json:"seed"` // 0 = time based

	// Clock
	TimeBudget time.Duration `json:"time_budget"`
	TimeFloor  bool          `json:"time_floor"`

	// Engine protocol deadlines
	HandshakeTimeout time.Duration `json:"handshake_timeout"`
	MoveGrace        time.Duration `json:"move_grace"`
	QuitTimeout      time.Duration `json:"quit_timeout"`

	// Output
	ResultsPath  string `json:"results_path"` // "-" = stdout
	EngineStderr bool   `json:"engine_stderr"`

	// Observability
	MetricsAddr string `json:"metrics_addr"` // empty = disabled
	MetricsDump string `json:"metrics_dump"`
	TUIEnabled  bool   `json:"tui_enabled"`
	Verbose     bool   `json:"verbose"`
	LogFormat   string `json:"log_format"` // json, text

	// Diagnostic modes
	PrintCmd       bool `json:"print_cmd"`
	Check          bool `json:"check"`
	SkipPreflight  bool `json:"skip_preflight"`
	PreflightProbe bool `json:"preflight_probe"`
	ShowVersion    bool `json:"show_version"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		// Tournament
		BookPath: "perft8_balanced.txt",
		Workers:  3,

		// Clock
		TimeBudget: 4 * time.Second,
		TimeFloor:  true,

		// Engine protocol deadlines
		HandshakeTimeout: 10 * time.Second,
		MoveGrace:        5 * time.Second,
		QuitTimeout:      2 * time.Second,

		// Output
		ResultsPath: "-",

		// Observability
		LogFormat: "json",

		// Diagnostics
		PreflightProbe: true,
	}
}

// BudgetMs returns the per-side time budget in milliseconds.
func (c *Config) BudgetMs() int64 {
	return c.TimeBudget.Milliseconds()
}

// Engines returns the engine paths in slot order.
func (c *Config) Engines() [2]string {
	return [2]string{c.EngineA, c.EngineB}
}
