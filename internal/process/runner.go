// Package process provides abstractions for running external processes.
package process

import (
	"context"
	"os/exec"

	"github.com/randomizedcoder/go-othello-arena/internal/book"
	"github.com/randomizedcoder/go-othello-arena/internal/protocol"
)

// Invocation describes one engine process for one match: which executable,
// which color it plays and which opening it starts from.
type Invocation struct {
	Path     string
	Color    protocol.Color
	Position book.Position
}

// Args returns the engine command-line arguments [color, field0, field1].
func (inv Invocation) Args() []string {
	return append([]string{inv.Color.String()}, inv.Position.Args()...)
}

// Runner creates executable commands for engines.
// This interface allows the engine handle to be process-agnostic.
type Runner interface {
	// BuildCommand returns a ready-to-start command for the invocation.
	// The command should NOT be started yet.
	BuildCommand(ctx context.Context, inv Invocation) (*exec.Cmd, error)

	// Name returns a human-readable name for this process type.
	Name() string
}
