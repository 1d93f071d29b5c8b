package process

import (
	"context"
	"os/exec"
	"strings"
	"syscall"
)

// EngineRunner implements Runner for protocol engines.
type EngineRunner struct {
	// Dir is the working directory for the engine; empty means inherit.
	Dir string

	// Env is appended to the inherited environment.
	Env []string
}

// NewEngineRunner creates a runner with default settings.
func NewEngineRunner() *EngineRunner {
	return &EngineRunner{}
}

// Name returns "engine".
func (r *EngineRunner) Name() string {
	return "engine"
}

// BuildCommand creates an exec.Cmd for the engine. The process is placed in
// its own process group so teardown can signal everything it spawned.
// Stdin, stdout and stderr are left for the caller to wire; an unset Stderr
// discards the stream.
//
// The context is not bound to the process lifetime: the engine handle owns
// teardown (quit, bounded wait, kill).
func (r *EngineRunner) BuildCommand(_ context.Context, inv Invocation) (*exec.Cmd, error) {
	cmd := exec.Command(inv.Path, inv.Args()...)
	cmd.Dir = r.Dir
	if len(r.Env) > 0 {
		cmd.Env = append(cmd.Environ(), r.Env...)
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
	return cmd, nil
}

// CommandString returns the command that would be executed (for debugging).
func (r *EngineRunner) CommandString(inv Invocation) string {
	parts := make([]string, 0, 4)
	parts = append(parts, quoteArg(inv.Path))
	for _, a := range inv.Args() {
		parts = append(parts, quoteArg(a))
	}
	return strings.Join(parts, " ")
}

// quoteArg single-quotes arguments that a shell would split or expand.
func quoteArg(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"\\$`*?[]{}()<>|&;#~") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

var _ Runner = (*EngineRunner)(nil)
