// Package engine owns one external engine process and exposes the
// synchronous request/response move interface over its stdin/stdout.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/randomizedcoder/go-othello-arena/internal/logging"
	"github.com/randomizedcoder/go-othello-arena/internal/process"
	"github.com/randomizedcoder/go-othello-arena/internal/protocol"
)

// Options configures engine handles.
type Options struct {
	// Runner builds the command; defaults to process.NewEngineRunner().
	Runner process.Runner

	// HandshakeTimeout bounds the isready/ready exchange. Zero waits forever.
	HandshakeTimeout time.Duration

	// QuitTimeout is how long Close waits for exit after quit before killing
	// the process group.
	QuitTimeout time.Duration

	// CaptureStderr pipes engine stderr into a logging.EngineStderrHandler
	// instead of discarding it.
	CaptureStderr bool

	Logger *slog.Logger
}

// DefaultOptions returns the standard handle settings.
func DefaultOptions() Options {
	return Options{
		HandshakeTimeout: 10 * time.Second,
		QuitTimeout:      2 * time.Second,
	}
}

// Handle is one running engine process bound to one color for one match.
// It is not safe for concurrent use; a match drives it from one goroutine.
type Handle struct {
	inv    process.Invocation
	opts   Options
	logger *slog.Logger

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *os.File
	reader *protocol.LineReader
	stderr *logging.EngineStderrHandler

	waitDone chan struct{}
	waitErr  error

	quitSent  atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// Start spawns the engine with arguments [color, field0, field1]. Stderr is
// discarded unless CaptureStderr is set.
func Start(ctx context.Context, inv process.Invocation, opts Options) (*Handle, error) {
	if opts.Runner == nil {
		opts.Runner = process.NewEngineRunner()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("color", inv.Color.String(), "engine", inv.Path)

	h := &Handle{
		inv:      inv,
		opts:     opts,
		logger:   logger,
		waitDone: make(chan struct{}),
	}

	if err := ctx.Err(); err != nil {
		return nil, h.opError("start", err)
	}

	cmd, err := opts.Runner.BuildCommand(ctx, inv)
	if err != nil {
		return nil, h.opError("start", fmt.Errorf("%w: %w", ErrSpawn, err))
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, h.opError("start", fmt.Errorf("%w: stdin pipe: %w", ErrSpawn, err))
	}

	// Our own pipe so Wait never closes stdout under a pending read.
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		stdin.Close()
		return nil, h.opError("start", fmt.Errorf("%w: stdout pipe: %w", ErrSpawn, err))
	}
	cmd.Stdout = stdoutW

	var stderrR, stderrW *os.File
	if opts.CaptureStderr {
		stderrR, stderrW, err = os.Pipe()
		if err != nil {
			stdin.Close()
			stdoutR.Close()
			stdoutW.Close()
			return nil, h.opError("start", fmt.Errorf("%w: stderr pipe: %w", ErrSpawn, err))
		}
		cmd.Stderr = stderrW
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdoutR.Close()
		stdoutW.Close()
		if stderrR != nil {
			stderrR.Close()
			stderrW.Close()
		}
		return nil, h.opError("start", fmt.Errorf("%w: %w", ErrSpawn, err))
	}

	// Close parent's write ends so EOF arrives when the engine exits.
	stdoutW.Close()
	if stderrW != nil {
		stderrW.Close()
	}

	h.cmd = cmd
	h.stdin = stdin
	h.stdout = stdoutR
	h.reader = protocol.NewLineReader(stdoutR, 16)
	go h.reader.Run()

	if stderrR != nil {
		h.stderr = logging.NewEngineStderrHandler(logger)
		go func() {
			h.stderr.HandleReader(stderrR)
			stderrR.Close()
		}()
	}

	go func() {
		h.waitErr = cmd.Wait()
		close(h.waitDone)
	}()

	logger.Debug("engine_started", "pid", cmd.Process.Pid)
	return h, nil
}

// WaitReady sends the liveness probe and blocks until a line exactly equal
// to "ready" arrives. Other lines are discarded.
func (h *Handle) WaitReady(ctx context.Context) error {
	if err := h.writeLine(protocol.ReadyProbe); err != nil {
		return h.opError("handshake", err)
	}

	deadline, stop := h.deadline(h.opts.HandshakeTimeout)
	defer stop()

	for {
		select {
		case line, ok := <-h.reader.Lines():
			if !ok {
				return h.opError("handshake", h.streamClosed())
			}
			if line == protocol.ReadyReply {
				return nil
			}
			h.logger.Debug("handshake_line_ignored", "line", line)
		case <-deadline:
			return h.opError("handshake", fmt.Errorf("%w: no %q after %s",
				ErrProtocolTimeout, protocol.ReadyReply, h.opts.HandshakeTimeout))
		case <-ctx.Done():
			return h.opError("handshake", ctx.Err())
		}
	}
}

// SendLastMove writes "<x> <y> <remainingMs>". On the first turn last is
// protocol.Pass.
func (h *Handle) SendLastMove(last protocol.Move, remainingMs int64) error {
	if err := h.writeLine(protocol.FormatRequest(last, remainingMs)); err != nil {
		return h.opError("send", err)
	}
	return nil
}

// ReceiveMove reads lines until one has exactly four integer fields. Other
// lines are skipped. A well-formed line with impossible values is
// ErrInvalidResponse. timeout <= 0 waits without a deadline.
func (h *Handle) ReceiveMove(ctx context.Context, timeout time.Duration) (protocol.Response, error) {
	deadline, stop := h.deadline(timeout)
	defer stop()

	for {
		select {
		case line, ok := <-h.reader.Lines():
			if !ok {
				return protocol.Response{}, h.opError("receive", h.streamClosed())
			}
			resp, ok := protocol.ParseResponse(line)
			if !ok {
				h.logger.Debug("response_line_skipped", "line", line)
				continue
			}
			if err := resp.Validate(); err != nil {
				return resp, h.opError("receive", fmt.Errorf("%w: %q: %w", ErrInvalidResponse, line, err))
			}
			return resp, nil
		case <-deadline:
			return protocol.Response{}, h.opError("receive", fmt.Errorf("%w: no move after %s",
				ErrProtocolTimeout, timeout))
		case <-ctx.Done():
			return protocol.Response{}, h.opError("receive", ctx.Err())
		}
	}
}

// Terminate sends "quit". Only the first call writes.
func (h *Handle) Terminate() error {
	if !h.quitSent.CompareAndSwap(false, true) {
		return nil
	}
	if err := h.writeLine(protocol.QuitLine); err != nil {
		return h.opError("quit", err)
	}
	return nil
}

// Close tears the engine down on every exit path: quit, close stdin, wait up
// to QuitTimeout, then SIGKILL the process group. Safe to call multiple times.
func (h *Handle) Close() error {
	h.closeOnce.Do(func() {
		h.closeErr = h.shutdown()
	})
	return h.closeErr
}

func (h *Handle) shutdown() error {
	_ = h.Terminate()
	h.stdin.Close()

	var err error
	select {
	case <-h.waitDone:
	case <-time.After(h.opts.QuitTimeout):
		h.logger.Warn("force_killing_engine", "pid", h.cmd.Process.Pid)
		h.kill()
		<-h.waitDone
		err = h.opError("quit", fmt.Errorf("engine did not exit within %s", h.opts.QuitTimeout))
	}

	h.reader.Close()
	h.stdout.Close()

	h.logger.Debug("engine_exited",
		"pid", h.cmd.Process.Pid,
		"exit_code", exitStatus(h.waitErr),
	)
	return err
}

// kill sends SIGKILL to the engine's process group.
func (h *Handle) kill() {
	if pgid, err := syscall.Getpgid(h.cmd.Process.Pid); err == nil {
		syscall.Kill(-pgid, syscall.SIGKILL)
	} else {
		h.cmd.Process.Kill()
	}
}

// Color returns the color this engine plays.
func (h *Handle) Color() protocol.Color {
	return h.inv.Color
}

// Pid returns the engine's process id.
func (h *Handle) Pid() int {
	return h.cmd.Process.Pid
}

// RecentStderr returns the last n stderr lines when capture is enabled.
func (h *Handle) RecentStderr(n int) []string {
	if h.stderr == nil {
		return nil
	}
	return h.stderr.RecentLines(n)
}

// Exited reports whether the process has been reaped.
func (h *Handle) Exited() bool {
	select {
	case <-h.waitDone:
		return true
	default:
		return false
	}
}

// ExitCode returns the engine's exit status once it has been reaped. A
// signal death reports 128 + signal, as a shell would.
func (h *Handle) ExitCode() (int, bool) {
	if !h.Exited() {
		return 0, false
	}
	return exitStatus(h.waitErr), true
}

func exitStatus(err error) int {
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return 0
	case !errors.As(err, &exitErr):
		return 1
	}
	status, ok := exitErr.Sys().(syscall.WaitStatus)
	switch {
	case !ok:
		return exitErr.ExitCode()
	case status.Signaled():
		return 128 + int(status.Signal())
	default:
		return status.ExitStatus()
	}
}

func (h *Handle) writeLine(line string) error {
	if _, err := io.WriteString(h.stdin, line+"\n"); err != nil {
		return fmt.Errorf("%w: write %q: %w", ErrEngineExited, line, err)
	}
	return nil
}

func (h *Handle) streamClosed() error {
	if err := h.reader.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrEngineExited, err)
	}
	return fmt.Errorf("%w: end of stream", ErrEngineExited)
}

// deadline returns a channel that fires after d, or never when d <= 0.
func (h *Handle) deadline(d time.Duration) (<-chan time.Time, func()) {
	if d <= 0 {
		return nil, func() {}
	}
	t := time.NewTimer(d)
	return t.C, func() { t.Stop() }
}

func (h *Handle) opError(op string, err error) error {
	return &OpError{Op: op, Color: h.inv.Color, Path: h.inv.Path, Err: err}
}

