package logging

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
)

const (
	// MaxLineLength is the maximum length of a single stderr line before truncation.
	MaxLineLength = 4096

	// MaxBufferedLines is the number of recent stderr lines kept per engine.
	MaxBufferedLines = 32
)

// EngineStderrHandler consumes an engine's stderr when capture is enabled.
// It keeps a ring of recent lines, attached to abort diagnostics, and logs
// each line at debug level.
type EngineStderrHandler struct {
	logger *slog.Logger

	buffer []string
	bufIdx int
	count  int
	mu     sync.Mutex
}

// NewEngineStderrHandler creates a handler. The logger should already carry
// the engine's identifying attributes (game, color, path).
func NewEngineStderrHandler(logger *slog.Logger) *EngineStderrHandler {
	return &EngineStderrHandler{
		logger: logger,
		buffer: make([]string, MaxBufferedLines),
	}
}

// HandleReader reads lines until EOF. Run it in a goroutine.
func (h *EngineStderrHandler) HandleReader(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024), MaxLineLength)

	for scanner.Scan() {
		h.HandleLine(scanner.Text())
	}
	// Drain whatever the scanner refused so the engine never blocks on stderr.
	_, _ = io.Copy(io.Discard, r)
}

// HandleLine records a single stderr line.
func (h *EngineStderrHandler) HandleLine(line string) {
	if len(line) > MaxLineLength {
		line = line[:MaxLineLength] + "...(truncated)"
	}

	h.mu.Lock()
	h.buffer[h.bufIdx] = line
	h.bufIdx = (h.bufIdx + 1) % MaxBufferedLines
	h.count++
	h.mu.Unlock()

	h.logger.Log(context.Background(), classifyLine(line), "engine_stderr", "line", line)
}

// classifyLine raises obvious failures to warn; everything else is debug.
func classifyLine(line string) slog.Level {
	lower := strings.ToLower(line)
	if strings.Contains(lower, "panic") ||
		strings.Contains(lower, "fatal") ||
		strings.Contains(lower, "segmentation fault") ||
		strings.Contains(lower, "error") {
		return slog.LevelWarn
	}
	return slog.LevelDebug
}

// RecentLines returns up to n of the most recent lines, oldest first.
func (h *EngineStderrHandler) RecentLines(n int) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n > MaxBufferedLines {
		n = MaxBufferedLines
	}
	if n > h.count {
		n = h.count
	}

	lines := make([]string, 0, n)
	for i := 0; i < n; i++ {
		idx := (h.bufIdx - n + i + MaxBufferedLines) % MaxBufferedLines
		lines = append(lines, h.buffer[idx])
	}
	return lines
}

// LineCount returns the total number of lines handled.
func (h *EngineStderrHandler) LineCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}
