package protocol

import (
	"bufio"
	"io"
	"sync"
	"sync/atomic"
)

// LineReader turns an engine's stdout into a channel of lines so callers can
// wait on a line with a deadline or a context.
//
// Lifecycle:
//
//  1. lr := NewLineReader(stdout)
//  2. go lr.Run()
//  3. select on lr.Lines() with a timer
//  4. lr.Close() when the engine is torn down
//
// Unlike a progress pipeline, no line is ever dropped: every reply matters.
type LineReader struct {
	reader io.Reader
	lines  chan string
	stop   chan struct{}

	closeOnce sync.Once
	err       atomic.Value // error from the scanner, set before lines is closed

	linesRead atomic.Int64
}

// NewLineReader creates a reader over r. bufferSize bounds how many unread
// lines may be queued before Run blocks.
func NewLineReader(r io.Reader, bufferSize int) *LineReader {
	if bufferSize <= 0 {
		bufferSize = 16
	}
	return &LineReader{
		reader: r,
		lines:  make(chan string, bufferSize),
		stop:   make(chan struct{}),
	}
}

// Run reads lines until EOF or Close. The lines channel is always closed on
// exit so a waiting reader observes end-of-stream.
func (lr *LineReader) Run() {
	defer close(lr.lines)

	scanner := bufio.NewScanner(lr.reader)
	const maxLineSize = 64 * 1024
	scanner.Buffer(make([]byte, 4096), maxLineSize)

	for scanner.Scan() {
		lr.linesRead.Add(1)
		select {
		case lr.lines <- scanner.Text():
		case <-lr.stop:
			return
		}
	}
	if err := scanner.Err(); err != nil {
		lr.err.Store(err)
	}
}

// Lines returns the channel of received lines. It is closed at end-of-stream.
func (lr *LineReader) Lines() <-chan string {
	return lr.lines
}

// Err returns the read error that ended the stream, if any. It is nil for a
// clean EOF. Only meaningful after Lines() has been closed.
func (lr *LineReader) Err() error {
	if v := lr.err.Load(); v != nil {
		return v.(error)
	}
	return nil
}

// Close stops delivery. Safe to call multiple times.
func (lr *LineReader) Close() {
	lr.closeOnce.Do(func() { close(lr.stop) })
}

// LinesRead returns the number of lines read from the stream.
func (lr *LineReader) LinesRead() int64 {
	return lr.linesRead.Load()
}
