// Package book loads the opening book: an ordered, read-only list of
// starting positions handed verbatim to the engines.
package book

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Position is one opening descriptor. The orchestrator never interprets the
// fields; they are passed to the engines as two command-line arguments.
type Position struct {
	Fields [2]string
}

// String returns the descriptor in its book form ("<field0> <field1>").
func (p Position) String() string {
	return p.Fields[0] + " " + p.Fields[1]
}

// Args returns the descriptor fields as engine arguments.
func (p Position) Args() []string {
	return []string{p.Fields[0], p.Fields[1]}
}

// ParsePosition splits a book line into a Position.
// The line must contain exactly two whitespace-separated fields.
func ParsePosition(line string) (Position, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return Position{}, fmt.Errorf("position %q: want 2 fields, got %d", line, len(fields))
	}
	return Position{Fields: [2]string{fields[0], fields[1]}}, nil
}

// Book is the loaded list of opening positions.
type Book struct {
	positions []Position
}

// New creates a book from already parsed positions.
func New(positions []Position) *Book {
	p := make([]Position, len(positions))
	copy(p, positions)
	return &Book{positions: p}
}

// Load reads a book file from disk.
func Load(path string) (*Book, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open book: %w", err)
	}
	defer f.Close()

	b, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("read book %s: %w", path, err)
	}
	return b, nil
}

// Read parses one position per line. Blank lines and lines starting with
// "//" are skipped.
func Read(r io.Reader) (*Book, error) {
	var positions []Position

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		pos, err := ParsePosition(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		positions = append(positions, pos)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return &Book{positions: positions}, nil
}

// Len returns the number of positions.
func (b *Book) Len() int {
	return len(b.positions)
}

// At returns the i-th position in book order.
func (b *Book) At(i int) Position {
	return b.positions[i]
}

// Head returns a book of the first n positions. n <= 0 or n >= Len
// returns b itself.
func (b *Book) Head(n int) *Book {
	if n <= 0 || n >= len(b.positions) {
		return b
	}
	return New(b.positions[:n])
}

// Range is a half-open [Start, End) slice of book indices.
type Range struct {
	Start int
	End   int
}

// Len returns the number of positions in the range.
func (r Range) Len() int {
	return r.End - r.Start
}

// Partition splits the book into n disjoint contiguous ranges covering every
// position. Range sizes differ by at most one; when n exceeds the book size
// the trailing ranges are empty.
func (b *Book) Partition(n int) []Range {
	if n < 1 {
		n = 1
	}

	total := len(b.positions)
	size := total / n
	extra := total % n

	ranges := make([]Range, n)
	start := 0
	for i := 0; i < n; i++ {
		end := start + size
		if i < extra {
			end++
		}
		ranges[i] = Range{Start: start, End: end}
		start = end
	}
	return ranges
}
