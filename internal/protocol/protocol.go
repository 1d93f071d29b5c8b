// Package protocol implements the line-oriented engine protocol.
//
// Conversation with one engine:
//
//	-> isready
//	<- ready
//	-> <lastX> <lastY> <remainingMs>      (first turn: -1 -1 <ms>)
//	<- <x> <y> <blackCount> <whiteCount>  ((-1,-1) is a pass)
//	...
//	-> quit
package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Protocol keywords.
const (
	ReadyProbe = "isready"
	ReadyReply = "ready"
	QuitLine   = "quit"
)

// BoardSquares is the maximal piece count on an 8x8 board.
const BoardSquares = 64

// ErrOutOfRange is returned by Response.Validate for well-formed lines whose
// values cannot describe a move on an 8x8 board.
var ErrOutOfRange = errors.New("response out of range")

// Move is a board coordinate. Pass is encoded as (-1,-1).
type Move struct {
	X int
	Y int
}

// Pass is the sentinel move meaning "no legal move".
var Pass = Move{X: -1, Y: -1}

// IsPass reports whether m is the pass sentinel.
func (m Move) IsPass() bool {
	return m == Pass
}

// Square returns the square index x + 8*y. A pass maps to -9.
func (m Move) Square() int {
	return m.X + 8*m.Y
}

// InBoard reports whether m is a pass or lies in [0,7]x[0,7].
func (m Move) InBoard() bool {
	if m.IsPass() {
		return true
	}
	return m.X >= 0 && m.X < 8 && m.Y >= 0 && m.Y < 8
}

func (m Move) String() string {
	return strconv.Itoa(m.X) + " " + strconv.Itoa(m.Y)
}

// Response is one parsed engine reply.
type Response struct {
	Move  Move
	Black int
	White int
}

// Validate range-checks a parsed response.
func (r Response) Validate() error {
	if !r.Move.InBoard() {
		return fmt.Errorf("%w: move (%d,%d)", ErrOutOfRange, r.Move.X, r.Move.Y)
	}
	if r.Black < 0 || r.White < 0 || r.Black+r.White > BoardSquares {
		return fmt.Errorf("%w: counts %d-%d", ErrOutOfRange, r.Black, r.White)
	}
	return nil
}

// FormatRequest builds the per-turn request line (without newline).
func FormatRequest(last Move, remainingMs int64) string {
	return last.String() + " " + strconv.FormatInt(remainingMs, 10)
}

// ParseResponse parses a reply line. ok is false for any line that does not
// contain exactly four integer fields; such lines are skipped by callers.
func ParseResponse(line string) (r Response, ok bool) {
	fields := strings.Fields(line)
	if len(fields) != 4 {
		return Response{}, false
	}

	var vals [4]int
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return Response{}, false
		}
		vals[i] = v
	}

	return Response{
		Move:  Move{X: vals[0], Y: vals[1]},
		Black: vals[2],
		White: vals[3],
	}, true
}

// Color is the side an engine plays. Its string form is the first engine
// startup argument.
type Color int

const (
	Black Color = iota
	White
)

func (c Color) String() string {
	if c == White {
		return "white"
	}
	return "black"
}

// Opponent returns the other color.
func (c Color) Opponent() Color {
	return 1 - c
}
