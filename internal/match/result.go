package match

import (
	"fmt"
	"time"

	"github.com/randomizedcoder/go-othello-arena/internal/book"
	"github.com/randomizedcoder/go-othello-arena/internal/protocol"
)

// Outcome classifies how a match ended.
type Outcome int

const (
	// OutcomeNormal is a double-pass finish with engine-reported counts.
	OutcomeNormal Outcome = iota

	// OutcomeTimeForfeit means ForfeitColor's clock ran out; counts are
	// forced to 0 for the loser and 64 for the winner.
	OutcomeTimeForfeit

	// OutcomeAborted means the match could not be completed.
	OutcomeAborted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNormal:
		return "normal"
	case OutcomeTimeForfeit:
		return "time_forfeit"
	case OutcomeAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Result is the immutable record of one match.
type Result struct {
	Game     int
	Position book.Position

	Outcome Outcome
	Black   int
	White   int

	// ForfeitColor is set for OutcomeTimeForfeit.
	ForfeitColor protocol.Color

	// Culprit is the color whose engine caused an abort. CulpritKnown is
	// false when the abort was not attributable (e.g. cancellation).
	Culprit      protocol.Color
	CulpritKnown bool
	Reason       string
	Err          error

	// CulpritExit is the culprit engine's exit status when the abort was
	// its process exiting on its own.
	CulpritExit      int
	CulpritExitKnown bool

	// Turns counts accepted moves; Moves holds them as x + 8*y (pass = -9).
	Turns int
	Moves []int

	// MoveTimes are the measured per-turn times for each color.
	MoveTimes [2][]time.Duration
	Duration  time.Duration
}

// Completed reports whether the match produced a score (normal or forfeit).
func (r Result) Completed() bool {
	return r.Outcome != OutcomeAborted
}

// Line returns the results-stream line for the match.
func (r Result) Line() string {
	switch r.Outcome {
	case OutcomeTimeForfeit:
		return fmt.Sprintf("Time loss at move %d", r.Turns)
	case OutcomeAborted:
		return fmt.Sprintf("Aborted at move %d: %s", r.Turns, r.Reason)
	default:
		return fmt.Sprintf("%d-%d", r.Black, r.White)
	}
}

// ThinkTime returns the total measured time for a color.
func (r Result) ThinkTime(color protocol.Color) time.Duration {
	var total time.Duration
	for _, d := range r.MoveTimes[color] {
		total += d
	}
	return total
}
