package match

import (
	"time"

	"github.com/randomizedcoder/go-othello-arena/internal/protocol"
)

// Clock holds each color's remaining time in milliseconds. There is no
// increment: every turn only subtracts.
type Clock struct {
	remaining [2]int64
	floor     bool
}

// NewClock starts both colors at budgetMs. With floor set, every turn costs
// at least 1ms so an instant engine still runs its clock down.
func NewClock(budgetMs int64, floor bool) *Clock {
	return &Clock{
		remaining: [2]int64{budgetMs, budgetMs},
		floor:     floor,
	}
}

// Remaining returns the color's remaining milliseconds.
func (c *Clock) Remaining(color protocol.Color) int64 {
	return c.remaining[color]
}

// Charge subtracts one turn's elapsed time and reports whether the color has
// now run out (remaining <= 0).
func (c *Clock) Charge(color protocol.Color, elapsed time.Duration) (expired bool) {
	ms := elapsed.Milliseconds()
	if c.floor && ms < 1 {
		ms = 1
	}
	c.remaining[color] -= ms
	return c.remaining[color] <= 0
}
