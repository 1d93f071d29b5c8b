// Package match drives one complete game between two engines: the turn
// loop, clock accounting, double-pass termination and teardown.
package match

// State is the match state machine position.
type State int

const (
	// StateInitializing spawns both engines and runs the handshake.
	StateInitializing State = iota

	// StateAwaitingMove waits on the side to move.
	StateAwaitingMove

	// StateForfeited means a clock reached zero.
	StateForfeited

	// StateFinished means two consecutive passes ended the game.
	StateFinished

	// StateAborted means an engine failed (spawn, protocol, exit) or the
	// match was cancelled.
	StateAborted
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateAwaitingMove:
		return "awaiting_move"
	case StateForfeited:
		return "forfeited"
	case StateFinished:
		return "finished"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// IsTerminal returns true once the match has produced its result.
func (s State) IsTerminal() bool {
	return s == StateForfeited || s == StateFinished || s == StateAborted
}
