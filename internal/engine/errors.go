package engine

import (
	"errors"
	"fmt"

	"github.com/randomizedcoder/go-othello-arena/internal/protocol"
)

var (
	// ErrSpawn means the engine executable could not be launched.
	ErrSpawn = errors.New("engine spawn failed")

	// ErrProtocolTimeout means the engine did not answer before the deadline.
	ErrProtocolTimeout = errors.New("engine protocol timeout")

	// ErrEngineExited means the engine's stream closed or a write hit a dead pipe.
	ErrEngineExited = errors.New("engine exited")

	// ErrInvalidResponse means a well-formed reply carried impossible values.
	ErrInvalidResponse = errors.New("invalid engine response")
)

// OpError records which engine operation failed.
type OpError struct {
	Op    string // "start", "handshake", "send", "receive", "quit"
	Color protocol.Color
	Path  string
	Err   error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("engine %s (%s) %s: %v", e.Color, e.Path, e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}
