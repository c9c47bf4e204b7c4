package game

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState marks an operation invoked in the wrong phase of the game.
	ErrInvalidState = errors.New("invalid state")
	// ErrInvariantViolation marks a broken game invariant. It is always fatal.
	ErrInvariantViolation = errors.New("invariant violation")
	// ErrInvalidConfig is returned by New for unusable options.
	ErrInvalidConfig = errors.New("invalid game configuration")
	// ErrGameOver is returned to waiters woken by the end of the game.
	ErrGameOver = errors.New("game over")
)

// InvalidStateError reports which operation was refused and why.
type InvalidStateError struct {
	Op     string
	Reason string
	Err    error
}

func (e *InvalidStateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func (e *InvalidStateError) Is(target error) bool { return target == ErrInvalidState }

func (e *InvalidStateError) Unwrap() error { return e.Err }

func invalidState(op, format string, args ...any) error {
	return &InvalidStateError{Op: op, Reason: fmt.Sprintf(format, args...)}
}

// InvariantViolation reports a broken invariant detected at the end of a round.
type InvariantViolation struct {
	Round     int
	Invariant string
	Detail    string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("round %d: %s violated: %s", e.Round, e.Invariant, e.Detail)
}

func (e *InvariantViolation) Is(target error) bool { return target == ErrInvariantViolation }
