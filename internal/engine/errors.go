package engine

import (
	"errors"
	"fmt"

	"cryptobacktest/types"
)

var (
	ErrInsufficientData  = errors.New("not enough bars for strategy warmup")
	ErrInvalidTransition = errors.New("invalid portfolio transition")
	ErrEmptyRun          = errors.New("run produced no equity points")
	ErrNoStrategy        = errors.New("no strategy given")
)

type InsufficientDataError struct {
	Have int
	Need int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("have %d bars, need at least %d", e.Have, e.Need)
}

func (e *InsufficientDataError) Unwrap() error {
	return ErrInsufficientData
}

// TransitionError is a Buy without cash or a Sell without a position.
// Run treats it as Hold, it never escapes.
type TransitionError struct {
	Signal types.Signal
	Reason string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s: %s", e.Signal, e.Reason)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
