package connection

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	ErrInvalidArgument = errors.New("connection: invalid argument")
	ErrInvalidState    = errors.New("connection: invalid state")
	ErrReleased        = errors.New("connection: handle released")
	ErrCallbackPanic   = errors.New("connection: callback panicked")
)

// ArgumentError reports a rejected registration argument.
type ArgumentError struct {
	Field  string
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("connection: invalid %s: %s", e.Field, e.Reason)
}

func (e *ArgumentError) Is(target error) bool {
	return target == ErrInvalidArgument
}

// StateError reports an operation attempted in the wrong lifecycle state.
type StateError struct {
	Op    string
	ID    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("connection %s: cannot %s while %s", e.ID, e.Op, e.State)
}

func (e *StateError) Is(target error) bool {
	return target == ErrInvalidState
}

// TransportError wraps a dial, write or close failure.
type TransportError struct {
	Op  string
	ID  string
	URI string
	Err error
}

func (e *TransportError) Error() string {
	if e.URI != "" {
		return fmt.Sprintf("connection %s: %s %s: %v", e.ID, e.Op, e.URI, e.Err)
	}
	return fmt.Sprintf("connection %s: %s: %v", e.ID, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// CallbackError wraps an error returned (or a panic raised) by a callback.
type CallbackError struct {
	Hook string
	ID   string
	Err  error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("connection %s: %s: %v", e.ID, e.Hook, e.Err)
}

func (e *CallbackError) Unwrap() error {
	return e.Err
}
