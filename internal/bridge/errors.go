package bridge

import "errors"

var (
	// ErrInvalidCommand is returned for an unknown command name.
	ErrInvalidCommand = errors.New("bridge: invalid command")

	// ErrInvalidValue is returned when a command value is missing or out of range.
	ErrInvalidValue = errors.New("bridge: invalid value")

	// ErrStopped is returned by operations after Stop.
	ErrStopped = errors.New("bridge: stopped")
)
