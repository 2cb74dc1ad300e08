package rnet

import "errors"

// Domain errors for the RNet engine.
var (
	// ErrNotConnected is returned by send operations while the manager is
	// not online. It never triggers a reconnect on its own.
	ErrNotConnected = errors.New("rnet: no active connection")

	// ErrConnectionFailed is returned when the transport cannot be opened.
	ErrConnectionFailed = errors.New("rnet: connection failed")

	// ErrWriteFailed is returned when writing a frame to the transport fails.
	ErrWriteFailed = errors.New("rnet: write failed")

	// ErrInvalidConnectionString is returned when a connection string is
	// empty or malformed.
	ErrInvalidConnectionString = errors.New("rnet: invalid connection string")

	// ErrTemplateOffset is returned when a command template offset falls
	// outside the template bytes.
	ErrTemplateOffset = errors.New("rnet: template offset out of bounds")

	// ErrInvalidZone is returned when a controller or zone number cannot be
	// represented on the wire.
	ErrInvalidZone = errors.New("rnet: invalid zone address")

	// ErrUnknownCommand is returned for an unrecognised command kind.
	ErrUnknownCommand = errors.New("rnet: unknown command")
)
