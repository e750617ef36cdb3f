package engine

import "errors"

var (
	// ErrServerClosed is returned by Serve after its context is done.
	ErrServerClosed = errors.New("engine: server closed")

	// ErrRequestTooLarge means the buffer filled before the request was complete.
	ErrRequestTooLarge = errors.New("engine: request exceeds buffer")
)
