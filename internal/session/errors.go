package session

import (
	"errors"
	"fmt"
)

var (
	ErrNotOpen      = errors.New("session not open")
	ErrInvalidState = errors.New("invalid session state")
	ErrBackpressure = errors.New("send queue full")
	ErrTransport    = errors.New("transport failure")

	// ErrRemoteClosed is the cause recorded when the remote side ends the
	// connection without reporting an error.
	ErrRemoteClosed = errors.New("closed by remote")
)

// TransportError is a connection-level failure. It is the only error a
// user is expected to act on.
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

func (e *TransportError) Unwrap() error { return e.Err }
