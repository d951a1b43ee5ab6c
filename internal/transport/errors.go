package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrUnreachable means the peer refused the connection or did not answer in time.
	ErrUnreachable = errors.New("transport: peer unreachable")
	// ErrAlreadyBound means the local endpoint or the peer's port was left
	// in a state that cannot be reused yet.
	ErrAlreadyBound = errors.New("transport: address already bound")
	// ErrTimeout means no complete response arrived before the deadline.
	ErrTimeout = errors.New("transport: timeout")
	// ErrClosed means the peer closed the connection or Close was called.
	ErrClosed = errors.New("transport: connection closed")
)

// ConnectKind classifies a ConnectError.
type ConnectKind int

const (
	Unreachable ConnectKind = iota + 1
	AlreadyBound
)

func (k ConnectKind) String() string {
	switch k {
	case Unreachable:
		return "unreachable"
	case AlreadyBound:
		return "already bound"
	default:
		return "unknown"
	}
}

// ConnectError is returned by Dial.
type ConnectError struct {
	Kind ConnectKind
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("connect %s: %s", e.Addr, e.Kind)
	}
	return fmt.Sprintf("connect %s: %s: %v", e.Addr, e.Kind, e.Err)
}

// Is matches ErrUnreachable or ErrAlreadyBound by kind.
func (e *ConnectError) Is(target error) bool {
	switch target {
	case ErrUnreachable:
		return e.Kind == Unreachable
	case ErrAlreadyBound:
		return e.Kind == AlreadyBound
	}
	return false
}

func (e *ConnectError) Unwrap() error { return e.Err }
