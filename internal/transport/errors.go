package transport

import (
	"errors"
	"fmt"
	"net"
	"os"
)

var (
	// ErrTimedOut is returned by ReceiveWithDeadline when the deadline
	// passes before a datagram arrives. It is a normal outcome, not a
	// failure.
	ErrTimedOut = errors.New("receive timed out")
	// ErrClosed is returned by receive and send calls on a closed socket.
	ErrClosed = errors.New("socket closed")
)

// SetupErrorKind classifies why a socket could not be prepared.
type SetupErrorKind int

const (
	// InterfaceUnavailable means the interface has no address of the
	// requested family, is not multicast-capable, or no eligible interface
	// exists at all.
	InterfaceUnavailable SetupErrorKind = iota
	// BindFailed means the socket could not be created, bound or configured.
	BindFailed
	// JoinFailed means multicast group membership was refused.
	JoinFailed
)

// String returns a human-readable name for the kind
func (k SetupErrorKind) String() string {
	switch k {
	case InterfaceUnavailable:
		return "InterfaceUnavailable"
	case BindFailed:
		return "BindFailed"
	case JoinFailed:
		return "JoinFailed"
	default:
		return fmt.Sprintf("SetupErrorKind(%d)", int(k))
	}
}

// SetupError is returned when a socket cannot be opened, bound, configured
// or joined to its group.
type SetupError struct {
	Kind      SetupErrorKind
	Interface string // interface name, empty for the wildcard socket
	Err       error  // underlying cause, if any
}

// Error implements the error interface
func (e *SetupError) Error() string {
	where := e.Interface
	if where == "" {
		where = "all interfaces"
	}
	if e.Err != nil {
		return fmt.Sprintf("socket setup failed (%s) on %s: %v", e.Kind, where, e.Err)
	}
	return fmt.Sprintf("socket setup failed (%s) on %s", e.Kind, where)
}

// Unwrap returns the underlying error for error chain inspection
func (e *SetupError) Unwrap() error {
	return e.Err
}

// Is matches another *SetupError of the same kind.
func (e *SetupError) Is(target error) bool {
	t, ok := target.(*SetupError)
	return ok && t.Kind == e.Kind
}

// IoError wraps a send or receive failure on an open socket.
type IoError struct {
	Op  string // "send" or "receive"
	Err error
}

// Error implements the error interface
func (e *IoError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *IoError) Unwrap() error {
	return e.Err
}

// IsSetupError reports whether err is, or wraps, a *SetupError of kind.
func IsSetupError(err error, kind SetupErrorKind) bool {
	return errors.Is(err, &SetupError{Kind: kind})
}

// classifyReadError maps a socket read error to ErrTimedOut, ErrClosed or
// an IoError.
func classifyReadError(err error) error {
	switch {
	case errors.Is(err, net.ErrClosed):
		return ErrClosed
	case errors.Is(err, os.ErrDeadlineExceeded):
		return ErrTimedOut
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimedOut
	}
	return &IoError{Op: "receive", Err: err}
}

func classifyWriteError(err error) error {
	if errors.Is(err, net.ErrClosed) {
		return ErrClosed
	}
	return &IoError{Op: "send", Err: err}
}
