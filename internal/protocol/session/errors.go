package session

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

var (
	ErrNoRuntimeDir     = errors.New("session: XDG_RUNTIME_DIR not set and display name is relative")
	ErrBadSocketFD      = errors.New("session: invalid inherited socket descriptor")
	ErrClosed           = errors.New("session: connection closed")
	ErrUnknownInterface = errors.New("session: interface not in catalog")
	ErrMissingDisplay   = errors.New("session: catalog has no wl_display")
	ErrFDsTruncated     = errors.New("session: received descriptors truncated")
)

// SetupError is a failure before any object exists.
type SetupError struct {
	Op  string
	Err error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("session: %s: %v", e.Op, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// ProtocolError is a fatal violation detected on inbound data: a bad
// frame, an unknown or freed target id, an undeclared opcode or a decode
// failure.
type ProtocolError struct {
	ObjectID uint32
	Opcode   uint16
	Err      error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("session: protocol error on object %d opcode %d: %v", e.ObjectID, e.Opcode, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// DisplayError is the server's wl_display.error event. The connection is
// unusable afterwards; closing it is left to the caller.
type DisplayError struct {
	ObjectID  uint32
	Interface string
	Code      uint32
	Message   string
}

func (e *DisplayError) Error() string {
	if e.Interface != "" {
		return fmt.Sprintf("session: display error on %s@%d code %d: %s", e.Interface, e.ObjectID, e.Code, e.Message)
	}
	return fmt.Sprintf("session: display error on object %d code %d: %s", e.ObjectID, e.Code, e.Message)
}

// IsExpectedCloseError reports whether err is the peer going away rather
// than a fault in the stream.
func IsExpectedCloseError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, ErrClosed) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EPIPE || errno == syscall.ECONNRESET
	}
	return false
}
