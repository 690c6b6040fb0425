package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"

	"go.bug.st/serial"
)

// ErrorKind is the transport failure taxonomy reported to the link layer.
type ErrorKind int

const (
	KindIoFailure ErrorKind = iota
	KindRefusedConnection
	KindAddressInvalid
	KindPermissionDenied
	KindDeviceBusy
	KindWouldBlock
	KindClosed
)

func (k ErrorKind) String() string {
	switch k {
	case KindRefusedConnection:
		return "connection refused"
	case KindAddressInvalid:
		return "address invalid"
	case KindPermissionDenied:
		return "permission denied"
	case KindDeviceBusy:
		return "device busy"
	case KindWouldBlock:
		return "would block"
	case KindClosed:
		return "closed"
	default:
		return "i/o failure"
	}
}

var (
	ErrRefusedConnection = errors.New("transport: connection refused")
	ErrAddressInvalid    = errors.New("transport: address invalid")
	ErrPermissionDenied  = errors.New("transport: permission denied")
	ErrDeviceBusy        = errors.New("transport: device busy")
	ErrWouldBlock        = errors.New("transport: would block")
	ErrClosed            = errors.New("transport: closed")
	ErrIoFailure         = errors.New("transport: i/o failure")

	// ErrReadTimeout is returned by ReadChunk when nothing arrived within one
	// poll interval. It is not a failure.
	ErrReadTimeout = errors.New("transport: read timeout")
)

// Error is a classified transport failure.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}

	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return target == sentinel(e.Kind)
}

func sentinel(kind ErrorKind) error {
	switch kind {
	case KindRefusedConnection:
		return ErrRefusedConnection
	case KindAddressInvalid:
		return ErrAddressInvalid
	case KindPermissionDenied:
		return ErrPermissionDenied
	case KindDeviceBusy:
		return ErrDeviceBusy
	case KindWouldBlock:
		return ErrWouldBlock
	case KindClosed:
		return ErrClosed
	default:
		return ErrIoFailure
	}
}

func newError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

var errNotConnected = errors.New("not connected")

// Classify maps a raw network, OS or serial error onto the taxonomy. Context
// errors and already classified errors are returned unchanged.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var classified *Error
	if errors.As(err, &classified) {
		return err
	}

	return newError(KindOf(err), op, err)
}

// KindOf reports the taxonomy kind of a raw error.
func KindOf(err error) ErrorKind {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}

	var portErr *serial.PortError
	if errors.As(err, &portErr) {
		return serialKind(portErr.Code())
	}

	switch {
	case errors.Is(err, net.ErrClosed),
		errors.Is(err, os.ErrClosed),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE):
		return KindClosed
	case errors.Is(err, syscall.ECONNREFUSED):
		return KindRefusedConnection
	case errors.Is(err, os.ErrPermission),
		errors.Is(err, syscall.EACCES),
		errors.Is(err, syscall.EPERM):
		return KindPermissionDenied
	case errors.Is(err, syscall.EBUSY),
		errors.Is(err, syscall.EADDRINUSE):
		return KindDeviceBusy
	case errors.Is(err, syscall.EAGAIN):
		return KindWouldBlock
	case errors.Is(err, syscall.EADDRNOTAVAIL),
		errors.Is(err, os.ErrNotExist):
		return KindAddressInvalid
	}

	var addrErr *net.AddrError
	var dnsErr *net.DNSError
	var parseErr *net.ParseError
	if errors.As(err, &addrErr) || errors.As(err, &dnsErr) || errors.As(err, &parseErr) {
		return KindAddressInvalid
	}

	return KindIoFailure
}

func serialKind(code serial.PortErrorCode) ErrorKind {
	switch code {
	case serial.PortBusy:
		return KindDeviceBusy
	case serial.PermissionDenied:
		return KindPermissionDenied
	case serial.PortNotFound, serial.InvalidSerialPort,
		serial.InvalidSpeed, serial.InvalidDataBits,
		serial.InvalidParity, serial.InvalidStopBits:
		return KindAddressInvalid
	case serial.PortClosed:
		return KindClosed
	default:
		return KindIoFailure
	}
}

func isTimeout(err error) bool {
	var netErr net.Error

	return errors.As(err, &netErr) && netErr.Timeout()
}
