// Package hexagonrpc is the public API for the FastRPC bridge daemon: it
// wires a kernel.Device, a session, a registry of served interfaces, and the
// listener loop into one runnable Daemon.
package hexagonrpc

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/xelageo/hexagonrpc/internal/aee"
)

// Error represents a structured hexagonrpc error with invocation context and
// AEE code mapping.
type Error struct {
	Op     string    // Operation that failed (e.g., "INIT_ATTACH", "INVOKE")
	Handle uint32    // Interface handle involved (0 if not applicable)
	Method uint32     // Method id involved (0 if not applicable)
	Code   aee.Code  // AEE result code
	Errno  syscall.Errno // Kernel errno (0 if not applicable)
	Msg    string    // Human-readable message
	Inner  error     // Wrapped error
}

// Error implements the error interface
func (e *Error) Error() string {
	var parts []string

	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}

	if e.Handle != 0 {
		parts = append(parts, fmt.Sprintf("handle=%d", e.Handle))
	}

	if e.Errno != 0 {
		parts = append(parts, fmt.Sprintf("errno=%d", e.Errno))
	}

	msg := e.Msg
	if msg == "" {
		msg = e.Code.String()
	}

	if len(parts) > 0 {
		return fmt.Sprintf("hexagonrpc: %s (%s)", msg, parts[0])
	}

	return fmt.Sprintf("hexagonrpc: %s", msg)
}

// Unwrap returns the wrapped error for errors.Is/As support
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is provides errors.Is support for comparing two structured errors by code
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == te.Code
}

// Error constructors

// NewError creates a new structured error
func NewError(op string, code aee.Code, msg string) *Error {
	return &Error{
		Op:   op,
		Code: code,
		Msg:  msg,
	}
}

// NewErrorWithErrno creates a new structured error carrying the kernel errno
// that produced it
func NewErrorWithErrno(op string, errno syscall.Errno) *Error {
	return &Error{
		Op:    op,
		Code:  mapErrnoToCode(errno),
		Errno: errno,
		Msg:   errno.Error(),
	}
}

// NewHandleError creates an error scoped to a specific interface handle
func NewHandleError(op string, handle uint32, code aee.Code, msg string) *Error {
	return &Error{
		Op:     op,
		Handle: handle,
		Code:   code,
		Msg:    msg,
	}
}

// NewInvocationError creates an error scoped to a specific handle/method pair
func NewInvocationError(op string, handle, method uint32, code aee.Code, msg string) *Error {
	return &Error{
		Op:     op,
		Handle: handle,
		Method: method,
		Code:   code,
		Msg:    msg,
	}
}

// WrapError wraps an existing error with hexagonrpc context
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}

	// If it's already a structured error, just update the operation
	if he, ok := inner.(*Error); ok {
		return &Error{
			Op:     op,
			Handle: he.Handle,
			Method: he.Method,
			Code:   he.Code,
			Errno:  he.Errno,
			Msg:    he.Msg,
			Inner:  he.Inner,
		}
	}

	if errno, ok := inner.(syscall.Errno); ok {
		return &Error{
			Op:    op,
			Code:  mapErrnoToCode(errno),
			Errno: errno,
			Msg:   errno.Error(),
			Inner: inner,
		}
	}

	return &Error{
		Op:    op,
		Code:  aee.GeneralFailure,
		Msg:   inner.Error(),
		Inner: inner,
	}
}

// mapErrnoToCode bridges a host syscall.Errno (failures opening the device
// node or walking HexagonFS paths) onto the nearest AEE result code, per the
// "local vs surfaced" distinction between host errors and wire-level AEE
// codes a served procedure returns.
func mapErrnoToCode(errno syscall.Errno) aee.Code {
	switch errno {
	case syscall.ENOENT, syscall.ENOTDIR:
		return aee.ResourceNotFound
	case syscall.EBUSY:
		return aee.Already
	case syscall.EINVAL, syscall.E2BIG:
		return aee.BadParam
	case syscall.ENOSYS, syscall.EOPNOTSUPP:
		return aee.Unsupported
	case syscall.EPERM, syscall.EACCES:
		return aee.PrivLevel
	case syscall.ENOMEM, syscall.ENOSPC:
		return aee.OutOfMemory
	default:
		return aee.GeneralFailure
	}
}

// IsCode checks if an error matches a specific AEE code
func IsCode(err error, code aee.Code) bool {
	var hrErr *Error
	if errors.As(err, &hrErr) {
		return hrErr.Code == code
	}
	return false
}

// IsErrno checks if an error matches a specific errno
func IsErrno(err error, errno syscall.Errno) bool {
	var hrErr *Error
	if errors.As(err, &hrErr) {
		return hrErr.Errno == errno
	}
	return false
}
