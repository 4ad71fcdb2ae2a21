// Package session implements the remotectl handshake every other interface
// rides on top of: opening a named remote interface yields a handle, and
// that handle is used for every subsequent invoke until it is closed.
//
// Grounded on fastrpc/hexagonrpcd/rpcd.c's remotectl_open/remotectl_close and
// fastrpc/fastrpc_remotectl.h's DEFINE_REMOTE_PROCEDURE declarations for
// remotectl_open_def/remotectl_close_def.
package session

import (
	"bytes"
	"fmt"

	"github.com/xelageo/hexagonrpc/internal/aee"
	"github.com/xelageo/hexagonrpc/internal/invoke"
	"github.com/xelageo/hexagonrpc/internal/kernel"
	"github.com/xelageo/hexagonrpc/internal/scalars"
)

// remotectlHandle is the fixed handle the remotectl interface itself always
// answers on, before any session has been opened.
const remotectlHandle = 0

// errBufSize is the size of the scratch buffer remotectl_open/close fill
// with a human-readable error string alongside the numeric AEE code.
const errBufSize = 256

var (
	remotectlOpenDesc  = scalars.Descriptor{MethodID: 0, InBuffers: 1, OutScalars: 2, OutBuffers: 1}
	remotectlCloseDesc = scalars.Descriptor{MethodID: 1, InScalars: 1, OutScalars: 1, OutBuffers: 1}
)

// Session is an open remote interface: a handle bound to a name, usable for
// further invokes until Close.
type Session struct {
	dev    kernel.Device
	handle uint32
}

// Open opens the named remote interface (e.g. "adsp_default_listener",
// "chre_slpi") and returns a Session carrying the handle it was assigned.
func Open(dev kernel.Device, name string) (*Session, error) {
	nameBuf := append([]byte(name), 0)

	res, err := invoke.New(remotectlOpenDesc).InBuf(nameBuf).OutBuf(errBufSize).Call(dev, remotectlHandle)
	if err != nil {
		return nil, fmt.Errorf("session: open %q: %w", name, err)
	}

	handle := res.OutScalars[0]
	dlret := int32(res.OutScalars[1])

	// -5 is remotectl's own "could not find local interface" sentinel,
	// predating and unrelated to the AEE error table; it carries its own
	// message in the error buffer instead of an AEE code.
	if dlret == -5 {
		return nil, fmt.Errorf("session: open %q: %s", name, cString(res.OutBufs[0]))
	}
	if dlret != 0 {
		return nil, fmt.Errorf("session: open %q: %s", name, aee.Code(dlret).String())
	}

	return &Session{dev: dev, handle: handle}, nil
}

// Close releases the session's handle.
func (s *Session) Close() error {
	res, err := invoke.New(remotectlCloseDesc).InScalar(s.handle).OutBuf(errBufSize).Call(s.dev, remotectlHandle)
	if err != nil {
		return fmt.Errorf("session: close handle %d: %w", s.handle, err)
	}

	if dlret := int32(res.OutScalars[0]); dlret != 0 {
		return fmt.Errorf("session: close handle %d: %s", s.handle, aee.Code(dlret).String())
	}
	return nil
}

// Handle returns the handle assigned by Open, used for subsequent invokes
// against this interface.
func (s *Session) Handle() uint32 {
	return s.handle
}

// Device returns the kernel device the session was opened against.
func (s *Session) Device() kernel.Device {
	return s.dev
}

func cString(buf []byte) string {
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		buf = buf[:i]
	}
	return string(buf)
}
