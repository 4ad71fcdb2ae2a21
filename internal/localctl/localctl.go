// Package localctl implements the remotectl interface: the fixed,
// handle-zero interface a session uses to resolve an interface name (such as
// "apps_std") to the handle it will use for every subsequent invocation.
//
// Grounded on fastrpc/hexagonrpcd/localctl.c's localctl_open/localctl_close
// and fastrpc/fastrpc_remotectl.h's DEFINE_REMOTE_PROCEDURE declarations.
package localctl

import (
	"strings"

	"github.com/xelageo/hexagonrpc/internal/aee"
	"github.com/xelageo/hexagonrpc/internal/iobuf"
	"github.com/xelageo/hexagonrpc/internal/registry"
	"github.com/xelageo/hexagonrpc/internal/scalars"
)

// NotFound is the sentinel localctl_open returns (as its result word,
// instead of an aee.Code) when no registered interface matches the
// requested name. Taken from Android code, per the C reference's comment;
// it predates and is unrelated to the AEE error table.
const NotFound = -5

// notFoundCode is NotFound reinterpreted as the uint32 result word a
// procedure impl returns — the two's-complement encoding of -5.
const notFoundCode aee.Code = 0xFFFFFFFB

var (
	openDesc  = scalars.Descriptor{MethodID: 0, InBuffers: 1, OutScalars: 2, OutBuffers: 1}
	closeDesc = scalars.Descriptor{MethodID: 1, InScalars: 1, OutScalars: 1, OutBuffers: 1}
)

// Interfaces supplies the handle-ordered interface name list localctl_open
// searches. It is a func rather than a plain slice because the local
// control interface's own handle (0) must be registered in the same
// registry.Registry it then needs to query by name — the Go analogue of
// fastrpc_localctl_init receiving the shared ifaces array pointer before it
// has been fully populated.
type Interfaces func() []string

// NewInterface builds the "remotectl" registry.Interface. names is consulted
// fresh on every Open call, so it may be registry.Registry.Names bound to a
// Registry that includes this very interface at handle 0.
func NewInterface(names Interfaces) *registry.Interface {
	return &registry.Interface{
		Name: "remotectl",
		Procs: []registry.Proc{
			{Desc: openDesc, Impl: open(names)},
			{Desc: closeDesc, Impl: closeImpl},
		},
	}
}

func open(names Interfaces) func(inbufs, outbufs []iobuf.IOBuffer) aee.Code {
	return func(inbufs, outbufs []iobuf.IOBuffer) aee.Code {
		name := inbufs[1].Payload
		if len(name) == 0 || name[len(name)-1] != 0 {
			return aee.BadParam
		}

		for i := range outbufs[1].Payload {
			outbufs[1].Payload[i] = 0
		}

		wanted := strings.TrimRight(string(name), "\x00")
		for handle, iface := range names() {
			if iface == wanted {
				putU32(outbufs[0].Payload[0:4], uint32(handle))
				putU32(outbufs[0].Payload[4:8], 0)
				return aee.Success
			}
		}

		putU32(outbufs[0].Payload[0:4], 0)
		putU32(outbufs[0].Payload[4:8], uint32(notFoundCode))
		return notFoundCode
	}
}

func closeImpl(inbufs, outbufs []iobuf.IOBuffer) aee.Code {
	for i := range outbufs[1].Payload {
		outbufs[1].Payload[i] = 0
	}
	putU32(outbufs[0].Payload[0:4], 0)
	return aee.Success
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
