// Package registry implements the handle-indexed interface/procedure table
// the reverse-tunnel listener dispatches invocations through.
//
// Grounded on fastrpc/include/libhexagonrpc/interface.h's fastrpc_interface
// and fastrpc_function_impl structures (a name, an opaque procs[] vtable of
// {def, impl} pairs) and fastrpc/hexagonrpcd/listener.c's
// invoke_requested_procedure, which bounds-checks the handle against the
// interface count and the method id against that interface's proc count
// before dispatching, and rejects any call that still carries nonzero
// scalar-in/out counts (this system always folds those into buffer counts).
package registry

import (
	"github.com/xelageo/hexagonrpc/internal/aee"
	"github.com/xelageo/hexagonrpc/internal/iobuf"
	"github.com/xelageo/hexagonrpc/internal/scalars"
)

// Proc is one callable procedure slot within an Interface. A zero-value Proc
// (nil Impl) is a gap in the table, matching the NULL entries the C
// reference leaves for unassigned method ids within an interface's procs[]
// array.
type Proc struct {
	Desc scalars.Descriptor
	Impl func(inbufs, outbufs []iobuf.IOBuffer) aee.Code
}

// Interface is a named, handle-addressable group of procedures, the Go
// analogue of a populated fastrpc_interface.
type Interface struct {
	Name  string
	Procs []Proc
}

// Registry is the ordered set of interfaces a listener dispatches against;
// position in the slice is the handle value remotectl_open hands back.
type Registry struct {
	ifaces []*Interface
}

// New builds a Registry over ifaces, in handle order. Handle 0 is
// conventionally the local control interface (see package localctl).
func New(ifaces ...*Interface) *Registry {
	return &Registry{ifaces: ifaces}
}

// Names returns the interface names in handle order, for the local control
// interface's open-by-name lookup.
func (r *Registry) Names() []string {
	names := make([]string, len(r.ifaces))
	for i, iface := range r.ifaces {
		names[i] = iface.Name
	}
	return names
}

// Dispatch looks up the interface/method named by handle and the method
// field of scalarsWord, validates the decoded inbuf/outbuf counts against
// the method's descriptor, allocates scratch outbufs sized from the
// synthesized first inbuf, and calls the procedure's Impl.
//
// Mirrors invoke_requested_procedure + allocate_outbufs + check_inbuf_sizes
// from listener.c, collapsed into one call since this implementation
// decodes the whole inbound invocation before dispatch rather than streaming
// it incrementally off the wire.
func (r *Registry) Dispatch(handle uint32, scalarsWord uint32, decoded []iobuf.IOBuffer) ([]iobuf.IOBuffer, aee.Code) {
	if int(handle) >= len(r.ifaces) {
		return nil, aee.Unsupported
	}
	iface := r.ifaces[handle]

	method := scalars.Method(scalarsWord)
	if int(method) >= len(iface.Procs) {
		return nil, aee.Unsupported
	}
	proc := iface.Procs[method]
	if proc.Impl == nil {
		return nil, aee.Unsupported
	}

	wantIn := proc.Desc.EffectiveInbufs()
	wantOut := proc.Desc.EffectiveOutbufs()
	if scalars.Inbufs(scalarsWord) != wantIn || scalars.Outbufs(scalarsWord) != wantOut {
		return nil, aee.BadParam
	}
	if len(decoded) != int(wantIn) {
		return nil, aee.BadParam
	}

	if code := checkInbufSizes(proc.Desc, decoded); code != aee.Success {
		return nil, code
	}

	outSizes, err := outbufSizes(proc.Desc, decoded)
	if err != aee.Success {
		return nil, err
	}

	outbufs := make([]iobuf.IOBuffer, len(outSizes))
	for i, size := range outSizes {
		outbufs[i] = iobuf.IOBuffer{Size: size, Payload: make([]byte, size)}
	}

	result := proc.Impl(decoded, outbufs)
	return outbufs, result
}

// checkInbufSizes validates the synthesized first inbuf's own length and,
// for every declared input buffer beyond it, that its actual decoded size
// matches the length hint the caller packed for it into the first inbuf.
// Dispatched procedures index into these buffers using exactly those
// lengths (e.g. a NUL-terminator check at payload[length-1]), so an
// undersized buffer here would otherwise panic the proc instead of failing
// the call. Mirrors listener.c's check_inbuf_sizes.
func checkInbufSizes(desc scalars.Descriptor, decoded []iobuf.IOBuffer) aee.Code {
	if !desc.NeedsFirstInbuf() {
		return aee.Success
	}
	if len(decoded) == 0 {
		return aee.BadParam
	}

	first := decoded[0]
	wantFirst := 4 * (uint32(desc.InScalars) + uint32(desc.InBuffers) + uint32(desc.OutBuffers))
	if first.Size != wantFirst || uint32(len(first.Payload)) != wantFirst {
		return aee.BadParam
	}

	for i := 0; i < int(desc.InBuffers); i++ {
		idx := 1 + i
		if idx >= len(decoded) {
			return aee.BadParam
		}
		off := 4 * (int(desc.InScalars) + i)
		hint := uint32(first.Payload[off]) | uint32(first.Payload[off+1])<<8 | uint32(first.Payload[off+2])<<16 | uint32(first.Payload[off+3])<<24
		if decoded[idx].Size != hint || uint32(len(decoded[idx].Payload)) != hint {
			return aee.BadParam
		}
	}

	return aee.Success
}

// outbufSizes recovers the sizes the caller asked each outbuf to be
// allocated at, packed into the tail of the synthesized first inbuf by
// invoke.Invoke.Call (the out-buf-size-hints section of vfastrpc2's
// synthesized first inbuf — see internal/invoke).
func outbufSizes(desc scalars.Descriptor, decoded []iobuf.IOBuffer) ([]uint32, aee.Code) {
	n := int(desc.EffectiveOutbufs())
	if n == 0 {
		return nil, aee.Success
	}

	sizes := make([]uint32, n)
	if desc.NeedsFirstOutbuf() {
		sizes[0] = 4 * uint32(desc.OutScalars)
	}
	if desc.OutBuffers == 0 {
		return sizes, aee.Success
	}

	if !desc.NeedsFirstInbuf() || len(decoded) == 0 {
		return nil, aee.BadParam
	}
	first := decoded[0].Payload
	hintOffset := 4 * (int(desc.InScalars) + int(desc.InBuffers))
	need := hintOffset + 4*int(desc.OutBuffers)
	if len(first) < need {
		return nil, aee.BadParam
	}

	base := 0
	if desc.NeedsFirstOutbuf() {
		base = 1
	}
	for i := 0; i < int(desc.OutBuffers); i++ {
		off := hintOffset + 4*i
		size := uint32(first[off]) | uint32(first[off+1])<<8 | uint32(first[off+2])<<16 | uint32(first[off+3])<<24
		sizes[base+i] = size
	}
	return sizes, aee.Success
}
