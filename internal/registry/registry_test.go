package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xelageo/hexagonrpc/internal/aee"
	"github.com/xelageo/hexagonrpc/internal/iobuf"
	"github.com/xelageo/hexagonrpc/internal/scalars"
)

func firstInbufFor(desc scalars.Descriptor, inScalars []uint32, inBufSizes, outBufSizes []uint32) iobuf.IOBuffer {
	words := append(append(append([]uint32{}, inScalars...), inBufSizes...), outBufSizes...)
	buf := make([]byte, 4*len(words))
	for i, w := range words {
		buf[4*i] = byte(w)
		buf[4*i+1] = byte(w >> 8)
		buf[4*i+2] = byte(w >> 16)
		buf[4*i+3] = byte(w >> 24)
	}
	return iobuf.IOBuffer{Size: uint32(len(buf)), Payload: buf}
}

func TestDispatchRejectsUnknownHandle(t *testing.T) {
	r := New(&Interface{Name: "a"})
	_, code := r.Dispatch(5, scalars.Encode(0, 0, 0), nil)
	assert.Equal(t, aee.Unsupported, code)
}

func TestDispatchRejectsUnknownMethod(t *testing.T) {
	r := New(&Interface{Name: "a", Procs: make([]Proc, 2)})
	_, code := r.Dispatch(0, scalars.Encode(7, 0, 0), nil)
	assert.Equal(t, aee.Unsupported, code)
}

func TestDispatchRejectsCountMismatch(t *testing.T) {
	desc := scalars.Descriptor{MethodID: 1, InBuffers: 1}
	r := New(&Interface{Name: "a", Procs: []Proc{{}, {Desc: desc, Impl: func(in, out []iobuf.IOBuffer) aee.Code { return aee.Success }}}})

	_, code := r.Dispatch(0, scalars.Encode(1, 0, 0), nil)
	assert.Equal(t, aee.BadParam, code)
}

func TestDispatchCallsImplAndAllocatesOutbufs(t *testing.T) {
	desc := scalars.Descriptor{MethodID: 3, OutScalars: 2, OutBuffers: 1}
	first := firstInbufFor(desc, nil, nil, []uint32{64})

	var gotIn []iobuf.IOBuffer
	impl := func(in, out []iobuf.IOBuffer) aee.Code {
		gotIn = in
		out[1].Payload[0] = 0xAB
		return aee.Success
	}

	r := New(&Interface{Name: "a", Procs: []Proc{{}, {}, {}, {Desc: desc, Impl: impl}}})
	out, code := r.Dispatch(0, desc.Scalars(), []iobuf.IOBuffer{first})

	require.Equal(t, aee.Success, code)
	require.Len(t, out, 2)
	assert.Equal(t, uint32(8), out[0].Size)
	assert.Equal(t, uint32(64), out[1].Size)
	assert.Equal(t, byte(0xAB), out[1].Payload[0])
	require.Len(t, gotIn, 1)
	assert.Equal(t, first.Payload, gotIn[0].Payload)
}

func TestDispatchBadParamOnMissingSizeHints(t *testing.T) {
	desc := scalars.Descriptor{MethodID: 1, OutBuffers: 1}
	r := New(&Interface{Name: "a", Procs: []Proc{{}, {Desc: desc, Impl: func(in, out []iobuf.IOBuffer) aee.Code { return aee.Success }}}})

	first := iobuf.IOBuffer{Size: 0, Payload: []byte{}}
	_, code := r.Dispatch(0, desc.Scalars(), []iobuf.IOBuffer{first})
	assert.Equal(t, aee.BadParam, code)
}

func TestDispatchBadParamOnShortFirstInbuf(t *testing.T) {
	desc := scalars.Descriptor{MethodID: 1, InScalars: 2, InBuffers: 1}
	r := New(&Interface{Name: "a", Procs: []Proc{{}, {Desc: desc, Impl: func(in, out []iobuf.IOBuffer) aee.Code {
		t.Fatal("proc must not be invoked on a malformed first inbuf")
		return aee.Success
	}}}})

	// wantFirst is 4*(2+1+0)=12 bytes; this first inbuf is short by a word.
	first := iobuf.IOBuffer{Size: 8, Payload: make([]byte, 8)}
	second := iobuf.IOBuffer{Size: 4, Payload: make([]byte, 4)}

	_, code := r.Dispatch(0, desc.Scalars(), []iobuf.IOBuffer{first, second})
	assert.Equal(t, aee.BadParam, code)
}

func TestDispatchBadParamOnInbufSizeMismatch(t *testing.T) {
	desc := scalars.Descriptor{MethodID: 1, InBuffers: 1}
	r := New(&Interface{Name: "a", Procs: []Proc{{}, {Desc: desc, Impl: func(in, out []iobuf.IOBuffer) aee.Code {
		t.Fatal("proc must not be invoked when the inbuf doesn't match its declared length hint")
		return aee.Success
	}}}})

	// The first inbuf's length hint for inbuf[1] says 16 bytes, but inbuf[1]
	// only decoded to 4 — a malformed caller shouldn't be able to reach the
	// proc with an undersized buffer it will index into.
	first := firstInbufFor(desc, nil, []uint32{16}, nil)
	second := iobuf.IOBuffer{Size: 4, Payload: make([]byte, 4)}

	_, code := r.Dispatch(0, desc.Scalars(), []iobuf.IOBuffer{first, second})
	assert.Equal(t, aee.BadParam, code)
}

func TestNamesReflectsHandleOrder(t *testing.T) {
	r := New(&Interface{Name: "localctl"}, &Interface{Name: "apps_std"})
	assert.Equal(t, []string{"localctl", "apps_std"}, r.Names())
}
