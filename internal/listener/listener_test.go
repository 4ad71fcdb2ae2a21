package listener

import (
	"context"
	"encoding/binary"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xelageo/hexagonrpc/internal/aee"
	"github.com/xelageo/hexagonrpc/internal/iobuf"
	"github.com/xelageo/hexagonrpc/internal/kernel"
	"github.com/xelageo/hexagonrpc/internal/registry"
	"github.com/xelageo/hexagonrpc/internal/scalars"
)

// fakeListenerDevice scripts the adsp_listener init2/next2 round trips: the
// first Invoke call (init2) just succeeds; the second (the first next2) is
// patched to hand back one encoded invocation and then cancel the test's
// context so the Run loop stops cleanly after servicing it.
type fakeListenerDevice struct {
	*kernel.Stub
	calls    int
	cancel   context.CancelFunc
	handle   uint32
	sc       uint32
	invoke   []byte
}

func (f *fakeListenerDevice) Invoke(handle uint32, scalarsWord uint32, args []kernel.InvokeArg) error {
	if err := f.Stub.Invoke(handle, scalarsWord, args); err != nil {
		return err
	}
	f.calls++
	if f.calls == 1 {
		return nil // init2: no args to patch
	}

	firstOutbuf := args[len(args)-2]
	writeArg(firstOutbuf, func(buf []byte) {
		binary.LittleEndian.PutUint32(buf[0:], 1) // next rctx
		binary.LittleEndian.PutUint32(buf[4:], f.handle)
		binary.LittleEndian.PutUint32(buf[8:], f.sc)
		binary.LittleEndian.PutUint32(buf[12:], uint32(len(f.invoke)))
	})

	rawInbufs := args[len(args)-1]
	writeArg(rawInbufs, func(buf []byte) {
		copy(buf, f.invoke)
	})

	if f.calls == 2 && f.cancel != nil {
		f.cancel()
	}
	return nil
}

func writeArg(arg kernel.InvokeArg, fn func([]byte)) {
	buf := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(arg.Ptr))), arg.Length)
	fn(buf)
}

func encodeScalarInvocation(v uint32) []byte {
	payload := make([]byte, 4)
	binary.LittleEndian.PutUint32(payload, v)
	return iobuf.Encode([]iobuf.IOBuffer{{Size: 4, Payload: payload}})
}

func TestRunDispatchesOneInvocationThenStopsOnCancel(t *testing.T) {
	echoDesc := scalars.Descriptor{MethodID: 0, InScalars: 1, OutScalars: 1}
	var gotIn uint32
	echo := registry.Proc{
		Desc: echoDesc,
		Impl: func(in, out []iobuf.IOBuffer) aee.Code {
			gotIn = binary.LittleEndian.Uint32(in[0].Payload)
			binary.LittleEndian.PutUint32(out[0].Payload, gotIn+1)
			return aee.Success
		},
	}
	reg := registry.New(&registry.Interface{Name: "echo", Procs: []registry.Proc{echo}})

	ctx, cancel := context.WithCancel(context.Background())
	dev := &fakeListenerDevice{
		Stub:   kernel.NewStub(kernel.InvokeResponse{}, kernel.InvokeResponse{}, kernel.InvokeResponse{}),
		cancel: cancel,
		handle: 0,
		sc:     echoDesc.Scalars(),
		invoke: encodeScalarInvocation(41),
	}

	l := New(dev, reg, nil)
	err := l.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, uint32(41), gotIn)

	require.Len(t, dev.Calls, 2) // init2, then one next2
	assert.Equal(t, initDesc.Scalars(), dev.Calls[0].ScalarsWord)
	assert.Equal(t, nextDesc.Scalars(), dev.Calls[1].ScalarsWord)
}

func TestDispatchRejectsScalarHandleBits(t *testing.T) {
	reg := registry.New(&registry.Interface{Name: "x"})
	l := New(nil, reg, nil)

	sc := scalars.Encode(0, 0, 0) | 0x1
	_, code := l.dispatch(0, sc, nil)
	assert.Equal(t, aee.BadParam, code)
}
