package session

import (
	"encoding/binary"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xelageo/hexagonrpc/internal/kernel"
)

// scriptedRemotectl answers remotectl_open/remotectl_close with a fixed
// handle/dlret pair, writing them into the caller's first-outbuf argument
// exactly as the listener side would.
type scriptedRemotectl struct {
	*kernel.Stub
	handle uint32
	dlret  int32
	errMsg string
}

func (s *scriptedRemotectl) Invoke(handle uint32, scalarsWord uint32, args []kernel.InvokeArg) error {
	if err := s.Stub.Invoke(handle, scalarsWord, args); err != nil {
		return err
	}

	// Builder order is [firstInbuf, ...inbufs, firstOutbuf, ...outbufs], so
	// the synthesized first outbuf (carrying handle/dlret) is second to
	// last, and the caller's own error-message scratch buffer is last.
	firstOutbuf := args[len(args)-2]
	buf := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(firstOutbuf.Ptr))), firstOutbuf.Length)

	errBuf := args[len(args)-1]
	errDst := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(errBuf.Ptr))), errBuf.Length)

	switch len(args) {
	case 4: // open: firstInbuf, name, firstOutbuf(handle,dlret), errbuf
		binary.LittleEndian.PutUint32(buf[0:], s.handle)
		binary.LittleEndian.PutUint32(buf[4:], uint32(s.dlret))
	case 3: // close: firstInbuf(handle), firstOutbuf(dlret), errbuf
		binary.LittleEndian.PutUint32(buf[0:], uint32(s.dlret))
	}
	copy(errDst, s.errMsg)
	return nil
}

func TestOpenSuccess(t *testing.T) {
	dev := &scriptedRemotectl{Stub: kernel.NewStub(kernel.InvokeResponse{}), handle: 7, dlret: 0}

	s, err := Open(dev, "adsp_default_listener")
	require.NoError(t, err)
	assert.Equal(t, uint32(7), s.Handle())
}

func TestOpenNegativeFiveUsesErrorBuffer(t *testing.T) {
	dev := &scriptedRemotectl{Stub: kernel.NewStub(kernel.InvokeResponse{}), handle: 0, dlret: -5, errMsg: "could not find interface"}

	_, err := Open(dev, "missing_iface")
	assert.ErrorContains(t, err, "missing_iface")
	assert.ErrorContains(t, err, "could not find interface")
}

func TestOpenAEEErrorUsesCodeTable(t *testing.T) {
	dev := &scriptedRemotectl{Stub: kernel.NewStub(kernel.InvokeResponse{}), handle: 0, dlret: 1}

	_, err := Open(dev, "chre_slpi")
	require.Error(t, err)
}

func TestClose(t *testing.T) {
	dev := &scriptedRemotectl{Stub: kernel.NewStub(kernel.InvokeResponse{}, kernel.InvokeResponse{}), handle: 9, dlret: 0}

	s, err := Open(dev, "chre_slpi")
	require.NoError(t, err)
	require.NoError(t, s.Close())
}
