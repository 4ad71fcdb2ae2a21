package kernel

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIoctlEncodeMatchesKnownLayout(t *testing.T) {
	// _IOWR('R', 1, 16) with the 32-bit Linux ioctl layout.
	got := ioctlEncode(_IOC_READ|_IOC_WRITE, fastRPCType, 1, invokeSize)
	want := uint32(3)<<30 | uint32(16)<<16 | uint32('R')<<8 | uint32(1)
	assert.Equal(t, want, got)
}

func TestIoctlCommandsAreDistinct(t *testing.T) {
	assert.NotEqual(t, ioctlInitAttach, ioctlInitAttachSNS)
	assert.NotEqual(t, ioctlInitAttach, ioctlInvoke)
	assert.NotEqual(t, ioctlInitAttachSNS, ioctlInvoke)
}

func TestStubAttach(t *testing.T) {
	s := NewStub()
	require.NoError(t, s.Attach())
	assert.True(t, s.Attached())
	assert.False(t, s.AttachedSensors())

	require.NoError(t, s.AttachSensors())
	assert.True(t, s.AttachedSensors())
}

func TestStubAttachError(t *testing.T) {
	wantErr := errors.New("attach failed")
	s := &Stub{AttachErr: wantErr}
	assert.ErrorIs(t, s.Attach(), wantErr)
	assert.False(t, s.Attached())
}

func TestStubInvokeRecordsCallsAndPlaysBackResponses(t *testing.T) {
	s := NewStub(InvokeResponse{}, InvokeResponse{Err: errors.New("dsp busy")})

	args := []InvokeArg{{Ptr: 0x1000, Length: 4}}
	require.NoError(t, s.Invoke(3, 0x02000000, args))

	err := s.Invoke(3, 0x02000000, args)
	assert.EqualError(t, err, "dsp busy")

	require.Len(t, s.Calls, 2)
	assert.Equal(t, uint32(3), s.Calls[0].Handle)
	assert.Equal(t, uint32(0x02000000), s.Calls[0].ScalarsWord)
	assert.Equal(t, args, s.Calls[0].Args)
}

func TestStubInvokeExhausted(t *testing.T) {
	s := NewStub(InvokeResponse{})
	require.NoError(t, s.Invoke(0, 0, nil))
	assert.ErrorIs(t, s.Invoke(0, 0, nil), ErrStubExhausted)
}

func TestStubClose(t *testing.T) {
	s := NewStub()
	require.NoError(t, s.Close())
	assert.True(t, s.Closed())
}

func TestMarshalArgsLayout(t *testing.T) {
	args := []InvokeArg{
		{Ptr: 0x1122334455667788, Length: 0x10, FD: 7},
	}
	buf := marshalArgs(args)
	require.Len(t, buf, argWireSize)
	assert.Equal(t, byte(0x88), buf[0])
	assert.Equal(t, byte(0x11), buf[7])
}

func TestMarshalArgsEmpty(t *testing.T) {
	assert.Nil(t, marshalArgs(nil))
}
