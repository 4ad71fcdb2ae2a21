package kernel

import (
	"encoding/binary"
	"errors"
	"fmt"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/xelageo/hexagonrpc/internal/logging"
)

// InvokeArg is one {ptr, length, fd} triple of the kernel invoke argument
// vector (SPEC_FULL.md §3 "Invoke argument vector", §6 kernel driver).
type InvokeArg struct {
	Ptr    uint64
	Length uint64
	FD     int32
}

// argWireSize is sizeof(struct fastrpc_invoke_args): ptr, length, fd, and a
// reserved word that pads the triple to natural 8-byte struct alignment.
const argWireSize = 24

// Device is the FastRPC character device boundary: attach and invoke. The
// real implementation issues ioctl(2) directly; Stub fakes it for tests
// (SPEC_FULL.md §10.4).
type Device interface {
	// Attach issues INIT_ATTACH, binding the fd to the ordinary DSP domain.
	Attach() error
	// AttachSensors issues INIT_ATTACH_SNS, binding the fd to the sensors
	// sub-domain.
	AttachSensors() error
	// Invoke issues INVOKE with the given handle, scalars word, and argument
	// vector (effective inbuf count leading, effective outbuf count trailing,
	// per SPEC_FULL.md §3).
	Invoke(handle uint32, scalarsWord uint32, args []InvokeArg) error
	// Close releases the underlying fd.
	Close() error
}

// device is the real, syscall-backed Device.
type device struct {
	fd     int
	logger *logging.Logger
}

// Open opens a FastRPC character device node (e.g. /dev/fastrpc-adsp).
func Open(path string, logger *logging.Logger) (Device, error) {
	if logger == nil {
		logger = logging.Default()
	}
	fd, err := unix.Open(path, unix.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("kernel: open %s: %w", path, err)
	}
	logger.Debug("opened fastrpc device", "path", path, "fd", fd)
	return &device{fd: fd, logger: logger}, nil
}

func (d *device) Attach() error {
	d.logger.Debug("INIT_ATTACH", "fd", d.fd)
	return ioctlNoArg(d.fd, ioctlInitAttach)
}

func (d *device) AttachSensors() error {
	d.logger.Debug("INIT_ATTACH_SNS", "fd", d.fd)
	return ioctlNoArg(d.fd, ioctlInitAttachSNS)
}

func (d *device) Invoke(handle uint32, scalarsWord uint32, args []InvokeArg) error {
	argsBuf := marshalArgs(args)

	var argsPtr uint64
	if len(argsBuf) > 0 {
		argsPtr = uint64(uintptr(unsafe.Pointer(&argsBuf[0])))
	}

	hdr := make([]byte, invokeSize)
	binary.LittleEndian.PutUint32(hdr[0:4], handle)
	binary.LittleEndian.PutUint32(hdr[4:8], scalarsWord)
	binary.LittleEndian.PutUint64(hdr[8:16], argsPtr)

	d.logger.Debug("INVOKE", "handle", handle, "scalars", fmt.Sprintf("0x%x", scalarsWord), "nargs", len(args))

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(d.fd), uintptr(ioctlInvoke), uintptr(unsafe.Pointer(&hdr[0])))

	runtime.KeepAlive(argsBuf)
	runtime.KeepAlive(hdr)

	if errno != 0 {
		return errno
	}
	return nil
}

func (d *device) Close() error {
	return unix.Close(d.fd)
}

func ioctlNoArg(fd int, op uint32) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(op), 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func marshalArgs(args []InvokeArg) []byte {
	if len(args) == 0 {
		return nil
	}
	buf := make([]byte, argWireSize*len(args))
	for i, a := range args {
		off := i * argWireSize
		binary.LittleEndian.PutUint64(buf[off:off+8], a.Ptr)
		binary.LittleEndian.PutUint64(buf[off+8:off+16], a.Length)
		binary.LittleEndian.PutUint32(buf[off+16:off+20], uint32(a.FD))
	}
	return buf
}

// ErrStubExhausted is returned by Stub.Invoke when a test drives it past the
// number of scripted responses it was given.
var ErrStubExhausted = errors.New("kernel: stub invoke queue exhausted")
