// Package kernel is the boundary to the FastRPC character device: the three
// ioctls this system treats as an external collaborator (INIT_ATTACH,
// INIT_ATTACH_SNS, INVOKE). The kernel driver itself is out of scope (it is
// a Linux in-tree module); this package only needs to speak its ioctl ABI.
package kernel

const (
	_IOC_NONE  = 0
	_IOC_WRITE = 1
	_IOC_READ  = 2

	_IOC_NRBITS   = 8
	_IOC_TYPEBITS = 8
	_IOC_SIZEBITS = 14

	_IOC_NRSHIFT   = 0
	_IOC_TYPESHIFT = _IOC_NRSHIFT + _IOC_NRBITS
	_IOC_SIZESHIFT = _IOC_TYPESHIFT + _IOC_TYPEBITS
	_IOC_DIRSHIFT  = _IOC_SIZESHIFT + _IOC_SIZEBITS
)

// ioctlEncode builds a Linux ioctl command number the same way the kernel's
// _IOC()/_IOWR() macros do.
func ioctlEncode(dir, typ, nr, size uint32) uint32 {
	return (dir << _IOC_DIRSHIFT) |
		(size << _IOC_SIZESHIFT) |
		(typ << _IOC_TYPESHIFT) |
		(nr << _IOC_NRSHIFT)
}

// fastRPCType is the ioctl "type" byte the kernel's misc/fastrpc.h reserves
// for this driver ('R' in the upstream header).
const fastRPCType = 'R'

// invokeSize is sizeof(struct fastrpc_ioctl_invoke): handle (u32), scalars
// (u32), args pointer (u64).
const invokeSize = 16

var (
	// ioctlInitAttach attaches the fd to the ordinary DSP domain. No argument.
	ioctlInitAttach = ioctlEncode(_IOC_NONE, fastRPCType, 6, 0)
	// ioctlInitAttachSNS attaches the fd to the sensors sub-domain. No argument.
	ioctlInitAttachSNS = ioctlEncode(_IOC_NONE, fastRPCType, 8, 0)
	// ioctlInvoke issues a method invocation.
	ioctlInvoke = ioctlEncode(_IOC_READ|_IOC_WRITE, fastRPCType, 1, invokeSize)
)
