package constants

// Default configuration constants
const (
	// DefaultDevicePath is the FastRPC character device node the daemon
	// attaches to when no path is given explicitly.
	DefaultDevicePath = "/dev/fastrpc-adsp"

	// DefaultInterfaceName is the name remotectl resolves to locate the
	// apps_std interface's handle, mirroring the original daemon's startup
	// sequence (open "apps_std" against handle 0 before running the listener).
	DefaultInterfaceName = "apps_std"

	// MaxInvocationInbufWire is the fixed scratch size the listener's
	// return_for_next_invoke allocates for an incoming invocation's encoded
	// input buffers (SPEC_FULL.md §4.J step 4).
	MaxInvocationInbufWire = 256

	// MaxOpenFiles bounds the HexagonFS descriptor table, matching the
	// original's fixed-size fd array.
	MaxOpenFiles = 256
)
