package hexagonrpc

import "github.com/xelageo/hexagonrpc/internal/constants"

// Re-export constants for public API
const (
	DefaultDevicePath      = constants.DefaultDevicePath
	DefaultInterfaceName   = constants.DefaultInterfaceName
	MaxInvocationInbufWire = constants.MaxInvocationInbufWire
	MaxOpenFiles           = constants.MaxOpenFiles
)
