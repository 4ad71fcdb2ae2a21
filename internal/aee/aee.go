// Package aee carries the fixed "Application Execution Environment" error
// table that FastRPC procedure implementations return as their u32 result
// word (see fastrpc/aee_error.c in the original hexagonrpc sources).
package aee

// Code is one of the 50 fixed AEE result codes.
type Code uint32

const (
	Success             Code = 0
	GeneralFailure      Code = 1
	OutOfMemory         Code = 2
	ClassNotSupported   Code = 3
	VersionNotSupported Code = 4
	AlreadyLoaded       Code = 5
	UnableToLoad        Code = 6
	UnableToUnload      Code = 7
	AlarmPending        Code = 8
	InvalidTime         Code = 9
	BadClass            Code = 10
	BadMetric           Code = 11
	Expired             Code = 12
	BadState            Code = 13
	BadParam            Code = 14
	SchemeNotSupported  Code = 15
	BadItem             Code = 16
	InvalidFormat       Code = 17
	IncompleteItem      Code = 18
	NoPersistMemory     Code = 19
	Unsupported         Code = 20
	PrivLevel           Code = 21
	ResourceNotFound    Code = 22
	Reentered           Code = 23
	BadTask             Code = 24
	Allocated           Code = 25
	Already             Code = 26
	AdsAuthBad          Code = 27
	NeedServiceProg     Code = 28
	BadMemPtr           Code = 29
	Heap                Code = 30
	Idle                Code = 31
	ItemBusy            Code = 32
	BadSID              Code = 33
	NoType              Code = 34
	NeedMore            Code = 35
	AdsCaps             Code = 36
	BadShutdown         Code = 37
	BufferTooSmall      Code = 38
	NoSuch              Code = 39
	AckPending          Code = 40
	NotOwner            Code = 41
	InvalidItem         Code = 42
	NotAllowed          Code = 43
	BadHandle           Code = 44
	OutOfHandles        Code = 45
	Interrupted         Code = 46
	NoMore              Code = 47
	CPUException        Code = 48
	ReadOnly            Code = 49
)

// strerror is aee_strerror[] transcribed verbatim from the original source,
// indexed 0..49.
var strerror = [50]string{
	"No error",
	"General failure",
	"Insufficient RAM",
	"Specified class unsupported",
	"Version not supported",
	"Object already loaded",
	"Unable to load object/applet",
	"Unable to unload object/applet",
	"Alarm is pending",
	"Invalid time",
	"NULL class object",
	"Invalid metric specified",
	"App/Component Expired",
	"Invalid state",
	"Invalid parameter",
	"Invalid URL scheme",
	"Invalid item",
	"Invalid format",
	"Incomplete item",
	"Insufficient flash",
	"API is not supported",
	"Privileges are insufficient for this operation",
	"Unable to find specified resource",
	"Non re-entrant API re-entered",
	"API called in wrong task context",
	"App/Module left memory allocated when released.",
	"Operation is already in progress",
	"ADS mutual authorization failed",
	"Need service programming",
	"bad memory pointer",
	"heap corruption",
	"Context (system, interface, etc.) is idle",
	"Context (system, interface, etc.) is busy",
	"Invalid subscriber ID",
	"No type detected/found",
	"Need more data/info",
	"ADS Capabilities do not match those required for phone",
	"App failed to close properly",
	"Destination buffer given is too small",
	"No such name, port, socket or service exists or is valid",
	"ACK pending on application",
	"Not an owner authorized to perform the operation",
	"Current item is invalid",
	"Not allowed to perform the operation",
	"Invalid handle",
	"Out of handles",
	"Waitable call is interrupted",
	"No more items available -- reached end",
	"A CPU exception occurred",
	"Cannot change read-only object or parameter",
}

// String returns the textual description, or "unknown AEE code" for any
// value outside [0,49].
func (c Code) String() string {
	if int(c) < len(strerror) {
		return strerror[c]
	}
	return "unknown AEE code"
}

// Valid reports whether c falls inside the fixed 50-entry table.
func (c Code) Valid() bool {
	return int(c) < len(strerror)
}
