// Package listener runs the reverse-tunnel loop: the host side of FastRPC
// issues an adsp_listener invocation against a fixed handle to both return
// the previous call's result and fetch the next invocation to service, in a
// single round trip, forever.
//
// Grounded on fastrpc/hexagonrpcd/listener.c's run_fastrpc_listener /
// return_for_next_invoke / invoke_requested_procedure, adapted from the
// blocking-ioctl round trip there onto this package's invoke.Invoke builder
// and internal/registry dispatch instead of the C reference's hand-rolled
// iobuffer encode/decode and raw ifaces[] array walk. The loop checks ctx
// between round trips, so a round trip already blocked in the kernel is not
// interrupted by cancellation, and it returns the first round-trip error
// without logging it.
package listener

import (
	"context"
	"fmt"
	"time"

	"github.com/xelageo/hexagonrpc/internal/aee"
	"github.com/xelageo/hexagonrpc/internal/iobuf"
	"github.com/xelageo/hexagonrpc/internal/invoke"
	"github.com/xelageo/hexagonrpc/internal/kernel"
	"github.com/xelageo/hexagonrpc/internal/logging"
	"github.com/xelageo/hexagonrpc/internal/registry"
	"github.com/xelageo/hexagonrpc/internal/scalars"
)

// Observer is notified once per dispatched invocation, for callers that want
// invocation-level metrics without the listener depending on any particular
// metrics implementation.
type Observer interface {
	ObserveInvocation(handle, method uint32, latency time.Duration, code aee.Code)
}

// Handle is ADSP_LISTENER_HANDLE, the fixed handle the reverse tunnel's own
// init2/next2 calls are invoked against.
const Handle = 3

// maxInbufWire is the fixed 256-byte scratch size return_for_next_invoke
// allocates for the next invocation's encoded input buffers; an invocation
// whose total encoded inbuf size exceeds this is rejected, same as the C
// reference's "Large (>256B) input buffers aren't implemented".
const maxInbufWire = 256

var (
	initDesc = scalars.Descriptor{MethodID: 3}
	nextDesc = scalars.Descriptor{MethodID: 4, InScalars: 2, InBuffers: 1, OutScalars: 4, OutBuffers: 1}
)

// Listener runs the reverse tunnel loop against one kernel.Device, servicing
// invocations by dispatching them through a registry.Registry.
type Listener struct {
	dev      kernel.Device
	reg      *registry.Registry
	logger   *logging.Logger
	observer Observer
}

// New builds a Listener. dev must already have a session attached and the
// registry's interfaces (typically remotectl at handle 0, apps_std at some
// other handle) fully populated.
func New(dev kernel.Device, reg *registry.Registry, logger *logging.Logger) *Listener {
	return &Listener{dev: dev, reg: reg, logger: logger}
}

// SetObserver attaches an invocation observer. Must be called before Run.
func (l *Listener) SetObserver(o Observer) {
	l.observer = o
}

// Run initializes the listener and services invocations until ctx is
// canceled or a round trip fails.
func (l *Listener) Run(ctx context.Context) error {
	if err := l.init(); err != nil {
		return fmt.Errorf("listener: init: %w", err)
	}

	var (
		rctx       uint32
		result     uint32 = 0xffffffff
		prevSC     uint32
		prevOutbuf []iobuf.IOBuffer
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		nextRctx, handle, sc, decoded, err := l.returnForNextInvoke(rctx, result, prevSC, prevOutbuf)
		if err != nil {
			return fmt.Errorf("listener: round trip: %w", err)
		}

		start := time.Now()
		outbufs, code := l.dispatch(handle, sc, decoded)
		if l.observer != nil {
			l.observer.ObserveInvocation(handle, scalars.Method(sc), time.Since(start), code)
		}

		rctx = nextRctx
		result = uint32(code)
		prevSC = sc
		prevOutbuf = outbufs
	}
}

func (l *Listener) init() error {
	_, err := invoke.New(initDesc).Call(l.dev, Handle)
	return err
}

// dispatch validates the handle carries no scalar-in/out counts (this
// system always folds those into buffer counts) before handing off to the
// registry, mirroring invoke_requested_procedure's sc&0xff check.
func (l *Listener) dispatch(handle uint32, sc uint32, decoded []iobuf.IOBuffer) ([]iobuf.IOBuffer, aee.Code) {
	if sc&0xff != 0 {
		if l.logger != nil {
			l.logger.Warnf("listener: handles are not supported, got sc=%08x", sc)
		}
		return nil, aee.BadParam
	}
	return l.reg.Dispatch(handle, sc, decoded)
}

// returnForNextInvoke encodes prevOutbufs per prevSC's outbuf count, issues
// the adsp_listener next2 round trip, and decodes the returned invocation's
// input buffers. Mirrors return_for_next_invoke.
func (l *Listener) returnForNextInvoke(rctx, result, prevSC uint32, prevOutbuf []iobuf.IOBuffer) (nextRctx, handle, sc uint32, decoded []iobuf.IOBuffer, err error) {
	outCount := int(scalars.Outbufs(prevSC))
	var encoded []byte
	if outCount > 0 {
		encoded = iobuf.Encode(prevOutbuf)
	}

	res, err := invoke.New(nextDesc).
		InScalar(rctx).
		InScalar(result).
		InBuf(encoded).
		OutScalar().
		OutScalar().
		OutScalar().
		OutScalar().
		OutBuf(maxInbufWire).
		Call(l.dev, Handle)
	if err != nil {
		return 0, 0, 0, nil, err
	}

	nextRctx = res.OutScalars[0]
	handle = res.OutScalars[1]
	sc = res.OutScalars[2]
	inbufsLen := res.OutScalars[3]

	if inbufsLen > maxInbufWire {
		return 0, 0, 0, nil, fmt.Errorf("listener: input buffers too large: %d bytes", inbufsLen)
	}

	dec := iobuf.NewDecoder(int(scalars.Inbufs(sc)))
	if err := dec.Feed(res.OutBufs[0][:inbufsLen]); err != nil {
		return 0, 0, 0, nil, fmt.Errorf("listener: decode invocation: %w", err)
	}
	if !dec.IsComplete() {
		return 0, 0, 0, nil, fmt.Errorf("listener: expected more input buffers")
	}
	decoded, err = dec.Finish()
	if err != nil {
		return 0, 0, 0, nil, err
	}

	return nextRctx, handle, sc, decoded, nil
}
