package hexagonrpc

import (
	"context"
	"fmt"
	"io"

	"github.com/xelageo/hexagonrpc/internal/appsstd"
	"github.com/xelageo/hexagonrpc/internal/hexagonfs"
	"github.com/xelageo/hexagonrpc/internal/kernel"
	"github.com/xelageo/hexagonrpc/internal/listener"
	"github.com/xelageo/hexagonrpc/internal/localctl"
	"github.com/xelageo/hexagonrpc/internal/logging"
	"github.com/xelageo/hexagonrpc/internal/registry"
	"github.com/xelageo/hexagonrpc/internal/session"
)

// Params contains parameters for opening a Daemon.
type Params struct {
	// DevicePath is the FastRPC character device node to attach to.
	DevicePath string

	// RootDir and DSP stand in for rpcd_builder.c's construct_root_dir
	// arguments when Manifest is nil: RootDir is the host path the default
	// tree's virtual /vendor etc. is grafted onto, DSP names the DSP-specific
	// library subdirectory ("adsp", "slpi", ...).
	RootDir string
	DSP     string

	// Manifest, if set, is decoded with hexagonfs.LoadManifest instead of
	// building the default tree from RootDir/DSP.
	Manifest io.Reader
}

// DefaultParams returns default daemon parameters rooted at RootDir, using
// the "adsp" DSP library directory.
func DefaultParams(rootDir string) Params {
	return Params{
		DevicePath: DefaultDevicePath,
		RootDir:    rootDir,
		DSP:        "adsp",
	}
}

// Options contains additional options for opening a Daemon.
type Options struct {
	// Logger for debug/info messages (if nil, uses the package default).
	Logger *logging.Logger

	// Observer for metrics collection (if nil, a MetricsObserver feeding the
	// daemon's built-in Metrics is used).
	Observer Observer

	// Device overrides kernel.Open for testing, allowing a kernel.Stub in
	// place of a real FastRPC character device.
	Device kernel.Device
}

// Daemon owns one FastRPC character device fd and services the DSP's
// reverse-tunnel invocations against it: remotectl/localctl name resolution
// (handle 0) and the apps_std filesystem shim, dispatched through the
// listener's init2/next2 loop.
//
// Grounded on rpcd.c's main(): attach the kernel fd once, then run the
// listener thread (RunListener here) alongside whatever forward-direction
// application work a caller wants to drive through OpenSession — that
// application work itself (CHRE, sensor QMI) is out of scope.
type Daemon struct {
	dev      kernel.Device
	table    *hexagonfs.Table
	appsStd  *appsstd.Server
	registry *registry.Registry
	listener *listener.Listener

	logger   *logging.Logger
	metrics  *Metrics
	observer Observer
}

// Open attaches to the FastRPC device and builds the served interface
// registry (remotectl/localctl at handle 0, apps_std at handle 1).
func Open(params Params, options *Options) (*Daemon, error) {
	if options == nil {
		options = &Options{}
	}

	logger := options.Logger
	if logger == nil {
		logger = logging.Default()
	}

	dev := options.Device
	if dev == nil {
		var err error
		dev, err = kernel.Open(params.DevicePath, logger)
		if err != nil {
			return nil, WrapError("hexagonrpc.Open", err)
		}
	}

	if err := dev.Attach(); err != nil {
		dev.Close()
		return nil, WrapError("INIT_ATTACH", err)
	}

	tree, err := buildTree(params)
	if err != nil {
		dev.Close()
		return nil, WrapError("hexagonrpc.Open", err)
	}

	table, err := hexagonfs.NewTable(tree)
	if err != nil {
		dev.Close()
		return nil, WrapError("hexagonfs.NewTable", err)
	}

	appsStd := appsstd.NewServer(table)

	metrics := NewMetrics()
	var observer Observer = NoOpObserver{}
	if options.Observer != nil {
		observer = options.Observer
	} else {
		observer = NewMetricsObserver(metrics)
	}
	appsStd.SetObserver(observer)

	var reg *registry.Registry
	localctlIface := localctl.NewInterface(func() []string { return reg.Names() })
	reg = registry.New(localctlIface, appsStd.Interface())

	l := listener.New(dev, reg, logger)
	l.SetObserver(observer)

	return &Daemon{
		dev:      dev,
		table:    table,
		appsStd:  appsStd,
		registry: reg,
		listener: l,
		logger:   logger,
		metrics:  metrics,
		observer: observer,
	}, nil
}

func buildTree(params Params) (*hexagonfs.Tree, error) {
	if params.Manifest != nil {
		return hexagonfs.LoadManifest(params.Manifest)
	}
	return hexagonfs.BuildDefaultTree(params.RootDir, params.DSP), nil
}

// RunListener runs the reverse-tunnel loop until ctx is canceled or the
// round trip with the kernel fails.
func (d *Daemon) RunListener(ctx context.Context) error {
	return d.listener.Run(ctx)
}

// OpenSession opens a named remote interface (e.g. a forward-direction
// application interface on the DSP) against the daemon's device, for
// whatever caller-supplied forward-direction work runs alongside the
// listener loop. The listener loop itself never calls this.
func (d *Daemon) OpenSession(name string) (*session.Session, error) {
	s, err := session.Open(d.dev, name)
	if err != nil {
		return nil, WrapError(fmt.Sprintf("OpenSession(%q)", name), err)
	}
	return s, nil
}

// Registry returns the interface registry served to the DSP. Its interface
// set is fixed when the Daemon is opened; Registry has no method to add more.
func (d *Daemon) Registry() *registry.Registry {
	return d.registry
}

// Metrics returns the daemon's built-in metrics collector.
func (d *Daemon) Metrics() *Metrics {
	return d.metrics
}

// MetricsSnapshot returns a point-in-time snapshot of daemon metrics.
func (d *Daemon) MetricsSnapshot() MetricsSnapshot {
	return d.metrics.Snapshot()
}

// Close releases the daemon's kernel device fd.
func (d *Daemon) Close() error {
	d.metrics.Stop()
	return d.dev.Close()
}
