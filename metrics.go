package hexagonrpc

import (
	"sync/atomic"
	"time"

	"github.com/xelageo/hexagonrpc/internal/aee"
)

// LatencyBuckets defines the invocation-latency histogram buckets in
// nanoseconds. Buckets cover from 1us to 10s with logarithmic spacing,
// matching the range a reverse-tunnel round trip or a VFS call on the DSP's
// host filesystem view is expected to fall into.
var LatencyBuckets = []uint64{
	1_000,          // 1us
	10_000,         // 10us
	100_000,        // 100us
	1_000_000,      // 1ms
	10_000_000,     // 10ms
	100_000_000,    // 100ms
	1_000_000_000,  // 1s
	10_000_000_000, // 10s
}

const numLatencyBuckets = 8

// Metrics tracks invocation and VFS-operation statistics for one Daemon.
type Metrics struct {
	// Invocation counters, one dispatch through the listener's registry per
	// count.
	InvocationCount  atomic.Uint64
	InvocationErrors atomic.Uint64

	// VFS operation counters, one apps_std call per count.
	VFSOpCount  atomic.Uint64
	VFSOpErrors atomic.Uint64

	// Performance tracking, shared across both invocation and VFS-op
	// latency samples.
	TotalLatencyNs atomic.Uint64
	OpCount        atomic.Uint64

	// Latency histogram buckets (cumulative counts). Each bucket[i]
	// contains the count of operations with latency <= LatencyBuckets[i].
	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	// Daemon lifecycle
	StartTime atomic.Int64 // UnixNano
	StopTime  atomic.Int64 // UnixNano
}

// NewMetrics creates a new metrics instance.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordInvocation records one listener dispatch.
func (m *Metrics) RecordInvocation(latency time.Duration, code aee.Code) {
	m.InvocationCount.Add(1)
	if code != aee.Success {
		m.InvocationErrors.Add(1)
	}
	m.recordLatency(uint64(latency.Nanoseconds()))
}

// RecordVFSOp records one apps_std call.
func (m *Metrics) RecordVFSOp(latency time.Duration, code aee.Code) {
	m.VFSOpCount.Add(1)
	if code != aee.Success {
		m.VFSOpErrors.Add(1)
	}
	m.recordLatency(uint64(latency.Nanoseconds()))
}

func (m *Metrics) recordLatency(latencyNs uint64) {
	m.TotalLatencyNs.Add(latencyNs)
	m.OpCount.Add(1)

	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// Stop marks the daemon as stopped.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time snapshot of daemon metrics.
type MetricsSnapshot struct {
	InvocationCount  uint64
	InvocationErrors uint64
	VFSOpCount       uint64
	VFSOpErrors      uint64

	AvgLatencyNs uint64
	UptimeNs     uint64

	LatencyP50Ns  uint64
	LatencyP99Ns  uint64
	LatencyP999Ns uint64

	LatencyHistogram [numLatencyBuckets]uint64

	TotalOps  uint64
	ErrorRate float64 // percentage of failed operations
}

// Snapshot creates a point-in-time snapshot of metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		InvocationCount:  m.InvocationCount.Load(),
		InvocationErrors: m.InvocationErrors.Load(),
		VFSOpCount:       m.VFSOpCount.Load(),
		VFSOpErrors:      m.VFSOpErrors.Load(),
	}

	snap.TotalOps = snap.InvocationCount + snap.VFSOpCount

	totalLatencyNs := m.TotalLatencyNs.Load()
	opCount := m.OpCount.Load()
	if opCount > 0 {
		snap.AvgLatencyNs = totalLatencyNs / opCount
	}

	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}

	totalErrors := snap.InvocationErrors + snap.VFSOpErrors
	if snap.TotalOps > 0 {
		snap.ErrorRate = float64(totalErrors) / float64(snap.TotalOps) * 100.0
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}

	if opCount > 0 {
		snap.LatencyP50Ns = m.calculatePercentile(0.50)
		snap.LatencyP99Ns = m.calculatePercentile(0.99)
		snap.LatencyP999Ns = m.calculatePercentile(0.999)
	}

	return snap
}

// calculatePercentile estimates the latency at the given percentile (0.0-1.0)
// using linear interpolation between histogram buckets.
func (m *Metrics) calculatePercentile(percentile float64) uint64 {
	totalOps := m.OpCount.Load()
	if totalOps == 0 {
		return 0
	}

	targetCount := uint64(float64(totalOps) * percentile)

	prevBucket := uint64(0)
	for i, bucket := range LatencyBuckets {
		bucketCount := m.LatencyBuckets[i].Load()
		if bucketCount >= targetCount {
			prevCount := uint64(0)
			if i > 0 {
				prevCount = m.LatencyBuckets[i-1].Load()
			}
			if bucketCount == prevCount {
				return bucket
			}
			fraction := float64(targetCount-prevCount) / float64(bucketCount-prevCount)
			return prevBucket + uint64(fraction*float64(bucket-prevBucket))
		}
		prevBucket = bucket
	}

	return LatencyBuckets[numLatencyBuckets-1]
}

// Reset resets all metrics counters (useful for testing).
func (m *Metrics) Reset() {
	m.InvocationCount.Store(0)
	m.InvocationErrors.Store(0)
	m.VFSOpCount.Store(0)
	m.VFSOpErrors.Store(0)
	m.TotalLatencyNs.Store(0)
	m.OpCount.Store(0)
	for i := 0; i < numLatencyBuckets; i++ {
		m.LatencyBuckets[i].Store(0)
	}
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// Observer is notified of invocation and VFS-operation activity, satisfying
// both internal/listener.Observer and internal/appsstd.Observer structurally
// so one concrete type can be handed to both the listener and the apps_std
// server without either package importing this one.
type Observer interface {
	ObserveInvocation(handle, method uint32, latency time.Duration, code aee.Code)
	ObserveVFSOp(method uint32, latency time.Duration, code aee.Code)
}

// NoOpObserver is a no-op implementation of Observer.
type NoOpObserver struct{}

func (NoOpObserver) ObserveInvocation(uint32, uint32, time.Duration, aee.Code) {}
func (NoOpObserver) ObserveVFSOp(uint32, time.Duration, aee.Code)              {}

// MetricsObserver implements Observer using the built-in Metrics.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records to the given metrics.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveInvocation(handle, method uint32, latency time.Duration, code aee.Code) {
	o.metrics.RecordInvocation(latency, code)
}

func (o *MetricsObserver) ObserveVFSOp(method uint32, latency time.Duration, code aee.Code) {
	o.metrics.RecordVFSOp(latency, code)
}

var _ Observer = (*MetricsObserver)(nil)
var _ Observer = (*NoOpObserver)(nil)
