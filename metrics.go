package tokensmith

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter.
type MetricID uint16

const (
	MetricRegisterSuccess MetricID = iota
	MetricRegisterDuplicate
	MetricLoginSuccess
	MetricLoginFailure
	MetricLoginRateLimited
	MetricIssueSuccess
	MetricRotateSuccess
	MetricRotateInvalid
	MetricRotateInactive
	MetricRotateRateLimited
	MetricReuseDetected
	MetricRevoke
	MetricRevokeAll
	MetricVerifySuccess
	MetricVerifyFailure
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

// paddedCounter keeps each counter on its own cache line so concurrent
// increments from different flows do not false-share.
type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a fixed set of atomic counters plus a latency histogram for
// access verification, the hottest path.
type Metrics struct {
	enabled       bool
	counters      [metricIDCount]paddedCounter
	verifyLatency [histBucketCount]uint64
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters      map[MetricID]uint64
	VerifyLatency []uint64
}

// NewMetrics creates the counter set.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: !cfg.Disabled}
}

// Enabled reports whether counting is on.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc adds one to the counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records one access verification latency sample.
func (m *Metrics) Observe(d time.Duration) {
	if m == nil || !m.enabled {
		return
	}
	atomic.AddUint64(&m.verifyLatency[bucketIndex(d)], 1)
}

// Value reads one counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter atomically enough for monitoring purposes:
// individual loads are atomic, the set is not a consistent cut.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}

	s := MetricsSnapshot{
		Counters:      make(map[MetricID]uint64, int(metricIDCount)),
		VerifyLatency: make([]uint64, histBucketCount),
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	for i := 0; i < histBucketCount; i++ {
		s.VerifyLatency[i] = atomic.LoadUint64(&m.verifyLatency[i])
	}
	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()
	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
