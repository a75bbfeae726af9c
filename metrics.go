package authcore

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one provider counter or histogram.
type MetricID uint16

const (
	MetricRegisterSuccess MetricID = iota
	MetricRegisterDuplicate
	MetricRegisterRejected
	MetricLoginSuccess
	MetricLoginFailure
	MetricRefreshSuccess
	// MetricRefreshFailure counts unknown, expired and already used refresh tokens.
	MetricRefreshFailure
	MetricRefreshRaceLost
	MetricLogout
	MetricWhoamiHit
	MetricWhoamiMiss
	MetricSessionCreated
	// MetricSessionInvalidated counts revoked tokens of either kind.
	MetricSessionInvalidated
	MetricStorageError
	MetricCryptoError
	MetricWhoamiLatency
	MetricLoginLatency
	metricIDCount
)

var metricNames = [metricIDCount]string{
	MetricRegisterSuccess:    "register_success",
	MetricRegisterDuplicate:  "register_duplicate",
	MetricRegisterRejected:   "register_rejected",
	MetricLoginSuccess:       "login_success",
	MetricLoginFailure:       "login_failure",
	MetricRefreshSuccess:     "refresh_success",
	MetricRefreshFailure:     "refresh_failure",
	MetricRefreshRaceLost:    "refresh_race_lost",
	MetricLogout:             "logout",
	MetricWhoamiHit:          "whoami_hit",
	MetricWhoamiMiss:         "whoami_miss",
	MetricSessionCreated:     "session_created",
	MetricSessionInvalidated: "session_invalidated",
	MetricStorageError:       "storage_error",
	MetricCryptoError:        "crypto_error",
	MetricWhoamiLatency:      "whoami_latency",
	MetricLoginLatency:       "login_latency",
}

// String returns the stable snake_case metric name used by exporters.
func (id MetricID) String() string {
	if id >= metricIDCount {
		return "unknown"
	}
	return metricNames[id]
}

// IsHistogram reports whether id is recorded by Observe.
func (id MetricID) IsHistogram() bool {
	return id == MetricWhoamiLatency || id == MetricLoginLatency
}

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

// HistogramBoundaries are the inclusive upper bounds of the latency buckets.
// The last bucket is unbounded.
var HistogramBoundaries = [histBucketCount - 1]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a lock-free set of counters and fixed-bucket histograms.
// A nil or disabled Metrics ignores all updates.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all metric values.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc increments counter id.
func (m *Metrics) Inc(id MetricID) {
	m.Add(id, 1)
}

// Add increments counter id by n.
func (m *Metrics) Add(id MetricID, n uint64) {
	if m == nil || !m.enabled || id >= metricIDCount || n == 0 {
		return
	}
	atomic.AddUint64(&m.counters[id].value, n)
}

// Observe records d into histogram id. Non-histogram ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if !id.IsHistogram() {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and, when latency is enabled, every histogram.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 2),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id.IsHistogram() {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		for _, id := range []MetricID{MetricWhoamiLatency, MetricLoginLatency} {
			buckets := make([]uint64, histBucketCount)
			for i := 0; i < histBucketCount; i++ {
				buckets[i] = atomic.LoadUint64(&m.histograms[id].buckets[i])
			}
			s.Histograms[id] = buckets
		}
	}

	return s
}

func bucketIndex(d time.Duration) int {
	for i, bound := range HistogramBoundaries {
		if d <= bound {
			return i
		}
	}
	return histBucketCount - 1
}
