package ratelimit

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics tracks rate limiting statistics for the HTTP API.
type Metrics struct {
	mu sync.RWMutex

	totalAllowed  uint64
	totalRejected uint64

	allowedByEndpoint  map[string]*uint64
	rejectedByEndpoint map[string]*uint64

	// rejectionsByType counts rejections by "global" vs the specific
	// endpoint whose own bucket ran dry.
	rejectionsByType map[string]*uint64

	startTime time.Time
}

// NewMetrics creates a new metrics tracker.
func NewMetrics() *Metrics {
	return &Metrics{
		allowedByEndpoint:  make(map[string]*uint64),
		rejectedByEndpoint: make(map[string]*uint64),
		rejectionsByType:   make(map[string]*uint64),
		startTime:          time.Now(),
	}
}

// RecordAllowed records an allowed request against endpoint.
func (m *Metrics) RecordAllowed(endpoint string) {
	atomic.AddUint64(&m.totalAllowed, 1)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.allowedByEndpoint[endpoint]; !exists {
		var zero uint64
		m.allowedByEndpoint[endpoint] = &zero
	}
	atomic.AddUint64(m.allowedByEndpoint[endpoint], 1)
}

// RecordRejection records a rejected request against endpoint.
func (m *Metrics) RecordRejection(limitType, endpoint string) {
	atomic.AddUint64(&m.totalRejected, 1)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.rejectedByEndpoint[endpoint]; !exists {
		var zero uint64
		m.rejectedByEndpoint[endpoint] = &zero
	}
	atomic.AddUint64(m.rejectedByEndpoint[endpoint], 1)

	if _, exists := m.rejectionsByType[limitType]; !exists {
		var zero uint64
		m.rejectionsByType[limitType] = &zero
	}
	atomic.AddUint64(m.rejectionsByType[limitType], 1)
}

// MetricsSnapshot is a point-in-time snapshot of metrics.
type MetricsSnapshot struct {
	TotalAllowed       uint64            `json:"total_allowed"`
	TotalRejected      uint64            `json:"total_rejected"`
	AllowedByEndpoint  map[string]uint64 `json:"allowed_by_endpoint"`
	RejectedByEndpoint map[string]uint64 `json:"rejected_by_endpoint"`
	RejectionsByType   map[string]uint64 `json:"rejections_by_type"`
	Uptime             time.Duration     `json:"uptime"`
	RequestsPerSec     float64           `json:"requests_per_second"`
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (m *Metrics) Snapshot() *MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := &MetricsSnapshot{
		TotalAllowed:       atomic.LoadUint64(&m.totalAllowed),
		TotalRejected:      atomic.LoadUint64(&m.totalRejected),
		AllowedByEndpoint:  make(map[string]uint64),
		RejectedByEndpoint: make(map[string]uint64),
		RejectionsByType:   make(map[string]uint64),
		Uptime:             time.Since(m.startTime),
	}

	for endpoint, count := range m.allowedByEndpoint {
		snapshot.AllowedByEndpoint[endpoint] = atomic.LoadUint64(count)
	}
	for endpoint, count := range m.rejectedByEndpoint {
		snapshot.RejectedByEndpoint[endpoint] = atomic.LoadUint64(count)
	}
	for limitType, count := range m.rejectionsByType {
		snapshot.RejectionsByType[limitType] = atomic.LoadUint64(count)
	}

	totalRequests := snapshot.TotalAllowed + snapshot.TotalRejected
	if snapshot.Uptime.Seconds() > 0 {
		snapshot.RequestsPerSec = float64(totalRequests) / snapshot.Uptime.Seconds()
	}

	return snapshot
}

// TotalAllowed returns the total number of allowed requests.
func (m *Metrics) TotalAllowed() uint64 {
	return atomic.LoadUint64(&m.totalAllowed)
}

// TotalRejected returns the total number of rejected requests.
func (m *Metrics) TotalRejected() uint64 {
	return atomic.LoadUint64(&m.totalRejected)
}

// RejectionRate returns the current rejection rate (0.0 to 1.0).
func (m *Metrics) RejectionRate() float64 {
	allowed := atomic.LoadUint64(&m.totalAllowed)
	rejected := atomic.LoadUint64(&m.totalRejected)
	total := allowed + rejected
	if total == 0 {
		return 0
	}
	return float64(rejected) / float64(total)
}

// Reset resets all metrics.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	atomic.StoreUint64(&m.totalAllowed, 0)
	atomic.StoreUint64(&m.totalRejected, 0)
	m.allowedByEndpoint = make(map[string]*uint64)
	m.rejectedByEndpoint = make(map[string]*uint64)
	m.rejectionsByType = make(map[string]*uint64)
	m.startTime = time.Now()
}
