package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// RemoteMetrics tracks per-operation latency and outcome counts for calls to
// the deck backend and card API, plus card cache effectiveness.
type RemoteMetrics struct {
	mu         sync.RWMutex
	operations map[string]*operationMetrics

	CacheHits      atomic.Uint64
	CacheMisses    atomic.Uint64
	StaleDiscarded atomic.Uint64

	startTime time.Time
}

type operationMetrics struct {
	latency  *Histogram
	requests atomic.Uint64
	errors   atomic.Uint64
}

// NewRemoteMetrics creates an empty collector.
func NewRemoteMetrics() *RemoteMetrics {
	return &RemoteMetrics{
		operations: make(map[string]*operationMetrics),
		startTime:  time.Now(),
	}
}

func (m *RemoteMetrics) operation(name string) *operationMetrics {
	m.mu.RLock()
	op, ok := m.operations[name]
	m.mu.RUnlock()
	if ok {
		return op
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if op, ok = m.operations[name]; !ok {
		op = &operationMetrics{latency: NewHistogram(defaultHistogramSize)}
		m.operations[name] = op
	}
	return op
}

// Observe records one call to operation that started at start. A nil
// receiver is a no-op so callers can leave metrics unconfigured.
func (m *RemoteMetrics) Observe(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	op := m.operation(operation)
	op.latency.Record(time.Since(start))
	op.requests.Add(1)
	if err != nil {
		op.errors.Add(1)
	}
}

// RecordCacheHit counts a card served from cache.
func (m *RemoteMetrics) RecordCacheHit() {
	if m != nil {
		m.CacheHits.Add(1)
	}
}

// RecordCacheMiss counts a card that had to be fetched.
func (m *RemoteMetrics) RecordCacheMiss() {
	if m != nil {
		m.CacheMisses.Add(1)
	}
}

// RecordStaleDiscard counts a remote response dropped because a newer one
// had already been applied or the deck was no longer active.
func (m *RemoteMetrics) RecordStaleDiscard() {
	if m != nil {
		m.StaleDiscarded.Add(1)
	}
}

// OperationStats summarizes a single remote operation.
type OperationStats struct {
	Operation   string       `json:"operation"`
	Requests    uint64       `json:"requests"`
	Errors      uint64       `json:"errors"`
	SuccessRate float64      `json:"success_rate"` // percentage
	Latency     LatencyStats `json:"latency"`
}

// Stats is a snapshot of all collected metrics.
type Stats struct {
	Operations     []OperationStats `json:"operations"`
	CacheHits      uint64           `json:"cache_hits"`
	CacheMisses    uint64           `json:"cache_misses"`
	CacheHitRate   float64          `json:"cache_hit_rate"` // percentage
	StaleDiscarded uint64           `json:"stale_discarded"`
	Uptime         string           `json:"uptime"`
}

// GetStats returns a snapshot with operations sorted by name.
func (m *RemoteMetrics) GetStats() *Stats {
	m.mu.RLock()
	names := make([]string, 0, len(m.operations))
	for name := range m.operations {
		names = append(names, name)
	}
	start := m.startTime
	m.mu.RUnlock()
	sort.Strings(names)

	stats := &Stats{
		Operations:     make([]OperationStats, 0, len(names)),
		CacheHits:      m.CacheHits.Load(),
		CacheMisses:    m.CacheMisses.Load(),
		StaleDiscarded: m.StaleDiscarded.Load(),
		Uptime:         time.Since(start).Round(time.Second).String(),
	}

	if total := stats.CacheHits + stats.CacheMisses; total > 0 {
		stats.CacheHitRate = float64(stats.CacheHits) / float64(total) * 100
	}

	for _, name := range names {
		op := m.operation(name)
		requests := op.requests.Load()
		errs := op.errors.Load()
		success := 0.0
		if requests > 0 {
			success = float64(requests-errs) / float64(requests) * 100
		}
		stats.Operations = append(stats.Operations, OperationStats{
			Operation:   name,
			Requests:    requests,
			Errors:      errs,
			SuccessRate: success,
			Latency:     op.latency.Stats(),
		})
	}

	return stats
}

// Reset clears all metrics.
func (m *RemoteMetrics) Reset() {
	m.mu.Lock()
	m.operations = make(map[string]*operationMetrics)
	m.startTime = time.Now()
	m.mu.Unlock()

	m.CacheHits.Store(0)
	m.CacheMisses.Store(0)
	m.StaleDiscarded.Store(0)
}
