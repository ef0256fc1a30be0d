package observability

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Cache outcomes recorded per strategy.
const (
	OutcomeHit         = "hit"
	OutcomeMiss        = "miss"
	OutcomeFallback    = "fallback"
	OutcomeSynthesized = "synthesized"
	OutcomeError       = "error"
)

// Metrics collects interception counters.
type Metrics struct {
	mu sync.Mutex

	requestTotal  atomic.Int64
	requestFailed atomic.Int64
	writeFailed   atomic.Int64

	strategyMetrics map[string]*StrategyMetrics
}

// StrategyMetrics represents metrics for a specific strategy.
type StrategyMetrics struct {
	count         atomic.Int64
	totalDuration atomic.Int64 // milliseconds
	outcomes      sync.Map     // outcome -> *atomic.Int64
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{
		strategyMetrics: make(map[string]*StrategyMetrics),
	}
}

var globalMetrics = NewMetrics()

// GlobalMetrics returns the global metrics instance.
func GlobalMetrics() *Metrics {
	return globalMetrics
}

// RecordRequest records one intercepted request and its outcome.
func (m *Metrics) RecordRequest(strategy, outcome string, duration time.Duration) {
	m.requestTotal.Add(1)
	if outcome == OutcomeError {
		m.requestFailed.Add(1)
	}

	sm := m.getStrategyMetrics(strategy)
	sm.count.Add(1)
	sm.totalDuration.Add(duration.Milliseconds())
	counter, _ := sm.outcomes.LoadOrStore(outcome, new(atomic.Int64))
	counter.(*atomic.Int64).Add(1)
}

// RecordWriteFailure records a swallowed cache write failure.
func (m *Metrics) RecordWriteFailure() {
	m.writeFailed.Add(1)
}

// getStrategyMetrics gets or creates strategy metrics.
func (m *Metrics) getStrategyMetrics(strategy string) *StrategyMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	sm, ok := m.strategyMetrics[strategy]
	if !ok {
		sm = &StrategyMetrics{}
		m.strategyMetrics[strategy] = sm
	}
	return sm
}

// Reset resets all metrics (useful for testing).
func (m *Metrics) Reset() {
	m.requestTotal.Store(0)
	m.requestFailed.Store(0)
	m.writeFailed.Store(0)

	m.mu.Lock()
	m.strategyMetrics = make(map[string]*StrategyMetrics)
	m.mu.Unlock()
}

// Snapshot returns a snapshot of current metrics.
func (m *Metrics) Snapshot() *MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	strategies := make(map[string]*StrategySnapshot, len(m.strategyMetrics))
	for name, sm := range m.strategyMetrics {
		snap := &StrategySnapshot{
			Count:    sm.count.Load(),
			Outcomes: map[string]int64{},
		}
		if snap.Count > 0 {
			snap.AverageDuration = sm.totalDuration.Load() / snap.Count
		}
		sm.outcomes.Range(func(k, v any) bool {
			snap.Outcomes[k.(string)] = v.(*atomic.Int64).Load()
			return true
		})
		strategies[name] = snap
	}

	return &MetricsSnapshot{
		RequestTotal:  m.requestTotal.Load(),
		RequestFailed: m.requestFailed.Load(),
		WriteFailed:   m.writeFailed.Load(),
		Strategies:    strategies,
	}
}

// MetricsSnapshot represents a point-in-time snapshot of metrics.
type MetricsSnapshot struct {
	RequestTotal  int64                        `json:"requestTotal"`
	RequestFailed int64                        `json:"requestFailed"`
	WriteFailed   int64                        `json:"writeFailed"`
	Strategies    map[string]*StrategySnapshot `json:"strategies"`
}

// StrategySnapshot represents metrics for a specific strategy.
type StrategySnapshot struct {
	Count           int64            `json:"count"`
	AverageDuration int64            `json:"averageDurationMs"`
	Outcomes        map[string]int64 `json:"outcomes"`
}

// StrategyNames returns the recorded strategy names, sorted.
func (s *MetricsSnapshot) StrategyNames() []string {
	names := make([]string, 0, len(s.Strategies))
	for name := range s.Strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HitRate returns the share of cache hits among intercepted requests as a percentage (0-100).
func (s *MetricsSnapshot) HitRate() float64 {
	if s.RequestTotal == 0 {
		return 0
	}
	var hits int64
	for _, st := range s.Strategies {
		hits += st.Outcomes[OutcomeHit]
	}
	return float64(hits) / float64(s.RequestTotal) * 100.0
}
